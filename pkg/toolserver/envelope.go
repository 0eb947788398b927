// Package toolserver routes order-service tool invocations to the order store.
package toolserver

import (
	"context"
	"fmt"

	"github.com/morezero/order-assistant/pkg/db"
)

// Tool names served by the order service.
const (
	ToolOrderHistory = "get_order_history_by_email"
	ToolOrderStatus  = "get_order_status"
)

// InvokeRequest is the JSON body of POST /mcp/invoke.
type InvokeRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// ToolSpec describes one tool in the GET /mcp/tools listing.
type ToolSpec struct {
	Params      map[string]string `json:"params"`
	Description string            `json:"description"`
}

// Tools returns the tool listing.
func Tools() map[string]ToolSpec {
	return map[string]ToolSpec{
		ToolOrderHistory: {
			Params:      map[string]string{"email": "string", "limit": "int optional"},
			Description: "Return list of orders for an email (most recent first)",
		},
		ToolOrderStatus: {
			Params:      map[string]string{"order_number": "string"},
			Description: "Return order by order_number",
		},
	}
}

// ToolError is a request-level failure rendered as an HTTP status with a
// {"detail": ...} body.
type ToolError struct {
	Status int
	Detail string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Detail)
}

// OrderStore is the query surface the router needs. *db.Repository implements it.
type OrderStore interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (map[string]any, error)
	ListOrdersByEmail(ctx context.Context, email string, limit int) ([]db.OrderSummary, error)
}

// HistoryResult is the get_order_history_by_email payload.
type HistoryResult struct {
	Email  string            `json:"email"`
	Orders []db.OrderSummary `json:"orders"`
}

// NotFoundResult is returned (with status 200) when an order number has no record.
type NotFoundResult struct {
	Error       string `json:"error"`
	OrderNumber string `json:"order_number"`
}
