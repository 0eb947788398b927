package toolserver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/morezero/order-assistant/pkg/extract"
)

const logPrefix = "toolserver:router"

// DefaultHistoryLimit applies when limit is absent or unusable.
const DefaultHistoryLimit = 10

// Router dispatches tool invocations to an OrderStore.
type Router struct {
	store        OrderStore
	historyLimit int
}

// NewRouter creates a Router. A nil store makes every invocation fail with 503.
func NewRouter(store OrderStore, historyLimit int) *Router {
	if historyLimit < 1 {
		historyLimit = DefaultHistoryLimit
	}
	return &Router{store: store, historyLimit: historyLimit}
}

// Dispatch routes req to its tool and returns the JSON payload.
func (r *Router) Dispatch(ctx context.Context, req *InvokeRequest) (any, *ToolError) {
	slog.Debug(fmt.Sprintf("%s - tool=%s", logPrefix, req.Tool))

	if r.store == nil {
		return nil, &ToolError{Status: http.StatusServiceUnavailable, Detail: "database unavailable"}
	}

	args := req.Args
	if args == nil {
		args = map[string]any{}
	}

	switch req.Tool {
	case ToolOrderHistory:
		return r.handleOrderHistory(ctx, args)
	case ToolOrderStatus:
		return r.handleOrderStatus(ctx, args)
	default:
		return nil, &ToolError{Status: http.StatusNotFound, Detail: fmt.Sprintf("tool '%s' not found", req.Tool)}
	}
}

func (r *Router) handleOrderHistory(ctx context.Context, args map[string]any) (any, *ToolError) {
	email := stringArg(args, "email")
	if email == "" {
		return nil, &ToolError{Status: http.StatusBadRequest, Detail: "email required"}
	}
	limit := r.limitArg(args)

	orders, err := r.store.ListOrdersByEmail(ctx, email, limit)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - order history email=%s: %v", logPrefix, email, err))
		return nil, &ToolError{Status: http.StatusInternalServerError, Detail: err.Error()}
	}
	return &HistoryResult{Email: email, Orders: orders}, nil
}

func (r *Router) handleOrderStatus(ctx context.Context, args map[string]any) (any, *ToolError) {
	orderNumber := stringArg(args, "order_number")
	if orderNumber == "" {
		return nil, &ToolError{Status: http.StatusBadRequest, Detail: "order_number required"}
	}

	doc, err := r.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - order status order_number=%s: %v", logPrefix, orderNumber, err))
		return nil, &ToolError{Status: http.StatusInternalServerError, Detail: err.Error()}
	}
	if doc == nil {
		return &NotFoundResult{Error: "not_found", OrderNumber: orderNumber}, nil
	}
	return doc, nil
}

// limitArg reads "limit"; anything that is not a positive whole count falls back to the default.
func (r *Router) limitArg(args map[string]any) int {
	v, ok := args["limit"]
	if !ok || v == nil {
		return r.historyLimit
	}
	var n int
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return r.historyLimit
		}
		n = int(t)
	case int:
		n = t
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return r.historyLimit
		}
		n = parsed
	default:
		return r.historyLimit
	}
	if n < 1 {
		return r.historyLimit
	}
	return n
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(extract.Text(v))
}
