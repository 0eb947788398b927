package db

import "time"

// Order is a row in the orders table. Document holds the stored record
// exactly as it was seeded; the other columns are lookup keys derived from it.
type Order struct {
	OrderNumber   string         `json:"order_number"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	OrderDate     *time.Time     `json:"order_date,omitempty"`
	Document      map[string]any `json:"document"`
	Created       time.Time      `json:"created"`
	Modified      time.Time      `json:"modified"`
}

// OrderSummary is the history projection of one order.
type OrderSummary struct {
	OrderNumber string `json:"order_number"`
	Status      any    `json:"status"`
	TotalAmount any    `json:"total_amount"`
	OrderDate   any    `json:"order_date"`
}
