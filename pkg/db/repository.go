package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/order-assistant/pkg/extract"
)

const repoLogPrefix = "db:repository"

const upsertOrderSQL = `INSERT INTO orders (order_number, customer_email, order_date, document)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (order_number) DO UPDATE SET
	  customer_email = EXCLUDED.customer_email,
	  order_date = EXCLUDED.order_date,
	  document = EXCLUDED.document,
	  modified = NOW()`

// ErrMissingOrderNumber is returned when a document has no resolvable order identifier.
var ErrMissingOrderNumber = errors.New("order document has no order number")

// Repository provides database access for order lookups.
type Repository struct {
	pool  *pgxpool.Pool
	paths extract.PathTable
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, paths: extract.DefaultPaths()}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// GetOrderByNumber returns the stored document for orderNumber, or nil when absent.
func (r *Repository) GetOrderByNumber(ctx context.Context, orderNumber string) (map[string]any, error) {
	slog.Debug(fmt.Sprintf("%s - GetOrderByNumber order_number=%s", repoLogPrefix, orderNumber))

	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT document FROM orders WHERE order_number = $1 LIMIT 1`, orderNumber).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - GetOrderByNumber failed: %w", repoLogPrefix, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s - decode order %s: %w", repoLogPrefix, orderNumber, err)
	}
	return doc, nil
}

// ListOrdersByEmail returns up to limit order summaries for email, newest first.
func (r *Repository) ListOrdersByEmail(ctx context.Context, email string, limit int) ([]OrderSummary, error) {
	slog.Debug(fmt.Sprintf("%s - ListOrdersByEmail email=%s limit=%d", repoLogPrefix, email, limit))

	if limit < 1 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx,
		`SELECT order_number, document FROM orders
		 WHERE lower(customer_email) = lower($1)
		 ORDER BY order_date DESC NULLS LAST, order_number DESC
		 LIMIT $2`, email, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - ListOrdersByEmail failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	out := []OrderSummary{}
	for rows.Next() {
		var number string
		var raw []byte
		if err := rows.Scan(&number, &raw); err != nil {
			return nil, fmt.Errorf("%s - scan order: %w", repoLogPrefix, err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s - decode order %s: %w", repoLogPrefix, number, err)
		}
		out = append(out, r.summarize(number, doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - iterate orders: %w", repoLogPrefix, err)
	}
	return out, nil
}

// UpsertOrder stores doc keyed by its resolved order number.
func (r *Repository) UpsertOrder(ctx context.Context, doc map[string]any) (string, error) {
	row, err := r.orderRow(doc)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%s - encode order %s: %w", repoLogPrefix, row.OrderNumber, err)
	}

	_, err = r.pool.Exec(ctx, upsertOrderSQL,
		row.OrderNumber, nullIfEmpty(row.CustomerEmail), row.OrderDate, raw)
	if err != nil {
		return "", fmt.Errorf("%s - UpsertOrder %s failed: %w", repoLogPrefix, row.OrderNumber, err)
	}
	return row.OrderNumber, nil
}

// orderRow derives the lookup columns of doc.
func (r *Repository) orderRow(doc map[string]any) (*Order, error) {
	number := r.text(doc, extract.FieldOrderNumber)
	if number == "" {
		return nil, ErrMissingOrderNumber
	}
	row := &Order{
		OrderNumber:   number,
		CustomerEmail: r.text(doc, extract.FieldCustomerEmail),
		Document:      doc,
	}
	if v, ok := extract.First(doc, r.paths[extract.FieldOrderDate]); ok {
		row.OrderDate = parseOrderDate(v)
	}
	return row, nil
}

func (r *Repository) summarize(number string, doc map[string]any) OrderSummary {
	s := OrderSummary{OrderNumber: number}
	s.Status, _ = extract.First(doc, r.paths[extract.FieldStatus])
	s.TotalAmount, _ = extract.First(doc, r.paths[extract.FieldTotal])
	s.OrderDate, _ = extract.First(doc, r.paths[extract.FieldOrderDate])
	return s
}

func (r *Repository) text(doc map[string]any, field string) string {
	v, ok := extract.First(doc, r.paths[field])
	if !ok {
		return ""
	}
	return strings.TrimSpace(extract.Text(v))
}

var orderDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseOrderDate returns nil for values that do not parse; such orders sort last.
func parseOrderDate(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		u := t.UTC()
		return &u
	case map[string]any:
		if inner, ok := t["$date"]; ok {
			return parseOrderDate(inner)
		}
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range orderDateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				u := parsed.UTC()
				return &u
			}
		}
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
