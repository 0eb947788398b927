package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearOrders truncates the orders table. Schema is preserved; only data is removed.
func ClearOrders(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing orders", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE orders`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Orders cleared", clearLogPrefix))
	return nil
}
