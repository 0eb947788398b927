// Package db provides the Postgres-backed order store: pooling, migrations, lookups and seeding.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// Pool sizing for the order service. Lookups are short single-row reads.
const (
	poolMaxConns = 10
	poolMinConns = 1
)

// NewPool opens a pgx pool on databaseURL and verifies it with a ping.
// Connections identify themselves as order-mcp unless the URL sets application_name.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to order database", logPrefix))

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}
	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = "order-mcp"
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Order database connection established (max %d conns)", logPrefix, cfg.MaxConns))
	return pool, nil
}
