package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/order-assistant/pkg/bootstrap"
)

const seedLogPrefix = "db:seed"

// SeedOrders loads seed data (see bootstrap.LoadSeedConfig) and upserts every
// order in one transaction. Documents without an order number are skipped.
// Returns the number of orders written.
func SeedOrders(ctx context.Context, pool *pgxpool.Pool, seedFilePath string) (int, error) {
	slog.Info(fmt.Sprintf("%s - seeding orders", seedLogPrefix))

	cfg, err := bootstrap.LoadSeedConfig(seedFilePath)
	if err != nil {
		return 0, fmt.Errorf("%s - load seed: %w", seedLogPrefix, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s - begin tx: %w", seedLogPrefix, err)
	}
	defer tx.Rollback(ctx)

	repo := NewRepository(pool)
	written := 0
	for i, doc := range cfg.Orders {
		row, err := repo.orderRow(doc)
		if errors.Is(err, ErrMissingOrderNumber) {
			slog.Warn(fmt.Sprintf("%s - skip order %d: no order number", seedLogPrefix, i))
			continue
		}
		if err != nil {
			return 0, err
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return 0, fmt.Errorf("%s - encode order %s: %w", seedLogPrefix, row.OrderNumber, err)
		}
		_, err = tx.Exec(ctx, upsertOrderSQL,
			row.OrderNumber, nullIfEmpty(row.CustomerEmail), row.OrderDate, raw)
		if err != nil {
			return 0, fmt.Errorf("%s - insert order %s: %w", seedLogPrefix, row.OrderNumber, err)
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s - commit: %w", seedLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - seeded %d orders from %q", seedLogPrefix, written, cfg.Name))
	return written, nil
}
