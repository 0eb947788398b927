package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrateLogPrefix = "db:migrate"

const createSchemaMigrationsSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// ErrNoRollback is returned by MigrationDown when the latest applied
// migration ships without a .down.sql script.
var ErrNoRollback = errors.New("migration has no rollback script")

// MigrationState is one row of the migrate status report.
type MigrationState struct {
	Version    string
	Applied    bool
	AppliedAt  time.Time
	Reversible bool
}

// RunMigrations applies every migration not yet recorded in schema_migrations,
// each in its own transaction, and returns how many it applied.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, all []Migration) (int, error) {
	if _, err := pool.Exec(ctx, createSchemaMigrationsSQL); err != nil {
		return 0, fmt.Errorf("%s - failed to create schema_migrations: %w", migrateLogPrefix, err)
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return 0, err
	}

	todo := pending(all, toSet(applied))
	slog.Info(fmt.Sprintf("%s - %d of %d migrations pending", migrateLogPrefix, len(todo), len(all)))
	for i, m := range todo {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return i, fmt.Errorf("%s - migration %s failed: %w", migrateLogPrefix, m.Version, err)
		}
		slog.Info(fmt.Sprintf("%s - Applied %s", migrateLogPrefix, m.Version))
	}
	return len(todo), nil
}

// MigrationStatus reports every known migration and whether it is applied.
// It does not create schema_migrations; a fresh database reports nothing applied.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, all []Migration) ([]MigrationState, error) {
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT to_regclass('schema_migrations') IS NOT NULL`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%s - failed to check schema_migrations: %w", migrateLogPrefix, err)
	}
	applied := map[string]time.Time{}
	if exists {
		var err error
		if applied, err = appliedVersions(ctx, pool); err != nil {
			return nil, err
		}
	}
	return statusOf(all, applied), nil
}

// MigrationDown rolls back the latest applied migration and returns its version.
// It returns an empty version when nothing is applied.
func MigrationDown(ctx context.Context, pool *pgxpool.Pool, all []Migration) (string, error) {
	if _, err := pool.Exec(ctx, createSchemaMigrationsSQL); err != nil {
		return "", fmt.Errorf("%s - failed to create schema_migrations: %w", migrateLogPrefix, err)
	}
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return "", err
	}
	m, ok := latestApplied(all, toSet(applied))
	if !ok {
		slog.Info(fmt.Sprintf("%s - Nothing to roll back", migrateLogPrefix))
		return "", nil
	}
	if m.Down == "" {
		return "", fmt.Errorf("%s - %s: %w", migrateLogPrefix, m.Version, ErrNoRollback)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.Down); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s - rollback of %s failed: %w", migrateLogPrefix, m.Version, err)
	}
	slog.Info(fmt.Sprintf("%s - Rolled back %s", migrateLogPrefix, m.Version))
	return m.Version, nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]time.Time, error) {
	rows, err := pool.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read schema_migrations: %w", migrateLogPrefix, err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var version string
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("%s - failed to scan schema_migrations: %w", migrateLogPrefix, err)
		}
		out[version] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - failed to read schema_migrations: %w", migrateLogPrefix, err)
	}
	return out, nil
}

func statusOf(all []Migration, applied map[string]time.Time) []MigrationState {
	out := make([]MigrationState, 0, len(all))
	for _, m := range all {
		at, ok := applied[m.Version]
		out = append(out, MigrationState{Version: m.Version, Applied: ok, AppliedAt: at, Reversible: m.Down != ""})
	}
	return out
}

func toSet(applied map[string]time.Time) map[string]bool {
	out := make(map[string]bool, len(applied))
	for v := range applied {
		out[v] = true
	}
	return out
}
