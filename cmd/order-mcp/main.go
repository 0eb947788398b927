// Package main is the entrypoint for order-mcp, the order lookup tool service.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/order-assistant/internal/config"
	"github.com/morezero/order-assistant/internal/server"
	"github.com/morezero/order-assistant/pkg/db"
)

const usage = `Usage: order-mcp [command]
       order-mcp serve              Start the order tool service (HTTP, optional COMMS invoke subject).
       order-mcp migrate up         Apply pending migrations.
       order-mcp migrate down       Roll back the latest applied migration.
       order-mcp migrate status     Show applied and pending migrations.
       order-mcp ensure-db [name]   Create database if missing (default name: orders_test). Uses DATABASE_URL host/user.
       order-mcp clear              Truncate the orders table; schema is preserved.
       order-mcp seed [file]        Upsert orders from a YAML or JSON seed file (default SEED_FILE, then built-in samples).

Environment: DATABASE_URL (optional for serve; health reports degraded without it), MIGRATION_PATH (empty: built-in),
MCP_HTTP_ADDR or HTTP_PORT (default 5001), ORDER_SERVICE_VERSION, COMMS_URL, SEED_FILE. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("order-mcp migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		var err error
		switch sub {
		case "up":
			err = withPool(migrateUp)
		case "status":
			err = withPool(migrateStatus)
		case "down":
			err = withPool(migrateDown)
		default:
			log.Fatalf("order-mcp migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		if err != nil {
			log.Fatalf("order-mcp migrate %s: %v", sub, err)
		}
		return
	case "clear":
		err := withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
			return db.ClearOrders(ctx, pool)
		})
		if err != nil {
			log.Fatalf("order-mcp clear: %v", err)
		}
		return
	case "seed":
		seedFile := ""
		if len(args) > 1 {
			seedFile = args[1]
		}
		if err := withPool(seeder(seedFile)); err != nil {
			log.Fatalf("order-mcp seed: %v", err)
		}
		return
	case "ensure-db":
		dbName := "orders_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("order-mcp ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("order-mcp: %v", err)
	}
}

// withPool loads config, opens a pool on DATABASE_URL and runs fn.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func migrateUp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	migrations, err := db.LoadMigrationDir(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	n, err := db.RunMigrations(ctx, pool, migrations)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	fmt.Printf("Applied %d migrations.\n", n)
	return nil
}

func migrateStatus(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	migrations, err := db.LoadMigrationDir(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	states, err := db.MigrationStatus(ctx, pool, migrations)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	fmt.Print(formatStatus(states))
	return nil
}

func migrateDown(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	migrations, err := db.LoadMigrationDir(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	version, err := db.MigrationDown(ctx, pool, migrations)
	if err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	if version == "" {
		fmt.Println("Nothing to roll back.")
		return nil
	}
	fmt.Printf("Rolled back %s.\n", version)
	return nil
}

// formatStatus renders one line per migration: version, state, and a marker
// when no rollback script exists.
func formatStatus(states []db.MigrationState) string {
	if len(states) == 0 {
		return "No migrations found.\n"
	}
	var b strings.Builder
	for _, st := range states {
		state := "pending"
		if st.Applied {
			state = "applied " + st.AppliedAt.UTC().Format(time.RFC3339)
		}
		b.WriteString(st.Version + "\t" + state)
		if !st.Reversible {
			b.WriteString("\t(no rollback)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// seeder returns a withPool step that upserts orders from file, falling back
// to SEED_FILE from config when file is empty.
func seeder(file string) func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	return func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		path := file
		if path == "" {
			path = cfg.SeedFile
		}
		n, err := db.SeedOrders(ctx, pool, path)
		if err != nil {
			return fmt.Errorf("seed orders: %w", err)
		}
		fmt.Printf("Seeded %d orders.\n", n)
		return nil
	}
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	targetURL, err := databaseURLFor(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}

// databaseURLFor swaps the database name in base, keeping host, credentials and query.
func databaseURLFor(base, dbName string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}
