// Package server runs the order service: DB, tool router, HTTP surface and optional COMMS invoke subject.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/order-assistant/internal/config"
	"github.com/morezero/order-assistant/pkg/commsutil"
	"github.com/morezero/order-assistant/pkg/db"
	"github.com/morezero/order-assistant/pkg/generate"
	"github.com/morezero/order-assistant/pkg/toolserver"
)

const logPrefix = "server:server"

// orderStore is the store surface the server needs; *db.Repository implements it.
type orderStore interface {
	toolserver.OrderStore
	Ping(ctx context.Context) error
}

// Server is the order-service orchestrator.
type Server struct {
	cfg        *config.Config
	store      orderStore
	router     *toolserver.Router
	gen        generate.Generator
	nc         *comms.Conn
	pool       *pgxpool.Pool
	httpServer *http.Server
}

// NewServerParams holds the collaborators of a Server. Store and Generator may be nil.
type NewServerParams struct {
	Config    *config.Config
	Store     orderStore
	Generator generate.Generator
}

// NewServer wires a Server without starting anything.
func NewServer(p NewServerParams) *Server {
	return &Server{
		cfg:    p.Config,
		store:  p.Store,
		router: toolserver.NewRouter(p.Store, p.Config.HistoryLimit),
		gen:    p.Generator,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/mcp/health", s.handleHealth)
	mux.HandleFunc("/mcp/tools", s.handleTools)
	mux.HandleFunc("/mcp/invoke", s.handleInvoke)
	mux.HandleFunc("/mcp/chat", s.handleChat)
	mux.HandleFunc("/ready", s.handleReady)
	return mux
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting order-mcp version=%s", logPrefix, cfg.ServiceVersion))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	params := NewServerParams{Config: cfg}

	// Step 1: Connect to database (optional; without it the service runs degraded)
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		if cfg.RunMigrations {
			migrations, err := db.LoadMigrationDir(cfg.MigrationPath)
			if err != nil {
				pool.Close()
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			n, err := db.RunMigrations(ctx, pool, migrations)
			if err != nil {
				pool.Close()
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
			slog.Info(fmt.Sprintf("%s - applied %d migrations", logPrefix, n))
		}
		params.Store = db.NewRepository(pool)
	} else {
		slog.Warn(fmt.Sprintf("%s - DATABASE_URL not set, tool invocations will return 503", logPrefix))
	}

	// Step 2: Generation backend for /mcp/chat
	gen, err := generate.New(cfg)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - chat disabled: %v", logPrefix, err))
	} else {
		params.Generator = gen
	}

	s := NewServer(params)
	s.pool = pool

	// Step 3: Optional COMMS invoke subject
	var sub *comms.Subscription
	if cfg.COMMSURL != "" {
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			s.closePool()
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		s.nc = nc
		sub, err = s.subscribeInvoke(ctx, commsutil.InvokeSubject(cfg.EventsSubjectPrefix))
		if err != nil {
			nc.Close()
			s.closePool()
			return err
		}
	}

	// Step 4: Start HTTP server
	addr := cfg.ListenAddr()
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, addr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - order-mcp is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if sub != nil {
		sub.Unsubscribe()
	}
	s.httpServer.Shutdown(shutdownCtx)
	if s.nc != nil {
		s.nc.Drain()
	}
	s.closePool()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func (s *Server) closePool() {
	if s.pool != nil {
		s.pool.Close()
	}
}
