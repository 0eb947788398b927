package main

import (
	"fmt"
	"log/slog"
	"os"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/order-assistant/internal/assistant"
	"github.com/morezero/order-assistant/internal/config"
	"github.com/morezero/order-assistant/pkg/commsutil"
	"github.com/morezero/order-assistant/pkg/dispatcher"
	"github.com/morezero/order-assistant/pkg/endpoint"
	"github.com/morezero/order-assistant/pkg/events"
	"github.com/morezero/order-assistant/pkg/extract"
	"github.com/morezero/order-assistant/pkg/generate"
	"github.com/morezero/order-assistant/pkg/semver"
)

const logPrefix = "cmd/order-assistant:app"

// app is the wired assistant: one registry shared by the prober and the
// dispatcher, plus everything a Session needs.
type app struct {
	cfg        *config.Config
	registry   *endpoint.Registry
	prober     *endpoint.Prober
	dispatcher *dispatcher.Dispatcher
	extractor  *extract.Extractor
	generator  generate.Generator
	nc         *comms.Conn
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(o *Options) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if len(o.Endpoints) > 0 {
		cfg.Endpoints = config.NormalizeEndpoints(o.Endpoints)
	}
	if o.Policy != "" {
		cfg.SelectionPolicy = o.Policy
	}
	if o.Provider != "" {
		cfg.LLMProvider = o.Provider
	}
	if o.Model != "" {
		cfg.LLMModel = o.Model
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.ValidateForAssistant(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the assistant from cfg. Logs go to stderr so replies own stdout.
func newApp(cfg *config.Config) (*app, error) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	a := &app{cfg: cfg, registry: endpoint.NewRegistry(cfg.Endpoints)}

	var gate *semver.Gate
	if cfg.VersionConstraint != "" {
		g, err := semver.NewGate(cfg.VersionConstraint)
		if err != nil {
			return nil, fmt.Errorf("%s - invalid MCP_VERSION_CONSTRAINT: %w", logPrefix, err)
		}
		gate = g
	}
	a.prober = endpoint.NewProber(endpoint.NewProberParams{Timeout: cfg.RequestTimeout, Gate: gate})

	tables, err := extract.LoadTables(cfg.FieldPathsFile)
	if err != nil {
		return nil, err
	}
	a.extractor = extract.NewWithTables(tables)

	policy, err := endpoint.NewPolicy(cfg.SelectionPolicy)
	if err != nil {
		return nil, err
	}

	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if cfg.COMMSURL != "" {
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - dispatch events disabled: %v", logPrefix, err))
		} else {
			a.nc = nc
			publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{SubjectPrefix: cfg.EventsSubjectPrefix})
		}
	}

	a.dispatcher = dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{
		Registry:  a.registry,
		Policy:    policy,
		Retries:   cfg.RetryAttempts,
		Timeout:   cfg.RequestTimeout,
		Publisher: publisher,
	})

	gen, err := generate.New(cfg)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - free-text answers disabled: %v", logPrefix, err))
	} else {
		a.generator = gen
	}
	return a, nil
}

// newSession starts a conversation with its own cache.
func (a *app) newSession() *assistant.Session {
	p := assistant.NewSessionParams{
		Invoker:      a.dispatcher,
		Extractor:    a.extractor,
		HistoryLimit: a.cfg.HistoryLimit,
	}
	if a.generator != nil {
		p.Generator = a.generator
	}
	return assistant.NewSession(p)
}

func (a *app) Close() {
	if a.nc != nil {
		_ = a.nc.Drain()
	}
}
