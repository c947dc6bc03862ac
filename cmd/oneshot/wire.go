package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/oneshot/internal/agent"
	"github.com/ShayCichocki/oneshot/internal/api"
	"github.com/ShayCichocki/oneshot/internal/config"
	"github.com/ShayCichocki/oneshot/internal/events"
	"github.com/ShayCichocki/oneshot/internal/metrics"
	"github.com/ShayCichocki/oneshot/internal/orchestrator"
	"github.com/ShayCichocki/oneshot/internal/orchestrator/policy"
	"github.com/ShayCichocki/oneshot/internal/state"
	"github.com/ShayCichocki/oneshot/internal/tools"
)

const fetchTimeout = 15 * time.Second

// application holds the wired collaborators shared by serve and ask.
type application struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          *state.DB
	broadcaster *events.Broadcaster
	publisher   events.Publisher
	metrics     *metrics.Metrics
	client      *api.Client
	engine      *orchestrator.Engine
	closers     []func()
}

// Close releases everything opened by newApplication, last opened first.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// EventsHandler serves the agent status websocket.
func (a *application) EventsHandler() http.Handler {
	return events.NewHandler(a.broadcaster, a.logger)
}

// newApplication opens storage, loads brand data and builds the engine.
// Background work (data watching, trace retention) stops with ctx.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *application, err error) {
	a := &application{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	a.db, err = state.Open(dbPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.db.Close() })
	if err := a.db.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if cfg.Storage.Retention > 0 {
		n, err := a.db.PurgeOldTraces(ctx, cfg.Storage.Retention)
		if err != nil {
			logger.Warn("purge old traces failed", "error", err)
		} else if n > 0 {
			logger.Info("purged old traces", "count", n, "retention", cfg.Storage.Retention)
		}
	}

	data, err := tools.LoadBrandData(cfg.Data.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("load brand data: %w", err)
	}
	if cfg.Data.Watch {
		go func() {
			if err := data.Watch(ctx); err != nil {
				logger.Warn("brand data watch stopped", "dir", cfg.Data.Dir, "error", err)
			}
		}()
	}

	registry := tools.DefaultRegistry(tools.Deps{
		Data:     data,
		Searcher: tools.NewDuckDuckGo(),
		Fetcher:  tools.NewFetcher(fetchTimeout),
	})

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	a.client = client

	a.metrics = metrics.New()
	a.broadcaster = events.NewBroadcaster(
		events.WithBufferSize(cfg.Events.Buffer),
		events.WithLogger(logger),
	)
	a.metrics.WatchDelivery(a.broadcaster)
	a.publisher = a.broadcaster
	if cfg.Events.NATSURL != "" {
		conn, err := events.ConnectNATS(cfg.Events.NATSURL, "oneshot")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		a.publisher = events.NewNATSMirror(a.broadcaster, conn, cfg.Events.NATSPrefix, logger)
		logger.Info("mirroring events to NATS", "url", cfg.Events.NATSURL, "prefix", cfg.Events.NATSPrefix)
	}

	adapter := agent.NewAdapter(agent.ClientRuntime(client), client,
		agent.WithRegistry(registry),
		agent.WithLogger(logger),
		agent.WithMetrics(a.metrics),
	)

	pol := policy.Default()
	if cfg.Orchestrator.SummaryChars > 0 {
		pol.Preview.ResponseChars = cfg.Orchestrator.SummaryChars
	}

	opts := []orchestrator.Option{
		orchestrator.WithRecorder(a.db),
		orchestrator.WithDocuments(a.db),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithPolicy(pol),
		orchestrator.WithMaxParallel(cfg.Orchestrator.MaxParallel),
	}
	if cfg.Orchestrator.RoutingFile != "" {
		routing, err := orchestrator.LoadRouting(cfg.Orchestrator.RoutingFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithRouting(routing))
	}

	a.engine = orchestrator.New(orchestrator.RequiredConfig{
		Completer: client,
		Adapter:   adapter,
		Publisher: a.publisher,
	}, opts...)
	return a, nil
}

// newClient builds the completion provider from config.
func newClient(cfg *config.Config) (*api.Client, error) {
	clientCfg := api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		MaxIterations: cfg.Anthropic.MaxIterations,
	}
	if !cfg.Anthropic.UseBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			if errors.Is(err, config.ErrNoAPIKey) {
				return nil, fmt.Errorf("%w (set ANTHROPIC_API_KEY or anthropic.api_key)", err)
			}
			return nil, err
		}
		clientCfg.APIKey = key
	}
	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// openStore opens the trace database read side for the inspection commands.
func openStore(cfg *config.Config) (*state.DB, error) {
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
