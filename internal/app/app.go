// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/api"
	"github.com/JakeFAU/actions-ingest/internal/config"
	"github.com/JakeFAU/actions-ingest/internal/dates"
	"github.com/JakeFAU/actions-ingest/internal/enrich"
	"github.com/JakeFAU/actions-ingest/internal/extract"
	collyfetcher "github.com/JakeFAU/actions-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/actions-ingest/internal/fetcher/headless"
	"github.com/JakeFAU/actions-ingest/internal/id/uuid"
	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/listing"
	"github.com/JakeFAU/actions-ingest/internal/pipeline"
	kafkapub "github.com/JakeFAU/actions-ingest/internal/publisher/kafka"
	"github.com/JakeFAU/actions-ingest/internal/publisher/noop"
	pubsubpub "github.com/JakeFAU/actions-ingest/internal/publisher/pubsub"
	"github.com/JakeFAU/actions-ingest/internal/records"
	"github.com/JakeFAU/actions-ingest/internal/scheduler"
	"github.com/JakeFAU/actions-ingest/internal/search/duckduckgo"
	"github.com/JakeFAU/actions-ingest/internal/storage/memory"
	"github.com/JakeFAU/actions-ingest/internal/storage/postgres"
	"github.com/JakeFAU/actions-ingest/internal/storage/sqlite"
)

// App holds all the shared, long-lived services for the application.
// It is built once at startup from a validated config and closed by a Cobra hook.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	repo         ingest.Repository
	publisher    ingest.Publisher
	records      *records.Store
	orchestrator *pipeline.Orchestrator
	scheduler    *scheduler.Scheduler
	server       *api.Server

	closers []func()
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Records exposes the record store.
func (a *App) Records() *records.Store { return a.records }

// Orchestrator exposes the ingestion pipeline.
func (a *App) Orchestrator() *pipeline.Orchestrator { return a.orchestrator }

// Scheduler exposes the run scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Server exposes the HTTP API.
func (a *App) Server() *api.Server { return a.server }

// New wires every service described by cfg. It fails fast if any backend cannot be initialized,
// releasing whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("fetcher", cfg.Fetcher.Mode),
		zap.String("publisher", cfg.Publisher.Provider),
	)
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	httpFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:         cfg.Fetcher.UserAgent,
		RespectRobots:     cfg.Fetcher.RespectRobots,
		Timeout:           cfg.Fetcher.Timeout,
		RequestsPerSecond: cfg.Fetcher.RequestsPerSecond,
		Burst:             cfg.Fetcher.Burst,
	})
	var pageFetcher ingest.Fetcher = httpFetcher
	if cfg.Fetcher.Mode == "headless" {
		hf, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Fetcher.HeadlessParallel,
			UserAgent:         cfg.Fetcher.UserAgent,
			NavigationTimeout: cfg.Fetcher.NavTimeout,
		})
		if err != nil {
			return fmt.Errorf("init headless fetcher: %w", err)
		}
		a.closers = append(a.closers, hf.Close)
		pageFetcher = hf
	}

	repo, err := openRepository(ctx, cfg.Store)
	if err != nil {
		return err
	}
	a.repo = repo
	a.closers = append(a.closers, func() {
		if err := repo.Close(); err != nil {
			a.logger.Warn("error closing repository", zap.Error(err))
		}
	})

	pub, err := openPublisher(ctx, cfg.Publisher)
	if err != nil {
		return err
	}
	a.publisher = pub
	a.closers = append(a.closers, func() {
		if err := pub.Close(); err != nil {
			a.logger.Warn("error closing publisher", zap.Error(err))
		}
	})

	clock := ingest.SystemClock{}
	ids := uuid.New()
	a.records = records.New(repo, clock, ids, a.logger)

	searcher := duckduckgo.New(httpFetcher, duckduckgo.Config{
		Endpoint:   cfg.Search.Endpoint,
		MaxResults: cfg.Search.MaxResults,
	}, a.logger)
	enricher := enrich.New(searcher, a.records, enrich.Config{
		QuerySuffix: cfg.Search.QuerySuffix,
		Excluded:    cfg.Search.Excluded,
	}, a.logger)

	rules := listing.Rules{
		Origin:        cfg.Source.Origin,
		PathMarker:    cfg.Source.PathMarker,
		ListingSuffix: cfg.Source.ListingSuffix,
	}
	orch, err := pipeline.New(pipeline.Deps{
		Collector:        listing.NewPager(pageFetcher, cfg.Source.ListingURL, rules, a.logger),
		Fetcher:          pageFetcher,
		Extractor:        extract.New(cfg.Source.Placeholders),
		Resolver:         dates.NewResolver(clock, a.logger),
		Store:            a.records,
		Enricher:         enricher,
		Publisher:        pub,
		IDs:              ids,
		Clock:            clock,
		Logger:           a.logger,
		CategorySuffixes: cfg.Source.CategorySuffixes,
	})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	a.orchestrator = orch

	a.scheduler = scheduler.New(orch, a.records, scheduler.Config{
		Interval:     cfg.Schedule.Interval,
		RunWhenEmpty: cfg.Schedule.RunWhenEmpty,
	}, a.logger)
	a.server = api.NewServer(a.scheduler, a.records, orch, api.Options{APIKey: cfg.Server.APIKey}, a.logger)
	return nil
}

func openRepository(ctx context.Context, cfg config.StoreConfig) (ingest.Repository, error) {
	switch cfg.Driver {
	case "memory":
		return memory.NewRepository(), nil
	case "sqlite":
		repo, err := sqlite.Open(ctx, sqlite.Config{
			Path:             cfg.SQLitePath,
			DocumentsTable:   cfg.DocumentsTable,
			EnrichmentsTable: cfg.EnrichmentsTable,
		})
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return repo, nil
	case "postgres":
		repo, err := postgres.New(ctx, postgres.Config{
			DSN:              cfg.DSN,
			DocumentsTable:   cfg.DocumentsTable,
			EnrichmentsTable: cfg.EnrichmentsTable,
			MaxConns:         cfg.MaxConns,
			MinConns:         cfg.MinConns,
			MaxConnLifetime:  cfg.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

func openPublisher(ctx context.Context, cfg config.PublisherConfig) (ingest.Publisher, error) {
	switch cfg.Provider {
	case "none", "":
		return noop.Publisher{}, nil
	case "pubsub":
		pub, err := pubsubpub.New(ctx, cfg.ProjectID, cfg.Topic)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		return pub, nil
	case "kafka":
		pub, err := kafkapub.New(kafkapub.Config{Brokers: cfg.Brokers, Topic: cfg.Topic})
		if err != nil {
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown publisher provider: %s", cfg.Provider)
	}
}

// Close shuts down services in reverse order of construction and flushes the logger.
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync() //nolint:errcheck
}
