// Package pipeline runs one ingestion pass: purge placeholders, crawl the listing,
// then extract, date, store and enrich each document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/dates"
	"github.com/JakeFAU/actions-ingest/internal/enrich"
	"github.com/JakeFAU/actions-ingest/internal/extract"
	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/listing"
	"github.com/JakeFAU/actions-ingest/internal/metrics"
	"github.com/JakeFAU/actions-ingest/internal/records"
)

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle                 State = "idle"
	StateCleaningPlaceholders State = "cleaning_placeholders"
	StateCrawling             State = "crawling"
	StateExtracting           State = "extracting"
	StateDone                 State = "done"
)

// Collector walks the listing.
type Collector interface {
	Collect(ctx context.Context) (listing.Crawl, error)
}

// Store persists documents.
type Store interface {
	SavePrimary(ctx context.Context, doc ingest.Document) (records.Outcome, error)
	PurgePlaceholders(ctx context.Context, titles []string) (int, error)
}

// Enricher finds related coverage for a new document.
type Enricher interface {
	Enrich(ctx context.Context, title string) (enrich.Summary, error)
}

// Report summarizes one run.
type Report struct {
	RunID              string    `json:"run_id"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	PlaceholdersPurged int       `json:"placeholders_purged"`
	PagesFetched       int       `json:"pages_fetched"`
	Links              int       `json:"links"`
	Attempted          int       `json:"attempted"`
	Created            int       `json:"created"`
	Updated            int       `json:"updated"`
	Skipped            int       `json:"skipped"`
	Failed             int       `json:"failed"`
	Enrichments        int       `json:"enrichments"`
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Collector        Collector
	Fetcher          ingest.Fetcher
	Extractor        *extract.Extractor
	Resolver         *dates.Resolver
	Store            Store
	Enricher         Enricher
	Publisher        ingest.Publisher
	IDs              ingest.IDGenerator
	Clock            ingest.Clock
	Logger           *zap.Logger
	CategorySuffixes []string
}

// Orchestrator drives runs. It does not guard against concurrent Run calls.
type Orchestrator struct {
	deps   Deps
	logger *zap.Logger

	mu    sync.RWMutex
	state State
}

// New validates deps and builds an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Collector == nil:
		return nil, errors.New("pipeline: collector is required")
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Resolver == nil:
		return nil, errors.New("pipeline: resolver is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Enricher == nil:
		return nil, errors.New("pipeline: enricher is required")
	case deps.IDs == nil:
		return nil, errors.New("pipeline: id generator is required")
	}
	if deps.Clock == nil {
		deps.Clock = ingest.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.CategorySuffixes == nil {
		deps.CategorySuffixes = extract.DefaultCategorySuffixes
	}
	return &Orchestrator{
		deps:   deps,
		logger: deps.Logger.Named("pipeline"),
		state:  StateIdle,
	}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("state changed", zap.String("state", string(s)))
}

// Run performs one ingestion pass. Per-document failures are counted in the report;
// the only error returned is context cancellation.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	runID, err := o.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}
	report := Report{RunID: runID, StartedAt: o.deps.Clock.Now().UTC()}
	logger := o.logger.With(zap.String("run_id", runID))
	logger.Info("run started")

	err = o.run(ctx, logger, &report)
	report.FinishedAt = o.deps.Clock.Now().UTC()
	o.setState(StateDone)
	if err != nil {
		metrics.ObserveRun("canceled")
		logger.Warn("run interrupted", zap.Error(err))
		return report, err
	}

	metrics.ObserveRun("completed")
	logger.Info("run finished",
		zap.Int("pages", report.PagesFetched),
		zap.Int("links", report.Links),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("enrichments", report.Enrichments),
	)
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *zap.Logger, report *Report) error {
	o.setState(StateCleaningPlaceholders)
	purged, err := o.deps.Store.PurgePlaceholders(ctx, o.deps.Extractor.Placeholders())
	report.PlaceholdersPurged = purged
	if err != nil {
		logger.Error("placeholder purge failed", zap.Error(err))
	}

	o.setState(StateCrawling)
	crawl, err := o.deps.Collector.Collect(ctx)
	report.PagesFetched = crawl.PagesFetched
	report.Links = len(crawl.Links)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	o.setState(StateExtracting)
	for _, link := range crawl.Links {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		o.process(ctx, logger, report.RunID, link, report)
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, logger *zap.Logger, runID, link string, report *Report) {
	logger = logger.With(zap.String("url", link))
	if extract.IsCategoryURL(link, o.deps.CategorySuffixes) {
		report.Skipped++
		logger.Debug("skipping category page")
		return
	}
	report.Attempted++

	page, err := o.deps.Fetcher.Fetch(ctx, link)
	if err != nil {
		report.Failed++
		logger.Warn("document fetch failed", zap.Error(err))
		return
	}
	result, err := o.deps.Extractor.Extract(page.Body)
	if err != nil {
		report.Failed++
		logger.Warn("document extract failed", zap.Error(&ingest.ParseError{URL: link, Err: err}))
		return
	}
	if result.Placeholder {
		report.Skipped++
		logger.Info("skipping placeholder page", zap.String("title", result.Title))
		return
	}

	published, source := o.deps.Resolver.Resolve(link, result.Content)
	doc := ingest.Document{
		Title:       result.Title,
		Content:     result.Content,
		SourceURL:   link,
		PublishedAt: published,
	}
	outcome, err := o.deps.Store.SavePrimary(ctx, doc)
	if err != nil {
		report.Failed++
		logger.Error("document save failed", zap.String("title", doc.Title), zap.Error(err))
		return
	}
	logger.Info("document saved",
		zap.String("title", doc.Title),
		zap.String("outcome", string(outcome)),
		zap.String("date_source", string(source)),
		zap.Time("published_at", published),
	)
	if outcome != records.OutcomeCreated {
		report.Updated++
		return
	}
	report.Created++

	summary, err := o.deps.Enricher.Enrich(ctx, doc.Title)
	report.Enrichments += summary.Stored
	if err != nil {
		logger.Warn("enrichment failed", zap.String("title", doc.Title), zap.Error(err))
	}
	o.announce(ctx, logger, runID, doc)
}

func (o *Orchestrator) announce(ctx context.Context, logger *zap.Logger, runID string, doc ingest.Document) {
	if o.deps.Publisher == nil {
		return
	}
	err := o.deps.Publisher.Publish(ctx, ingest.DocumentEvent{
		RunID:       runID,
		Title:       doc.Title,
		SourceURL:   doc.SourceURL,
		PublishedAt: doc.PublishedAt,
	})
	if err != nil {
		logger.Warn("publish failed", zap.String("title", doc.Title), zap.Error(err))
	}
}
