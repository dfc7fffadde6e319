// Package scheduler serializes ingestion runs and triggers them periodically.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/pipeline"
)

// ErrRunInProgress is returned by Trigger while another run is active.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Runner performs one ingestion pass.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

// Store is the part of the record store the scheduler needs.
type Store interface {
	Empty(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
}

// Config controls periodic runs.
type Config struct {
	Interval     time.Duration
	RunWhenEmpty bool
}

// Scheduler allows at most one run at a time.
type Scheduler struct {
	runner Runner
	store  Store
	cfg    Config
	logger *zap.Logger

	running sync.Mutex

	mu   sync.RWMutex
	last *pipeline.Report
}

// New builds a Scheduler. A zero interval defaults to one hour.
func New(runner Runner, store Store, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{runner: runner, store: store, cfg: cfg, logger: logger.Named("scheduler")}
}

// Trigger runs the pipeline now, optionally wiping the store first.
func (s *Scheduler) Trigger(ctx context.Context, reset bool) (pipeline.Report, error) {
	if !s.running.TryLock() {
		return pipeline.Report{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	if reset {
		if err := s.store.Reset(ctx); err != nil {
			return pipeline.Report{}, fmt.Errorf("reset before run: %w", err)
		}
	}
	report, err := s.runner.Run(ctx)
	if err != nil {
		return report, fmt.Errorf("run pipeline: %w", err)
	}
	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()
	return report, nil
}

// LastReport returns the most recent completed run.
func (s *Scheduler) LastReport() (pipeline.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return pipeline.Report{}, false
	}
	return *s.last, true
}

// Start blocks, running on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.RunWhenEmpty {
		s.runIfEmpty(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) runIfEmpty(ctx context.Context) {
	empty, err := s.store.Empty(ctx)
	if err != nil {
		s.logger.Error("store emptiness check failed", zap.Error(err))
		return
	}
	if !empty {
		return
	}
	s.logger.Info("store is empty, running initial ingestion")
	s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.Trigger(ctx, false)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("skipping scheduled run, previous run still active")
	case err != nil:
		s.logger.Warn("scheduled run failed", zap.Error(err))
	default:
		s.logger.Info("scheduled run completed",
			zap.String("run_id", report.RunID),
			zap.Int("created", report.Created),
			zap.Int("updated", report.Updated),
		)
	}
}
