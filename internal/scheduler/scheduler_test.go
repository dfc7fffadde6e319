package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/pipeline"
)

type blockingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) (pipeline.Report, error) {
	n := r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return pipeline.Report{}, ctx.Err()
		}
	}
	return pipeline.Report{RunID: string(rune('a' + n - 1))}, nil
}

type fakeStore struct {
	mu     sync.Mutex
	empty  bool
	resets int
	err    error
}

func (s *fakeStore) Empty(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.empty, s.err
}

func (s *fakeStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.empty = true
	return s.err
}

func TestTriggerRejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	sched := New(runner, &fakeStore{}, Config{}, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := sched.Trigger(context.Background(), false)
		done <- err
	}()
	<-runner.started

	_, err := sched.Trigger(context.Background(), false)
	require.ErrorIs(t, err, ErrRunInProgress)

	close(runner.release)
	require.NoError(t, <-done)

	report, ok := sched.LastReport()
	require.True(t, ok)
	require.Equal(t, "a", report.RunID)
	require.Equal(t, int32(1), runner.calls.Load())
}

func TestTriggerWithReset(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	sched := New(&blockingRunner{}, store, Config{}, nil)

	_, err := sched.Trigger(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 1, store.resets)

	store.err = errors.New("locked")
	_, err = sched.Trigger(context.Background(), true)
	require.Error(t, err)
}

func TestStartRunsWhenEmptyAndOnTicks(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{}
	sched := New(runner, &fakeStore{empty: true}, Config{Interval: 10 * time.Millisecond, RunWhenEmpty: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestStartSkipsInitialRunWhenStoreHasDocuments(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{}
	sched := New(runner, &fakeStore{empty: false}, Config{Interval: time.Hour, RunWhenEmpty: true}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, sched.Start(ctx))
	require.Zero(t, runner.calls.Load())

	_, ok := sched.LastReport()
	require.False(t, ok)
}
