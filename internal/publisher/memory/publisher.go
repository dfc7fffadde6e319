// Package memory records document events in memory for tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []ingest.DocumentEvent
	closed bool
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event.
func (p *Publisher) Publish(_ context.Context, event ingest.DocumentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (p *Publisher) Events() []ingest.DocumentEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ingest.DocumentEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Close marks the publisher closed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (p *Publisher) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}
