// Package noop provides a Publisher that drops every event.
package noop

import (
	"context"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
)

// Publisher discards events.
type Publisher struct{}

// Publish does nothing.
func (Publisher) Publish(context.Context, ingest.DocumentEvent) error { return nil }

// Close does nothing.
func (Publisher) Close() error { return nil }
