// Package records implements upsert-by-key persistence over an ingest.Repository.
package records

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/metrics"
)

// Outcome says what SavePrimary did.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)

// Store is the only writer of documents and enrichments.
type Store struct {
	repo   ingest.Repository
	clock  ingest.Clock
	ids    ingest.IDGenerator
	logger *zap.Logger
}

// New builds a Store.
func New(repo ingest.Repository, clock ingest.Clock, ids ingest.IDGenerator, logger *zap.Logger) *Store {
	if clock == nil {
		clock = ingest.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{repo: repo, clock: clock, ids: ids, logger: logger.Named("records")}
}

// SavePrimary inserts doc, or updates content, source and date of the document with the same title.
func (s *Store) SavePrimary(ctx context.Context, doc ingest.Document) (Outcome, error) {
	now := s.clock.Now().UTC()
	existing, err := s.repo.FindDocumentByTitle(ctx, doc.Title)
	switch {
	case err == nil:
		existing.Content = doc.Content
		existing.SourceURL = doc.SourceURL
		existing.PublishedAt = doc.PublishedAt
		existing.UpdatedAt = now
		if err := s.repo.UpdateDocument(ctx, existing); err != nil {
			return "", fmt.Errorf("update document %q: %w", doc.Title, err)
		}
		metrics.ObserveDocument(string(OutcomeUpdated))
		return OutcomeUpdated, nil
	case errors.Is(err, ingest.ErrNotFound):
	default:
		return "", fmt.Errorf("find document %q: %w", doc.Title, err)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate document id: %w", err)
	}
	doc.ID = id
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if err := s.repo.InsertDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("insert document %q: %w", doc.Title, err)
	}
	metrics.ObserveDocument(string(OutcomeCreated))
	return OutcomeCreated, nil
}

// SaveEnrichment inserts e unless an enrichment with the same source URL exists.
// It reports whether a row was written.
func (s *Store) SaveEnrichment(ctx context.Context, e ingest.Enrichment) (bool, error) {
	_, err := s.repo.FindEnrichmentBySource(ctx, e.SourceURL)
	switch {
	case err == nil:
		metrics.ObserveEnrichment("duplicate")
		return false, nil
	case errors.Is(err, ingest.ErrNotFound):
	default:
		return false, fmt.Errorf("find enrichment %q: %w", e.SourceURL, err)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return false, fmt.Errorf("generate enrichment id: %w", err)
	}
	e.ID = id
	e.CreatedAt = s.clock.Now().UTC()
	if err := s.repo.InsertEnrichment(ctx, e); err != nil {
		return false, fmt.Errorf("insert enrichment %q: %w", e.SourceURL, err)
	}
	metrics.ObserveEnrichment("stored")
	return true, nil
}

// PurgePlaceholders deletes documents whose titles name index pages. It returns how many were removed.
func (s *Store) PurgePlaceholders(ctx context.Context, titles []string) (int, error) {
	removed := 0
	for _, title := range titles {
		deleted, err := s.repo.DeleteDocumentByTitle(ctx, title)
		if err != nil {
			return removed, fmt.Errorf("delete placeholder %q: %w", title, err)
		}
		if deleted {
			removed++
			s.logger.Info("removed placeholder document", zap.String("title", title))
		}
	}
	return removed, nil
}

// Reset removes every document and enrichment.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.repo.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	s.logger.Warn("store reset")
	return nil
}

// Documents lists the most recent documents by publication date.
func (s *Store) Documents(ctx context.Context, limit int) ([]ingest.Document, error) {
	docs, err := s.repo.ListDocuments(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Enrichments lists enrichments, optionally only those found by query.
func (s *Store) Enrichments(ctx context.Context, query string) ([]ingest.Enrichment, error) {
	out, err := s.repo.ListEnrichments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enrichments: %w", err)
	}
	return out, nil
}

// Empty reports whether no documents are stored.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	n, err := s.repo.CountDocuments(ctx)
	if err != nil {
		return false, fmt.Errorf("count documents: %w", err)
	}
	return n == 0, nil
}
