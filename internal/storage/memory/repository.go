// Package memory provides an in-memory ingest.Repository for development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
)

// Repository keeps documents and enrichments in maps keyed by their natural keys.
type Repository struct {
	mu          sync.RWMutex
	documents   map[string]ingest.Document
	enrichments map[string]ingest.Enrichment
	order       []string
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		documents:   make(map[string]ingest.Document),
		enrichments: make(map[string]ingest.Enrichment),
	}
}

// FindDocumentByTitle returns the document with the exact title.
func (r *Repository) FindDocumentByTitle(_ context.Context, title string) (ingest.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.documents[title]
	if !ok {
		return ingest.Document{}, ingest.ErrNotFound
	}
	return doc, nil
}

// InsertDocument stores a new document.
func (r *Repository) InsertDocument(_ context.Context, doc ingest.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.documents[doc.Title]; exists {
		return errors.New("document already exists")
	}
	r.documents[doc.Title] = doc
	return nil
}

// UpdateDocument replaces the document with the same title.
func (r *Repository) UpdateDocument(_ context.Context, doc ingest.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.documents[doc.Title]; !exists {
		return ingest.ErrNotFound
	}
	r.documents[doc.Title] = doc
	return nil
}

// DeleteDocumentByTitle removes the document and reports whether it existed.
func (r *Repository) DeleteDocumentByTitle(_ context.Context, title string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.documents[title]; !exists {
		return false, nil
	}
	delete(r.documents, title)
	return true, nil
}

// ListDocuments returns up to limit documents, newest publication first.
func (r *Repository) ListDocuments(_ context.Context, limit int) ([]ingest.Document, error) {
	r.mu.RLock()
	out := make([]ingest.Document, 0, len(r.documents))
	for _, doc := range r.documents {
		out = append(out, doc)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].Title < out[j].Title
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountDocuments returns how many documents are stored.
func (r *Repository) CountDocuments(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents), nil
}

// FindEnrichmentBySource returns the enrichment with the exact source URL.
func (r *Repository) FindEnrichmentBySource(_ context.Context, sourceURL string) (ingest.Enrichment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enrichments[sourceURL]
	if !ok {
		return ingest.Enrichment{}, ingest.ErrNotFound
	}
	return e, nil
}

// InsertEnrichment stores e. A second insert for the same source URL is ignored.
func (r *Repository) InsertEnrichment(_ context.Context, e ingest.Enrichment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.enrichments[e.SourceURL]; exists {
		return nil
	}
	r.enrichments[e.SourceURL] = e
	r.order = append(r.order, e.SourceURL)
	return nil
}

// ListEnrichments returns enrichments in insertion order, filtered by query when non-empty.
func (r *Repository) ListEnrichments(_ context.Context, query string) ([]ingest.Enrichment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ingest.Enrichment, 0, len(r.order))
	for _, key := range r.order {
		e := r.enrichments[key]
		if query != "" && e.Query != query {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Reset drops everything.
func (r *Repository) Reset(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = make(map[string]ingest.Document)
	r.enrichments = make(map[string]ingest.Enrichment)
	r.order = nil
	return nil
}

// Close is a no-op.
func (r *Repository) Close() error { return nil }

var _ ingest.Repository = (*Repository)(nil)
