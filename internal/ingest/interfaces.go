package ingest

import (
	"context"
	"time"
)

// Fetcher performs a single GET. Network failures and non-2xx responses are
// reported as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Searcher queries an external search provider.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Repository is the persistence port for both entity types.
// Find methods return ErrNotFound when no row matches.
type Repository interface {
	FindDocumentByTitle(ctx context.Context, title string) (Document, error)
	InsertDocument(ctx context.Context, doc Document) error
	UpdateDocument(ctx context.Context, doc Document) error
	DeleteDocumentByTitle(ctx context.Context, title string) (bool, error)
	ListDocuments(ctx context.Context, limit int) ([]Document, error)
	CountDocuments(ctx context.Context) (int, error)

	FindEnrichmentBySource(ctx context.Context, sourceURL string) (Enrichment, error)
	InsertEnrichment(ctx context.Context, e Enrichment) error
	ListEnrichments(ctx context.Context, query string) ([]Enrichment, error)

	Reset(ctx context.Context) error
	Close() error
}

// Publisher announces newly created documents to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event DocumentEvent) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for runs and rows.
type IDGenerator interface {
	NewID() (string, error)
}
