package ingest

import (
	"net/http"
	"time"
)

// Document is a primary document ingested from the source listing.
// Title is the natural key.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	SourceURL   string    `json:"source_url"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Enrichment is a third-party article found by searching for a document title.
// SourceURL is the natural key.
type Enrichment struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	SourceURL string    `json:"source_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Page is a successfully fetched response.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// SearchResult is a single hit returned by an external search provider.
type SearchResult struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// DocumentEvent announces a newly created document.
type DocumentEvent struct {
	RunID       string    `json:"run_id"`
	Title       string    `json:"title"`
	SourceURL   string    `json:"source_url"`
	PublishedAt time.Time `json:"published_at"`
}
