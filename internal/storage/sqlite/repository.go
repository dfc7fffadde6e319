// Package sqlite provides a single-file ingest.Repository on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/actions-ingest/internal/ingest"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config selects the database file and table names.
type Config struct {
	Path             string
	DocumentsTable   string
	EnrichmentsTable string
}

// Repository stores documents and enrichments in a SQLite file.
type Repository struct {
	db          *sql.DB
	documents   string
	enrichments string
}

// Open opens (or creates) the database at cfg.Path and ensures the schema.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store.sqlite_path is required")
	}
	if cfg.DocumentsTable == "" {
		cfg.DocumentsTable = "documents"
	}
	if cfg.EnrichmentsTable == "" {
		cfg.EnrichmentsTable = "enrichments"
	}
	for _, table := range []string{cfg.DocumentsTable, cfg.EnrichmentsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db, documents: cfg.DocumentsTable, enrichments: cfg.EnrichmentsTable}
	if err := repo.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	source_url TEXT NOT NULL,
	published_at TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`, r.documents),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	source_url TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
)`, r.enrichments),
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const documentColumns = "id, title, content, source_url, published_at, created_at, updated_at"

// FindDocumentByTitle returns the document with the exact title.
func (r *Repository) FindDocumentByTitle(ctx context.Context, title string) (ingest.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE title = ?`, documentColumns, r.documents)
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, title))
	if errors.Is(err, sql.ErrNoRows) {
		return ingest.Document{}, ingest.ErrNotFound
	}
	if err != nil {
		return ingest.Document{}, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// InsertDocument inserts a new document row.
func (r *Repository) InsertDocument(ctx context.Context, doc ingest.Document) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?,?,?,?,?,?,?)`, r.documents, documentColumns)
	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.Content,
		doc.SourceURL,
		formatTime(doc.PublishedAt),
		formatTime(doc.CreatedAt),
		formatTime(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// UpdateDocument rewrites content, source and dates of the row with the same title.
func (r *Repository) UpdateDocument(ctx context.Context, doc ingest.Document) error {
	query := fmt.Sprintf(`UPDATE %s SET content = ?, source_url = ?, published_at = ?, updated_at = ? WHERE title = ?`,
		r.documents)
	res, err := r.db.ExecContext(ctx, query,
		doc.Content, doc.SourceURL, formatTime(doc.PublishedAt), formatTime(doc.UpdatedAt), doc.Title)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows: %w", err)
	}
	if n == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

// DeleteDocumentByTitle removes the row and reports whether one existed.
func (r *Repository) DeleteDocumentByTitle(ctx context.Context, title string) (bool, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE title = ?`, r.documents), title)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete document rows: %w", err)
	}
	return n > 0, nil
}

// ListDocuments returns up to limit documents, newest publication first.
func (r *Repository) ListDocuments(ctx context.Context, limit int) ([]ingest.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY published_at DESC, title ASC LIMIT ?`, documentColumns, r.documents)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []ingest.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// CountDocuments returns the number of stored documents.
func (r *Repository) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.documents)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

const enrichmentColumns = "id, query, title, content, source_url, created_at"

// FindEnrichmentBySource returns the enrichment with the exact source URL.
func (r *Repository) FindEnrichmentBySource(ctx context.Context, sourceURL string) (ingest.Enrichment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE source_url = ?`, enrichmentColumns, r.enrichments)
	e, err := scanEnrichment(r.db.QueryRowContext(ctx, query, sourceURL))
	if errors.Is(err, sql.ErrNoRows) {
		return ingest.Enrichment{}, ingest.ErrNotFound
	}
	if err != nil {
		return ingest.Enrichment{}, fmt.Errorf("select enrichment: %w", err)
	}
	return e, nil
}

// InsertEnrichment inserts e. A conflicting source URL is silently kept as is.
func (r *Repository) InsertEnrichment(ctx context.Context, e ingest.Enrichment) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?,?,?,?,?,?) ON CONFLICT (source_url) DO NOTHING`,
		r.enrichments, enrichmentColumns)
	_, err := r.db.ExecContext(ctx, query, e.ID, e.Query, e.Title, e.Content, e.SourceURL, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert enrichment: %w", err)
	}
	return nil
}

// ListEnrichments returns enrichments oldest first, filtered by query when non-empty.
func (r *Repository) ListEnrichments(ctx context.Context, query string) ([]ingest.Enrichment, error) {
	stmt := fmt.Sprintf(`SELECT %s FROM %s WHERE (? = '' OR query = ?) ORDER BY created_at, id`,
		enrichmentColumns, r.enrichments)
	rows, err := r.db.QueryContext(ctx, stmt, query, query)
	if err != nil {
		return nil, fmt.Errorf("list enrichments: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []ingest.Enrichment
	for rows.Next() {
		e, err := scanEnrichment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrichment: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrichments: %w", err)
	}
	return out, nil
}

// Reset deletes every row in both tables.
func (r *Repository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	for _, table := range []string{r.documents, r.enrichments} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (r *Repository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (ingest.Document, error) {
	var (
		doc                         ingest.Document
		published, created, updated string
	)
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.SourceURL, &published, &created, &updated); err != nil {
		return ingest.Document{}, err //nolint:wrapcheck
	}
	var err error
	if doc.PublishedAt, err = parseTime(published); err != nil {
		return ingest.Document{}, err
	}
	if doc.CreatedAt, err = parseTime(created); err != nil {
		return ingest.Document{}, err
	}
	if doc.UpdatedAt, err = parseTime(updated); err != nil {
		return ingest.Document{}, err
	}
	return doc, nil
}

func scanEnrichment(row scanner) (ingest.Enrichment, error) {
	var (
		e       ingest.Enrichment
		created string
	)
	if err := row.Scan(&e.ID, &e.Query, &e.Title, &e.Content, &e.SourceURL, &created); err != nil {
		return ingest.Enrichment{}, err //nolint:wrapcheck
	}
	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return ingest.Enrichment{}, err
	}
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

var _ ingest.Repository = (*Repository)(nil)
