// Package postgres provides a Postgres-backed ingest.Repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN              string
	DocumentsTable   string
	EnrichmentsTable string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Repository stores documents and enrichments in two tables.
type Repository struct {
	pool        pool
	documents   string
	enrichments string
}

// New connects to Postgres and creates the tables when missing.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	repo, err := NewWithPool(p, cfg.DocumentsTable, cfg.EnrichmentsTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return repo, nil
}

// NewWithPool constructs a Repository from an existing pool (primarily for testing).
func NewWithPool(p pool, documentsTable, enrichmentsTable string) (*Repository, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if documentsTable == "" {
		documentsTable = "documents"
	}
	if enrichmentsTable == "" {
		enrichmentsTable = "enrichments"
	}
	for _, table := range []string{documentsTable, enrichmentsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Repository{pool: p, documents: documentsTable, enrichments: enrichmentsTable}, nil
}

// EnsureSchema creates both tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	source_url TEXT NOT NULL,
	published_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, r.documents),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	source_url TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
)`, r.enrichments),
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const documentColumns = "id, title, content, source_url, published_at, created_at, updated_at"

// FindDocumentByTitle returns the document with the exact title.
func (r *Repository) FindDocumentByTitle(ctx context.Context, title string) (ingest.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE title = $1`, documentColumns, r.documents)
	doc, err := scanDocument(r.pool.QueryRow(ctx, query, title))
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Document{}, ingest.ErrNotFound
	}
	if err != nil {
		return ingest.Document{}, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// InsertDocument inserts a new document row.
func (r *Repository) InsertDocument(ctx context.Context, doc ingest.Document) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.documents, documentColumns)
	_, err := r.pool.Exec(ctx, query,
		doc.ID,
		doc.Title,
		doc.Content,
		doc.SourceURL,
		doc.PublishedAt,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// UpdateDocument rewrites content, source and dates of the row with the same title.
func (r *Repository) UpdateDocument(ctx context.Context, doc ingest.Document) error {
	query := fmt.Sprintf(`UPDATE %s SET content = $1, source_url = $2, published_at = $3, updated_at = $4 WHERE title = $5`,
		r.documents)
	tag, err := r.pool.Exec(ctx, query, doc.Content, doc.SourceURL, doc.PublishedAt, doc.UpdatedAt, doc.Title)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

// DeleteDocumentByTitle removes the row and reports whether one existed.
func (r *Repository) DeleteDocumentByTitle(ctx context.Context, title string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE title = $1`, r.documents)
	tag, err := r.pool.Exec(ctx, query, title)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListDocuments returns up to limit documents, newest publication first.
func (r *Repository) ListDocuments(ctx context.Context, limit int) ([]ingest.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY published_at DESC, title ASC LIMIT $1`, documentColumns, r.documents)
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

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
	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.documents)
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return int(n), nil
}

const enrichmentColumns = "id, query, title, content, source_url, created_at"

// FindEnrichmentBySource returns the enrichment with the exact source URL.
func (r *Repository) FindEnrichmentBySource(ctx context.Context, sourceURL string) (ingest.Enrichment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE source_url = $1`, enrichmentColumns, r.enrichments)
	e, err := scanEnrichment(r.pool.QueryRow(ctx, query, sourceURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Enrichment{}, ingest.ErrNotFound
	}
	if err != nil {
		return ingest.Enrichment{}, fmt.Errorf("select enrichment: %w", err)
	}
	return e, nil
}

// InsertEnrichment inserts e. A conflicting source URL is silently kept as is.
func (r *Repository) InsertEnrichment(ctx context.Context, e ingest.Enrichment) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (source_url) DO NOTHING`,
		r.enrichments, enrichmentColumns)
	if _, err := r.pool.Exec(ctx, query, e.ID, e.Query, e.Title, e.Content, e.SourceURL, e.CreatedAt); err != nil {
		return fmt.Errorf("insert enrichment: %w", err)
	}
	return nil
}

// ListEnrichments returns enrichments oldest first, filtered by query when non-empty.
func (r *Repository) ListEnrichments(ctx context.Context, query string) ([]ingest.Enrichment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if query == "" {
		rows, err = r.pool.Query(ctx,
			fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, enrichmentColumns, r.enrichments))
	} else {
		rows, err = r.pool.Query(ctx,
			fmt.Sprintf(`SELECT %s FROM %s WHERE query = $1 ORDER BY created_at, id`, enrichmentColumns, r.enrichments),
			query)
	}
	if err != nil {
		return nil, fmt.Errorf("list enrichments: %w", err)
	}
	defer rows.Close()

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

// Reset truncates both tables.
func (r *Repository) Reset(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s, %s`, r.documents, r.enrichments)); err != nil {
		return fmt.Errorf("reset tables: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (r *Repository) Close() error {
	if r == nil || r.pool == nil {
		return nil
	}
	r.pool.Close()
	return nil
}

func scanDocument(row pgx.Row) (ingest.Document, error) {
	var doc ingest.Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.SourceURL, &doc.PublishedAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return ingest.Document{}, err //nolint:wrapcheck
	}
	doc.PublishedAt = doc.PublishedAt.UTC()
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

func scanEnrichment(row pgx.Row) (ingest.Enrichment, error) {
	var e ingest.Enrichment
	if err := row.Scan(&e.ID, &e.Query, &e.Title, &e.Content, &e.SourceURL, &e.CreatedAt); err != nil {
		return ingest.Enrichment{}, err //nolint:wrapcheck
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

var _ ingest.Repository = (*Repository)(nil)
