// Package enrich finds third-party coverage of newly ingested documents.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
)

// DefaultQuerySuffix is appended to the document title to form the search query.
const DefaultQuerySuffix = "executive order white house"

// Saver persists enrichments, reporting whether a new row was written.
type Saver interface {
	SaveEnrichment(ctx context.Context, e ingest.Enrichment) (bool, error)
}

// Config controls query construction and filtering.
type Config struct {
	QuerySuffix string
	Excluded    []string
}

// Summary counts what one fan-out did.
type Summary struct {
	Query     string
	Results   int
	Excluded  int
	Stored    int
	Duplicate int
}

// FanOut searches for a title and stores the acceptable results.
type FanOut struct {
	searcher ingest.Searcher
	saver    Saver
	suffix   string
	excluded *exclusionList
	logger   *zap.Logger
}

// New builds a FanOut.
func New(searcher ingest.Searcher, saver Saver, cfg Config, logger *zap.Logger) *FanOut {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOut{
		searcher: searcher,
		saver:    saver,
		suffix:   strings.TrimSpace(cfg.QuerySuffix),
		excluded: newExclusionList(cfg.Excluded),
		logger:   logger.Named("enrich"),
	}
}

// Query returns the search query used for title.
func (f *FanOut) Query(title string) string {
	if f.suffix == "" {
		return title
	}
	return title + " " + f.suffix
}

// Enrich searches for title and saves results keyed by link, recording title as the
// originating query. Search failures are logged and reported as an empty summary;
// only storage failures are returned.
func (f *FanOut) Enrich(ctx context.Context, title string) (Summary, error) {
	summary := Summary{Query: f.Query(title)}
	results, err := f.searcher.Search(ctx, summary.Query)
	if err != nil {
		var searchErr *ingest.SearchError
		if !errors.As(err, &searchErr) {
			err = &ingest.SearchError{Query: summary.Query, Err: err}
		}
		f.logger.Warn("search failed", zap.String("query", summary.Query), zap.Error(err))
		return summary, nil
	}
	summary.Results = len(results)

	for _, result := range results {
		link := strings.TrimSpace(result.Link)
		if link == "" {
			continue
		}
		if f.excluded.Excludes(link) {
			summary.Excluded++
			continue
		}
		stored, err := f.saver.SaveEnrichment(ctx, ingest.Enrichment{
			Query:     title,
			Title:     result.Title,
			Content:   result.Snippet,
			SourceURL: link,
		})
		if err != nil {
			return summary, fmt.Errorf("save enrichment for %q: %w", title, err)
		}
		if stored {
			summary.Stored++
		} else {
			summary.Duplicate++
		}
	}

	f.logger.Debug("enrichment complete",
		zap.String("query", summary.Query),
		zap.Int("results", summary.Results),
		zap.Int("stored", summary.Stored),
		zap.Int("excluded", summary.Excluded),
	)
	return summary, nil
}
