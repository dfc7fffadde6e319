package listing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/metrics"
)

// MaxPages bounds how many listing pages a single crawl may fetch.
const MaxPages = 5

// Crawl is the outcome of walking the listing.
type Crawl struct {
	Links        []string
	PagesFetched int
}

// Pager walks the paginated listing until an empty page or MaxPages.
type Pager struct {
	fetcher    ingest.Fetcher
	rules      Rules
	listingURL string
	logger     *zap.Logger
}

// NewPager builds a Pager for the listing at listingURL.
func NewPager(fetcher ingest.Fetcher, listingURL string, rules Rules, logger *zap.Logger) *Pager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{
		fetcher:    fetcher,
		rules:      rules,
		listingURL: listingURL,
		logger:     logger.Named("pager"),
	}
}

// PageURL returns the URL of listing page n (1-based).
func PageURL(listingURL string, n int) string {
	if n <= 1 {
		return listingURL
	}
	return fmt.Sprintf("%s/page/%d/", strings.TrimSuffix(listingURL, "/"), n)
}

// Collect fetches listing pages in order and returns the deduplicated links.
// A fetch or parse failure counts as an empty page. Only context cancellation is returned as an error.
func (p *Pager) Collect(ctx context.Context) (Crawl, error) {
	links := newLinkSet()
	var crawl Crawl

	for page := 1; page <= MaxPages; page++ {
		pageURL := PageURL(p.listingURL, page)
		found := p.fetchPage(ctx, pageURL)
		if err := ctx.Err(); err != nil {
			return Crawl{Links: links.slice(), PagesFetched: crawl.PagesFetched}, fmt.Errorf("collect listing: %w", err)
		}
		crawl.PagesFetched++
		metrics.ObserveListingPage()

		if len(found) == 0 {
			p.logger.Info("listing page empty, stopping",
				zap.Int("page", page),
				zap.String("url", pageURL),
			)
			break
		}
		added := links.addAll(found)
		p.logger.Debug("listing page parsed",
			zap.Int("page", page),
			zap.Int("links", len(found)),
			zap.Int("new", added),
		)
	}

	crawl.Links = links.slice()
	return crawl, nil
}

func (p *Pager) fetchPage(ctx context.Context, pageURL string) []string {
	page, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		p.logger.Warn("listing fetch failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	found, err := Parse(page.Body, p.rules)
	if err != nil {
		p.logger.Warn("listing parse failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	return found
}
