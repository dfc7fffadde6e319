package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/dates"
	"github.com/JakeFAU/actions-ingest/internal/enrich"
	"github.com/JakeFAU/actions-ingest/internal/extract"
	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/listing"
	pubmemory "github.com/JakeFAU/actions-ingest/internal/publisher/memory"
	"github.com/JakeFAU/actions-ingest/internal/records"
	"github.com/JakeFAU/actions-ingest/internal/storage/memory"
)

const listingURL = "https://www.whitehouse.gov/presidential-actions/executive-orders/"

var now = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return now }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

type siteFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *siteFetcher) Fetch(_ context.Context, url string) (ingest.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return ingest.Page{}, &ingest.FetchError{URL: url, StatusCode: 404, Err: errors.New("not found")}
	}
	return ingest.Page{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

func (f *siteFetcher) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

func (f *siteFetcher) fetched(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if call == url {
			return true
		}
	}
	return false
}

type stubSearcher struct {
	results map[string][]ingest.SearchResult
}

func (s stubSearcher) Search(_ context.Context, query string) ([]ingest.SearchResult, error) {
	return s.results[query], nil
}

type harness struct {
	orch      *Orchestrator
	repo      *memory.Repository
	fetcher   *siteFetcher
	publisher *pubmemory.Publisher
}

func newHarness(t *testing.T, pages map[string]string, searcher ingest.Searcher) *harness {
	t.Helper()
	logger := zap.NewNop()
	fetcher := &siteFetcher{pages: pages}
	repo := memory.NewRepository()
	ids := &seqIDs{}
	store := records.New(repo, fixedClock{}, ids, logger)
	publisher := pubmemory.New()

	orch, err := New(Deps{
		Collector: listing.NewPager(fetcher, listingURL, listing.DefaultRules(), logger),
		Fetcher:   fetcher,
		Extractor: extract.New(extract.DefaultPlaceholders),
		Resolver:  dates.NewResolver(fixedClock{}, logger),
		Store:     store,
		Enricher: enrich.New(searcher, store, enrich.Config{
			QuerySuffix: enrich.DefaultQuerySuffix,
			Excluded:    enrich.DefaultExcluded,
		}, logger),
		Publisher: publisher,
		IDs:       ids,
		Clock:     fixedClock{},
		Logger:    logger,
	})
	require.NoError(t, err)
	return &harness{orch: orch, repo: repo, fetcher: fetcher, publisher: publisher}
}

func docPage(title, body string) string {
	return fmt.Sprintf(`<html><body><h1 class="page-title">%s</h1><div class="entry-content"><p>%s</p></div></body></html>`, title, body)
}

const (
	docA = "https://www.whitehouse.gov/presidential-actions/2025/01/order-a/"
	docB = "https://www.whitehouse.gov/presidential-actions/order-b/"
)

func twoDocSite() map[string]string {
	return map[string]string{
		listingURL: `<html><body>
<article><a href="/presidential-actions/2025/01/order-a/">A</a></article>
<article><a href="/presidential-actions/order-b/">B</a></article>
</body></html>`,
		listing.PageURL(listingURL, 2): `<html><body><p>No more results</p></body></html>`,
		docA: docPage("Order A", "Signed by the President."),
		docB: docPage("Order B", "THE WHITE HOUSE, April 1, 2025."),
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	searcher := stubSearcher{results: map[string][]ingest.SearchResult{
		"Order A executive order white house": {
			{Link: "https://apnews.com/a", Title: "AP on A", Snippet: "snippet"},
			{Link: "https://www.foxnews.com/a", Title: "Fox on A"},
		},
		"Order B executive order white house": {
			{Link: "https://apnews.com/a", Title: "AP again"},
			{Link: "https://reuters.com/b", Title: "Reuters on B"},
		},
	}}
	h := newHarness(t, twoDocSite(), searcher)
	require.Equal(t, StateIdle, h.orch.State())

	report, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateDone, h.orch.State())

	require.Equal(t, 2, h.fetcher.count(listingURL))
	require.Equal(t, 2, report.PagesFetched)
	require.Equal(t, 2, report.Links)
	require.Equal(t, 2, report.Created)
	require.Equal(t, 2, report.Enrichments)
	require.Equal(t, now, report.FinishedAt)
	require.NotEmpty(t, report.RunID)

	a, err := h.repo.FindDocumentByTitle(context.Background(), "Order A")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), a.PublishedAt)
	require.Equal(t, "Signed by the President.", a.Content)

	b, err := h.repo.FindDocumentByTitle(context.Background(), "Order B")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), b.PublishedAt)
	require.Equal(t, docB, b.SourceURL)

	enrichments, err := h.repo.ListEnrichments(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, enrichments, 2)
	for _, e := range enrichments {
		require.NotContains(t, e.SourceURL, "foxnews.com")
	}

	forA, err := h.repo.ListEnrichments(context.Background(), "Order A")
	require.NoError(t, err)
	require.Len(t, forA, 1)
	require.Equal(t, "https://apnews.com/a", forA[0].SourceURL)
	forB, err := h.repo.ListEnrichments(context.Background(), "Order B")
	require.NoError(t, err)
	require.Len(t, forB, 1)
	require.Equal(t, "https://reuters.com/b", forB[0].SourceURL)

	events := h.publisher.Events()
	require.Len(t, events, 2)
	require.Equal(t, report.RunID, events[0].RunID)
	require.Equal(t, "Order A", events[0].Title)
}

func TestRerunUpdatesWithoutReEnriching(t *testing.T) {
	t.Parallel()

	searcher := stubSearcher{results: map[string][]ingest.SearchResult{
		"Order A executive order white house": {{Link: "https://apnews.com/a"}},
	}}
	h := newHarness(t, twoDocSite(), searcher)

	first, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)
	published := len(h.publisher.Events())
	require.Equal(t, 2, published)

	report, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	require.Zero(t, report.Created)
	require.Equal(t, 2, report.Updated)
	require.Zero(t, report.Enrichments)

	n, err := h.repo.CountDocuments(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	enrichments, err := h.repo.ListEnrichments(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, enrichments, 1)
	require.Len(t, h.publisher.Events(), published)
}

func TestPlaceholdersArePurgedAndNeverStored(t *testing.T) {
	t.Parallel()

	site := map[string]string{
		listingURL: `<html><body>
<article><a href="/presidential-actions/proclamations-index/">P</a></article>
<article><a href="/presidential-actions/2025/02/real/">R</a></article>
<article><a href="/presidential-actions/">Category</a></article>
</body></html>`,
		"https://www.whitehouse.gov/presidential-actions/proclamations-index/": docPage("Proclamations", ""),
		"https://www.whitehouse.gov/presidential-actions/2025/02/real/":        docPage("Real Order", "text"),
	}
	h := newHarness(t, site, stubSearcher{})
	ctx := context.Background()
	require.NoError(t, h.repo.InsertDocument(ctx, ingest.Document{ID: "old", Title: "Executive Orders"}))

	report, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.PlaceholdersPurged)
	require.Equal(t, 2, report.Skipped)
	require.Equal(t, 1, report.Created)

	for _, title := range extract.DefaultPlaceholders {
		_, err := h.repo.FindDocumentByTitle(ctx, title)
		require.ErrorIs(t, err, ingest.ErrNotFound, title)
	}
	require.False(t, h.fetcher.fetched("https://www.whitehouse.gov/presidential-actions/"))
}

func TestPerDocumentFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	site := twoDocSite()
	delete(site, docA)
	h := newHarness(t, site, stubSearcher{})

	report, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Created)
	require.Equal(t, StateDone, h.orch.State())
}

func TestRunReturnsOnCancellation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, twoDocSite(), stubSearcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, StateDone, h.orch.State())
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{})
	require.Error(t, err)
}
