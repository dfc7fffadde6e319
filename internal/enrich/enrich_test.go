package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/records"
	"github.com/JakeFAU/actions-ingest/internal/storage/memory"
)

type stubSearcher struct {
	results []ingest.SearchResult
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string) ([]ingest.SearchResult, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) }

func newFanOut(searcher ingest.Searcher) (*FanOut, *memory.Repository) {
	repo := memory.NewRepository()
	store := records.New(repo, fixedClock{}, &seqIDs{}, zap.NewNop())
	return New(searcher, store, Config{QuerySuffix: DefaultQuerySuffix, Excluded: DefaultExcluded}, zap.NewNop()), repo
}

func TestEnrichExcludesBlockedDomains(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{results: []ingest.SearchResult{
		{Link: "https://www.foxnews.com/politics/order", Title: "Fox"},
		{Link: "https://foxnews.com/order", Title: "Fox bare"},
		{Link: "https://www.dailywire.com/news/order", Title: "DW"},
		{Link: "https://apnews.com/article/order", Title: "AP", Snippet: "signed"},
		{Link: "", Title: "empty"},
	}}
	fanOut, repo := newFanOut(searcher)

	summary, err := fanOut.Enrich(context.Background(), "Securing Our Borders")
	require.NoError(t, err)
	require.Equal(t, []string{"Securing Our Borders executive order white house"}, searcher.queries)
	require.Equal(t, 5, summary.Results)
	require.Equal(t, 3, summary.Excluded)
	require.Equal(t, 1, summary.Stored)

	stored, err := repo.ListEnrichments(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, ingest.Enrichment{
		ID:        "id-1",
		Query:     "Securing Our Borders",
		Title:     "AP",
		Content:   "signed",
		SourceURL: "https://apnews.com/article/order",
		CreatedAt: fixedClock{}.Now(),
	}, stored[0])

	byTitle, err := repo.ListEnrichments(context.Background(), "Securing Our Borders")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
}

func TestEnrichDedupsByLink(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{results: []ingest.SearchResult{
		{Link: "https://apnews.com/a", Title: "first"},
		{Link: "https://apnews.com/a", Title: "again"},
	}}
	fanOut, repo := newFanOut(searcher)

	summary, err := fanOut.Enrich(context.Background(), "Order One")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Stored)
	require.Equal(t, 1, summary.Duplicate)

	summary, err = fanOut.Enrich(context.Background(), "Order Two")
	require.NoError(t, err)
	require.Zero(t, summary.Stored)

	stored, err := repo.ListEnrichments(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "first", stored[0].Title)
}

func TestEnrichSearchFailureIsNotAnError(t *testing.T) {
	t.Parallel()

	fanOut, repo := newFanOut(&stubSearcher{err: errors.New("rate limited")})
	summary, err := fanOut.Enrich(context.Background(), "Order")
	require.NoError(t, err)
	require.Zero(t, summary.Results)

	stored, err := repo.ListEnrichments(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestEnrichReturnsStorageFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	searcher := &stubSearcher{results: []ingest.SearchResult{{Link: "https://apnews.com/a"}}}
	fanOut := New(searcher, failingSaver{err: boom}, Config{}, nil)

	_, err := fanOut.Enrich(context.Background(), "Order")
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"Order"}, searcher.queries)
}

type failingSaver struct{ err error }

func (f failingSaver) SaveEnrichment(context.Context, ingest.Enrichment) (bool, error) {
	return false, f.err
}

func TestExclusionList(t *testing.T) {
	t.Parallel()

	list := newExclusionList([]string{" FoxNews.com ", "*.ru", ".example.org", "", "foxnews.com"})
	require.Len(t, list.domains, 3)

	cases := []struct {
		link     string
		excluded bool
	}{
		{"https://foxnews.com/a", true},
		{"https://video.foxnews.com/a", true},
		{"foxnews.com/a", true},
		{"https://notfoxnews.com/a", false},
		{"https://news.ru/x", true},
		{"https://sub.example.org/", true},
		{"https://example.com/", false},
		{"::bad", false},
		{"https://www.foxnews.com/politics/100%-order", true},
		{"https://www.foxnews.com/a%zz", true},
		{"https://user:pw@www.FoxNews.com:443/a", true},
		{"//foxnews.com/a?x=%", true},
		{"https://apnews.com/a%zz", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.excluded, list.Excludes(tc.link), tc.link)
	}

	var empty *exclusionList
	require.False(t, empty.Excludes("https://foxnews.com"))
}
