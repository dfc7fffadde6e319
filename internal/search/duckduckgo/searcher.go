// Package duckduckgo implements ingest.Searcher against the DuckDuckGo HTML endpoint.
package duckduckgo

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/metrics"
)

// DefaultEndpoint serves results without JavaScript.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

// Config controls the searcher.
type Config struct {
	Endpoint   string
	MaxResults int
}

// Searcher issues queries through an ingest.Fetcher and parses the result page.
type Searcher struct {
	fetcher    ingest.Fetcher
	endpoint   string
	maxResults int
	logger     *zap.Logger
}

// New builds a Searcher. MaxResults defaults to 5.
func New(fetcher ingest.Fetcher, cfg Config, logger *zap.Logger) *Searcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		fetcher:    fetcher,
		endpoint:   cfg.Endpoint,
		maxResults: cfg.MaxResults,
		logger:     logger.Named("duckduckgo"),
	}
}

// Search returns up to MaxResults hits. A page that cannot be parsed yields no results.
func (s *Searcher) Search(ctx context.Context, query string) ([]ingest.SearchResult, error) {
	page, err := s.fetcher.Fetch(ctx, s.queryURL(query))
	if err != nil {
		metrics.ObserveSearch("error")
		return nil, &ingest.SearchError{Query: query, Err: err}
	}
	results := s.parse(page.Body)
	if len(results) == 0 {
		metrics.ObserveSearch("empty")
	} else {
		metrics.ObserveSearch("ok")
	}
	return results, nil
}

func (s *Searcher) queryURL(query string) string {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return s.endpoint + "?q=" + url.QueryEscape(query)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Searcher) parse(body []byte) []ingest.SearchResult {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.logger.Debug("unparseable search response", zap.Error(err))
		return nil
	}
	var results []ingest.SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.HasClass("result--ad") {
			return true
		}
		anchor := sel.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}
		results = append(results, ingest.SearchResult{
			Link:    unwrapRedirect(href),
			Title:   strings.TrimSpace(anchor.Text()),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return len(results) < s.maxResults
	})
	return results
}

// unwrapRedirect returns the target of a DuckDuckGo /l/?uddg= redirect, or href unchanged.
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
