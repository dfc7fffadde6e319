// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ingestRunsTotal            *prometheus.CounterVec
	ingestListingPagesTotal    prometheus.Counter
	ingestDocumentsTotal       *prometheus.CounterVec
	ingestEnrichmentsTotal     *prometheus.CounterVec
	ingestDateSourceTotal      *prometheus.CounterVec
	fetchRequestsTotal         *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	searchRequestsTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_total",
				Help: "Total number of ingestion runs, labeled by result.",
			},
			[]string{"result"},
		)

		ingestListingPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_listing_pages_total",
				Help: "Total number of listing pages fetched by the pager.",
			},
		)

		ingestDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_documents_total",
				Help: "Total number of candidate documents processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		ingestEnrichmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_enrichments_total",
				Help: "Total number of search results handled by enrichment, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		ingestDateSourceTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_date_source_total",
				Help: "Total number of resolved publication dates, labeled by the signal that produced them.",
			},
			[]string{"source"},
		)

		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_fetch_requests_total",
				Help: "Total number of outbound fetches, labeled by site and status class.",
			},
			[]string{"site", "status"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_fetch_duration_seconds",
				Help:    "Histogram of outbound fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		searchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_search_requests_total",
				Help: "Total number of external search queries, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_rate_limit_delays_seconds",
				Help:    "Histogram of politeness wait durations before outbound fetches.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// StatusClass buckets an HTTP status code; 0 means the request never got a response.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "network_error"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun counts a finished ingestion run.
func ObserveRun(result string) {
	Init()
	ingestRunsTotal.WithLabelValues(result).Inc()
}

// ObserveListingPage counts a fetched listing page.
func ObserveListingPage() {
	Init()
	ingestListingPagesTotal.Inc()
}

// ObserveDocument counts a processed candidate document.
func ObserveDocument(outcome string) {
	Init()
	ingestDocumentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveEnrichment counts a handled search result.
func ObserveEnrichment(outcome string) {
	Init()
	ingestEnrichmentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDateSource counts which signal produced a publication date.
func ObserveDateSource(source string) {
	Init()
	ingestDateSourceTotal.WithLabelValues(source).Inc()
}

// ObserveFetch records an outbound fetch.
func ObserveFetch(rawURL string, statusCode int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchRequestsTotal.WithLabelValues(site, StatusClass(statusCode)).Inc()
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveSearch counts an external search query.
func ObserveSearch(result string) {
	Init()
	searchRequestsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(site).Observe(duration.Seconds())
}
