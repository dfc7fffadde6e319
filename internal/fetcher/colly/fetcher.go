// Package collyfetcher implements ingest.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent         string
	RespectRobots     bool
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Fetcher implements ingest.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *hostLimiter
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// failure captures what the OnError hook saw.
type failure struct {
	status int
	err    error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	// Each run re-reads the same listing pages; revisit tracking belongs to the pager.
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiter:       newHostLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, url string) (ingest.Page, error) {
	if err := f.limiter.Wait(ctx, url); err != nil {
		return ingest.Page{}, &ingest.FetchError{URL: url, Err: err}
	}

	var (
		result ingest.Page
		failed failure
	)
	start := time.Now()
	collector := f.buildCollector(start, &result, &failed)

	if err := f.runCollector(ctx, collector, url, &failed); err != nil {
		metrics.ObserveFetch(url, failed.status, time.Since(start))
		return ingest.Page{}, err
	}
	metrics.ObserveFetch(url, result.StatusCode, time.Since(start))
	return result, nil
}

func (f *Fetcher) buildCollector(start time.Time, result *ingest.Page, failed *failure) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)

	f.configureCollectorHooks(collector, start, result, failed)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *ingest.Page,
	failed *failure,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = ingest.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		failed.err = err
		if r != nil {
			failed.status = r.StatusCode
		}
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, failed *failure) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return &ingest.FetchError{URL: url, Err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case err := <-done:
		if err == nil {
			err = failed.err
		}
		if err == nil {
			return nil
		}
		return &ingest.FetchError{URL: url, StatusCode: failed.status, Err: err}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
