package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/app"
	"github.com/JakeFAU/actions-ingest/internal/config"
	"github.com/JakeFAU/actions-ingest/internal/pipeline"
)

const (
	listingPath = "/presidential-actions/executive-orders/"
	docPath     = "/presidential-actions/2025/01/order-a/"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(listingPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != listingPath {
			fmt.Fprint(w, `<html><body><p>No results.</p></body></html>`)
			return
		}
		fmt.Fprintf(w, `<html><body><article><a href="%s">Order A</a></article></body></html>`, docPath)
	})
	mux.HandleFunc(docPath, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><h1 class="page-title">Order A</h1><div class="entry-content"><p>By the authority vested in me.</p></div></body></html>`)
	})
	mux.HandleFunc("/html/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><div class="result"><a class="result__a" href="https://news.example/order-a">Coverage</a><div class="result__snippet">Analysis.</div></div></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, site *httptest.Server) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Source.Origin = site.URL
	cfg.Source.ListingURL = site.URL + listingPath
	cfg.Search.Endpoint = site.URL + "/html/"
	cfg.Fetcher.RequestsPerSecond = 0
	cfg.Store.Driver = "memory"
	cfg.Publisher.Provider = "none"
	cfg.Schedule.RunWhenEmpty = false
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

// useApp swaps the factory for one that builds from cfg.
func useApp(t *testing.T, cfg config.Config) {
	t.Helper()
	prev := newApp
	newApp = func(ctx context.Context, _ string) (App, error) {
		a, err := app.New(ctx, cfg, zap.NewNop())
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	t.Cleanup(func() { newApp = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngestCommand_PrintsReport(t *testing.T) {
	site := newSite(t)
	useApp(t, testConfig(t, site))

	out, err := execute(t, "ingest")
	require.NoError(t, err)

	var report pipeline.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotEmpty(t, report.RunID)
	require.Equal(t, 1, report.Links)
	require.Equal(t, 1, report.Created)
	require.Equal(t, 1, report.Enrichments)
}

func TestResetCommand(t *testing.T) {
	site := newSite(t)
	useApp(t, testConfig(t, site))

	out, err := execute(t, "reset")
	require.NoError(t, err)
	require.Contains(t, out, "store reset")
}

func TestDocumentsCommand(t *testing.T) {
	site := newSite(t)
	useApp(t, testConfig(t, site))

	out, err := execute(t, "documents")
	require.NoError(t, err)
	require.JSONEq(t, `[]`, out)

	_, err = execute(t, "documents", "--limit", "0")
	require.Error(t, err)
}

func TestRootCommand_FactoryFailure(t *testing.T) {
	prev := newApp
	newApp = func(context.Context, string) (App, error) { return nil, errors.New("boom") }
	t.Cleanup(func() { newApp = prev })

	_, err := execute(t, "reset")
	require.ErrorContains(t, err, "failed to initialize application services")
}

func TestResolveApp_Missing(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	site := newSite(t)
	a, err := app.New(context.Background(), testConfig(t, site), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, a, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
