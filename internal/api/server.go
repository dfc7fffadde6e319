package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
	"github.com/JakeFAU/actions-ingest/internal/metrics"
	"github.com/JakeFAU/actions-ingest/internal/pipeline"
	"github.com/JakeFAU/actions-ingest/internal/scheduler"
)

const (
	defaultDocumentLimit = 10
	maxDocumentLimit     = 500
	readTimeout          = 30 * time.Second
)

// Runs triggers and reports ingestion runs.
type Runs interface {
	Trigger(ctx context.Context, reset bool) (pipeline.Report, error)
	LastReport() (pipeline.Report, bool)
}

// Records reads stored documents and enrichments.
type Records interface {
	Documents(ctx context.Context, limit int) ([]ingest.Document, error)
	Enrichments(ctx context.Context, query string) ([]ingest.Enrichment, error)
	Empty(ctx context.Context) (bool, error)
}

// StateSource reports the orchestrator state.
type StateSource interface {
	State() pipeline.State
}

// Options configure optional server behavior.
type Options struct {
	APIKey string
}

// Server wires HTTP handlers to the scheduler and record store.
type Server struct {
	router  chi.Router
	runs    Runs
	records Records
	state   StateSource
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runs Runs, records Records, state StateSource, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runs:    runs,
		records: records,
		state:   state,
		logger:  logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Post("/runs", s.triggerRun)
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(readTimeout))
			r.Get("/status", s.status)
			r.Get("/documents", s.listDocuments)
			r.Get("/enrichments", s.listEnrichments)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.records.Empty(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	reset, err := parseBool(r.URL.Query().Get("reset"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "reset must be a boolean")
		return
	}
	// The run outlives a disconnecting client.
	report, err := s.runs.Trigger(context.WithoutCancel(r.Context()), reset)
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		s.writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("triggered run failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "run failed")
	default:
		s.writeJSON(w, http.StatusAccepted, report)
	}
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"state": s.state.State()}
	if report, ok := s.runs.LastReport(); ok {
		body["last_run"] = report
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	limit := defaultDocumentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxDocumentLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	docs, err := s.records.Documents(r.Context(), limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []ingest.Document{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) listEnrichments(w http.ResponseWriter, r *http.Request) {
	out, err := s.records.Enrichments(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		s.logger.Error("list enrichments failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list enrichments")
		return
	}
	if out == nil {
		out = []ingest.Enrichment{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"enrichments": out})
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, err //nolint:wrapcheck
	}
	return v, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", reqID),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
