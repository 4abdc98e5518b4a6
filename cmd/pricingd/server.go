package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/catalog"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/cache"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/config"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

// maxBodyBytes caps request bodies. Batch requests dominate; one query is
// around 200 bytes.
const maxBodyBytes = 1 << 20

// server exposes the pricing engine over HTTP.
type server struct {
	engine *pricing.Engine
	source pricing.CatalogSource
	logger *observability.Logger
}

// newServer builds the HTTP server with all routes attached.
func newServer(cfg config.HTTPConfig, engine *pricing.Engine, source pricing.CatalogSource, metrics *observability.Metrics, logger *observability.Logger) *http.Server {
	s := &server{
		engine: engine,
		source: source,
		logger: logger.WithComponent("http"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/pricing/lookup", s.handleLookup)
	mux.HandleFunc("POST /v1/pricing/batch", s.handleBatch)
	mux.HandleFunc("POST /v1/admin/refresh", s.handleRefresh)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// handleLookup resolves a single pricing query. With ?format=text the
// response is the itemized breakdown instead of JSON, for ops tooling.
func (s *server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var query pricing.PricingQuery
	if err := decodeJSON(w, r, &query); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.engine.Lookup(r.Context(), query)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}

	s.logger.LogDebug(r.Context(), result.FormatCompactOutput())

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, result.FormatItemized())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Queries []pricing.PricingQuery `json:"queries"`
}

type batchFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type batchResponse struct {
	Results  []pricing.PricingResult `json:"results"`
	Failures []batchFailure          `json:"failures,omitempty"`
}

// handleBatch resolves many queries in one request. Per-query failures come
// back in the failures list by input index; the response status stays 200 as
// long as the batch itself was valid.
func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	results, err := s.engine.BatchLookup(r.Context(), req.Queries)
	resp := batchResponse{Results: results}
	if err != nil {
		partial, ok := pricing.IsPartialBatch(err)
		if !ok {
			s.writeLookupError(w, r, err)
			return
		}
		for _, f := range partial.Failures {
			resp.Failures = append(resp.Failures, batchFailure{Index: f.Index, Error: f.Err.Error()})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh reloads the catalog on demand.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if err := s.engine.Refresh(r.Context()); err != nil {
		if errors.Is(err, pricing.ErrNotInitialized) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		// The source failed; the previous snapshot keeps serving.
		s.logger.LogError(r.Context(), "manual refresh failed", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "refreshed",
		"duration": time.Since(started).String(),
		"stats":    s.engine.Stats(),
	})
}

type statsResponse struct {
	Engine pricing.Stats         `json:"engine"`
	Cache  cache.Health          `json:"cache"`
	Source *catalog.SourceHealth `json:"source,omitempty"`
}

// handleStats reports catalog counts, cache health and source health.
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Engine: s.engine.Stats(),
		Cache:  s.engine.HealthCheck(r.Context()),
	}
	if reporter, ok := s.source.(catalog.HealthReporter); ok {
		health := reporter.Health()
		resp.Source = &health
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth is the liveness probe.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports readiness for traffic. The cache is fail-open, so its
// state does not gate readiness; an uninitialized engine does.
func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Stats().Initialized {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeLookupError maps engine errors to HTTP status codes.
func (s *server) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case pricing.IsInvalidQuery(err):
		writeError(w, http.StatusBadRequest, err)
	case pricing.IsNotFound(err):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, pricing.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.LogError(r.Context(), "lookup failed", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
