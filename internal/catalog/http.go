package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/resilience"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

// HTTPSource loads the pricing catalog from a vendor pricing API.
type HTTPSource struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	logger   *observability.Logger
	retryCfg resilience.RetryConfig
	cb       *resilience.CircuitBreaker
	health   *healthTracker
}

// HTTPSourceConfig holds vendor API source configuration.
type HTTPSourceConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	Retry          *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
}

// csiCodesResponse is the vendor API envelope for GET /v1/csi-codes.
type csiCodesResponse struct {
	Codes []pricing.CSICode `json:"codes"`
}

// baselinePricingResponse is the vendor API envelope for GET /v1/pricing.
type baselinePricingResponse struct {
	Locations []pricing.LocationPricing `json:"locations"`
}

// escalationResponse is the vendor API envelope for GET /v1/escalation.
type escalationResponse struct {
	Indices []pricing.EscalationIndex `json:"indices"`
}

// NewHTTPSource creates a new vendor API catalog source.
func NewHTTPSource(cfg HTTPSourceConfig) (*HTTPSource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required for HTTP source")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}

	// Create circuit breaker if not provided
	cb := cfg.CircuitBreaker
	if cb == nil {
		cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "http-catalog",
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			OnStateChange: func(from, to resilience.State) {
				if cfg.Metrics != nil {
					cfg.Metrics.SetCircuitBreakerState(context.Background(), "http-catalog", int64(to))
				}
			},
		})
	}
	if cfg.Metrics != nil {
		cfg.Metrics.SetCircuitBreakerState(context.Background(), "http-catalog", cb.StateInt())
	}

	return &HTTPSource{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		logger:   cfg.Logger,
		retryCfg: retryCfg,
		cb:       cb,
		health:   newHealthTracker("http"),
	}, nil
}

// Name returns the source identifier.
func (s *HTTPSource) Name() string {
	return "http"
}

// LoadCSICodes fetches the CSI code hierarchy from the vendor API.
func (s *HTTPSource) LoadCSICodes(ctx context.Context) ([]pricing.CSICode, error) {
	var resp csiCodesResponse
	if err := s.fetch(ctx, "/v1/csi-codes", &resp); err != nil {
		return nil, fmt.Errorf("failed to load CSI codes: %w", err)
	}

	s.logger.LogDebug(ctx, "loaded CSI codes from vendor API", "count", len(resp.Codes))
	return resp.Codes, nil
}

// LoadBaselinePricing fetches per-location pricing and factors from the
// vendor API.
func (s *HTTPSource) LoadBaselinePricing(ctx context.Context) ([]pricing.LocationPricing, error) {
	var resp baselinePricingResponse
	if err := s.fetch(ctx, "/v1/pricing", &resp); err != nil {
		return nil, fmt.Errorf("failed to load baseline pricing: %w", err)
	}

	s.logger.LogDebug(ctx, "loaded baseline pricing from vendor API", "locations", len(resp.Locations))
	return resp.Locations, nil
}

// LoadEscalationIndices fetches the national escalation indices from the
// vendor API.
func (s *HTTPSource) LoadEscalationIndices(ctx context.Context) ([]pricing.EscalationIndex, error) {
	var resp escalationResponse
	if err := s.fetch(ctx, "/v1/escalation", &resp); err != nil {
		return nil, fmt.Errorf("failed to load escalation indices: %w", err)
	}

	s.logger.LogDebug(ctx, "loaded escalation indices from vendor API", "count", len(resp.Indices))
	return resp.Indices, nil
}

// Health returns the current health status of the vendor API source.
func (s *HTTPSource) Health() SourceHealth {
	h := s.health.snapshot()
	if s.cb != nil {
		h.CircuitState = s.cb.State().String()
	}
	return h
}

// fetch executes a GET against the vendor API through the circuit breaker
// with retries, decoding the JSON body into out.
func (s *HTTPSource) fetch(ctx context.Context, path string, out any) error {
	return s.cb.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, s.retryCfg, func(ctx context.Context) error {
			start := time.Now()
			err := s.doRequest(ctx, path, out)
			s.health.record(err, time.Since(start))
			return err
		})
	})
}

func (s *HTTPSource) doRequest(ctx context.Context, path string, out any) error {
	url := s.baseURL + path

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
