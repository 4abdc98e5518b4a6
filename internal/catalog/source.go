// Package catalog provides catalog sources that load CSI codes, baseline
// pricing, location factors, and escalation indices for the pricing engine.
package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/resilience"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

// SourceFactory is a function that creates a catalog source from configuration.
type SourceFactory func(cfg SourceConfig) (pricing.CatalogSource, error)

// SourceConfig holds common configuration for catalog sources.
type SourceConfig struct {
	// Common fields
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Retry   *resilience.RetryConfig

	// DynamoDB-specific fields
	AWSConfig            aws.Config
	TableCSICodes        string
	TableBasePrices      string
	TableLocationFactors string
	TableEscalations     string

	// HTTP-specific fields
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SourceRegistry manages catalog source factories.
// It allows dynamic registration and creation of catalog sources.
type SourceRegistry struct {
	factories map[string]SourceFactory
	mu        sync.RWMutex
}

// NewSourceRegistry creates a new source registry with built-in sources.
func NewSourceRegistry() *SourceRegistry {
	r := &SourceRegistry{
		factories: make(map[string]SourceFactory),
	}

	// Register built-in sources
	r.Register("static", r.createStaticSource)
	r.Register("dynamodb", r.createDynamoDBSource)
	r.Register("http", r.createHTTPSource)

	return r
}

// Register adds a new source factory to the registry.
func (r *SourceRegistry) Register(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create creates a catalog source using the registered factory.
func (r *SourceRegistry) Create(name string, cfg SourceConfig) (pricing.CatalogSource, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown catalog source type: %s (available: %v)", name, r.ListSources())
	}

	return factory(cfg)
}

// ListSources returns a list of registered source types.
func (r *SourceRegistry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// createStaticSource creates the built-in seed data source.
func (r *SourceRegistry) createStaticSource(cfg SourceConfig) (pricing.CatalogSource, error) {
	return NewStaticSource(), nil
}

// createDynamoDBSource creates a DynamoDB-backed catalog source.
func (r *SourceRegistry) createDynamoDBSource(cfg SourceConfig) (pricing.CatalogSource, error) {
	source, err := NewDynamoDBSource(DynamoDBSourceConfig{
		AWSConfig:            cfg.AWSConfig,
		TableCSICodes:        cfg.TableCSICodes,
		TableBasePrices:      cfg.TableBasePrices,
		TableLocationFactors: cfg.TableLocationFactors,
		TableEscalations:     cfg.TableEscalations,
		Retry:                cfg.Retry,
		Logger:               cfg.Logger,
		Metrics:              cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB source: %w", err)
	}
	return source, nil
}

// createHTTPSource creates a vendor API catalog source.
func (r *SourceRegistry) createHTTPSource(cfg SourceConfig) (pricing.CatalogSource, error) {
	source, err := NewHTTPSource(HTTPSourceConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
		Retry:   cfg.Retry,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP source: %w", err)
	}
	return source, nil
}

// DefaultRegistry is the global catalog source registry instance.
var DefaultRegistry = NewSourceRegistry()
