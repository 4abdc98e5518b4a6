package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Metrics holds all application metric instruments.
type Metrics struct {
	meter metric.Meter

	// Lookup metrics
	LookupsTotal   metric.Int64Counter
	LookupDuration metric.Float64Histogram
	Confidence     metric.Float64Histogram

	// Batch metrics
	BatchSize     metric.Int64Histogram
	BatchFailures metric.Int64Counter

	// Cache metrics
	CacheHits       metric.Int64Counter
	CacheMisses     metric.Int64Counter
	CacheLatency    metric.Float64Histogram
	CacheConnected  metric.Int64Gauge
	Invalidations   metric.Int64Counter
	InvalidatedKeys metric.Int64Counter

	// Catalog metrics
	RefreshTotal    metric.Int64Counter
	RefreshDuration metric.Float64Histogram
	CatalogEntries  metric.Int64Gauge
	SourceLoadCalls metric.Int64Counter

	// Notification metrics
	Notifications  metric.Int64Counter
	NotifyDuration metric.Float64Histogram

	// Circuit breaker metrics
	CircuitBreakerState metric.Int64Gauge

	// Error metrics
	Errors metric.Int64Counter
}

// NewMetrics creates a Metrics instance. When disabled, instruments are
// backed by a no-op meter so callers never need nil checks.
func NewMetrics(serviceName string, enabled bool) (*Metrics, error) {
	var meter metric.Meter
	if enabled {
		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceNameKey.String(serviceName),
				semconv.ServiceVersionKey.String("1.0.0"),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}

		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}

		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		meter = provider.Meter(serviceName)
	} else {
		meter = noop.NewMeterProvider().Meter(serviceName)
	}

	m := &Metrics{meter: meter}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

// initMetrics initializes all metric instruments.
func (m *Metrics) initMetrics() error {
	var err error

	m.LookupsTotal, err = m.meter.Int64Counter(
		"pricing.lookups",
		metric.WithDescription("Total pricing lookups"),
	)
	if err != nil {
		return err
	}

	m.LookupDuration, err = m.meter.Float64Histogram(
		"pricing.lookup.duration",
		metric.WithDescription("Pricing lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.Confidence, err = m.meter.Float64Histogram(
		"pricing.confidence",
		metric.WithDescription("Confidence score distribution of computed results"),
	)
	if err != nil {
		return err
	}

	m.BatchSize, err = m.meter.Int64Histogram(
		"pricing.batch.size",
		metric.WithDescription("Number of queries per batch lookup"),
	)
	if err != nil {
		return err
	}

	m.BatchFailures, err = m.meter.Int64Counter(
		"pricing.batch.failures",
		metric.WithDescription("Total failed queries across batch lookups"),
	)
	if err != nil {
		return err
	}

	m.CacheHits, err = m.meter.Int64Counter(
		"pricing.cache.hits",
		metric.WithDescription("Total cache hits"),
	)
	if err != nil {
		return err
	}

	m.CacheMisses, err = m.meter.Int64Counter(
		"pricing.cache.misses",
		metric.WithDescription("Total cache misses"),
	)
	if err != nil {
		return err
	}

	m.CacheLatency, err = m.meter.Float64Histogram(
		"pricing.cache.latency",
		metric.WithDescription("Cache health check round trip latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.CacheConnected, err = m.meter.Int64Gauge(
		"pricing.cache.connected",
		metric.WithDescription("Cache connection status (1=connected, 0=disconnected)"),
	)
	if err != nil {
		return err
	}

	m.Invalidations, err = m.meter.Int64Counter(
		"pricing.cache.invalidations",
		metric.WithDescription("Total pattern invalidation operations"),
	)
	if err != nil {
		return err
	}

	m.InvalidatedKeys, err = m.meter.Int64Counter(
		"pricing.cache.invalidated_keys",
		metric.WithDescription("Total keys removed by pattern invalidation"),
	)
	if err != nil {
		return err
	}

	m.RefreshTotal, err = m.meter.Int64Counter(
		"pricing.catalog.refreshes",
		metric.WithDescription("Total catalog refresh operations"),
	)
	if err != nil {
		return err
	}

	m.RefreshDuration, err = m.meter.Float64Histogram(
		"pricing.catalog.refresh.duration",
		metric.WithDescription("Catalog refresh duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.CatalogEntries, err = m.meter.Int64Gauge(
		"pricing.catalog.entries",
		metric.WithDescription("Catalog entry counts by kind"),
	)
	if err != nil {
		return err
	}

	m.SourceLoadCalls, err = m.meter.Int64Counter(
		"pricing.catalog.source.calls",
		metric.WithDescription("Total catalog source load calls"),
	)
	if err != nil {
		return err
	}

	m.Notifications, err = m.meter.Int64Counter(
		"pricing.notifications",
		metric.WithDescription("Total refresh notification publishes"),
	)
	if err != nil {
		return err
	}

	m.NotifyDuration, err = m.meter.Float64Histogram(
		"pricing.notification.duration",
		metric.WithDescription("Notification publish duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.CircuitBreakerState, err = m.meter.Int64Gauge(
		"pricing.circuit_breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return err
	}

	m.Errors, err = m.meter.Int64Counter(
		"pricing.errors",
		metric.WithDescription("Total errors encountered"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordLookup records one lookup with its outcome.
func (m *Metrics) RecordLookup(ctx context.Context, cacheHit bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("cache_hit", cacheHit),
	}
	m.LookupsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.LookupDuration.Record(ctx, float64(duration.Microseconds())/1000.0, metric.WithAttributes(attrs...))
}

// RecordConfidence records the confidence score of a computed result.
func (m *Metrics) RecordConfidence(ctx context.Context, score float64) {
	m.Confidence.Record(ctx, score)
}

// RecordBatch records a batch lookup.
func (m *Metrics) RecordBatch(ctx context.Context, size, failures int) {
	m.BatchSize.Record(ctx, int64(size))
	if failures > 0 {
		m.BatchFailures.Add(ctx, int64(failures))
	}
}

// RecordCacheHit records a cache hit for a namespace.
func (m *Metrics) RecordCacheHit(ctx context.Context, namespace string) {
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", namespace)))
}

// RecordCacheMiss records a cache miss for a namespace.
func (m *Metrics) RecordCacheMiss(ctx context.Context, namespace string) {
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", namespace)))
}

// RecordCacheLatency records a health check round trip.
func (m *Metrics) RecordCacheLatency(ctx context.Context, latency time.Duration) {
	m.CacheLatency.Record(ctx, float64(latency.Microseconds())/1000.0)
}

// SetCacheConnected sets the cache connection gauge.
func (m *Metrics) SetCacheConnected(ctx context.Context, connected bool) {
	val := int64(0)
	if connected {
		val = 1
	}
	m.CacheConnected.Record(ctx, val)
}

// RecordInvalidation records a pattern invalidation and how many keys it removed.
func (m *Metrics) RecordInvalidation(ctx context.Context, pattern string, removed int) {
	m.Invalidations.Add(ctx, 1, metric.WithAttributes(attribute.String("pattern", pattern)))
	if removed > 0 {
		m.InvalidatedKeys.Add(ctx, int64(removed))
	}
}

// RecordRefresh records a catalog refresh.
func (m *Metrics) RecordRefresh(ctx context.Context, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.RefreshTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.RefreshDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// SetCatalogEntries sets the entry count gauge for one entity kind.
func (m *Metrics) SetCatalogEntries(ctx context.Context, kind string, count int) {
	m.CatalogEntries.Record(ctx, int64(count), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordSourceLoad records one catalog source load call.
func (m *Metrics) RecordSourceLoad(ctx context.Context, source, entity, status string) {
	m.SourceLoadCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("entity", entity),
		attribute.String("status", status),
	))
}

// RecordNotification records one notification publish attempt.
func (m *Metrics) RecordNotification(ctx context.Context, transport, status string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("transport", transport),
		attribute.String("status", status),
	}
	m.Notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.NotifyDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// SetCircuitBreakerState sets circuit breaker state.
// 0 = closed, 1 = open, 2 = half-open
func (m *Metrics) SetCircuitBreakerState(ctx context.Context, name string, state int64) {
	m.CircuitBreakerState.Record(ctx, state, metric.WithAttributes(attribute.String("name", name)))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errorType, component string) {
	m.Errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errorType),
		attribute.String("component", component),
	))
}

// Handler returns the HTTP handler serving Prometheus metrics.
// The OTEL Prometheus exporter registers with the default registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
