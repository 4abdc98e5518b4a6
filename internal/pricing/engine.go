// Package pricing implements the regional pricing engine: cached lookup of
// construction unit prices with location adjustment, quarterly escalation
// and confidence scoring.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/cache"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/worker"
)

// EngineConfig holds the engine's dependencies and tuning.
type EngineConfig struct {
	Source  CatalogSource
	Store   cache.Store
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  observability.Tracer
	// Notifier receives an event after every successful refresh. Optional.
	Notifier RefreshNotifier
	// BatchWorkers caps the concurrency of batch lookups. Defaults to 8.
	BatchWorkers int
}

// Engine answers pricing queries from an in-memory catalog snapshot, caching
// both the inputs and the computed results. The catalog is loaded at
// initialization and replaced wholesale on refresh; lookups never block on a
// source.
type Engine struct {
	source       CatalogSource
	store        cache.Store
	calc         *Calculator
	logger       *observability.Logger
	metrics      *observability.Metrics
	tracer       observability.Tracer
	notifier     RefreshNotifier
	batchWorkers int

	catalog     atomic.Pointer[Catalog]
	initialized atomic.Bool
	refreshMu   sync.Mutex
	closeOnce   sync.Once
}

// NewEngine creates an engine. It does not load the catalog; call Initialize
// before serving lookups.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("catalog source is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Metrics == nil {
		return nil, fmt.Errorf("metrics is required")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 8
	}

	return &Engine{
		source:       cfg.Source,
		store:        cfg.Store,
		calc:         NewCalculator(),
		logger:       cfg.Logger.WithComponent("pricing-engine"),
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
		notifier:     cfg.Notifier,
		batchWorkers: cfg.BatchWorkers,
	}, nil
}

// Initialize loads the catalog from the source and marks the engine ready.
// Until it succeeds every lookup fails with ErrNotInitialized.
func (e *Engine) Initialize(ctx context.Context) error {
	ctx, span := e.tracer.StartSpan(ctx, "pricing.initialize")
	defer span.End()

	started := time.Now()
	catalog, err := e.loadCatalog(ctx)
	if err != nil {
		span.NoticeError(err)
		e.metrics.RecordError(ctx, "initialize", "pricing-engine")
		return fmt.Errorf("catalog load: %w", err)
	}

	e.catalog.Store(catalog)
	e.initialized.Store(true)
	e.recordCatalogGauges(ctx, catalog)

	e.logger.LogInfo(ctx, "pricing engine initialized",
		"source", e.source.Name(),
		"csi_codes", catalog.CodeCount(),
		"locations", catalog.LocationCount(),
		"escalations", catalog.EscalationCount(),
		"skipped_rows", catalog.SkippedRows(),
		"duration", time.Since(started).String(),
	)
	return nil
}

// Lookup resolves one pricing query through the cache and catalog and runs
// the adjustment pipeline. Query validation happens before any cache or
// catalog access.
func (e *Engine) Lookup(ctx context.Context, query PricingQuery) (*PricingResult, error) {
	if !e.initialized.Load() {
		return nil, ErrNotInitialized
	}
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	started := time.Now()
	ctx, span := e.tracer.StartSpan(ctx, "pricing.lookup",
		observability.WithAttributes(
			attribute.String("csi_code", query.CSICode),
			attribute.String("location", query.Location),
		))
	defer span.End()

	// The escalation quarter is pinned before the cache key is built, so a
	// defaulted query caches under the concrete quarter it priced against.
	quarter := ""
	if query.IncludeEscalation {
		quarter = query.TargetQuarter
		if quarter == "" {
			quarter = QuarterOf(time.Now())
		}
	}

	resultKey := cache.FullResultKey(
		query.CSICode, query.Location, quarter, query.Unit,
		query.Quantity, query.IncludeLocationFactors, query.IncludeEscalation,
	)
	if data, found := e.store.Get(ctx, cache.NamespaceFullResult, resultKey); found {
		var result PricingResult
		if err := json.Unmarshal(data, &result); err == nil {
			result.CacheHit = true
			result.CalculatedAt = time.Now()
			result.QueryTime = time.Since(started)
			e.metrics.RecordLookup(ctx, true, result.QueryTime)
			return &result, nil
		}
		e.logger.LogWarn(ctx, "discarding undecodable cached result", "key", resultKey)
	}

	catalog := e.catalog.Load()

	base, found := e.resolveBasePrice(ctx, catalog, query.CSICode, query.Location)
	if !found {
		err := &NotFoundError{CSICode: query.CSICode, Location: query.Location}
		span.NoticeError(err)
		return nil, err
	}

	var factor *LocationFactor
	if query.IncludeLocationFactors {
		factor = e.resolveFactor(ctx, catalog, query.Location)
	}

	var escalation *EscalationIndex
	if query.IncludeEscalation {
		escalation = e.resolveEscalation(ctx, catalog, quarter)
	}

	now := time.Now()
	comp := e.calc.Calculate(base, factor, escalation, query.Quantity, now)

	result := &PricingResult{
		Query:                 query,
		BasePrice:             base,
		LocationAdjusted:      comp.LocationAdjusted,
		EscalationAdjusted:    comp.EscalationAdjusted,
		UnitPrice:             comp.UnitPrice,
		ExtendedPrice:         comp.ExtendedPrice,
		AppliedLocationFactor: factor,
		AppliedEscalation:     escalation,
		Confidence:            comp.Confidence,
		CacheHit:              false,
		CalculatedAt:          now,
	}
	if division, ok := DivisionFor(query.CSICode); ok {
		result.Division = division.Title
	}

	if data, err := json.Marshal(result); err == nil {
		e.store.Put(ctx, cache.NamespaceFullResult, resultKey, data)
	}

	result.QueryTime = time.Since(started)
	e.metrics.RecordLookup(ctx, false, result.QueryTime)
	e.metrics.RecordConfidence(ctx, result.Confidence)
	return result, nil
}

// BatchLookup resolves many queries concurrently. Results come back in input
// order with failed entries compacted out; when any entry fails the
// successes are returned alongside a PartialBatchError naming each failed
// index.
func (e *Engine) BatchLookup(ctx context.Context, queries []PricingQuery) ([]PricingResult, error) {
	if !e.initialized.Load() {
		return nil, ErrNotInitialized
	}
	if len(queries) == 0 {
		return []PricingResult{}, nil
	}

	ctx, span := e.tracer.StartSpan(ctx, "pricing.batch_lookup",
		observability.WithAttributes(attribute.Int("batch_size", len(queries))))
	defer span.End()

	workers := e.batchWorkers
	if len(queries) < workers {
		workers = len(queries)
	}
	pool := worker.NewPool(ctx, workers, len(queries))
	defer pool.Close()

	jobs := make([]worker.Job, len(queries))
	for i, query := range queries {
		q := query
		jobs[i] = worker.Job{
			Index: i,
			ID:    q.CSICode,
			Execute: func(jobCtx context.Context) (interface{}, error) {
				return e.Lookup(jobCtx, q)
			},
		}
	}

	byIndex := make([]*worker.Result, len(queries))
	for _, res := range pool.SubmitAndWait(jobs) {
		r := res
		if r.Index >= 0 && r.Index < len(byIndex) {
			byIndex[r.Index] = &r
		}
	}

	successes := make([]PricingResult, 0, len(queries))
	var failures []BatchFailure
	for i := range queries {
		res := byIndex[i]
		switch {
		case res == nil:
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("query not executed")
			}
			failures = append(failures, BatchFailure{Index: i, Err: err})
		case res.Err != nil:
			failures = append(failures, BatchFailure{Index: i, Err: res.Err})
		default:
			result := res.Value.(*PricingResult)
			successes = append(successes, *result)
		}
	}

	e.metrics.RecordBatch(ctx, len(queries), len(failures))
	if len(failures) > 0 {
		span.SetAttributes(attribute.Int("failures", len(failures)))
		return successes, &PartialBatchError{Total: len(queries), Failures: failures}
	}
	return successes, nil
}

// Refresh reloads the catalog from the source, swaps the snapshot and drops
// every cached pricing entry in one invalidation. Concurrent calls are
// serialized; a failed load keeps the previous snapshot serving.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.initialized.Load() {
		return ErrNotInitialized
	}

	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	ctx, span := e.tracer.StartSpan(ctx, "pricing.refresh")
	defer span.End()

	started := time.Now()
	catalog, err := e.loadCatalog(ctx)
	if err != nil {
		span.NoticeError(err)
		e.metrics.RecordRefresh(ctx, time.Since(started), false)
		e.metrics.RecordError(ctx, "refresh", "pricing-engine")
		e.logger.LogError(ctx, "catalog refresh failed, keeping previous snapshot", err,
			"source", e.source.Name())
		return fmt.Errorf("catalog refresh: %w", err)
	}

	e.catalog.Store(catalog)
	removed := e.store.Invalidate(ctx, cache.PatternAll)

	duration := time.Since(started)
	e.metrics.RecordRefresh(ctx, duration, true)
	e.recordCatalogGauges(ctx, catalog)

	e.logger.LogInfo(ctx, "catalog refreshed",
		"source", e.source.Name(),
		"csi_codes", catalog.CodeCount(),
		"locations", catalog.LocationCount(),
		"escalations", catalog.EscalationCount(),
		"skipped_rows", catalog.SkippedRows(),
		"invalidated_keys", removed,
		"duration", duration.String(),
	)

	if e.notifier != nil {
		event := RefreshEvent{
			ID:          uuid.NewString(),
			Source:      e.source.Name(),
			CSICodes:    catalog.CodeCount(),
			Locations:   catalog.LocationCount(),
			Escalations: catalog.EscalationCount(),
			SkippedRows: catalog.SkippedRows(),
			Duration:    duration,
			CompletedAt: time.Now().UTC(),
		}
		if err := e.notifier.NotifyRefresh(ctx, event); err != nil {
			// Notification is best effort; the refresh itself succeeded.
			e.logger.LogWarn(ctx, "refresh notification failed", "error", err, "event_id", event.ID)
		}
	}
	return nil
}

// WarmCache preloads the factor and escalation namespaces from the current
// snapshot. Both datasets are small and shared across most lookups.
func (e *Engine) WarmCache(ctx context.Context) error {
	catalog := e.catalog.Load()
	if catalog == nil {
		return ErrNotInitialized
	}

	factors := make(map[string][]byte)
	for _, factor := range catalog.Factors() {
		if data, err := json.Marshal(factor); err == nil {
			factors[cache.LocationFactorKey(factor.Location)] = data
		}
	}
	e.store.BatchPut(ctx, cache.NamespaceLocationFactor, factors)

	escalations := make(map[string][]byte)
	for _, idx := range catalog.Escalations() {
		if data, err := json.Marshal(idx); err == nil {
			escalations[cache.EscalationKey(idx.Quarter)] = data
		}
	}
	e.store.BatchPut(ctx, cache.NamespaceEscalation, escalations)

	e.logger.LogInfo(ctx, "cache warmed",
		"factors", len(factors),
		"escalations", len(escalations),
	)
	return nil
}

// Stats reports catalog counts and lifecycle state. Callable before
// initialization.
func (e *Engine) Stats() Stats {
	stats := Stats{Initialized: e.initialized.Load()}
	if catalog := e.catalog.Load(); catalog != nil {
		stats.CSICodeCount = catalog.CodeCount()
		stats.LocationCount = catalog.LocationCount()
		stats.EscalationCount = catalog.EscalationCount()
		stats.LastSync = catalog.LoadedAt()
	}
	return stats
}

// HealthCheck probes the cache backend. Callable before initialization.
func (e *Engine) HealthCheck(ctx context.Context) cache.Health {
	return e.store.HealthCheck(ctx)
}

// Shutdown releases the cache connection and stops accepting lookups.
func (e *Engine) Shutdown(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		e.initialized.Store(false)
		err = e.store.Close()
		e.logger.LogInfo(ctx, "pricing engine shut down")
	})
	return err
}

// loadCatalog pulls all three datasets from the source in parallel and
// assembles a snapshot. Sources carry their own retry policy.
func (e *Engine) loadCatalog(ctx context.Context) (*Catalog, error) {
	name := e.source.Name()

	var codes []CSICode
	var pricing []LocationPricing
	var escalations []EscalationIndex

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		codes, err = e.source.LoadCSICodes(gctx)
		if err != nil {
			e.metrics.RecordSourceLoad(gctx, name, "csi_codes", "error")
			return fmt.Errorf("load CSI codes from %s: %w", name, err)
		}
		e.metrics.RecordSourceLoad(gctx, name, "csi_codes", "success")
		return nil
	})

	g.Go(func() error {
		var err error
		pricing, err = e.source.LoadBaselinePricing(gctx)
		if err != nil {
			e.metrics.RecordSourceLoad(gctx, name, "baseline_pricing", "error")
			return fmt.Errorf("load baseline pricing from %s: %w", name, err)
		}
		e.metrics.RecordSourceLoad(gctx, name, "baseline_pricing", "success")
		return nil
	})

	g.Go(func() error {
		var err error
		escalations, err = e.source.LoadEscalationIndices(gctx)
		if err != nil {
			e.metrics.RecordSourceLoad(gctx, name, "escalation_indices", "error")
			return fmt.Errorf("load escalation indices from %s: %w", name, err)
		}
		e.metrics.RecordSourceLoad(gctx, name, "escalation_indices", "success")
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog := BuildCatalog(codes, pricing, escalations, time.Now())
	if skipped := catalog.SkippedRows(); skipped > 0 {
		e.logger.LogWarn(ctx, "skipped invalid catalog rows", "count", skipped, "source", name)
	}
	return catalog, nil
}

func (e *Engine) recordCatalogGauges(ctx context.Context, catalog *Catalog) {
	e.metrics.SetCatalogEntries(ctx, "csi_codes", catalog.CodeCount())
	e.metrics.SetCatalogEntries(ctx, "locations", catalog.LocationCount())
	e.metrics.SetCatalogEntries(ctx, "escalations", catalog.EscalationCount())
}

// resolveBasePrice reads the base price through the cache, falling back to
// the catalog snapshot and writing back on a miss.
func (e *Engine) resolveBasePrice(ctx context.Context, catalog *Catalog, csiCode, location string) (BaseUnitPrice, bool) {
	key := cache.BasePriceKey(csiCode, location)
	if data, found := e.store.Get(ctx, cache.NamespaceBasePrice, key); found {
		var price BaseUnitPrice
		if err := json.Unmarshal(data, &price); err == nil {
			return price, true
		}
	}

	price, ok := catalog.BasePrice(csiCode, location)
	if !ok {
		return BaseUnitPrice{}, false
	}
	if data, err := json.Marshal(price); err == nil {
		e.store.Put(ctx, cache.NamespaceBasePrice, key, data)
	}
	return price, true
}

// resolveFactor reads a location factor through the cache. A missing factor
// is not an error; the location stage is skipped.
func (e *Engine) resolveFactor(ctx context.Context, catalog *Catalog, location string) *LocationFactor {
	key := cache.LocationFactorKey(location)
	if data, found := e.store.Get(ctx, cache.NamespaceLocationFactor, key); found {
		var factor LocationFactor
		if err := json.Unmarshal(data, &factor); err == nil {
			return &factor
		}
	}

	factor, ok := catalog.Factor(location)
	if !ok {
		return nil
	}
	if data, err := json.Marshal(factor); err == nil {
		e.store.Put(ctx, cache.NamespaceLocationFactor, key, data)
	}
	return &factor
}

// resolveEscalation reads a quarter's escalation index through the cache. A
// missing index is not an error; the escalation stage is skipped.
func (e *Engine) resolveEscalation(ctx context.Context, catalog *Catalog, quarter string) *EscalationIndex {
	key := cache.EscalationKey(quarter)
	if data, found := e.store.Get(ctx, cache.NamespaceEscalation, key); found {
		var idx EscalationIndex
		if err := json.Unmarshal(data, &idx); err == nil {
			return &idx
		}
	}

	idx, ok := catalog.Escalation(quarter)
	if !ok {
		return nil
	}
	if data, err := json.Marshal(idx); err == nil {
		e.store.Put(ctx, cache.NamespaceEscalation, key, data)
	}
	return &idx
}

// validateQuery rejects malformed queries before any cache or catalog I/O.
func validateQuery(query PricingQuery) error {
	if query.CSICode == "" {
		return &InvalidQueryError{Field: "csi_code", Reason: "must not be empty"}
	}
	if query.Quantity <= 0 || math.IsNaN(query.Quantity) || math.IsInf(query.Quantity, 0) {
		return &InvalidQueryError{Field: "quantity", Reason: "must be a positive number"}
	}
	if query.TargetQuarter != "" && !ValidQuarter(query.TargetQuarter) {
		return &InvalidQueryError{Field: "target_quarter", Reason: fmt.Sprintf("%q is not a valid quarter id (want YYYY-Qn)", query.TargetQuarter)}
	}
	return nil
}
