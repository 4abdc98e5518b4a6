package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
)

// WarmupProvider populates some slice of the cache ahead of traffic.
// Providers must be idempotent; the warmer may run again after a backend
// reconnect.
type WarmupProvider interface {
	// Name identifies the provider in logs and results.
	Name() string

	// Warmup loads the provider's data into the cache.
	Warmup(ctx context.Context) error
}

// ProviderFunc adapts a plain function to the WarmupProvider interface.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context) error
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Warmup(ctx context.Context) error { return p.Fn(ctx) }

// WarmupConfig tunes how registered providers are executed.
type WarmupConfig struct {
	// Timeout bounds the whole run, not individual providers.
	Timeout time.Duration

	// ContinueOnError keeps the run going when a provider fails. When
	// false, the first failure aborts every provider that has not
	// started yet.
	ContinueOnError bool

	// Parallel runs all providers at once instead of one at a time.
	Parallel bool
}

// DefaultWarmupConfig runs providers in parallel for up to 30 seconds,
// tolerating individual failures.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Timeout:         30 * time.Second,
		ContinueOnError: true,
		Parallel:        true,
	}
}

// WarmupResult is the outcome of one provider run.
type WarmupResult struct {
	Provider string
	Duration time.Duration
	Err      error
}

// WarmupResults aggregates a warmup run. Providers skipped after an abort
// get no entry.
type WarmupResults struct {
	Results   []WarmupResult
	TotalTime time.Duration
	Errors    int
}

// HasErrors reports whether any provider failed.
func (wr *WarmupResults) HasErrors() bool {
	return wr.Errors > 0
}

// Warmer runs registered providers to populate the cache before the first
// lookup needs it.
type Warmer struct {
	providers []WarmupProvider
	logger    *observability.Logger
	config    WarmupConfig
}

// NewWarmer creates a warmer with no providers registered.
func NewWarmer(logger *observability.Logger, config WarmupConfig) *Warmer {
	return &Warmer{
		logger: logger.WithComponent("cache-warmer"),
		config: config,
	}
}

// RegisterProvider adds a provider to the warmup run. Not safe to call
// concurrently with Warmup.
func (w *Warmer) RegisterProvider(provider WarmupProvider) {
	w.providers = append(w.providers, provider)
}

// Warmup runs every registered provider and reports per-provider outcomes.
// A cold cache is a latency problem, not an availability problem, so
// failures are returned in the results rather than as an error.
func (w *Warmer) Warmup(ctx context.Context) *WarmupResults {
	started := time.Now()
	out := &WarmupResults{}
	if len(w.providers) == 0 {
		out.TotalTime = time.Since(started)
		return out
	}

	wctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(wctx)
	if !w.config.Parallel {
		g.SetLimit(1)
	}

	var mu sync.Mutex
	for _, provider := range w.providers {
		g.Go(func() error {
			// After an abort the remaining providers are skipped
			// entirely rather than recorded as failures.
			if gctx.Err() != nil {
				return nil
			}

			res := w.warm(gctx, provider)
			mu.Lock()
			out.Results = append(out.Results, res)
			mu.Unlock()

			if res.Err != nil && !w.config.ContinueOnError {
				return res.Err
			}
			return nil
		})
	}
	// Per-provider errors are already in the results.
	_ = g.Wait()

	for _, r := range out.Results {
		if r.Err != nil {
			out.Errors++
		}
	}
	out.TotalTime = time.Since(started)

	if out.Errors > 0 {
		w.logger.LogWarn(ctx, "cache warmup completed with errors",
			"failed", out.Errors, "providers", len(w.providers), "duration", out.TotalTime)
	} else {
		w.logger.LogInfo(ctx, "cache warmup completed",
			"providers", len(w.providers), "duration", out.TotalTime)
	}

	return out
}

// warm times a single provider run.
func (w *Warmer) warm(ctx context.Context, provider WarmupProvider) WarmupResult {
	name := provider.Name()
	w.logger.LogDebug(ctx, "warming cache", "provider", name)

	started := time.Now()
	err := provider.Warmup(ctx)
	duration := time.Since(started)

	if err != nil {
		w.logger.LogWarn(ctx, "cache warmup provider failed",
			"provider", name, "error", err, "duration", duration)
	} else {
		w.logger.LogDebug(ctx, "cache warmup provider finished",
			"provider", name, "duration", duration)
	}

	return WarmupResult{Provider: name, Duration: duration, Err: err}
}
