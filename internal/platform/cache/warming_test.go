package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
)

// TestWarmerRunsAllProviders verifies every registered provider runs and
// results are aggregated
func TestWarmerRunsAllProviders(t *testing.T) {
	warmer := NewWarmer(observability.NewNopLogger(), DefaultWarmupConfig())

	var calls int64
	for _, name := range []string{"base-prices", "location-factors", "escalation-indices"} {
		warmer.RegisterProvider(ProviderFunc{
			ProviderName: name,
			Fn: func(ctx context.Context) error {
				atomic.AddInt64(&calls, 1)
				return nil
			},
		})
	}

	results := warmer.Warmup(context.Background())

	if atomic.LoadInt64(&calls) != 3 {
		t.Errorf("Expected 3 provider calls, got %d", calls)
	}
	if len(results.Results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(results.Results))
	}
	if results.HasErrors() {
		t.Errorf("Expected no errors, got %d", results.Errors)
	}

	t.Log("✓ All providers warmed")
}

// TestWarmerCountsFailures verifies provider failures are recorded without
// aborting the rest
func TestWarmerCountsFailures(t *testing.T) {
	warmer := NewWarmer(observability.NewNopLogger(), WarmupConfig{
		Timeout:         5 * time.Second,
		ContinueOnError: true,
		Parallel:        true,
	})

	warmer.RegisterProvider(ProviderFunc{
		ProviderName: "ok",
		Fn:           func(ctx context.Context) error { return nil },
	})
	warmer.RegisterProvider(ProviderFunc{
		ProviderName: "broken",
		Fn:           func(ctx context.Context) error { return errors.New("source offline") },
	})

	results := warmer.Warmup(context.Background())

	if !results.HasErrors() || results.Errors != 1 {
		t.Errorf("Expected exactly 1 error, got %d", results.Errors)
	}
	if len(results.Results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results.Results))
	}

	t.Log("✓ Failures counted, other providers unaffected")
}

// TestWarmerSequentialStopsOnError verifies sequential mode aborts when
// configured to stop on failure
func TestWarmerSequentialStopsOnError(t *testing.T) {
	warmer := NewWarmer(observability.NewNopLogger(), WarmupConfig{
		Timeout:         5 * time.Second,
		ContinueOnError: false,
		Parallel:        false,
	})

	var secondRan bool
	warmer.RegisterProvider(ProviderFunc{
		ProviderName: "first",
		Fn:           func(ctx context.Context) error { return errors.New("boom") },
	})
	warmer.RegisterProvider(ProviderFunc{
		ProviderName: "second",
		Fn: func(ctx context.Context) error {
			secondRan = true
			return nil
		},
	})

	results := warmer.Warmup(context.Background())

	if secondRan {
		t.Error("Second provider ran after a fatal first failure")
	}
	if len(results.Results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results.Results))
	}

	t.Log("✓ Sequential warmup stops on first error when configured")
}

// TestWarmerEmpty verifies warming with no providers is a no-op
func TestWarmerEmpty(t *testing.T) {
	warmer := NewWarmer(observability.NewNopLogger(), DefaultWarmupConfig())
	results := warmer.Warmup(context.Background())

	if len(results.Results) != 0 || results.HasErrors() {
		t.Errorf("Expected empty results, got %+v", results)
	}
}
