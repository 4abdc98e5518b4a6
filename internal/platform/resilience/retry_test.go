package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// TestRetrySucceedsAfterTransientFailures verifies retry recovers from transient errors
func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	t.Log("✓ Retry recovers from transient failures")
}

// TestRetryStopsOnNonRetryable verifies permanent errors are not retried
func TestRetryStopsOnNonRetryable(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return errors.New("ValidationException: invalid key schema")
	})

	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}

	t.Log("✓ Non-retryable errors fail fast")
}

// TestRetryExhaustsAttempts verifies the last error is wrapped after exhaustion
func TestRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}

	final := errors.New("status code 503")
	attempts := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return final
	})

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, final) {
		t.Errorf("Expected wrapped final error, got %v", err)
	}

	t.Log("✓ Retry exhausts attempts and preserves last error")
}

// TestRetryWithResultReturnsValue verifies the generic variant returns results
func TestRetryWithResultReturnsValue(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}

	attempts := 0
	result, err := RetryWithResult(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("timeout")
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}

	t.Log("✓ RetryWithResult returns the value on success")
}

// TestRetryRespectsContextCancellation verifies retry aborts on cancelled context
func TestRetryRespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- Retry(ctx, cfg, func(ctx context.Context) error {
			attempts++
			return errors.New("status code 500")
		})
	}()

	// Cancel while the retry loop is sleeping between attempts
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled in chain, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retry did not abort after context cancellation")
	}

	if attempts >= 10 {
		t.Errorf("Expected early abort, got %d attempts", attempts)
	}

	t.Log("✓ Retry aborts on context cancellation")
}

// TestBackoffDelayCapsAtMax verifies exponential backoff respects the cap
func TestBackoffDelayCapsAtMax(t *testing.T) {
	// Without jitter the progression is deterministic
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 1 * time.Second}

	for attempt := 0; attempt < 10; attempt++ {
		delay := backoffDelay(cfg, attempt)
		if delay > cfg.MaxDelay {
			t.Errorf("Attempt %d: delay %v exceeds max %v", attempt, delay, cfg.MaxDelay)
		}
	}

	// Early attempts follow base * 2^attempt
	if d := backoffDelay(cfg, 0); d != cfg.BaseDelay {
		t.Errorf("Attempt 0: expected %v, got %v", cfg.BaseDelay, d)
	}
	if d := backoffDelay(cfg, 2); d != 400*time.Millisecond {
		t.Errorf("Attempt 2: expected 400ms, got %v", d)
	}

	t.Log("✓ Backoff grows exponentially and caps at max")
}

// TestIsRetryable verifies error classification
func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"circuit open", ErrCircuitOpen, false},
		{"context canceled", context.Canceled, false},
		{"wrapped canceled", fmt.Errorf("load: %w", context.Canceled), false},
		{"dynamo validation", errors.New("ValidationException: bad request"), false},
		{"dynamo missing table", errors.New("ResourceNotFoundException: table not found"), false},
		{"grpc invalid argument", errors.New("rpc error: invalid argument"), false},
		{"http 404", errors.New("unexpected status code 404"), false},
		{"http 429 throttle", errors.New("unexpected status code 429"), true},
		{"http 500", errors.New("unexpected status code 500"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
