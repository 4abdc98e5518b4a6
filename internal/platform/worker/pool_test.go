package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

// TestPoolExecutesAllJobs verifies every submitted job produces a result,
// including batches larger than the queue buffer
func TestPoolExecutesAllJobs(t *testing.T) {
	pool := NewPool(context.Background(), 4, 2)
	defer pool.Close()

	const n = 50
	jobs := make([]Job, n)
	for i := 0; i < n; i++ {
		i := i
		jobs[i] = Job{
			Index: i,
			ID:    fmt.Sprintf("job-%d", i),
			Execute: func(ctx context.Context) (interface{}, error) {
				return i * 2, nil
			},
		}
	}

	results := pool.SubmitAndWait(jobs)

	if len(results) != n {
		t.Fatalf("Expected %d results, got %d", n, len(results))
	}

	seen := make(map[int]bool)
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Job %d failed: %v", r.Index, r.Err)
		}
		if r.Value.(int) != r.Index*2 {
			t.Errorf("Job %d: expected %d, got %v", r.Index, r.Index*2, r.Value)
		}
		if seen[r.Index] {
			t.Errorf("Duplicate result for index %d", r.Index)
		}
		seen[r.Index] = true
	}

	t.Log("✓ All jobs executed exactly once")
}

// TestPoolIndexReassembly verifies results can be restored to submission order
func TestPoolIndexReassembly(t *testing.T) {
	pool := NewPool(context.Background(), 8, 16)
	defer pool.Close()

	const n = 20
	jobs := make([]Job, n)
	for i := 0; i < n; i++ {
		i := i
		jobs[i] = Job{
			Index: i,
			Execute: func(ctx context.Context) (interface{}, error) {
				// Vary execution time so completion order differs from
				// submission order
				time.Sleep(time.Duration(n-i) * time.Millisecond)
				return fmt.Sprintf("value-%d", i), nil
			},
		}
	}

	results := pool.SubmitAndWait(jobs)
	if len(results) != n {
		t.Fatalf("Expected %d results, got %d", n, len(results))
	}

	sort.Slice(results, func(a, b int) bool { return results[a].Index < results[b].Index })
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("Position %d holds index %d after sort", i, r.Index)
		}
		if r.Value.(string) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Index %d: got %v", i, r.Value)
		}
	}

	t.Log("✓ Results reassemble into submission order by Index")
}

// TestPoolPartialFailures verifies errors are carried per job without
// affecting other jobs
func TestPoolPartialFailures(t *testing.T) {
	pool := NewPool(context.Background(), 4, 8)
	defer pool.Close()

	failErr := errors.New("boom")
	jobs := make([]Job, 10)
	for i := 0; i < 10; i++ {
		i := i
		jobs[i] = Job{
			Index: i,
			Execute: func(ctx context.Context) (interface{}, error) {
				if i%3 == 0 {
					return nil, failErr
				}
				return i, nil
			},
		}
	}

	results := pool.SubmitAndWait(jobs)
	if len(results) != 10 {
		t.Fatalf("Expected 10 results, got %d", len(results))
	}

	var failures, successes int
	for _, r := range results {
		if r.Index%3 == 0 {
			if !errors.Is(r.Err, failErr) {
				t.Errorf("Index %d: expected failure, got %v", r.Index, r.Err)
			}
			failures++
		} else {
			if r.Err != nil {
				t.Errorf("Index %d: unexpected error %v", r.Index, r.Err)
			}
			successes++
		}
	}

	if failures != 4 || successes != 6 {
		t.Errorf("Expected 4 failures and 6 successes, got %d/%d", failures, successes)
	}

	t.Log("✓ Partial failures are isolated per job")
}

// TestPoolConcurrency verifies jobs actually run in parallel up to the
// worker count
func TestPoolConcurrency(t *testing.T) {
	const workers = 4
	pool := NewPool(context.Background(), workers, workers)
	defer pool.Close()

	var current, peak int64
	jobs := make([]Job, 12)
	for i := range jobs {
		jobs[i] = Job{
			Index: i,
			Execute: func(ctx context.Context) (interface{}, error) {
				c := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if c <= p || atomic.CompareAndSwapInt64(&peak, p, c) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return nil, nil
			},
		}
	}

	pool.SubmitAndWait(jobs)

	if p := atomic.LoadInt64(&peak); p < 2 {
		t.Errorf("Expected parallel execution, peak concurrency was %d", p)
	}
	if p := atomic.LoadInt64(&peak); p > workers {
		t.Errorf("Peak concurrency %d exceeds worker count %d", p, workers)
	}

	t.Log("✓ Jobs run concurrently, bounded by worker count")
}

// TestSubmitAfterClose verifies submissions are rejected once the pool is closed
func TestSubmitAfterClose(t *testing.T) {
	pool := NewPool(context.Background(), 2, 4)
	pool.Close()

	err := pool.Submit(Job{
		Execute: func(ctx context.Context) (interface{}, error) { return nil, nil },
	})
	if err == nil {
		t.Fatal("Expected error submitting to closed pool")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	t.Log("✓ Submit after Close is rejected")
}

// TestPoolContextCancellation verifies the pool unwinds when the parent
// context is cancelled
func TestPoolContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 2, 2)

	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = Job{
			Index: i,
			Execute: func(ctx context.Context) (interface{}, error) {
				select {
				case <-time.After(50 * time.Millisecond):
					return nil, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		}
	}

	done := make(chan []Result, 1)
	go func() {
		done <- pool.SubmitAndWait(jobs)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case results := <-done:
		if len(results) >= len(jobs) {
			t.Errorf("Expected partial results after cancellation, got all %d", len(results))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SubmitAndWait did not return after cancellation")
	}

	pool.Close()
	t.Log("✓ Cancellation unwinds the pool with partial results")
}

// TestCloseIsIdempotent verifies Close can be called multiple times
func TestCloseIsIdempotent(t *testing.T) {
	pool := NewPool(context.Background(), 2, 2)
	pool.Close()
	pool.Close() // Must not panic

	// Results channel is closed after Close
	select {
	case _, ok := <-pool.Results():
		if ok {
			t.Error("Expected closed results channel")
		}
	case <-time.After(time.Second):
		t.Error("Results channel not closed after Close")
	}

	t.Log("✓ Close is idempotent and closes the results channel")
}

// TestPoolAccessors verifies Workers and QueueLen
func TestPoolAccessors(t *testing.T) {
	pool := NewPool(context.Background(), 3, 10)
	defer pool.Close()

	if pool.Workers() != 3 {
		t.Errorf("Expected 3 workers, got %d", pool.Workers())
	}
	if pool.QueueLen() != 0 {
		t.Errorf("Expected empty queue, got %d", pool.QueueLen())
	}

	// Defaults clamp invalid values
	p2 := NewPool(context.Background(), 0, -5)
	defer p2.Close()
	if p2.Workers() != 1 {
		t.Errorf("Expected worker count clamped to 1, got %d", p2.Workers())
	}

	t.Log("✓ Accessors and clamping behave correctly")
}
