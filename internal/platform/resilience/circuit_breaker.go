// Package resilience wraps calls to external dependencies with retry and
// circuit breaking.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned for calls rejected by an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker's position in the closed/open/half-open cycle.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls fail fast until the cooldown ends
	StateHalfOpen              // one probe call at a time tests recovery
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast once a dependency produces a streak of errors,
// sparing it a pile-up of doomed calls. After the cooldown it admits a
// single probe at a time; a streak of probe successes closes it again, one
// probe failure reopens it.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	onStateChange    func(from, to State)

	mu            sync.RWMutex
	state         State
	failureStreak int
	successStreak int
	probes        int
	openedAt      time.Time
}

// CircuitBreakerConfig holds breaker tuning. Zero values fall back to 5
// failures to open, 2 probe successes to close and a 15 second cooldown.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	// OnStateChange runs on every transition, under the breaker's lock.
	// It must not call back into the breaker.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &CircuitBreaker{
		name:             cfg.Name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		cooldown:         cfg.Timeout,
		onStateChange:    cfg.OnStateChange,
	}
}

// Execute runs fn if the breaker admits the call and feeds the outcome back
// into the state machine. Rejected calls fail with ErrCircuitOpen without
// running fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.allow()
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.record(probe, err)
	return err
}

// ExecuteWithResult is Execute for calls that produce a value. It is a free
// function because methods cannot introduce type parameters.
func ExecuteWithResult[T any](cb *CircuitBreaker, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	probe, err := cb.allow()
	if err != nil {
		return zero, err
	}

	res, err := fn(ctx)
	cb.record(probe, err)
	return res, err
}

// allow decides whether a call may proceed. The probe flag marks calls
// admitted in half-open state; record needs it to release the slot.
func (cb *CircuitBreaker) allow() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.cooldown {
			return false, ErrCircuitOpen
		}
		cb.transitionTo(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		// One probe at a time. Concurrent callers keep failing fast
		// until the verdict is in.
		if cb.probes > 0 {
			return false, ErrCircuitOpen
		}
		cb.probes = 1
		return true, nil
	}

	return false, nil
}

// record feeds a call outcome back into the state machine.
func (cb *CircuitBreaker) record(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.probes > 0 {
		cb.probes--
	}

	// Caller-side cancellation says nothing about the dependency.
	// Deadline overruns do count: an operation that blows its deadline
	// is a failing dependency.
	if errors.Is(err, context.Canceled) {
		return
	}

	if err != nil {
		cb.failureStreak++
		cb.successStreak = 0

		switch cb.state {
		case StateClosed:
			if cb.failureStreak >= cb.failureThreshold {
				cb.transitionTo(StateOpen)
			}
		case StateHalfOpen:
			cb.transitionTo(StateOpen)
		}
		return
	}

	cb.successStreak++

	switch cb.state {
	case StateClosed:
		cb.failureStreak = 0
	case StateHalfOpen:
		if cb.successStreak >= cb.successThreshold {
			cb.transitionTo(StateClosed)
		}
	}
}

// transitionTo switches states and applies entry side effects. Callers hold
// the lock.
func (cb *CircuitBreaker) transitionTo(next State) {
	if next == cb.state {
		return
	}

	prev := cb.state
	cb.state = next
	cb.probes = 0
	cb.successStreak = 0

	switch next {
	case StateOpen:
		cb.openedAt = time.Now()
	case StateClosed:
		cb.failureStreak = 0
	}

	if cb.onStateChange != nil {
		cb.onStateChange(prev, next)
	}
}

// State returns the current state. An open breaker reports open until a
// call actually probes it, even after the cooldown has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// StateInt returns the current state as a gauge value for metrics.
func (cb *CircuitBreaker) StateInt() int64 {
	return int64(cb.State())
}

// Name returns the breaker's configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// ForceOpen trips the breaker regardless of recent outcomes and restarts
// the cooldown.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transitionTo(StateOpen)
	cb.openedAt = time.Now()
}
