package catalog

import (
	"sync"
	"time"
)

// SourceHealth represents the current health state of a catalog source.
// It is used by the health check endpoints to determine overall system health.
type SourceHealth struct {
	// Source is the name of the source (e.g., "dynamodb", "http")
	Source string `json:"source"`

	// LastSuccess is the timestamp of the last successful load
	LastSuccess time.Time `json:"last_success"`

	// LastFailure is the timestamp of the last failed load
	LastFailure time.Time `json:"last_failure"`

	// LastError contains the error message from the last failure, if any
	LastError string `json:"last_error,omitempty"`

	// LastDuration is the latency of the last load call
	LastDuration time.Duration `json:"last_duration"`

	// ConsecutiveFailures is the count of consecutive failed loads
	ConsecutiveFailures int `json:"consecutive_failures"`

	// CircuitState is the current state of the circuit breaker, when the
	// source carries one
	CircuitState string `json:"circuit_state,omitempty"`
}

// HealthReporter is implemented by sources that track load health.
type HealthReporter interface {
	// Health returns the current health status of the source.
	// This method should be thread-safe and non-blocking.
	Health() SourceHealth
}

// healthTracker records load outcomes for a source. Embedded by sources that
// talk to external backends.
type healthTracker struct {
	mu     sync.RWMutex
	health SourceHealth
}

func newHealthTracker(source string) *healthTracker {
	return &healthTracker{health: SourceHealth{Source: source}}
}

func (t *healthTracker) record(err error, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.health.LastDuration = duration
	if err == nil {
		t.health.LastSuccess = time.Now()
		t.health.LastError = ""
		t.health.ConsecutiveFailures = 0
		return
	}

	t.health.LastFailure = time.Now()
	t.health.LastError = err.Error()
	t.health.ConsecutiveFailures++
}

func (t *healthTracker) snapshot() SourceHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.health
}
