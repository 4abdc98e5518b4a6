// Package cache provides the pricing cache: namespaced, TTL-bound storage
// with batch operations, pattern invalidation and connection-state tracking.
//
// The cache is an accelerator, never an authority. Every operation is
// fail-open: a disconnected or slow backend turns reads into misses and
// silently drops writes, it never surfaces an error to callers.
package cache

import (
	"context"
	"time"
)

// Namespace identifies one of the fixed cache namespaces. Each namespace
// carries its own TTL and key prefix, reflecting how fast the underlying
// data goes stale.
type Namespace string

const (
	// NamespaceBasePrice holds per-code, per-location base unit prices.
	NamespaceBasePrice Namespace = "base"
	// NamespaceLocationFactor holds regional adjustment factors.
	NamespaceLocationFactor Namespace = "factor"
	// NamespaceEscalation holds quarterly escalation indices.
	NamespaceEscalation Namespace = "escalation"
	// NamespaceFullResult holds fully computed lookup results.
	NamespaceFullResult Namespace = "result"
)

// Namespaces lists all namespaces in a stable order.
func Namespaces() []Namespace {
	return []Namespace{NamespaceBasePrice, NamespaceLocationFactor, NamespaceEscalation, NamespaceFullResult}
}

// NamespaceConfig holds the TTL and key prefix for one namespace.
type NamespaceConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

// Config holds the per-namespace cache policy.
type Config struct {
	BasePrice      NamespaceConfig
	LocationFactor NamespaceConfig
	Escalation     NamespaceConfig
	FullResult     NamespaceConfig
}

// DefaultConfig returns the standard namespace policy. Base prices turn over
// daily, location factors weekly, escalation indices quarterly (cached for a
// month), and computed results hourly.
func DefaultConfig() Config {
	return Config{
		BasePrice:      NamespaceConfig{TTL: 24 * time.Hour, KeyPrefix: "pricing:base:"},
		LocationFactor: NamespaceConfig{TTL: 7 * 24 * time.Hour, KeyPrefix: "pricing:factor:"},
		Escalation:     NamespaceConfig{TTL: 30 * 24 * time.Hour, KeyPrefix: "pricing:escalation:"},
		FullResult:     NamespaceConfig{TTL: 1 * time.Hour, KeyPrefix: "pricing:result:"},
	}
}

// Namespace returns the policy for the given namespace.
func (c Config) Namespace(ns Namespace) NamespaceConfig {
	switch ns {
	case NamespaceBasePrice:
		return c.BasePrice
	case NamespaceLocationFactor:
		return c.LocationFactor
	case NamespaceEscalation:
		return c.Escalation
	case NamespaceFullResult:
		return c.FullResult
	default:
		return NamespaceConfig{}
	}
}

// ConnState represents the cache connection state.
type ConnState int

const (
	// Disconnected means the backend is unreachable; reads miss, writes drop.
	Disconnected ConnState = iota
	// Connected means the backend is serving requests.
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Health is the result of a cache health probe.
type Health struct {
	State   ConnState     `json:"state"`
	Latency time.Duration `json:"latency"`
	// Healthy is true when the backend is connected and answered the probe
	// within the configured latency threshold.
	Healthy bool `json:"healthy"`
}

// Store is the namespaced pricing cache. Implementations are safe for
// concurrent use and fail open: no operation ever returns an error to the
// read or write path.
type Store interface {
	// Get returns the value for key in the namespace, or found=false on a
	// miss. A disconnected or slow backend reads as a miss.
	Get(ctx context.Context, ns Namespace, key string) (value []byte, found bool)

	// Put stores the value under the namespace TTL. Writes to a
	// disconnected backend are dropped.
	Put(ctx context.Context, ns Namespace, key string, value []byte)

	// BatchGet fetches many keys in a single backend round trip and
	// returns the subset that was found.
	BatchGet(ctx context.Context, ns Namespace, keys []string) map[string][]byte

	// BatchPut stores many entries in a single backend round trip.
	BatchPut(ctx context.Context, ns Namespace, entries map[string][]byte)

	// Invalidate removes all keys matching the glob pattern (full keys,
	// prefix included) and returns how many were removed.
	Invalidate(ctx context.Context, pattern string) int

	// HealthCheck probes the backend and reports state and latency.
	HealthCheck(ctx context.Context) Health

	// State returns the current connection state without probing.
	State() ConnState

	// Close releases backend resources.
	Close() error
}

// PatternAll matches every key written under the default namespace prefixes.
// Refresh uses it to drop all cached pricing in one invalidation.
const PatternAll = "pricing:*"
