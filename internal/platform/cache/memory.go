package cache

import (
	"context"
	"path"
	"sync"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore is an in-process Store backed by one TTL cache per namespace.
// It serves development and tests, and deployments that run without Redis.
// It is always Connected.
type MemoryStore struct {
	cfg       Config
	caches    map[Namespace]*ttlcache.Cache[string, []byte]
	closeOnce sync.Once
}

// NewMemoryStore creates an in-memory store with the given namespace policy.
func NewMemoryStore(cfg Config) *MemoryStore {
	caches := make(map[Namespace]*ttlcache.Cache[string, []byte], 4)
	for _, ns := range Namespaces() {
		c := ttlcache.New[string, []byte](
			ttlcache.WithTTL[string, []byte](cfg.Namespace(ns).TTL),
			// Entries expire a fixed TTL after write. Reads must not
			// extend the lifetime of pricing data.
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		)
		go c.Start()
		caches[ns] = c
	}

	return &MemoryStore{cfg: cfg, caches: caches}
}

// Get returns the cached value or a miss.
func (s *MemoryStore) Get(ctx context.Context, ns Namespace, key string) ([]byte, bool) {
	c, ok := s.caches[ns]
	if !ok {
		return nil, false
	}
	item := c.Get(s.cfg.Namespace(ns).KeyPrefix + key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Put stores the value under the namespace TTL.
func (s *MemoryStore) Put(ctx context.Context, ns Namespace, key string, value []byte) {
	c, ok := s.caches[ns]
	if !ok {
		return
	}
	c.Set(s.cfg.Namespace(ns).KeyPrefix+key, value, ttlcache.DefaultTTL)
}

// BatchGet returns the subset of keys that were found.
func (s *MemoryStore) BatchGet(ctx context.Context, ns Namespace, keys []string) map[string][]byte {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.Get(ctx, ns, k); ok {
			out[k] = v
		}
	}
	return out
}

// BatchPut stores all entries.
func (s *MemoryStore) BatchPut(ctx context.Context, ns Namespace, entries map[string][]byte) {
	for k, v := range entries {
		s.Put(ctx, ns, k, v)
	}
}

// Invalidate removes all keys matching the glob pattern across every
// namespace and returns how many were removed.
func (s *MemoryStore) Invalidate(ctx context.Context, pattern string) int {
	removed := 0
	for _, c := range s.caches {
		for _, k := range c.Keys() {
			if ok, err := path.Match(pattern, k); err == nil && ok {
				c.Delete(k)
				removed++
			}
		}
	}
	return removed
}

// HealthCheck reports the store as healthy; there is no backend to probe.
func (s *MemoryStore) HealthCheck(ctx context.Context) Health {
	return Health{State: Connected, Latency: 0, Healthy: true}
}

// State returns Connected.
func (s *MemoryStore) State() ConnState {
	return Connected
}

// Close stops the expiration loops.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		for _, c := range s.caches {
			c.Stop()
		}
	})
	return nil
}

// Len returns the total number of live entries across namespaces.
func (s *MemoryStore) Len() int {
	n := 0
	for _, c := range s.caches {
		n += c.Len()
	}
	return n
}
