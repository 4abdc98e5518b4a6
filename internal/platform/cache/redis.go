package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/resilience"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// CommandTimeout bounds every read/write command. An answer that does
	// not arrive within this budget counts as a miss; the lookup path never
	// waits on a slow cache.
	CommandTimeout time.Duration

	// MaintenanceTimeout bounds SCAN-based invalidation, which walks the
	// keyspace and is not on the lookup path.
	MaintenanceTimeout time.Duration

	// LatencyThreshold is the health probe latency above which the cache
	// reports unhealthy.
	LatencyThreshold time.Duration

	// PingInterval is how often the background monitor probes the backend
	// to drive reconnection.
	PingInterval time.Duration

	DialTimeout  time.Duration
	PoolSize     int
	MinIdleConns int

	// Breaker settings. The breaker is what turns repeated failures into a
	// Disconnected state with instant misses instead of per-call timeouts.
	FailureThreshold int
	SuccessThreshold int
	BreakerTimeout   time.Duration
}

// DefaultRedisConfig returns Redis settings tuned for a read-heavy lookup
// path: tens-of-milliseconds command budget, quick reconnect probing.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:               "localhost:6379",
		CommandTimeout:     50 * time.Millisecond,
		MaintenanceTimeout: 5 * time.Second,
		LatencyThreshold:   50 * time.Millisecond,
		PingInterval:       15 * time.Second,
		DialTimeout:        5 * time.Second,
		PoolSize:           10,
		MinIdleConns:       5,
		FailureThreshold:   3,
		SuccessThreshold:   1,
		BreakerTimeout:     10 * time.Second,
	}
}

func (c RedisConfig) withDefaults() RedisConfig {
	def := DefaultRedisConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.MaintenanceTimeout <= 0 {
		c.MaintenanceTimeout = def.MaintenanceTimeout
	}
	if c.LatencyThreshold <= 0 {
		c.LatencyThreshold = def.LatencyThreshold
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.PoolSize <= 0 {
		c.PoolSize = def.PoolSize
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = def.MinIdleConns
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = def.BreakerTimeout
	}
	return c
}

// RedisStore is the Redis-backed Store. A circuit breaker wraps every
// command: after a few consecutive failures the store flips to Disconnected
// and answers misses instantly instead of eating the command timeout on
// every lookup. A background monitor pings the backend to drive recovery.
type RedisStore struct {
	client  *redis.Client
	cfg     Config
	rcfg    RedisConfig
	breaker *resilience.CircuitBreaker
	logger  *observability.Logger
	metrics *observability.Metrics

	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewRedisStore creates a Redis-backed store. The constructor never fails on
// an unreachable backend: the store starts Disconnected and the monitor
// reconnects when Redis comes back.
func NewRedisStore(cfg Config, rcfg RedisConfig, logger *observability.Logger, metrics *observability.Metrics) *RedisStore {
	rcfg = rcfg.withDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         rcfg.Addr,
		Password:     rcfg.Password,
		DB:           rcfg.DB,
		DialTimeout:  rcfg.DialTimeout,
		ReadTimeout:  rcfg.CommandTimeout,
		WriteTimeout: rcfg.CommandTimeout,
		PoolSize:     rcfg.PoolSize,
		MinIdleConns: rcfg.MinIdleConns,
	})

	s := &RedisStore{
		client:  client,
		cfg:     cfg,
		rcfg:    rcfg,
		logger:  logger.WithComponent("cache"),
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}

	s.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "redis-cache",
		FailureThreshold: rcfg.FailureThreshold,
		SuccessThreshold: rcfg.SuccessThreshold,
		Timeout:          rcfg.BreakerTimeout,
		OnStateChange:    s.onBreakerStateChange,
	})

	// Probe once at startup so the state is honest from the first lookup.
	ctx, cancel := context.WithTimeout(context.Background(), rcfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.LogWarn(ctx, "redis unreachable at startup, running disconnected", "addr", rcfg.Addr, "error", err)
		s.breaker.ForceOpen()
	} else {
		s.logger.LogInfo(ctx, "redis connected", "addr", rcfg.Addr)
		s.metrics.SetCacheConnected(ctx, true)
	}

	go s.monitor()

	return s
}

func (s *RedisStore) onBreakerStateChange(from, to resilience.State) {
	ctx := context.Background()
	connected := to != resilience.StateOpen

	if to == resilience.StateOpen {
		s.logger.LogWarn(ctx, "cache disconnected", "from", from.String(), "to", to.String())
	} else if from == resilience.StateOpen {
		s.logger.LogInfo(ctx, "cache reconnecting", "from", from.String(), "to", to.String())
	}

	s.metrics.SetCacheConnected(ctx, connected)
	s.metrics.SetCircuitBreakerState(ctx, s.breaker.Name(), int64(to))
}

// monitor periodically pings the backend. While the circuit is open the
// lookup path sends no commands at all, so these pings are what move the
// breaker through half-open back to closed once Redis recovers.
func (s *RedisStore) monitor() {
	ticker := time.NewTicker(s.rcfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.rcfg.CommandTimeout)
			_ = s.breaker.Execute(ctx, func(ctx context.Context) error {
				return s.client.Ping(ctx).Err()
			})
			cancel()
		}
	}
}

// opContext bounds a single command.
func (s *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.rcfg.CommandTimeout)
}

// Get returns the cached value or a miss. Backend errors and timeouts read
// as misses.
func (s *RedisStore) Get(ctx context.Context, ns Namespace, key string) ([]byte, bool) {
	full := s.cfg.Namespace(ns).KeyPrefix + key

	start := time.Now()
	var value []byte
	var found bool

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()

		b, err := s.client.Get(opCtx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			// A genuine miss is a healthy answer.
			return nil
		}
		if err != nil {
			return err
		}
		value = b
		found = true
		return nil
	})
	s.metrics.RecordCacheLatency(ctx, time.Since(start))

	if err != nil {
		s.missOnError(ctx, "get", ns, err)
		return nil, false
	}

	if found {
		s.metrics.RecordCacheHit(ctx, string(ns))
	} else {
		s.metrics.RecordCacheMiss(ctx, string(ns))
	}
	return value, found
}

// Put stores the value under the namespace TTL. Failures are dropped.
func (s *RedisStore) Put(ctx context.Context, ns Namespace, key string, value []byte) {
	nscfg := s.cfg.Namespace(ns)
	full := nscfg.KeyPrefix + key

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()
		return s.client.Set(opCtx, full, value, nscfg.TTL).Err()
	})
	if err != nil {
		s.dropOnError(ctx, "put", ns, err)
	}
}

// BatchGet fetches the keys in one pipelined round trip and returns the
// subset that was found. On backend failure the whole batch reads as misses.
func (s *RedisStore) BatchGet(ctx context.Context, ns Namespace, keys []string) map[string][]byte {
	if len(keys) == 0 {
		return map[string][]byte{}
	}
	prefix := s.cfg.Namespace(ns).KeyPrefix

	start := time.Now()
	out := make(map[string][]byte, len(keys))

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()

		pipe := s.client.Pipeline()
		cmds := make([]*redis.StringCmd, len(keys))
		for i, k := range keys {
			cmds[i] = pipe.Get(opCtx, prefix+k)
		}
		// Exec reports redis.Nil when any key misses; misses are fine.
		if _, err := pipe.Exec(opCtx); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		for i, cmd := range cmds {
			b, err := cmd.Bytes()
			if err == nil {
				out[keys[i]] = b
			}
		}
		return nil
	})
	s.metrics.RecordCacheLatency(ctx, time.Since(start))

	if err != nil {
		for range keys {
			s.metrics.RecordCacheMiss(ctx, string(ns))
		}
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			s.logger.LogDebug(ctx, "cache read failed, treating as miss", "op", "batch_get", "namespace", string(ns), "error", err)
		}
		return map[string][]byte{}
	}

	for _, k := range keys {
		if _, ok := out[k]; ok {
			s.metrics.RecordCacheHit(ctx, string(ns))
		} else {
			s.metrics.RecordCacheMiss(ctx, string(ns))
		}
	}
	return out
}

// BatchPut stores the entries in one pipelined round trip. Failures are
// dropped.
func (s *RedisStore) BatchPut(ctx context.Context, ns Namespace, entries map[string][]byte) {
	if len(entries) == 0 {
		return
	}
	nscfg := s.cfg.Namespace(ns)

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()

		pipe := s.client.Pipeline()
		for k, v := range entries {
			pipe.Set(opCtx, nscfg.KeyPrefix+k, v, nscfg.TTL)
		}
		_, err := pipe.Exec(opCtx)
		return err
	})
	if err != nil {
		s.dropOnError(ctx, "batch_put", ns, err)
	}
}

// Invalidate removes all keys matching the glob pattern via SCAN and
// chunked DEL. Returns the number of keys removed; 0 when disconnected.
func (s *RedisStore) Invalidate(ctx context.Context, pattern string) int {
	removed := 0

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, s.rcfg.MaintenanceTimeout)
		defer cancel()

		var keys []string
		iter := s.client.Scan(opCtx, 0, pattern, 200).Iterator()
		for iter.Next(opCtx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}

		for len(keys) > 0 {
			chunk := keys
			if len(chunk) > 500 {
				chunk = chunk[:500]
			}
			n, err := s.client.Del(opCtx, chunk...).Result()
			if err != nil {
				return err
			}
			removed += int(n)
			keys = keys[len(chunk):]
		}
		return nil
	})
	if err != nil {
		s.logger.LogWarn(ctx, "cache invalidation skipped", "pattern", pattern, "error", err)
		return removed
	}

	s.metrics.RecordInvalidation(ctx, pattern, removed)
	s.logger.LogDebug(ctx, "cache invalidated", "pattern", pattern, "removed", removed)
	return removed
}

// HealthCheck probes the backend and reports state and latency. An open
// circuit reports Disconnected without sending a command.
func (s *RedisStore) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		opCtx, cancel := s.opContext(ctx)
		defer cancel()
		return s.client.Ping(opCtx).Err()
	})
	latency := time.Since(start)

	if err != nil {
		return Health{State: Disconnected, Latency: latency, Healthy: false}
	}
	return Health{
		State:   Connected,
		Latency: latency,
		Healthy: latency <= s.rcfg.LatencyThreshold,
	}
}

// State derives the connection state from the circuit: open means
// Disconnected, closed or probing means Connected.
func (s *RedisStore) State() ConnState {
	if s.breaker.State() == resilience.StateOpen {
		return Disconnected
	}
	return Connected
}

// Close stops the monitor and releases the client.
func (s *RedisStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		err = s.client.Close()
	})
	return err
}

func (s *RedisStore) missOnError(ctx context.Context, op string, ns Namespace, err error) {
	s.metrics.RecordCacheMiss(ctx, string(ns))
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		s.logger.LogDebug(ctx, "cache read failed, treating as miss", "op", op, "namespace", string(ns), "error", err)
	}
}

func (s *RedisStore) dropOnError(ctx context.Context, op string, ns Namespace, err error) {
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		s.logger.LogDebug(ctx, "cache write dropped", "op", op, "namespace", string(ns), "error", err)
	}
}
