package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/catalog"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/notification"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/aws"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/cache"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/config"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

func main() {
	// Create root context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	log.Println("Loading configuration...")
	cfg := config.MustLoad(os.Getenv("CONFIG_FILE"))

	// Setup observability (foundational - must be first)
	log.Println("Setting up observability...")
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})

	metrics, err := observability.NewMetrics(cfg.Service.Name, cfg.Observability.Metrics.Enabled)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	tracerProvider, err := observability.NewTracerProvider(ctx, cfg.Service.Name, cfg.Observability.Tracing.Endpoint, cfg.Service.Environment, cfg.Observability.Tracing.Enabled)
	if err != nil {
		log.Fatalf("Failed to create tracer: %v", err)
	}
	tracer := observability.NewTracer(cfg.Service.Name)

	logger.LogInfo(ctx, "observability setup complete")

	// Setup infrastructure
	logger.LogInfo(ctx, "setting up infrastructure...")

	// Cache store
	store := newStore(ctx, cfg, logger, metrics)

	// AWS configuration
	awsCfg, err := aws.LoadAWSConfig(ctx, aws.Config{
		Region:   cfg.AWS.Region,
		Endpoint: cfg.AWS.Endpoint,
	})
	if err != nil {
		logger.LogError(ctx, "failed to load AWS config", err)
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	// Catalog source
	source, err := catalog.DefaultRegistry.Create(cfg.Catalog.Source, catalog.SourceConfig{
		Logger:               logger,
		Metrics:              metrics,
		AWSConfig:            awsCfg,
		TableCSICodes:        cfg.Catalog.DynamoDB.CodesTable,
		TableBasePrices:      cfg.Catalog.DynamoDB.BasePricesTable,
		TableLocationFactors: cfg.Catalog.DynamoDB.LocationFactorsTable,
		TableEscalations:     cfg.Catalog.DynamoDB.EscalationTable,
		BaseURL:              cfg.Catalog.HTTP.BaseURL,
		APIKey:               cfg.Catalog.HTTP.APIKey,
		Timeout:              cfg.Catalog.HTTP.Timeout,
	})
	if err != nil {
		logger.LogError(ctx, "failed to create catalog source", err)
		log.Fatalf("Failed to create catalog source: %v", err)
	}

	// Refresh notifications go to SNS when a topic is configured, otherwise
	// to the log.
	var notifier pricing.RefreshNotifier
	if cfg.AWS.SNSTopicARN != "" {
		snsClient := aws.NewSNSClient(aws.SNSClientConfig{
			AWSConfig: awsCfg,
			Logger:    logger,
			Metrics:   metrics,
		})
		publisher, err := notification.NewPublisher(notification.PublisherConfig{
			SNSClient: snsClient,
			TopicARN:  cfg.AWS.SNSTopicARN,
			Logger:    logger,
			Tracer:    tracer,
		})
		if err != nil {
			logger.LogError(ctx, "failed to create publisher", err)
			log.Fatalf("Failed to create publisher: %v", err)
		}
		notifier = publisher
	} else {
		notifier = notification.NewNoOpPublisher(logger)
	}

	// Create pricing engine
	logger.LogInfo(ctx, "creating pricing engine...", "source", source.Name(), "cache_backend", cfg.Cache.Backend)
	engine, err := pricing.NewEngine(pricing.EngineConfig{
		Source:       source,
		Store:        store,
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracer,
		Notifier:     notifier,
		BatchWorkers: cfg.Engine.BatchWorkers,
	})
	if err != nil {
		logger.LogError(ctx, "failed to create pricing engine", err)
		log.Fatalf("Failed to create pricing engine: %v", err)
	}

	if err := engine.Initialize(ctx); err != nil {
		logger.LogError(ctx, "failed to initialize pricing engine", err)
		log.Fatalf("Failed to initialize pricing engine: %v", err)
	}

	// Warm the cache so the first lookups hit
	if cfg.Cache.Warmup.Enabled {
		warmer := cache.NewWarmer(logger, cache.WarmupConfig{
			Timeout:         cfg.Cache.Warmup.Timeout,
			ContinueOnError: true,
			Parallel:        cfg.Cache.Warmup.Parallel,
		})
		warmer.RegisterProvider(cache.ProviderFunc{
			ProviderName: "pricing-catalog",
			Fn:           engine.WarmCache,
		})
		warmer.Warmup(ctx)
	}

	// Start HTTP server
	logger.LogInfo(ctx, "starting HTTP server...")
	srv := newServer(cfg.HTTP, engine, source, metrics, logger)
	go func() {
		logger.LogInfo(ctx, "HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(ctx, "HTTP server error", err)
			cancel()
		}
	}()

	// Periodic catalog refresh
	if cfg.Refresh.Enabled {
		go runRefreshLoop(ctx, engine, cfg.Refresh, logger)
	}

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigCh:
		logger.LogInfo(ctx, "shutdown signal received, gracefully stopping...")
	case <-ctx.Done():
		logger.LogInfo(ctx, "server stopped, shutting down...")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(shutdownCtx, "HTTP server shutdown error", err)
	}
	cancel()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.LogError(shutdownCtx, "engine shutdown error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.LogError(shutdownCtx, "tracer shutdown error", err)
	}
	logger.LogInfo(shutdownCtx, "application stopped")
}

// newStore builds the cache store for the configured backend. The memory
// backend serves development and single-instance deployments without Redis.
func newStore(ctx context.Context, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) cache.Store {
	policy := cachePolicy(cfg.Cache)

	if cfg.Cache.Backend == "memory" {
		logger.LogInfo(ctx, "using in-memory cache")
		return cache.NewMemoryStore(policy)
	}

	return cache.NewRedisStore(policy, cache.RedisConfig{
		Addr:               cfg.Redis.Address,
		Password:           cfg.Redis.Password,
		DB:                 cfg.Redis.DB,
		CommandTimeout:     cfg.Redis.CommandTimeout,
		MaintenanceTimeout: cfg.Redis.MaintenanceTimeout,
		LatencyThreshold:   cfg.Redis.LatencyThreshold,
		PingInterval:       cfg.Redis.PingInterval,
		DialTimeout:        cfg.Redis.DialTimeout,
		PoolSize:           cfg.Redis.PoolSize,
		MinIdleConns:       cfg.Redis.MinIdleConns,
	}, logger, metrics)
}

// cachePolicy overlays configured TTLs onto the default namespace policy.
func cachePolicy(c config.CacheConfig) cache.Config {
	policy := cache.DefaultConfig()
	if c.BasePriceTTL > 0 {
		policy.BasePrice.TTL = c.BasePriceTTL
	}
	if c.LocationFactorTTL > 0 {
		policy.LocationFactor.TTL = c.LocationFactorTTL
	}
	if c.EscalationTTL > 0 {
		policy.Escalation.TTL = c.EscalationTTL
	}
	if c.FullResultTTL > 0 {
		policy.FullResult.TTL = c.FullResultTTL
	}
	return policy
}

// runRefreshLoop refreshes the catalog on the configured interval. Each cycle
// is jittered so replicas sharing a source do not scan it in lockstep.
func runRefreshLoop(ctx context.Context, engine *pricing.Engine, cfg config.RefreshConfig, logger *observability.Logger) {
	logger.LogInfo(ctx, "catalog refresh loop started", "interval", cfg.Interval.String(), "jitter", cfg.Jitter)

	timer := time.NewTimer(jitteredInterval(cfg.Interval, cfg.Jitter))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.LogInfo(ctx, "catalog refresh loop stopped")
			return
		case <-timer.C:
			// A failed refresh keeps the previous snapshot serving; the
			// next cycle tries again.
			if err := engine.Refresh(ctx); err != nil {
				logger.LogError(ctx, "scheduled catalog refresh failed", err)
			}
			timer.Reset(jitteredInterval(cfg.Interval, cfg.Jitter))
		}
	}
}

// jitteredInterval randomizes the interval by ±jitter percent.
func jitteredInterval(interval time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return interval
	}
	jitterAmount := float64(interval) * jitter
	return interval - time.Duration(jitterAmount) + time.Duration(rand.Float64()*jitterAmount*2)
}
