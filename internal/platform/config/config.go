package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pricing service
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Refresh       RefreshConfig       `mapstructure:"refresh"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	HTTP          HTTPConfig          `mapstructure:"http"`
}

// ServiceConfig identifies the running service
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address            string        `mapstructure:"address"`
	Password           string        `mapstructure:"password"`
	DB                 int           `mapstructure:"db"`
	CommandTimeout     time.Duration `mapstructure:"command_timeout"`
	MaintenanceTimeout time.Duration `mapstructure:"maintenance_timeout"`
	LatencyThreshold   time.Duration `mapstructure:"latency_threshold"`
	PingInterval       time.Duration `mapstructure:"ping_interval"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	PoolSize           int           `mapstructure:"pool_size"`
	MinIdleConns       int           `mapstructure:"min_idle_conns"`
}

// CacheConfig holds cache backend selection and per-namespace TTLs
type CacheConfig struct {
	// Backend selects the cache implementation: "redis" or "memory"
	Backend string `mapstructure:"backend"`

	BasePriceTTL      time.Duration `mapstructure:"base_price_ttl"`
	LocationFactorTTL time.Duration `mapstructure:"location_factor_ttl"`
	EscalationTTL     time.Duration `mapstructure:"escalation_ttl"`
	FullResultTTL     time.Duration `mapstructure:"full_result_ttl"`

	Warmup WarmupConfig `mapstructure:"warmup"`
}

// WarmupConfig holds cache warming settings
type WarmupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Parallel bool          `mapstructure:"parallel"`
}

// CatalogConfig holds catalog source configuration
type CatalogConfig struct {
	// Source selects where pricing data is loaded from:
	// "static", "dynamodb" or "http"
	Source string `mapstructure:"source"`

	DynamoDB DynamoDBConfig    `mapstructure:"dynamodb"`
	HTTP     HTTPCatalogConfig `mapstructure:"http"`
}

// DynamoDBConfig holds DynamoDB catalog source settings
type DynamoDBConfig struct {
	CodesTable           string `mapstructure:"codes_table"`
	BasePricesTable      string `mapstructure:"base_prices_table"`
	LocationFactorsTable string `mapstructure:"location_factors_table"`
	EscalationTable      string `mapstructure:"escalation_table"`
}

// HTTPCatalogConfig holds HTTP catalog source settings
type HTTPCatalogConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EngineConfig holds lookup engine settings
type EngineConfig struct {
	// BatchWorkers bounds the concurrency of batch lookups
	BatchWorkers int `mapstructure:"batch_workers"`
}

// RefreshConfig holds the periodic catalog refresh settings
type RefreshConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Jitter   float64       `mapstructure:"jitter"`
}

// AWSConfig holds AWS service configuration
type AWSConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Region      string `mapstructure:"region"`
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Sampler  string `mapstructure:"sampler"` // always, never, ratio
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not fatal if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Service defaults
	v.SetDefault("service.name", "pricing-engine")
	v.SetDefault("service.environment", "development")

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.command_timeout", "50ms")
	v.SetDefault("redis.maintenance_timeout", "5s")
	v.SetDefault("redis.latency_threshold", "50ms")
	v.SetDefault("redis.ping_interval", "15s")
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 5)

	// Cache defaults: base prices turn over daily, location factors weekly,
	// escalation indices quarterly, computed results hourly
	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.base_price_ttl", "24h")
	v.SetDefault("cache.location_factor_ttl", "168h")
	v.SetDefault("cache.escalation_ttl", "720h")
	v.SetDefault("cache.full_result_ttl", "1h")
	v.SetDefault("cache.warmup.enabled", true)
	v.SetDefault("cache.warmup.timeout", "30s")
	v.SetDefault("cache.warmup.parallel", true)

	// Catalog defaults
	v.SetDefault("catalog.source", "static")
	v.SetDefault("catalog.dynamodb.codes_table", "pricing-csi-codes")
	v.SetDefault("catalog.dynamodb.base_prices_table", "pricing-base-prices")
	v.SetDefault("catalog.dynamodb.location_factors_table", "pricing-location-factors")
	v.SetDefault("catalog.dynamodb.escalation_table", "pricing-escalations")
	v.SetDefault("catalog.http.timeout", "10s")

	// Engine defaults
	v.SetDefault("engine.batch_workers", 8)

	// Refresh defaults
	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.interval", "6h")
	v.SetDefault("refresh.jitter", 0.2)

	// AWS defaults
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.sns_topic_arn", "")

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 9091)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sampler", "always")

	// HTTP defaults
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.shutdown_timeout", "10s")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Cache validation
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}

	if c.Cache.BasePriceTTL <= 0 || c.Cache.LocationFactorTTL <= 0 ||
		c.Cache.EscalationTTL <= 0 || c.Cache.FullResultTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	if c.Cache.Backend == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}

	// Catalog validation
	switch c.Catalog.Source {
	case "static":
	case "dynamodb":
		if c.Catalog.DynamoDB.CodesTable == "" ||
			c.Catalog.DynamoDB.BasePricesTable == "" ||
			c.Catalog.DynamoDB.LocationFactorsTable == "" ||
			c.Catalog.DynamoDB.EscalationTable == "" {
			return fmt.Errorf("dynamodb catalog source requires all table names")
		}
	case "http":
		if c.Catalog.HTTP.BaseURL == "" {
			return fmt.Errorf("http catalog source requires a base URL")
		}
	default:
		return fmt.Errorf("invalid catalog source: %s", c.Catalog.Source)
	}

	// Engine validation
	if c.Engine.BatchWorkers <= 0 {
		return fmt.Errorf("batch workers must be positive")
	}

	// Refresh validation
	if c.Refresh.Enabled && c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	if c.Refresh.Jitter < 0 || c.Refresh.Jitter > 1 {
		return fmt.Errorf("refresh jitter must be between 0 and 1")
	}

	// AWS validation: the region is only needed when something uses AWS
	if (c.Catalog.Source == "dynamodb" || c.AWS.SNSTopicARN != "") && c.AWS.Region == "" {
		return fmt.Errorf("AWS region is required")
	}

	// Observability validation
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Observability.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Observability.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Observability.Logging.Format)
	}

	return nil
}
