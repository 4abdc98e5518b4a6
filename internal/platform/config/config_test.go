package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Service.Name != "pricing-engine" {
		t.Errorf("service name: got %q", cfg.Service.Name)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("cache backend: got %q", cfg.Cache.Backend)
	}
	if cfg.Cache.BasePriceTTL != 24*time.Hour {
		t.Errorf("base price TTL: got %v", cfg.Cache.BasePriceTTL)
	}
	if cfg.Cache.LocationFactorTTL != 7*24*time.Hour {
		t.Errorf("location factor TTL: got %v", cfg.Cache.LocationFactorTTL)
	}
	if cfg.Cache.EscalationTTL != 30*24*time.Hour {
		t.Errorf("escalation TTL: got %v", cfg.Cache.EscalationTTL)
	}
	if cfg.Cache.FullResultTTL != time.Hour {
		t.Errorf("full result TTL: got %v", cfg.Cache.FullResultTTL)
	}
	if cfg.Redis.CommandTimeout != 50*time.Millisecond {
		t.Errorf("redis command timeout: got %v", cfg.Redis.CommandTimeout)
	}
	if cfg.Catalog.Source != "static" {
		t.Errorf("catalog source: got %q", cfg.Catalog.Source)
	}
	if cfg.Engine.BatchWorkers != 8 {
		t.Errorf("batch workers: got %d", cfg.Engine.BatchWorkers)
	}
	if !cfg.Refresh.Enabled || cfg.Refresh.Interval != 6*time.Hour {
		t.Errorf("refresh: got enabled=%v interval=%v", cfg.Refresh.Enabled, cfg.Refresh.Interval)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("http port: got %d", cfg.HTTP.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
service:
  name: pricing-staging
  environment: staging
cache:
  backend: memory
  base_price_ttl: 12h
  full_result_ttl: 30m
catalog:
  source: http
  http:
    base_url: https://pricing.example.com/api
    api_key: test-key
engine:
  batch_workers: 4
refresh:
  enabled: false
observability:
  logging:
    level: debug
    format: text
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Service.Name != "pricing-staging" {
		t.Errorf("service name: got %q", cfg.Service.Name)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("cache backend: got %q", cfg.Cache.Backend)
	}
	if cfg.Cache.BasePriceTTL != 12*time.Hour {
		t.Errorf("base price TTL override: got %v", cfg.Cache.BasePriceTTL)
	}
	if cfg.Cache.FullResultTTL != 30*time.Minute {
		t.Errorf("full result TTL override: got %v", cfg.Cache.FullResultTTL)
	}
	// Untouched keys keep their defaults
	if cfg.Cache.LocationFactorTTL != 7*24*time.Hour {
		t.Errorf("location factor TTL default lost: got %v", cfg.Cache.LocationFactorTTL)
	}
	if cfg.Catalog.Source != "http" || cfg.Catalog.HTTP.BaseURL != "https://pricing.example.com/api" {
		t.Errorf("catalog: got %+v", cfg.Catalog)
	}
	if cfg.Catalog.HTTP.Timeout != 10*time.Second {
		t.Errorf("catalog http timeout default lost: got %v", cfg.Catalog.HTTP.Timeout)
	}
	if cfg.Engine.BatchWorkers != 4 {
		t.Errorf("batch workers: got %d", cfg.Engine.BatchWorkers)
	}
	if cfg.Refresh.Enabled {
		t.Error("refresh should be disabled")
	}
	if cfg.Observability.Logging.Level != "debug" || cfg.Observability.Logging.Format != "text" {
		t.Errorf("logging: got %+v", cfg.Observability.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"zero TTL", func(c *Config) { c.Cache.FullResultTTL = 0 }},
		{"redis backend without address", func(c *Config) { c.Redis.Address = "" }},
		{"bad catalog source", func(c *Config) { c.Catalog.Source = "ftp" }},
		{"http source without base url", func(c *Config) { c.Catalog.Source = "http" }},
		{"dynamodb source without tables", func(c *Config) {
			c.Catalog.Source = "dynamodb"
			c.Catalog.DynamoDB.BasePricesTable = ""
		}},
		{"zero batch workers", func(c *Config) { c.Engine.BatchWorkers = 0 }},
		{"refresh without interval", func(c *Config) { c.Refresh.Interval = 0 }},
		{"jitter out of range", func(c *Config) { c.Refresh.Jitter = 1.5 }},
		{"sns without region", func(c *Config) {
			c.AWS.SNSTopicARN = "arn:aws:sns:us-east-1:000000000000:refresh"
			c.AWS.Region = ""
		}},
		{"bad log level", func(c *Config) { c.Observability.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Observability.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestValidateAcceptsMemoryBackendWithoutRedis(t *testing.T) {
	cfg := MustLoad("")
	cfg.Cache.Backend = "memory"
	cfg.Redis.Address = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("memory backend should not require redis: %v", err)
	}
}
