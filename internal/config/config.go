// Package config loads the engine's runtime configuration: worker pool
// size, connector selection, meta-store location, lazy-execution defaults,
// resilience tuning, event bus selection, and logging.
//
// Configuration is layered — struct defaults, then an optional YAML file,
// then environment variables (PHENEX_ prefix) — with each layer overriding
// the last.
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	ectx := workflow.NewExecutionContext(cfg, connector, store, bus, logger)
package config

import (
	"fmt"
	"time"
)

// EngineConfig holds the full engine configuration.
type EngineConfig struct {
	Workers        int                  `koanf:"workers"`
	LazyExecution  bool                 `koanf:"lazy_execution"`
	MetaStorePath  string               `koanf:"meta_store_path"`
	ConnectorKind  string               `koanf:"connector_kind"` // "memory" | "duckdb"
	DuckDBPath     string               `koanf:"duckdb_path"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
	RetryBackoff   RetryBackoffConfig   `koanf:"retry_backoff"`
	RateLimit      RateLimitConfig      `koanf:"rate_limit"`
	EventBus       EventBusConfig       `koanf:"event_bus"`
	Logging        LoggingConfig        `koanf:"logging"`
}

// CircuitBreakerConfig tunes the connector resilience wrapper's breaker.
type CircuitBreakerConfig struct {
	FailureRatio float64       `koanf:"failure_ratio"`
	MinRequests  uint32        `koanf:"min_requests"`
	OpenTimeout  time.Duration `koanf:"open_timeout"`
}

// RetryBackoffConfig tunes the connector resilience wrapper's retry policy.
type RetryBackoffConfig struct {
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
	MaxElapsed      time.Duration `koanf:"max_elapsed"`
}

// RateLimitConfig throttles connector materialisation calls. Disabled when
// RequestsPerSecond is zero.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// EventBusConfig selects the workflow event bus backend.
type EventBusConfig struct {
	Kind    string `koanf:"kind"` // "inproc" | "nats"
	NATSUrl string `koanf:"nats_url"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that the loaded configuration is internally consistent,
// independent of any single workflow run.
func (c *EngineConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	if c.LazyExecution && c.MetaStorePath == "" {
		return fmt.Errorf("config: lazy_execution requires meta_store_path to be set")
	}
	switch c.ConnectorKind {
	case "memory", "duckdb":
	default:
		return fmt.Errorf("config: connector_kind must be \"memory\" or \"duckdb\", got %q", c.ConnectorKind)
	}
	if c.ConnectorKind == "duckdb" && c.DuckDBPath == "" {
		return fmt.Errorf("config: connector_kind=duckdb requires duckdb_path to be set")
	}
	switch c.EventBus.Kind {
	case "inproc", "nats":
	default:
		return fmt.Errorf("config: event_bus.kind must be \"inproc\" or \"nats\", got %q", c.EventBus.Kind)
	}
	if c.EventBus.Kind == "nats" && c.EventBus.NATSUrl == "" {
		return fmt.Errorf("config: event_bus.kind=nats requires event_bus.nats_url to be set")
	}
	return nil
}
