package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order
// of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"phenex.yaml",
	"phenex.yml",
	"/etc/phenex/config.yaml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "PHENEX_CONFIG_PATH"

// EnvPrefix is the prefix environment variables must carry to be loaded.
const EnvPrefix = "PHENEX_"

// defaultEngineConfig returns the built-in defaults, applied before any
// file or environment override.
func defaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Workers:       4,
		LazyExecution: false,
		MetaStorePath: "",
		ConnectorKind: "memory",
		DuckDBPath:    "",
		CircuitBreaker: CircuitBreakerConfig{
			FailureRatio: 0.6,
			MinRequests:  10,
			OpenTimeout:  30 * time.Second,
		},
		RetryBackoff: RetryBackoffConfig{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			MaxElapsed:      30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0, // unlimited
			Burst:             0,
		},
		EventBus: EventBusConfig{
			Kind: "inproc",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds an EngineConfig by layering, in increasing precedence:
// built-in defaults, an optional YAML file, and PHENEX_-prefixed
// environment variables.
func Load() (*EngineConfig, error) {
	defaults := defaultEngineConfig()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &EngineConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	// Validate before merging: mergo fills every zero-valued field, so an
	// explicit invalid zero (workers: 0) would otherwise be replaced by its
	// default instead of rejected.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// koanf's Unmarshal leaves a zero-valued field untouched if no layer
	// named it; merge the defaults back in so a config file that only sets
	// workers doesn't zero out every other section.
	if err := mergo.Merge(cfg, defaults); err != nil {
		return nil, fmt.Errorf("config: merge defaults: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps PHENEX_WORKERS -> workers, PHENEX_CIRCUIT_BREAKER_MIN_REQUESTS
// -> circuit_breaker.min_requests, following the struct nesting in EngineConfig.
var envKeyMap = map[string]string{
	"workers":                             "workers",
	"lazy_execution":                      "lazy_execution",
	"meta_store_path":                     "meta_store_path",
	"connector_kind":                      "connector_kind",
	"duckdb_path":                         "duckdb_path",
	"circuit_breaker_failure_ratio":       "circuit_breaker.failure_ratio",
	"circuit_breaker_min_requests":        "circuit_breaker.min_requests",
	"circuit_breaker_open_timeout":        "circuit_breaker.open_timeout",
	"retry_backoff_initial_interval":      "retry_backoff.initial_interval",
	"retry_backoff_max_interval":          "retry_backoff.max_interval",
	"retry_backoff_max_elapsed":           "retry_backoff.max_elapsed",
	"rate_limit_requests_per_second":      "rate_limit.requests_per_second",
	"rate_limit_burst":                    "rate_limit.burst",
	"event_bus_kind":                      "event_bus.kind",
	"event_bus_nats_url":                  "event_bus.nats_url",
	"logging_level":                       "logging.level",
	"logging_format":                      "logging.format",
	"logging_caller":                      "logging.caller",
}

func envTransformFunc(key string) string {
	key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
	if mapped, ok := envKeyMap[key]; ok {
		return mapped
	}
	return ""
}
