package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Bayer-Group/phenex-go/internal/metrics"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/relation"
)

// ResilientConfig configures ResilientConnector's failure handling.
type ResilientConfig struct {
	// Name identifies the circuit breaker instance in logs/metrics.
	Name string
	// MaxRequests allowed through while the breaker is half-open.
	MaxRequests uint32
	// Interval is the cyclic reset period for the closed-state failure count.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that trips the breaker.
	FailureThreshold uint32
	// RatePerSecond caps the number of backend calls issued per second.
	RatePerSecond float64
	// MaxRetries bounds the exponential-backoff retry attempts per call.
	MaxRetries uint64
}

// DefaultResilientConfig returns production defaults, the same thresholds
// cartographus uses for its own resilient stream reader.
func DefaultResilientConfig(name string) ResilientConfig {
	return ResilientConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		RatePerSecond:    50,
		MaxRetries:       3,
	}
}

// ResilientConnector wraps any node.Connector with a circuit breaker, a
// token-bucket rate limiter and bounded exponential-backoff retry, so a
// struggling backend (DuckDB under load, a metastore blip) degrades
// into fast failures instead of compounding latency across a cohort's
// whole node graph.
type ResilientConnector struct {
	inner   node.Connector
	breaker *gobreaker.CircuitBreaker[relation.Table]
	limiter *rate.Limiter
	retries uint64
}

// NewResilientConnector wraps inner per cfg.
func NewResilientConnector(inner node.Connector, cfg ResilientConfig) *ResilientConnector {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.ConnectorCircuitState.Set(float64(to))
		},
	}
	return &ResilientConnector{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[relation.Table](settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), int(cfg.RatePerSecond)),
		retries: cfg.MaxRetries,
	}
}

func (c *ResilientConnector) call(ctx context.Context, operation string, fn func() (relation.Table, error)) (relation.Table, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("connector: rate limiter: %w", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)

	start := time.Now()
	var result relation.Table
	op := func() error {
		out, err := c.breaker.Execute(fn)
		if err != nil {
			return err
		}
		result = out
		return nil
	}
	err := backoff.Retry(op, bo)
	metrics.RecordConnectorCall(operation, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateTable satisfies node.Connector.
func (c *ResilientConnector) CreateTable(ctx context.Context, t relation.Table, name string, overwrite bool) (relation.Table, error) {
	return c.call(ctx, "create_table", func() (relation.Table, error) {
		return c.inner.CreateTable(ctx, t, name, overwrite)
	})
}

// GetTable satisfies node.Connector.
func (c *ResilientConnector) GetTable(ctx context.Context, name string) (relation.Table, error) {
	return c.call(ctx, "get_table", func() (relation.Table, error) {
		return c.inner.GetTable(ctx, name)
	})
}

// ListTables satisfies node.Connector. Listing bypasses the breaker and
// limiter: it's a cheap, idempotent read used mostly for diagnostics.
func (c *ResilientConnector) ListTables(ctx context.Context) ([]string, error) {
	return c.inner.ListTables(ctx)
}

// DropTable satisfies node.Connector.
func (c *ResilientConnector) DropTable(ctx context.Context, name string) error {
	_, err := c.call(ctx, "drop_table", func() (relation.Table, error) {
		return nil, c.inner.DropTable(ctx, name)
	})
	return err
}

var _ node.Connector = (*ResilientConnector)(nil)
