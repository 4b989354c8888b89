// Package metrics provides Prometheus instrumentation for compute-node
// execution, scheduler dispatch, lazy-execution caching and connector I/O.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NodeExecuteDuration observes how long a single ComputeNode.Execute
	// call takes, broken down by its dynamic type.
	NodeExecuteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phenex_node_execute_duration_seconds",
			Help:    "Duration of a single compute node execution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node_class"},
	)

	// NodeExecuteTotal counts node executions by outcome.
	NodeExecuteTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phenex_node_execute_total",
			Help: "Total number of compute node executions",
		},
		[]string{"node_class", "outcome"}, // outcome: "ok", "error", "cache_hit"
	)

	// SchedulerQueueDepth reports the number of nodes currently ready but
	// not yet dispatched to a worker.
	SchedulerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phenex_scheduler_queue_depth",
			Help: "Number of ready-but-undispatched nodes in the workflow scheduler",
		},
	)

	// SchedulerActiveWorkers reports how many worker slots are currently
	// executing a node.
	SchedulerActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phenex_scheduler_active_workers",
			Help: "Number of workers currently executing a compute node",
		},
	)

	// LazyCacheLookups counts meta-store lookups by hit/miss.
	LazyCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phenex_lazy_cache_lookups_total",
			Help: "Total number of lazy-execution meta-store lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// ConnectorCallDuration observes Connector backend call latency.
	ConnectorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phenex_connector_call_duration_seconds",
			Help:    "Duration of a Connector backend call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "create_table", "get_table", "list_tables", "drop_table"
	)

	// ConnectorCallErrors counts Connector backend call failures.
	ConnectorCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phenex_connector_call_errors_total",
			Help: "Total number of Connector backend call errors",
		},
		[]string{"operation"},
	)

	// ConnectorCircuitState reports the resilient connector's breaker state
	// (0=closed, 1=half-open, 2=open), per gobreaker.State ordering.
	ConnectorCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phenex_connector_circuit_state",
			Help: "Resilient connector circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// RecordNodeExecute records the outcome and duration of a node execution.
func RecordNodeExecute(nodeClass string, duration time.Duration, outcome string) {
	NodeExecuteDuration.WithLabelValues(nodeClass).Observe(duration.Seconds())
	NodeExecuteTotal.WithLabelValues(nodeClass, outcome).Inc()
}

// RecordLazyCacheLookup records a meta-store hash comparison outcome.
func RecordLazyCacheLookup(hit bool) {
	if hit {
		LazyCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	LazyCacheLookups.WithLabelValues("miss").Inc()
}

// RecordConnectorCall records a Connector backend call's latency and error.
func RecordConnectorCall(operation string, duration time.Duration, err error) {
	ConnectorCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		ConnectorCallErrors.WithLabelValues(operation).Inc()
	}
}
