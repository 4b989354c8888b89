// Package workflow schedules a cohort's compute-node dependency graph for
// execution. It builds the graph leaves-first from a set of
// root nodes, topologically sorts it (raising a CycleError if it isn't a
// DAG), then either walks it in order on a single goroutine or dispatches
// it across a worker pool that pops nodes from a ready queue as their
// dependencies complete.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/eventbus"
	"github.com/Bayer-Group/phenex-go/internal/logging"
	"github.com/Bayer-Group/phenex-go/internal/metrics"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
)

// Engine runs a ComputeNode dependency graph to completion. A zero-value
// Engine runs sequentially with no materialisation; set Connector to
// materialise outputs, and Lazy with Connector, MetaStore and Overwrite to
// enable lazy, memoised execution.
type Engine struct {
	Connector node.Connector
	MetaStore node.MetaStore
	Overwrite bool
	Lazy      bool

	// NumWorkers is the worker-pool size for concurrent dispatch. Values
	// of 0 or 1 select the sequential mode, which must and does yield
	// results identical to any NumWorkers > 1 run.
	NumWorkers int

	// EventBus, if set, receives NodeStarted/NodeCompleted/NodeFailed
	// around every node and a WorkflowCompleted at the end of Run
	//. Nil disables event publishing entirely.
	EventBus *eventbus.EventBus

	// RunID tags every published event, so a host watching the event bus
	// can correlate events from the same Run call.
	RunID string
}

// New builds an Engine with a 4-worker pool, eager (non-lazy) execution.
func New(connector node.Connector, store node.MetaStore) *Engine {
	return &Engine{Connector: connector, MetaStore: store, NumWorkers: 4}
}

// Run executes every node reachable from roots and returns each node's
// output table keyed by its Name(). seed supplies the base domain tables
// the graph's leaves read from (e.g. "condition_occurrence", "person").
func (e *Engine) Run(ctx context.Context, roots []node.ComputeNode, seed map[string]relation.Table) (map[string]relation.Table, error) {
	g, err := buildGraph(roots)
	if err != nil {
		return nil, err
	}
	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Debug().Int("nodes", len(g.nodes)).Int("workers", e.NumWorkers).Msg("workflow: dispatching")

	var results map[string]relation.Table
	if e.NumWorkers <= 1 {
		results, err = e.runSequential(ctx, g, order, seed)
	} else {
		results, err = e.runConcurrent(ctx, g, seed)
	}

	completedMsg := eventbus.WorkflowCompleted{RunID: e.RunID, NodeCount: len(g.nodes)}
	if err != nil {
		completedMsg.Error = err.Error()
	}
	e.publish(ctx, completedMsg)

	return results, err
}

func (e *Engine) publish(ctx context.Context, event interface{}) {
	if e.EventBus == nil {
		return
	}
	e.EventBus.Publish(ctx, event)
}

// runSequential executes the graph in topological order on the calling
// goroutine, for debugging and as the reference result runConcurrent must
// match bit-for-bit.
func (e *Engine) runSequential(ctx context.Context, g *graph, order []string, seed map[string]relation.Table) (map[string]relation.Table, error) {
	results := make(map[string]relation.Table, len(order))
	for _, key := range order {
		n := g.nodes[key]
		in := mergeTables(seed, results, g.children[key], g.nodes)

		out, err := e.runNode(ctx, n, in)
		if err != nil {
			return nil, err
		}
		results[n.Name()] = out
	}
	return results, nil
}

// runConcurrent dispatches the graph's nodes across a semaphore-bounded
// worker pool running inside a suture.Supervisor (see dispatch.go): a
// threadpool plus condition-variable, not an event loop. A node's own
// compute is pure and touches no shared state beyond the dispatcher's own
// completion lock; the only side effect, the connector's CreateTable call,
// is keyed by unique node names and so safe across workers. Cancellation
// isn't supported mid-run: once dispatched, a node runs to completion.

// mergeTables builds the tables map a node's Compute sees: the seed domain
// tables plus every already-completed child's output, keyed by the
// child's own Name().
func mergeTables(seed map[string]relation.Table, results map[string]relation.Table, childKeys []string, nodes map[string]node.ComputeNode) map[string]relation.Table {
	in := make(map[string]relation.Table, len(seed)+len(childKeys))
	for k, v := range seed {
		in[k] = v
	}
	for _, ck := range childKeys {
		child := nodes[ck]
		if out, ok := results[child.Name()]; ok {
			in[child.Name()] = out
		}
	}
	return in
}

// runNode executes a single node's pure computation and, if configured,
// materialises or memoises it exactly as node.Execute would for a single
// node — but without node.Execute's own recursive child traversal, since
// the graph has already resolved dependency order. It also emits this
// node's share of the observability surface: a zerolog
// entry, a Prometheus duration histogram, and NodeStarted/NodeCompleted/
// NodeFailed events on the Engine's EventBus, if set.
func (e *Engine) runNode(ctx context.Context, n node.ComputeNode, tables map[string]relation.Table) (relation.Table, error) {
	e.publish(ctx, eventbus.NodeStarted{RunID: e.RunID, NodeName: n.Name(), NodeClass: n.ClassName()})
	start := time.Now()

	out, cacheHit, err := e.runNodeOnce(ctx, n, tables)
	duration := time.Since(start)

	nodeLog := logging.WithNode(n.Name(), n.ClassName())
	if err != nil {
		metrics.RecordNodeExecute(n.ClassName(), duration, "error")
		nodeLog.Debug().Dur("duration", duration).Err(err).Msg("workflow: node failed")
		e.publish(ctx, eventbus.NodeFailed{RunID: e.RunID, NodeName: n.Name(), NodeClass: n.ClassName(), Error: err.Error()})
		return nil, err
	}

	outcome := "ok"
	if cacheHit {
		outcome = "cache_hit"
	}
	metrics.RecordNodeExecute(n.ClassName(), duration, outcome)
	nodeLog.Debug().Dur("duration", duration).Bool("cache_hit", cacheHit).Msg("workflow: node completed")
	e.publish(ctx, eventbus.NodeCompleted{RunID: e.RunID, NodeName: n.Name(), NodeClass: n.ClassName(), Duration: duration, CacheHit: cacheHit})
	return out, nil
}

// runNodeOnce is runNode's actual computation, separated out so runNode can
// wrap it uniformly with timing, metrics and events regardless of outcome.
func (e *Engine) runNodeOnce(ctx context.Context, n node.ComputeNode, tables map[string]relation.Table) (out relation.Table, cacheHit bool, err error) {
	if e.Lazy {
		if !e.Overwrite || e.Connector == nil || e.MetaStore == nil {
			return nil, false, &phenexerr.ConfigurationError{Node: n.Name(), Detail: "lazy execution requires overwrite=true and a connector and meta-store"}
		}
		currentHash, err := node.Hash(n)
		if err != nil {
			return nil, false, err
		}
		if lastHash, ok, err := e.MetaStore.Get(ctx, n.Name()); err == nil && ok && lastHash == currentHash {
			if cached, err := e.Connector.GetTable(ctx, n.Name()); err == nil {
				metrics.RecordLazyCacheLookup(true)
				return cached, true, nil
			}
		}
		metrics.RecordLazyCacheLookup(false)
		computed, err := computePure(n, tables)
		if err != nil {
			return nil, false, err
		}
		materialised, err := e.Connector.CreateTable(ctx, computed, n.Name(), e.Overwrite)
		if err != nil {
			return nil, false, err
		}
		if err := e.MetaStore.Put(ctx, n.Name(), currentHash); err != nil {
			return nil, false, err
		}
		return materialised, false, nil
	}

	computed, err := computePure(n, tables)
	if err != nil {
		return nil, false, err
	}
	if e.Connector != nil {
		materialised, err := e.Connector.CreateTable(ctx, computed, n.Name(), e.Overwrite)
		return materialised, false, err
	}
	return computed, false, nil
}

func computePure(n node.ComputeNode, tables map[string]relation.Table) (out relation.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &phenexerr.ComputationError{Node: n.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, err = n.Compute(tables)
	if err != nil {
		var schemaErr *phenexerr.SchemaError
		var configErr *phenexerr.ConfigurationError
		if errors.As(err, &schemaErr) || errors.As(err, &configErr) {
			return nil, err
		}
		return nil, &phenexerr.ComputationError{Node: n.Name(), Err: err}
	}
	return out, nil
}
