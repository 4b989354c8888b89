package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Bayer-Group/phenex-go/internal/metrics"
	"github.com/Bayer-Group/phenex-go/internal/relation"
)

// dispatchService drains a graph's ready queue through a
// semaphore.Weighted-gated errgroup, running as a single suture.Service so a
// bug in the dispatch loop itself — as opposed to a panic inside a node's
// own Compute, which computePure already recovers — is caught and logged
// by the supervisor rather than silently wedging the caller.
//
// It is inherently one-shot: once every node has resolved (executed or
// skipped past a failed ancestor) it asks the supervisor not to restart
// it via suture.ErrDoNotRestart.
type dispatchService struct {
	e          *Engine
	g          *graph
	seed       map[string]relation.Table
	numWorkers int

	mu        sync.Mutex
	inDegree  map[string]int
	queued    map[string]bool
	skipped   map[string]bool
	results   map[string]relation.Table
	remaining int
	firstErr  error

	ready     chan string
	done      chan struct{}
	doneOnce  sync.Once
	finished  chan struct{}
}

func newDispatchService(e *Engine, g *graph, seed map[string]relation.Table, numWorkers int) *dispatchService {
	numNodes := len(g.nodes)
	d := &dispatchService{
		e:          e,
		g:          g,
		seed:       seed,
		numWorkers: numWorkers,
		inDegree:   make(map[string]int, numNodes),
		queued:     make(map[string]bool, numNodes),
		skipped:    make(map[string]bool, numNodes),
		results:    make(map[string]relation.Table, numNodes),
		remaining:  numNodes,
		ready:      make(chan string, numNodes),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
	for key := range g.nodes {
		d.inDegree[key] = len(g.children[key])
	}
	for key, deg := range d.inDegree {
		if deg == 0 {
			d.queued[key] = true
			d.ready <- key
		}
	}
	if numNodes == 0 {
		close(d.done)
	}
	return d
}

// Serve implements suture.Service.
func (d *dispatchService) Serve(ctx context.Context) error {
	defer close(d.finished)

	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(d.numWorkers))

loop:
	for {
		select {
		case key := <-d.ready:
			metrics.SchedulerQueueDepth.Set(float64(len(d.ready)))
			if err := sem.Acquire(egCtx, 1); err != nil {
				break loop
			}
			key := key
			metrics.SchedulerActiveWorkers.Inc()
			eg.Go(func() error {
				defer sem.Release(1)
				defer metrics.SchedulerActiveWorkers.Dec()
				d.runOne(ctx, key)
				return nil // node failures are recorded in d.firstErr, not surfaced to errgroup, so siblings keep running
			})
		case <-d.done:
			break loop
		case <-ctx.Done():
			break loop
		}
	}
	_ = eg.Wait()
	return suture.ErrDoNotRestart
}

func (d *dispatchService) runOne(ctx context.Context, key string) {
	n := d.g.nodes[key]

	d.mu.Lock()
	in := mergeTables(d.seed, d.results, d.g.children[key], d.g.nodes)
	d.mu.Unlock()

	out, err := d.e.runNode(ctx, n, in)

	d.mu.Lock()
	d.resolve(key, out, err)
	d.mu.Unlock()
}

// resolve must be called with d.mu held.
func (d *dispatchService) resolve(key string, out relation.Table, err error) {
	if err != nil {
		if d.firstErr == nil {
			d.firstErr = err
		}
		d.skip(key)
		return
	}
	d.results[d.g.nodes[key].Name()] = out
	d.remaining--
	for _, p := range d.g.parents[key] {
		d.inDegree[p]--
		if d.inDegree[p] == 0 && !d.queued[p] {
			d.queued[p] = true
			d.ready <- p
		}
	}
	d.maybeFinish()
}

// skip marks key, and every node transitively depending on it, resolved
// without execution — the only way the dispatch loop can terminate after
// a node fails, since a failed node's parents never reach zero in-degree.
func (d *dispatchService) skip(key string) {
	if d.skipped[key] {
		return
	}
	d.skipped[key] = true
	d.remaining--
	for _, p := range d.g.parents[key] {
		d.skip(p)
	}
	d.maybeFinish()
}

func (d *dispatchService) maybeFinish() {
	if d.remaining == 0 {
		d.doneOnce.Do(func() { close(d.done) })
	}
}

// supervisorEventHook bridges suture's lifecycle events (service add/remove,
// panic recovery, backoff) into structured logging via sutureslog — here
// through the stdlib slog logger sutureslog expects.
func supervisorEventHook() suture.EventHook {
	h := sutureslog.Handler{Logger: slog.Default()}
	return h.MustHook()
}

// runConcurrent dispatches g across a suture-supervised, semaphore-bounded
// errgroup of node executions. It
// yields results identical to runSequential for the same graph and seed.
func (e *Engine) runConcurrent(ctx context.Context, g *graph, seed map[string]relation.Table) (map[string]relation.Table, error) {
	numNodes := len(g.nodes)
	if numNodes == 0 {
		return map[string]relation.Table{}, nil
	}

	numWorkers := e.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	d := newDispatchService(e, g, seed, numWorkers)

	sup := suture.New("workflow-dispatch", suture.Spec{EventHook: supervisorEventHook()})
	sup.Add(d)
	go sup.Serve(ctx)

	<-d.finished
	sup.Stop()

	d.mu.Lock()
	err := d.firstErr
	results := d.results
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return results, nil
}
