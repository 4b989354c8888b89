package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
)

// graph is the dependency graph built leaves-first from a set of root nodes
//: every node a root references, directly or transitively
// through its declared Children() (relative-time-range anchors, further
// value-filter phenotypes, Logic/Arithmetic/Score operands, and so on), ends
// up here keyed by its lower-cased name.
type graph struct {
	nodes    map[string]node.ComputeNode
	children map[string][]string // node key -> its children's keys, in declared order
	parents  map[string][]string // node key -> keys of nodes that declare it as a child
}

// buildGraph walks roots and their transitive children, collecting every
// node reached into a graph. Two distinct node names that collide only by
// case are rejected, mirroring node.CheckChildren's own case-insensitive
// uniqueness rule.
func buildGraph(roots []node.ComputeNode) (*graph, error) {
	g := &graph{
		nodes:    map[string]node.ComputeNode{},
		children: map[string][]string{},
		parents:  map[string][]string{},
	}

	var visit func(n node.ComputeNode) error
	visit = func(n node.ComputeNode) error {
		key := strings.ToLower(n.Name())
		if existing, ok := g.nodes[key]; ok {
			if existing.Name() != n.Name() {
				return &phenexerr.ConfigurationError{
					Node:   n.Name(),
					Detail: fmt.Sprintf("node name %q collides case-insensitively with already-registered node %q", n.Name(), existing.Name()),
				}
			}
			return nil
		}
		g.nodes[key] = n

		kids := n.Children()
		childKeys := make([]string, 0, len(kids))
		for _, c := range kids {
			ckey := strings.ToLower(c.Name())
			childKeys = append(childKeys, ckey)
			g.parents[ckey] = append(g.parents[ckey], key)
		}
		g.children[key] = childKeys

		for _, c := range kids {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range roots {
		if err := visit(r); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// topoSort returns the graph's nodes in a topological order (ties broken
// alphabetically by key, for a deterministic sequential-mode run). It
// returns a *phenexerr.CycleError if the graph isn't a DAG.
func (g *graph) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for key := range g.nodes {
		inDegree[key] = len(g.children[key])
	}

	var queue []string
	for key, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, key)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		order = append(order, key)

		var freed []string
		for _, p := range g.parents[key] {
			inDegree[p]--
			if inDegree[p] == 0 {
				freed = append(freed, p)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(order) != len(g.nodes) {
		var cycle []string
		for key, deg := range inDegree {
			if deg > 0 {
				cycle = append(cycle, g.nodes[key].Name())
			}
		}
		sort.Strings(cycle)
		return nil, &phenexerr.CycleError{Cycle: cycle}
	}
	return order, nil
}
