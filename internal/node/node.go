// Package node defines ComputeNode, the execution primitive every
// phenotype and the cohort implement: a named, hashable
// unit with declared children, a pure computation over a domain->Table
// mapping, and an execute wrapper adding recursive child execution,
// connector materialisation and lazy-execution memoisation.
package node

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

// ComputeNode is the execution primitive. Every phenotype
// and the cohort itself implement it.
type ComputeNode interface {
	// Name is unique within any workflow this node participates in
	// (case-insensitive).
	Name() string

	// Children lists the node's declared dependencies, in the order
	// they were added.
	Children() []ComputeNode

	// ClassName and ToDict implement serialize.Serializable: the
	// complete constructor-parameter dict, excluding any output table.
	ClassName() string
	ToDict() serialize.Dict

	// Compute is the pure computation: given the full domain->Table
	// mapping (already enriched with every child's output, keyed by the
	// child's Name), return a PhenotypeTable.
	Compute(tables map[string]relation.Table) (relation.Table, error)
}

// NamedRef is a placeholder ComputeNode carrying only a cross-reference
// name. Several phenotypes serialise a dependency edge (an "anchor"
// phenotype, say) as just the referenced node's name rather than a
// nested dict, so from_dict reconstruction of such a field can recover
// the name but not a live, computable node. NamedRef fills that field
// well enough to round-trip ToDict(), which only ever reads the name
// back; Compute refuses to run, since a NamedRef must be replaced by
// the real node it names before any workflow using it can execute.
func NamedRef(name string) ComputeNode { return namedRef(name) }

type namedRef string

func (r namedRef) Name() string        { return string(r) }
func (r namedRef) Children() []ComputeNode { return nil }
func (r namedRef) ClassName() string   { return "NamedRef" }
func (r namedRef) ToDict() serialize.Dict {
	return serialize.Dict{"class_name": r.ClassName(), "name": string(r)}
}
func (r namedRef) Compute(map[string]relation.Table) (relation.Table, error) {
	return nil, &phenexerr.ConfigurationError{
		Node:   string(r),
		Detail: "unresolved reference: replace this NamedRef with its live node before executing",
	}
}

// Connector is the minimal backend surface Execute needs to materialise a
// node's output. Any backend — in-memory, DuckDB — that
// implements these four methods can be passed to Execute.
type Connector interface {
	CreateTable(ctx context.Context, t relation.Table, name string, overwrite bool) (relation.Table, error)
	GetTable(ctx context.Context, name string) (relation.Table, error)
	ListTables(ctx context.Context) ([]string, error)
	DropTable(ctx context.Context, name string) error
}

// MetaStore is the lazy-execution memoisation surface: a
// small table keyed by node name, holding the last successful hash.
type MetaStore interface {
	Get(ctx context.Context, nodeName string) (hash string, ok bool, err error)
	Put(ctx context.Context, nodeName, hash string) error
}

// Hash returns the content hash of a node: MD5 over its class name
// followed by the deterministic-key-ordering JSON of ToDict(). It is the
// sole cache key for lazy execution and the sole input to the
// hash-stability property lazy caching depends on.
func Hash(n ComputeNode) (string, error) {
	body, err := serialize.Marshal(n.ToDict())
	if err != nil {
		return "", fmt.Errorf("node: marshal %s for hashing: %w", n.Name(), err)
	}
	sum := md5.Sum(append([]byte(n.ClassName()+"\x00"), body...))
	return hex.EncodeToString(sum[:]), nil
}

// CheckChildren validates the constraints a node's children must satisfy:
// every child's name is unique
// among the others and distinct from self's own name (case-insensitive).
// Cycle detection happens later, at workflow-build time, since it
// requires the full graph.
func CheckChildren(selfName string, children []ComputeNode) error {
	seen := map[string]bool{strings.ToLower(selfName): true}
	for _, c := range children {
		key := strings.ToLower(c.Name())
		if seen[key] {
			return &phenexerr.ConfigurationError{
				Node:   selfName,
				Detail: fmt.Sprintf("duplicate child name %q (names are case-insensitive, and must differ from the parent's own name)", c.Name()),
			}
		}
		seen[key] = true
	}
	return nil
}

// Execute recursively executes n's children (enriching tables with each
// child's output under its Name), runs n's pure computation, and
// optionally materialises the result via connector. When lazy is true,
// overwrite must also be true and connector/store must be non-nil, or a
// *phenexerr.ConfigurationError is returned.
func Execute(ctx context.Context, n ComputeNode, tables map[string]relation.Table, connector Connector, store MetaStore, overwrite, lazy bool) (relation.Table, error) {
	if lazy && (!overwrite || connector == nil || store == nil) {
		return nil, &phenexerr.ConfigurationError{
			Node:   n.Name(),
			Detail: "lazy execution requires overwrite=true and a connector and meta-store",
		}
	}

	enriched := make(map[string]relation.Table, len(tables))
	for k, v := range tables {
		enriched[k] = v
	}
	for _, child := range n.Children() {
		out, err := Execute(ctx, child, tables, connector, store, overwrite, lazy)
		if err != nil {
			return nil, err
		}
		enriched[child.Name()] = out
	}

	if lazy {
		return executeLazy(ctx, n, enriched, connector, store, overwrite)
	}

	out, err := runPure(n, enriched)
	if err != nil {
		return nil, err
	}
	if connector != nil {
		return connector.CreateTable(ctx, out, n.Name(), overwrite)
	}
	return out, nil
}

func executeLazy(ctx context.Context, n ComputeNode, tables map[string]relation.Table, connector Connector, store MetaStore, overwrite bool) (relation.Table, error) {
	currentHash, err := Hash(n)
	if err != nil {
		return nil, err
	}

	if lastHash, ok, err := store.Get(ctx, n.Name()); err == nil && ok && lastHash == currentHash {
		if cached, err := connector.GetTable(ctx, n.Name()); err == nil {
			return cached, nil
		}
	}

	out, err := runPure(n, tables)
	if err != nil {
		return nil, err
	}
	materialised, err := connector.CreateTable(ctx, out, n.Name(), overwrite)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, n.Name(), currentHash); err != nil {
		return nil, err
	}
	return materialised, nil
}

func runPure(n ComputeNode, tables map[string]relation.Table) (out relation.Table, err error) {
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
