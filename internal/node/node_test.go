package node

import (
	"context"
	"errors"
	"testing"

	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

// stubNode is a minimal ComputeNode for exercising the execution primitive
// without depending on any concrete phenotype.
type stubNode struct {
	name     string
	children []ComputeNode
	param    string
	compute  func(tables map[string]relation.Table) (relation.Table, error)
}

func (s *stubNode) Name() string              { return s.name }
func (s *stubNode) Children() []ComputeNode   { return s.children }
func (s *stubNode) ClassName() string         { return "StubNode" }
func (s *stubNode) ToDict() serialize.Dict {
	return serialize.Dict{"class_name": s.ClassName(), "name": s.name, "param": s.param}
}
func (s *stubNode) Compute(tables map[string]relation.Table) (relation.Table, error) {
	return s.compute(tables)
}

func echoTable(name string) *relation.MemoryTable {
	return relation.NewMemoryTable([]string{relation.ColPersonID}, []relation.Row{
		{relation.ColPersonID: name},
	})
}

type memConnector struct {
	tables map[string]relation.Table
}

func newMemConnector() *memConnector {
	return &memConnector{tables: make(map[string]relation.Table)}
}

func (c *memConnector) CreateTable(ctx context.Context, t relation.Table, name string, overwrite bool) (relation.Table, error) {
	if _, exists := c.tables[name]; exists && !overwrite {
		return nil, errors.New("table exists")
	}
	c.tables[name] = t
	return t, nil
}

func (c *memConnector) GetTable(ctx context.Context, name string) (relation.Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, &phenexerr.LookupError{Kind: "table", Name: name}
	}
	return t, nil
}

func (c *memConnector) ListTables(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(c.tables))
	for k := range c.tables {
		names = append(names, k)
	}
	return names, nil
}

func (c *memConnector) DropTable(ctx context.Context, name string) error {
	delete(c.tables, name)
	return nil
}

type memMetaStore struct {
	hashes map[string]string
	puts   int
}

func newMemMetaStore() *memMetaStore {
	return &memMetaStore{hashes: make(map[string]string)}
}

func (m *memMetaStore) Get(ctx context.Context, nodeName string) (string, bool, error) {
	h, ok := m.hashes[nodeName]
	return h, ok, nil
}

func (m *memMetaStore) Put(ctx context.Context, nodeName, hash string) error {
	m.puts++
	m.hashes[nodeName] = hash
	return nil
}

func TestHashStableForEqualParams(t *testing.T) {
	a := &stubNode{name: "n1", param: "x"}
	b := &stubNode{name: "n1", param: "x"}
	ha, err := Hash(a)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ha != hb {
		t.Errorf("Hash(a) = %s, Hash(b) = %s, want equal for identical params", ha, hb)
	}
}

func TestHashChangesWithParams(t *testing.T) {
	a := &stubNode{name: "n1", param: "x"}
	b := &stubNode{name: "n1", param: "y"}
	ha, _ := Hash(a)
	hb, _ := Hash(b)
	if ha == hb {
		t.Errorf("Hash should differ when param differs, got %s for both", ha)
	}
}

func TestCheckChildrenDuplicateName(t *testing.T) {
	c1 := &stubNode{name: "child"}
	c2 := &stubNode{name: "Child"} // case-insensitive clash
	if err := CheckChildren("parent", []ComputeNode{c1, c2}); err == nil {
		t.Error("expected a ConfigurationError for duplicate child names")
	}
}

func TestCheckChildrenClashesWithParent(t *testing.T) {
	c1 := &stubNode{name: "parent"}
	if err := CheckChildren("Parent", []ComputeNode{c1}); err == nil {
		t.Error("expected a ConfigurationError when a child shares the parent's name")
	}
}

func TestCheckChildrenOK(t *testing.T) {
	c1 := &stubNode{name: "a"}
	c2 := &stubNode{name: "b"}
	if err := CheckChildren("parent", []ComputeNode{c1, c2}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecuteRecursesIntoChildren(t *testing.T) {
	child := &stubNode{
		name: "child",
		compute: func(tables map[string]relation.Table) (relation.Table, error) {
			return echoTable("child-out"), nil
		},
	}
	parent := &stubNode{
		name:     "parent",
		children: []ComputeNode{child},
		compute: func(tables map[string]relation.Table) (relation.Table, error) {
			childOut, ok := tables["child"]
			if !ok {
				t.Fatal("parent.Compute did not receive child's output under its Name")
			}
			return childOut, nil
		},
	}
	out, err := Execute(context.Background(), parent, nil, nil, nil, false, false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rows := out.ToNative()
	if rows[0][relation.ColPersonID] != "child-out" {
		t.Errorf("got %+v, want the child's table threaded through", rows)
	}
}

func TestExecuteMaterialisesViaConnector(t *testing.T) {
	n := &stubNode{
		name: "n1",
		compute: func(tables map[string]relation.Table) (relation.Table, error) {
			return echoTable("p1"), nil
		},
	}
	conn := newMemConnector()
	_, err := Execute(context.Background(), n, nil, conn, nil, true, false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := conn.tables["n1"]; !ok {
		t.Error("expected Execute to have materialised the node's table via the connector")
	}
}

func TestExecuteLazyRequiresOverwriteAndBackends(t *testing.T) {
	n := &stubNode{name: "n1"}
	_, err := Execute(context.Background(), n, nil, nil, nil, false, true)
	var cfgErr *phenexerr.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("got %v, want a ConfigurationError", err)
	}
}

func TestExecuteLazyCachesOnUnchangedHash(t *testing.T) {
	calls := 0
	n := &stubNode{
		name:  "n1",
		param: "x",
		compute: func(tables map[string]relation.Table) (relation.Table, error) {
			calls++
			return echoTable("p1"), nil
		},
	}
	conn := newMemConnector()
	store := newMemMetaStore()

	if _, err := Execute(context.Background(), n, nil, conn, store, true, true); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if _, err := Execute(context.Background(), n, nil, conn, store, true, true); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if calls != 1 {
		t.Errorf("Compute called %d times, want 1 (second run should hit the lazy cache)", calls)
	}
}

func TestExecuteLazyRecomputesOnChangedHash(t *testing.T) {
	calls := 0
	makeNode := func(param string) *stubNode {
		return &stubNode{
			name:  "n1",
			param: param,
			compute: func(tables map[string]relation.Table) (relation.Table, error) {
				calls++
				return echoTable("p1"), nil
			},
		}
	}
	conn := newMemConnector()
	store := newMemMetaStore()

	if _, err := Execute(context.Background(), makeNode("x"), nil, conn, store, true, true); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if _, err := Execute(context.Background(), makeNode("y"), nil, conn, store, true, true); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if calls != 2 {
		t.Errorf("Compute called %d times, want 2 (changed param should invalidate the cache)", calls)
	}
}

func TestRunPureRecoversPanic(t *testing.T) {
	n := &stubNode{
		name: "n1",
		compute: func(tables map[string]relation.Table) (relation.Table, error) {
			panic("boom")
		},
	}
	_, err := Execute(context.Background(), n, nil, nil, nil, false, false)
	var compErr *phenexerr.ComputationError
	if !errors.As(err, &compErr) {
		t.Fatalf("got %v, want a ComputationError wrapping the panic", err)
	}
}

func TestRunPurePassesThroughSchemaError(t *testing.T) {
	n := &stubNode{
		name: "n1",
		compute: func(tables map[string]relation.Table) (relation.Table, error) {
			return nil, &phenexerr.SchemaError{Node: "n1", Column: relation.ColPersonID, Detail: "missing"}
		},
	}
	_, err := Execute(context.Background(), n, nil, nil, nil, false, false)
	var schemaErr *phenexerr.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("got %v, want the original SchemaError to pass through unwrapped", err)
	}
}

func TestRunPureWrapsOtherErrors(t *testing.T) {
	n := &stubNode{
		name: "n1",
		compute: func(tables map[string]relation.Table) (relation.Table, error) {
			return nil, errors.New("boom")
		},
	}
	_, err := Execute(context.Background(), n, nil, nil, nil, false, false)
	var compErr *phenexerr.ComputationError
	if !errors.As(err, &compErr) {
		t.Fatalf("got %v, want a ComputationError wrapping the plain error", err)
	}
}
