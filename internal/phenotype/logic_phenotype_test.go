package phenotype

import (
	"errors"
	"testing"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

type stubPhenotype struct {
	base
	rows []relation.Row
}

func newStubPhenotype(t *testing.T, name string, rows []relation.Row) *stubPhenotype {
	t.Helper()
	b, err := newBase(name)
	if err != nil {
		t.Fatalf("newBase: %v", err)
	}
	return &stubPhenotype{base: b, rows: rows}
}

func (s *stubPhenotype) ClassName() string       { return "StubPhenotype" }
func (s *stubPhenotype) ToDict() serialize.Dict { return toDictBase(s.ClassName(), s.name) }
func (s *stubPhenotype) Compute(map[string]relation.Table) (relation.Table, error) {
	return relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, s.rows), nil
}

func boolRow(pid string, date time.Time) relation.Row {
	return relation.Row{relation.ColPersonID: pid, relation.ColBoolean: true, relation.ColEventDate: date, relation.ColValue: nil}
}

func TestLogicPhenotypeAnd(t *testing.T) {
	a := newStubPhenotype(t, "a", []relation.Row{boolRow("p1", d("2020-01-01")), boolRow("p2", d("2020-01-05"))})
	b := newStubPhenotype(t, "b", []relation.Row{boolRow("p1", d("2020-02-01"))})

	expr := And(Leaf(a), Leaf(b))
	lp, err := NewLogicPhenotype("and", expr, First, nil)
	if err != nil {
		t.Fatalf("NewLogicPhenotype: %v", err)
	}
	tables := map[string]relation.Table{
		"a": relation.NewMemoryTable([]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, a.rows),
		"b": relation.NewMemoryTable([]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, b.rows),
	}
	out, err := lp.Compute(tables)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	if len(rows) != 1 || rows[0].Get(relation.ColPersonID) != "p1" {
		t.Fatalf("expected only p1 to satisfy AND, got %+v", rows)
	}
}

func TestLogicPhenotypeOr(t *testing.T) {
	a := newStubPhenotype(t, "a", []relation.Row{boolRow("p1", d("2020-01-01"))})
	b := newStubPhenotype(t, "b", []relation.Row{boolRow("p2", d("2020-02-01"))})

	expr := Or(Leaf(a), Leaf(b))
	lp, err := NewLogicPhenotype("or", expr, First, nil)
	if err != nil {
		t.Fatalf("NewLogicPhenotype: %v", err)
	}
	tables := map[string]relation.Table{
		"a": relation.NewMemoryTable([]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, a.rows),
		"b": relation.NewMemoryTable([]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, b.rows),
	}
	out, err := lp.Compute(tables)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(out.ToNative()) != 2 {
		t.Fatalf("expected both subjects to satisfy OR, got %+v", out.ToNative())
	}
}

func TestLogicPhenotypeReturnDateFromLeaf(t *testing.T) {
	a := newStubPhenotype(t, "a", []relation.Row{boolRow("p1", d("2020-01-01"))})
	b := newStubPhenotype(t, "b", []relation.Row{boolRow("p1", d("2020-02-01"))})

	expr := And(Leaf(a), Leaf(b))
	lp, err := NewLogicPhenotype("and", expr, First, b)
	if err != nil {
		t.Fatalf("NewLogicPhenotype: %v", err)
	}
	tables := map[string]relation.Table{
		"a": relation.NewMemoryTable([]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, a.rows),
		"b": relation.NewMemoryTable([]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, b.rows),
	}
	out, err := lp.Compute(tables)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	if len(rows) != 1 || rows[0].Get(relation.ColEventDate) != d("2020-02-01") {
		t.Fatalf("expected EVENT_DATE taken from return_date_from leaf b, got %+v", rows)
	}
}

func TestLogicPhenotypeReturnDateFromNotALeaf(t *testing.T) {
	a := newStubPhenotype(t, "a", nil)
	b := newStubPhenotype(t, "b", nil)
	outsider := newStubPhenotype(t, "outsider", nil)

	expr := And(Leaf(a), Leaf(b))
	_, err := NewLogicPhenotype("and", expr, First, outsider)
	if err == nil {
		t.Fatal("expected an error when return_date_from names a phenotype outside the expression")
	}
	var cfgErr *phenexerr.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected a ConfigurationError, got %T: %v", err, err)
	}
}

func TestLogicPhenotypeNot(t *testing.T) {
	a := newStubPhenotype(t, "a", []relation.Row{boolRow("p1", d("2020-01-01"))})
	all := newStubPhenotype(t, "all", []relation.Row{boolRow("p1", d("2020-01-01")), boolRow("p2", d("2020-01-01"))})

	expr := And(Leaf(all), Not(Leaf(a)))
	lp, err := NewLogicPhenotype("not", expr, First, nil)
	if err != nil {
		t.Fatalf("NewLogicPhenotype: %v", err)
	}
	tables := map[string]relation.Table{
		"a":   relation.NewMemoryTable([]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, a.rows),
		"all": relation.NewMemoryTable([]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, all.rows),
	}
	out, err := lp.Compute(tables)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	if len(rows) != 1 || rows[0].Get(relation.ColPersonID) != "p2" {
		t.Fatalf("expected only p2 (not in a) to remain, got %+v", rows)
	}
}
