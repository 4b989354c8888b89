package phenotype

import (
	"testing"

	"github.com/Bayer-Group/phenex-go/internal/relation"
)

func valueRow(pid string, v float64) relation.Row {
	return relation.Row{relation.ColPersonID: pid, relation.ColBoolean: true, relation.ColEventDate: nil, relation.ColValue: v}
}

func valueTable(rows []relation.Row) relation.Table {
	return relation.NewMemoryTable([]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, rows)
}

func TestArithmeticPhenotypeAddsAndDropsMissingOperand(t *testing.T) {
	a := newStubPhenotype(t, "a", []relation.Row{valueRow("p1", 10), valueRow("p2", 5)})
	b := newStubPhenotype(t, "b", []relation.Row{valueRow("p1", 3)})

	expr := ArithBinary(ArithAdd, ArithLeaf(a), ArithLeaf(b))
	ap, err := NewArithmeticPhenotype("sum", expr, nil, nil)
	if err != nil {
		t.Fatalf("NewArithmeticPhenotype: %v", err)
	}
	tables := map[string]relation.Table{"a": valueTable(a.rows), "b": valueTable(b.rows)}
	out, err := ap.Compute(tables)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	if len(rows) != 1 || rows[0].Get(relation.ColPersonID) != "p1" {
		t.Fatalf("expected only p1 (has both operands), got %+v", rows)
	}
	if v := rows[0].Get(relation.ColValue).(float64); v != 13 {
		t.Fatalf("expected 13, got %v", v)
	}
}

func TestScorePhenotypeCountsPresence(t *testing.T) {
	a := newStubPhenotype(t, "a", []relation.Row{valueRow("p1", 99)})
	b := newStubPhenotype(t, "b", []relation.Row{valueRow("p1", 1)})

	expr := ArithBinary(ArithAdd, ArithLeaf(a), ArithLeaf(b))
	sp, err := NewScorePhenotype("score", expr)
	if err != nil {
		t.Fatalf("NewScorePhenotype: %v", err)
	}
	tables := map[string]relation.Table{"a": valueTable(a.rows), "b": valueTable(b.rows)}
	out, err := sp.Compute(tables)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	if len(rows) != 1 {
		t.Fatalf("expected one subject, got %+v", rows)
	}
	if v := rows[0].Get(relation.ColValue).(float64); v != 2 {
		t.Fatalf("expected score of 2 (both present), got %v", v)
	}
}
