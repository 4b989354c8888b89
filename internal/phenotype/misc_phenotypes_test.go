package phenotype

import (
	"testing"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/relation"
)

func TestWithinSameEncounterPhenotypeMatchesEncounterID(t *testing.T) {
	anchor := newStubPhenotype(t, "anchor", nil)
	diag := newStubPhenotype(t, "diag", nil)
	anchorRows := []relation.Row{
		{relation.ColPersonID: "p1", relation.ColBoolean: true, relation.ColEventDate: d("2020-01-01"), relation.ColValue: nil, "ENCOUNTER_ID": "e1"},
	}
	diagRows := []relation.Row{
		{relation.ColPersonID: "p1", relation.ColBoolean: true, relation.ColEventDate: d("2020-01-01"), relation.ColValue: nil, "ENCOUNTER_ID": "e1"},
		{relation.ColPersonID: "p1", relation.ColBoolean: true, relation.ColEventDate: d("2020-02-01"), relation.ColValue: nil, "ENCOUNTER_ID": "e2"},
	}

	wp, err := NewWithinSameEncounterPhenotype("wse", anchor, diag, "ENCOUNTER_ID")
	if err != nil {
		t.Fatalf("NewWithinSameEncounterPhenotype: %v", err)
	}
	cols := []string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue, "ENCOUNTER_ID"}
	tables := map[string]relation.Table{
		"anchor": relation.NewMemoryTable(cols, anchorRows),
		"diag":   relation.NewMemoryTable(cols, diagRows),
	}
	out, err := wp.Compute(tables)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	if len(rows) != 1 || rows[0].Get("ENCOUNTER_ID") != "e1" {
		t.Fatalf("expected only the e1 row, got %+v", rows)
	}
}

func TestTimeShiftPhenotypeShiftsEventDate(t *testing.T) {
	src := newStubPhenotype(t, "src", []relation.Row{boolRow("p1", d("2020-01-01"))})
	ts, err := NewTimeShiftPhenotype("shifted", src, 10)
	if err != nil {
		t.Fatalf("NewTimeShiftPhenotype: %v", err)
	}
	out, err := ts.Compute(map[string]relation.Table{"src": valueTable(src.rows)})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	got := rows[0].Get(relation.ColEventDate).(time.Time)
	want := d("2020-01-11")
	if !got.Equal(want) {
		t.Fatalf("expected shifted date %v, got %v", want, got)
	}
	if rows[0].Get(relation.ColValue) != nil {
		t.Fatalf("expected VALUE nulled, got %v", rows[0].Get(relation.ColValue))
	}
}

func TestUserDefinedPhenotypeDelegatesToFunc(t *testing.T) {
	called := false
	fn := func(tables map[string]relation.Table) (relation.Table, error) {
		called = true
		return valueTable([]relation.Row{valueRow("p1", 1)}), nil
	}
	up, err := NewUserDefinedPhenotype("custom", "my_func", "v1", fn)
	if err != nil {
		t.Fatalf("NewUserDefinedPhenotype: %v", err)
	}
	out, err := up.Compute(map[string]relation.Table{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !called {
		t.Fatalf("expected function to be invoked")
	}
	if len(out.ToNative()) != 1 {
		t.Fatalf("expected one row from delegate function")
	}
}

func TestNewUserDefinedPhenotypeRejectsNilFunc(t *testing.T) {
	if _, err := NewUserDefinedPhenotype("custom", "my_func", "v1", nil); err == nil {
		t.Fatalf("expected error for nil function")
	}
}
