package phenotype

import (
	"testing"

	"github.com/Bayer-Group/phenex-go/internal/relation"
)

func TestBinPhenotypeNumericBinning(t *testing.T) {
	src := newStubPhenotype(t, "age", []relation.Row{valueRow("p1", 17), valueRow("p2", 45), valueRow("p3", 90)})
	bins := []Bin{
		{HasHi: true, Hi: 18, Label: "child"},
		{HasLo: true, Lo: 18, HasHi: true, Hi: 65, Label: "adult"},
		{HasLo: true, Lo: 65, Label: "senior"},
	}
	bp, err := NewBinPhenotype("agebin", src, bins, nil)
	if err != nil {
		t.Fatalf("NewBinPhenotype: %v", err)
	}
	out, err := bp.Compute(map[string]relation.Table{"age": valueTable(src.rows)})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	labels := map[interface{}]interface{}{}
	for _, r := range out.ToNative() {
		labels[r.Get(relation.ColPersonID)] = r.Get(relation.ColValue)
	}
	if labels["p1"] != "child" || labels["p2"] != "adult" || labels["p3"] != "senior" {
		t.Fatalf("unexpected labels: %+v", labels)
	}
}

func TestBinPhenotypeValueMapping(t *testing.T) {
	src := newStubPhenotype(t, "sex", []relation.Row{
		{relation.ColPersonID: "p1", relation.ColBoolean: true, relation.ColEventDate: nil, relation.ColValue: "M"},
		{relation.ColPersonID: "p2", relation.ColBoolean: true, relation.ColEventDate: nil, relation.ColValue: "F"},
	})
	mappings := []ValueMapping{
		{Value: "M", Label: "male"},
		{Value: "F", Label: "female"},
	}
	bp, err := NewBinPhenotype("sexlabel", src, nil, mappings)
	if err != nil {
		t.Fatalf("NewBinPhenotype: %v", err)
	}
	out, err := bp.Compute(map[string]relation.Table{"sex": valueTable(src.rows)})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	labels := map[interface{}]interface{}{}
	for _, r := range out.ToNative() {
		labels[r.Get(relation.ColPersonID)] = r.Get(relation.ColValue)
	}
	if labels["p1"] != "male" || labels["p2"] != "female" {
		t.Fatalf("unexpected labels: %+v", labels)
	}
}
