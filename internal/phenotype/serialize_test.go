package phenotype

import (
	"reflect"
	"testing"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/codelist"
	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

// roundTrip asserts from_dict(to_dict(s)).to_dict() == s.to_dict() through
// the shared catalogue Registry, for whichever concrete type s is.
func roundTrip(t *testing.T, s serialize.Serializable) {
	t.Helper()
	want := s.ToDict()
	rebuilt, err := Registry.FromDict(want)
	if err != nil {
		t.Fatalf("%s: FromDict: %v", s.ClassName(), err)
	}
	got := rebuilt.ToDict()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s: round-trip mismatch\n got:  %#v\n want: %#v", s.ClassName(), got, want)
	}
}

func mustValue(t *testing.T, op value.Operator, bound float64) *value.Value {
	t.Helper()
	v, err := value.New(op, bound)
	if err != nil {
		t.Fatal(err)
	}
	return &v
}

func TestCatalogueRoundTrip(t *testing.T) {
	anchor := node.NamedRef("entry")
	simpleCodelist := codelist.New("diabetes", "E11", "E11.9")
	composite := codelist.NewComposite("combined", codelist.New("a", "1"), codelist.New("b", "2"))

	dateVal, err := value.NewDate(value.GreaterThanOrEqual, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	age, err := NewAgePhenotype("age", "person", mustValue(t, value.GreaterThanOrEqual, 18), nil, 6, 15, anchor)
	if err != nil {
		t.Fatal(err)
	}

	codelistPhen, err := NewCodelistPhenotype("diabetes_dx", "condition", simpleCodelist, false, First,
		RelTimeRangeSpec{MinDays: mustValue(t, value.GreaterThanOrEqual, 0), When: filter.Before, AnchorPhenotype: anchor})
	if err != nil {
		t.Fatal(err)
	}
	codelistPhen.DateRangeMin = &dateVal

	compositePhen, err := NewCodelistPhenotype("combined_dx", "condition", composite, true, Last)
	if err != nil {
		t.Fatal(err)
	}

	measurement, err := NewMeasurementPhenotype("a1c", codelistPhen, mustValue(t, value.GreaterThan, 6.5), nil, ValueAggMean, true, nil)
	if err != nil {
		t.Fatal(err)
	}

	logic, err := NewLogicPhenotype("cohort", And(Leaf(node.NamedRef("age")), Or(Leaf(node.NamedRef("diabetes_dx")), Not(Leaf(node.NamedRef("combined_dx"))))), First, node.NamedRef("age"))
	if err != nil {
		t.Fatal(err)
	}

	arith, err := NewArithmeticPhenotype("risk_score",
		ArithBinary(ArithAdd, ArithLeaf(node.NamedRef("age")), ArithmeticExpr{Phenotype: node.NamedRef("a1c"), Coefficient: 2}),
		nil, mustValue(t, value.LessThan, 100))
	if err != nil {
		t.Fatal(err)
	}

	score, err := NewScorePhenotype("comorbidity_score", ArithBinary(ArithMul, ArithLeaf(node.NamedRef("diabetes_dx")), ArithLeaf(node.NamedRef("combined_dx"))))
	if err != nil {
		t.Fatal(err)
	}

	bins, err := NewBinPhenotype("age_bin", node.NamedRef("age"),
		[]Bin{{HasHi: true, Hi: 18, Label: "pediatric"}, {HasLo: true, Lo: 18, HasHi: true, Hi: 65, Label: "adult"}, {HasLo: true, Lo: 65, Label: "senior"}},
		nil)
	if err != nil {
		t.Fatal(err)
	}

	mapped, err := NewBinPhenotype("dx_group", node.NamedRef("diabetes_dx"), nil,
		[]ValueMapping{{Codelist: simpleCodelist, Label: "metabolic"}, {Value: "other", Label: "misc"}})
	if err != nil {
		t.Fatal(err)
	}

	categorical, err := NewCategoricalPhenotype("sex", "person", "SEX", []string{"male", "female"}, "")
	if err != nil {
		t.Fatal(err)
	}

	eventCount, err := NewEventCountPhenotype("dx_count", node.NamedRef("diabetes_dx"), mustValue(t, value.GreaterThanOrEqual, 1), nil,
		&RelTimeRangeSpec{MaxDays: mustValue(t, value.LessThanOrEqual, 365), When: filter.Before, AnchorPhenotype: anchor}, First, ComponentLast)
	if err != nil {
		t.Fatal(err)
	}

	withinEncounter, err := NewWithinSameEncounterPhenotype("same_visit", anchor, node.NamedRef("diabetes_dx"), "ENCOUNTER_ID")
	if err != nil {
		t.Fatal(err)
	}

	shifted, err := NewTimeShiftPhenotype("shifted", node.NamedRef("diabetes_dx"), -30)
	if err != nil {
		t.Fatal(err)
	}

	userDefined, err := NewUserDefinedPhenotype("custom", "my_func", "v1", func(map[string]relation.Table) (relation.Table, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	continuousCoverage, err := NewContinuousCoveragePhenotype("coverage", "enrollment", 180, filter.Before, anchor)
	if err != nil {
		t.Fatal(err)
	}

	timeRange, err := NewTimeRangePhenotype("in_range", "enrollment", mustValue(t, value.GreaterThanOrEqual, 0), mustValue(t, value.LessThanOrEqual, 365), filter.After, anchor)
	if err != nil {
		t.Fatal(err)
	}

	timeRangeCount, err := NewTimeRangeCountPhenotype("range_count", "enrollment", nil, nil, filter.After, anchor, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	timeRangeDayCount, err := NewTimeRangeDayCountPhenotype("day_count", "enrollment", "person", nil, nil, filter.After, anchor, true, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	daysToNext, err := NewTimeRangeDaysToNextRange("gap", "enrollment", filter.After, anchor)
	if err != nil {
		t.Fatal(err)
	}

	cases := []serialize.Serializable{
		mustValue(t, value.GreaterThanOrEqual, 18),
		&dateVal,
		simpleCodelist,
		composite,
		age,
		codelistPhen,
		compositePhen,
		measurement,
		logic,
		arith,
		score,
		bins,
		mapped,
		categorical,
		eventCount,
		withinEncounter,
		shifted,
		userDefined,
		continuousCoverage,
		timeRange,
		timeRangeCount,
		timeRangeDayCount,
		daysToNext,
	}
	for _, c := range cases {
		roundTrip(t, c)
	}
}
