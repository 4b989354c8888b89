package aggregate

import "github.com/Bayer-Group/phenex-go/internal/relation"

// ValueFunc is one of the four ValueAggregator reduction strategies.
type ValueFunc string

const (
	ValueMin    ValueFunc = "min"
	ValueMax    ValueFunc = "max"
	ValueMean   ValueFunc = "mean"
	ValueMedian ValueFunc = "median"
)

// ValueAggregator reduces VALUE to one row per GroupBy partition (default
// {PERSON_ID}) using Func. When Reduce is true, EVENT_DATE is nulled in
// the output.
type ValueAggregator struct {
	Func        ValueFunc
	GroupBy     []string
	ValueColumn string
	Reduce      bool
}

// NewValueAggregator builds a ValueAggregator over the canonical
// PERSON_ID grouping set and VALUE column.
func NewValueAggregator(fn ValueFunc) *ValueAggregator {
	return &ValueAggregator{
		Func:        fn,
		GroupBy:     []string{relation.ColPersonID},
		ValueColumn: relation.ColValue,
	}
}

// Daily returns a copy grouped by {PERSON_ID, EVENT_DATE}, matching the
// Daily… variant naming convention.
func (a *ValueAggregator) Daily() *ValueAggregator {
	d := *a
	d.GroupBy = append([]string{}, a.GroupBy...)
	if !containsStr(d.GroupBy, relation.ColEventDate) {
		d.GroupBy = append(d.GroupBy, relation.ColEventDate)
	}
	return &d
}

var aggFuncFor = map[ValueFunc]relation.AggFunc{
	ValueMin:    relation.AggMin,
	ValueMax:    relation.AggMax,
	ValueMean:   relation.AggMean,
	ValueMedian: relation.AggMedian,
}

func (a *ValueAggregator) Apply(t relation.Table) relation.Table {
	aggs := map[string]relation.AggExpr{
		a.ValueColumn: {Func: aggFuncFor[a.Func], Expr: relation.Col(a.ValueColumn)},
	}
	// Carry the representative EVENT_DATE along unless the group-by set
	// already names it (the Daily… variants), matching ValueAggregator's
	// contract that EVENT_DATE survives non-reduced aggregation.
	if !containsStr(a.GroupBy, relation.ColEventDate) {
		aggs[relation.ColEventDate] = relation.First(relation.Col(relation.ColEventDate))
	}

	reduced := t.GroupBy(a.GroupBy...).Aggregate(aggs)

	if !a.Reduce {
		return reduced
	}
	return reduced.Mutate(relation.ColEventDate, relation.Null())
}
