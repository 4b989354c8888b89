// Package dataperiod implements DataPeriodFilter: the
// pre-execution transform applied to every domain table when a cohort
// declares a study period, so that downstream phenotypes see data as if
// the future past the study period's max date never happened and the
// past before its min date was never observed.
package dataperiod

import (
	"time"

	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

// fnExpr adapts a plain row function to relation.Expr, for mutations
// DataPeriodFilter needs that the expression language's Col/Lit/CaseWhen
// building blocks can't express directly (operator-precise date-bound
// nulling keyed on a DateValue's own operator).
type fnExpr func(relation.Row) interface{}

func (f fnExpr) Eval(row relation.Row) interface{} { return f(row) }

// colDateOfDeath isn't one of the engine's nine canonical Table columns
//; it's the person-domain's own shape, recognised here by
// exact name only, same as AgePhenotype's birth-date columns.
const colDateOfDeath = "DATE_OF_DEATH"

// DataPeriodFilter bounds a domain table to [Min, Max], honouring each
// exact-match column's own rule: EVENT_DATE rows outside
// the bound are dropped outright; START_DATE/END_DATE intervals are
// clipped into the bound (dropped only if they don't overlap it at all);
// DATE_OF_DEATH is nulled past Max but never causes a row to be dropped.
type DataPeriodFilter struct {
	Min, Max *value.DateValue
}

// New builds a DataPeriodFilter. min/max may be nil for an open-ended
// bound on that side.
func New(min, max *value.DateValue) *DataPeriodFilter {
	return &DataPeriodFilter{Min: min, Max: max}
}

// Apply runs every rule a domain table's present columns trigger, in this
// order: EVENT_DATE row filtering first (so later
// mutations see only rows that will survive), then START_DATE, END_DATE,
// DATE_OF_DEATH.
func (f *DataPeriodFilter) Apply(t relation.Table) (relation.Table, error) {
	cols := t.Columns()
	out := t
	var err error

	if hasColumn(cols, relation.ColEventDate) {
		out, err = filter.DateFilter(f.Min, f.Max, relation.ColEventDate).Apply(out)
		if err != nil {
			return nil, err
		}
	}

	if hasColumn(cols, relation.ColStartDate) {
		if f.Max != nil {
			out, err = filter.DateFilter(nil, f.Max, relation.ColStartDate).Apply(out)
			if err != nil {
				return nil, err
			}
		}
		if f.Min != nil {
			floor := f.Min.Bound
			if f.Min.Operator == value.GreaterThan {
				floor = floor.AddDate(0, 0, 1)
			}
			out = out.Mutate(relation.ColStartDate, relation.Greatest(relation.Col(relation.ColStartDate), relation.Lit(floor)))
		}
	}

	if hasColumn(cols, relation.ColEndDate) {
		if f.Min != nil {
			out, err = filter.DateFilter(f.Min, nil, relation.ColEndDate).Apply(out)
			if err != nil {
				return nil, err
			}
		}
		if f.Max != nil {
			out = out.Mutate(relation.ColEndDate, fnExpr(nullIfExceeds(relation.ColEndDate, f.Max)))
		}
	}

	if hasColumn(cols, colDateOfDeath) && f.Max != nil {
		out = out.Mutate(colDateOfDeath, fnExpr(nullIfExceeds(colDateOfDeath, f.Max)))
	}

	return out, nil
}

// nullIfExceeds builds a mutation nulling col's date when it no longer
// satisfies max's operator-precise boundary, leaving non-date and absent
// values untouched.
func nullIfExceeds(col string, max *value.DateValue) func(relation.Row) interface{} {
	return func(row relation.Row) interface{} {
		t, ok := row.Get(col).(time.Time)
		if !ok {
			return row.Get(col)
		}
		if max.Satisfies(t) {
			return t
		}
		return nil
	}
}

func hasColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
