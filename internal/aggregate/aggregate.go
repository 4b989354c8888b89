// Package aggregate implements the row-reducing operators that collapse a
// per-event table to a per-subject (or per-subject-per-day) row: date
// selection (First/Last/Nearest) and numeric reduction (Min/Max/Mean/
// Median), plus their Daily variants.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/relation"
)

// DateSelect is one of the three DateAggregator strategies.
type DateSelect string

const (
	First   DateSelect = "first"
	Last    DateSelect = "last"
	Nearest DateSelect = "nearest"
)

// DateAggregator partitions a table by GroupBy (default {PERSON_ID}) and
// selects one row per partition minimising/maximising EVENT_DATE (or, for
// Nearest, minimising the absolute day delta to AnchorColumn). Ties are
// broken deterministically on the remaining columns: VALUE first, then
// CODE, then everything else alphabetically.
type DateAggregator struct {
	Select       DateSelect
	GroupBy      []string
	AnchorColumn string // required when Select == Nearest
	Reduce       bool   // project to group key + date column, VALUE nulled
	DateColumn   string // defaults to EVENT_DATE
}

// NewDateAggregator builds a DateAggregator over the canonical PERSON_ID
// grouping set and EVENT_DATE column.
func NewDateAggregator(sel DateSelect) *DateAggregator {
	return &DateAggregator{
		Select:     sel,
		GroupBy:    []string{relation.ColPersonID},
		DateColumn: relation.ColEventDate,
	}
}

// Daily returns a copy of a grouped by {PERSON_ID, EVENT_DATE}, matching
// the Daily… variant naming convention.
func (a *DateAggregator) Daily() *DateAggregator {
	d := *a
	d.GroupBy = append([]string{}, a.GroupBy...)
	if !containsStr(d.GroupBy, relation.ColEventDate) {
		d.GroupBy = append(d.GroupBy, relation.ColEventDate)
	}
	return &d
}

func containsStr(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func (a *DateAggregator) Apply(t relation.Table) relation.Table {
	tieBreakCols := remainingColumns(t.Columns(), append(append([]string{}, a.GroupBy...), a.DateColumn))

	orderBy := make([]relation.OrderBy, 0, 1+len(tieBreakCols))
	switch a.Select {
	case First:
		orderBy = append(orderBy, relation.Asc(a.DateColumn))
	case Last:
		orderBy = append(orderBy, relation.Desc(a.DateColumn))
	case Nearest:
		// Nearest sorts by absolute day delta via a synthetic Mutate
		// column, since Window's OrderBy only names existing columns.
		return a.applyNearest(t, tieBreakCols)
	}
	for _, c := range tieBreakCols {
		orderBy = append(orderBy, relation.Asc(c))
	}

	partitions := t.Window(a.GroupBy, orderBy...)
	var rows []relation.Row
	for _, p := range partitions {
		if len(p.Rows) == 0 {
			continue
		}
		rows = append(rows, p.Rows[0])
	}
	out := relation.NewMemoryTable(t.Columns(), rows)
	return a.reduceIfNeeded(out)
}

func (a *DateAggregator) applyNearest(t relation.Table, tieBreakCols []string) relation.Table {
	const deltaCol = "__ABS_DAY_DELTA__"
	withDelta := t.Mutate(deltaCol, absDayDelta(a.DateColumn, a.AnchorColumn))

	orderBy := append([]relation.OrderBy{relation.Asc(deltaCol)}, orderByAll(tieBreakCols)...)
	partitions := withDelta.Window(a.GroupBy, orderBy...)

	var rows []relation.Row
	for _, p := range partitions {
		if len(p.Rows) == 0 {
			continue
		}
		r := p.Rows[0].Clone()
		delete(r, deltaCol)
		rows = append(rows, r)
	}
	out := relation.NewMemoryTable(t.Columns(), rows)
	return a.reduceIfNeeded(out)
}

func orderByAll(cols []string) []relation.OrderBy {
	out := make([]relation.OrderBy, len(cols))
	for i, c := range cols {
		out[i] = relation.Asc(c)
	}
	return out
}

func absDayDelta(dateCol, anchorCol string) relation.Expr {
	return exprFunc(func(row relation.Row) interface{} {
		target, ok1 := row.Get(dateCol).(time.Time)
		anchor, ok2 := row.Get(anchorCol).(time.Time)
		if !ok1 || !ok2 {
			return nil
		}
		delta := target.Sub(anchor).Hours() / 24
		return math.Abs(delta)
	})
}

type exprFunc func(row relation.Row) interface{}

func (f exprFunc) Eval(row relation.Row) interface{} { return f(row) }

func (a *DateAggregator) reduceIfNeeded(t relation.Table) relation.Table {
	if !a.Reduce {
		return t
	}
	cols := append(append([]string{}, a.GroupBy...), a.DateColumn)
	if !containsStr(cols, a.DateColumn) {
		cols = append(cols, a.DateColumn)
	}
	return t.Select(cols...).Mutate(relation.ColValue, relation.Null())
}

// remainingColumns returns all columns not in exclude, ordered for
// deterministic tie-breaking: VALUE first, then CODE, then everything
// else alphabetically.
func remainingColumns(all, exclude []string) []string {
	excluded := make(map[string]bool, len(exclude))
	for _, c := range exclude {
		excluded[c] = true
	}
	var rest []string
	var value, code bool
	for _, c := range all {
		if excluded[c] {
			continue
		}
		switch c {
		case relation.ColValue:
			value = true
		case relation.ColCode:
			code = true
		default:
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)

	out := make([]string, 0, len(rest)+2)
	if value {
		out = append(out, relation.ColValue)
	}
	if code {
		out = append(out, relation.ColCode)
	}
	return append(out, rest...)
}
