package filter

import (
	"time"

	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

// When selects which side of the anchor/target pair RelativeTimeRangeFilter
// subtracts from which.
type When string

const (
	Before When = "before" // diff = anchor_date - target_date
	After  When = "after"  // diff = target_date - anchor_date
)

// RelativeTimeRangeFilter bounds the day delta between a row's target date
// column and a per-subject anchor date, dropping rows with a null anchor
// or target. It is the only filter that introduces a dependency edge
// between phenotypes: when AnchorTable is supplied (the
// already-executed anchor phenotype's output), its EVENT_DATE is joined in
// per PERSON_ID; otherwise the row's own INDEX_DATE is the anchor.
type RelativeTimeRangeFilter struct {
	MinDays, MaxDays *value.Value
	When             When
	TargetColumn     string // defaults to EVENT_DATE
	AnchorTable      relation.Table // optional: an executed anchor phenotype's output
}

// NewRelativeTimeRangeFilter builds a RelativeTimeRangeFilter. anchorTable
// may be nil, in which case the row's INDEX_DATE is the anchor.
func NewRelativeTimeRangeFilter(minDays, maxDays *value.Value, when When, anchorTable relation.Table) *RelativeTimeRangeFilter {
	return &RelativeTimeRangeFilter{
		MinDays:      minDays,
		MaxDays:      maxDays,
		When:         when,
		TargetColumn: relation.ColEventDate,
		AnchorTable:  anchorTable,
	}
}

func (f *RelativeTimeRangeFilter) Apply(t relation.Table) (relation.Table, error) {
	anchored := t
	anchorCol := relation.ColIndexDate

	if f.AnchorTable != nil {
		anchorCol = "__ANCHOR_DATE__"
		renamed := renameColumn(f.AnchorTable, relation.ColEventDate, anchorCol)
		anchored = t.Join(renamed, []relation.JoinOn{relation.Eq(relation.ColPersonID)}, relation.JoinLeft)
	}

	filtered := anchored.Filter(predicateFunc(func(row relation.Row) bool {
		anchor, aok := row.Get(anchorCol).(time.Time)
		target, tok := row.Get(f.TargetColumn).(time.Time)
		if !aok || !tok {
			return false
		}

		var days float64
		if f.When == Before {
			days = float64(int(anchor.Sub(target).Hours()) / 24)
		} else {
			days = float64(int(target.Sub(anchor).Hours()) / 24)
		}

		if f.MinDays != nil && !f.MinDays.Satisfies(days) {
			return false
		}
		if f.MaxDays != nil && !f.MaxDays.Satisfies(days) {
			return false
		}
		return true
	}))

	if f.AnchorTable != nil {
		return filtered.Select(t.Columns()...), nil
	}
	return filtered, nil
}

// renameColumn projects other down to PERSON_ID and a renamed date column,
// so joining it in doesn't clash with the target table's own EVENT_DATE.
func renameColumn(t relation.Table, from, to string) relation.Table {
	return t.Select(relation.ColPersonID, from).Mutate(to, relation.Col(from)).Select(relation.ColPersonID, to)
}
