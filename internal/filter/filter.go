// Package filter implements the stateless table->table transforms
// compute nodes compose to select rows: codelist matching, date/value
// bounds, relative time ranges, and categorical set membership.
package filter

import (
	"fmt"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/codelist"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

// Filter is total and pure: Apply(t) depends only on t and the filter's
// declared parameters, and is idempotent.
type Filter interface {
	Apply(t relation.Table) (relation.Table, error)
}

// resolvable is satisfied by both *codelist.Codelist and
// *codelist.CompositeCodelist.
type resolvable interface {
	ToCodes() []codelist.Code
}

// CodelistFilter selects rows whose (code_type, code) — or just code, when
// UseCodeType is false — matches any code resolved from Codelist.
type CodelistFilter struct {
	Codelist       resolvable
	UseCodeType    bool // when false, code_type is ignored during matching
	ColumnCode     string
	ColumnCodeType string
}

// NewCodelistFilter builds a CodelistFilter with the canonical CODE and
// CODE_TYPE column names.
func NewCodelistFilter(cl resolvable, useCodeType bool) *CodelistFilter {
	return &CodelistFilter{
		Codelist:       cl,
		UseCodeType:    useCodeType,
		ColumnCode:     relation.ColCode,
		ColumnCodeType: relation.ColCodeType,
	}
}

func (f *CodelistFilter) Apply(t relation.Table) (relation.Table, error) {
	if !hasColumn(t, f.ColumnCode) {
		return nil, &phenexerr.SchemaError{Column: f.ColumnCode, Detail: "CodelistFilter requires a CODE column"}
	}

	codes := f.Codelist.ToCodes()
	if f.UseCodeType {
		allowed := make(map[codelist.Code]bool, len(codes))
		for _, c := range codes {
			allowed[c] = true
		}
		return t.Filter(predicateFunc(func(row relation.Row) bool {
			code, _ := row.Get(f.ColumnCode).(string)
			ct, _ := row.Get(f.ColumnCodeType).(string)
			return allowed[codelist.Code{CodeType: ct, Code: code}]
		})), nil
	}

	allowed := make(map[string]bool, len(codes))
	for _, c := range codes {
		allowed[c.Code] = true
	}
	return t.Filter(predicateFunc(func(row relation.Row) bool {
		code, _ := row.Get(f.ColumnCode).(string)
		return allowed[code]
	})), nil
}

// predicateFunc adapts a plain Go predicate into a relation.Expr, so
// Filter implementations needn't build an Expr tree for lookups a map can
// answer directly.
type predicateFunc func(row relation.Row) bool

func (p predicateFunc) Eval(row relation.Row) interface{} { return p(row) }

func hasColumn(t relation.Table, col string) bool {
	for _, c := range t.Columns() {
		if c == col {
			return true
		}
	}
	return false
}

// ValueFilter bounds a numeric column between optional Min/Max values.
// DateFilter is a constructor returning the DateValue-typed equivalent
// over a date column, matching the source system's pattern of
// implementing DateFilter as a factory rather than a ValueFilter subclass
// (original_source/phenex/filters/date_filter.py).
type ValueFilter struct {
	Min, Max   *value.Value
	ColumnName string
}

// NewValueFilter builds a ValueFilter over ColumnName (default VALUE),
// with either bound optional.
func NewValueFilter(min, max *value.Value, columnName string) *ValueFilter {
	if columnName == "" {
		columnName = relation.ColValue
	}
	return &ValueFilter{Min: min, Max: max, ColumnName: columnName}
}

func (f *ValueFilter) Apply(t relation.Table) (relation.Table, error) {
	return t.Filter(predicateFunc(func(row relation.Row) bool {
		v, ok := asFloat(row.Get(f.ColumnName))
		if !ok {
			return false
		}
		if f.Min != nil && !f.Min.Satisfies(v) {
			return false
		}
		if f.Max != nil && !f.Max.Satisfies(v) {
			return false
		}
		return true
	})), nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// dateValueFilter holds a DateFilter's bounds; DateFilter itself is a
// function, not a type, mirroring the source system's choice to implement
// it as a factory that returns a ValueFilter-shaped object rather than a
// ValueFilter subclass (the docstring there notes subclassing broke
// serialisation).
type dateValueFilter struct {
	min, max   *value.DateValue
	columnName string
}

// DateFilter builds a Filter bounding a date column between optional
// Before/BeforeOrOn (max) and After/AfterOrOn (min) values. Column
// defaults to EVENT_DATE.
func DateFilter(min, max *value.DateValue, columnName string) Filter {
	if columnName == "" {
		columnName = relation.ColEventDate
	}
	return &dateValueFilter{min: min, max: max, columnName: columnName}
}

func (f *dateValueFilter) Apply(t relation.Table) (relation.Table, error) {
	return t.Filter(predicateFunc(func(row relation.Row) bool {
		tm, ok := row.Get(f.columnName).(time.Time)
		if !ok {
			return false
		}
		if f.min != nil && !f.min.Satisfies(tm) {
			return false
		}
		if f.max != nil && !f.max.Satisfies(tm) {
			return false
		}
		return true
	})), nil
}

// CategoricalFilter selects rows whose named column's value is a member of
// AllowedValues. Boolean combination is provided by And/Or/Not, which wrap
// any Filter (not just CategoricalFilter) into a composite evaluated row
// by row.
type CategoricalFilter struct {
	ColumnName    string
	AllowedValues []string
	allowedLookup map[string]bool
}

// NewCategoricalFilter builds a CategoricalFilter matching ColumnName
// against allowedValues.
func NewCategoricalFilter(columnName string, allowedValues []string) *CategoricalFilter {
	lookup := make(map[string]bool, len(allowedValues))
	for _, v := range allowedValues {
		lookup[v] = true
	}
	return &CategoricalFilter{ColumnName: columnName, AllowedValues: allowedValues, allowedLookup: lookup}
}

func (f *CategoricalFilter) Apply(t relation.Table) (relation.Table, error) {
	return t.Filter(predicateFunc(func(row relation.Row) bool {
		v, ok := row.Get(f.ColumnName).(string)
		return ok && f.allowedLookup[v]
	})), nil
}

// And, Or and Not combine Filters into a composite Filter evaluated
// row-by-row against the same input table.
func And(filters ...Filter) Filter { return &andFilter{filters} }
func Or(filters ...Filter) Filter  { return &orFilter{filters} }
func Not(f Filter) Filter          { return &notFilter{f} }

type andFilter struct{ filters []Filter }

func (f *andFilter) Apply(t relation.Table) (relation.Table, error) {
	out := t
	for _, sub := range f.filters {
		var err error
		out, err = sub.Apply(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type orFilter struct{ filters []Filter }

func (f *orFilter) Apply(t relation.Table) (relation.Table, error) {
	var union relation.Table
	for _, sub := range f.filters {
		matched, err := sub.Apply(t)
		if err != nil {
			return nil, err
		}
		if union == nil {
			union = matched
			continue
		}
		union = union.Union(matched)
	}
	if union == nil {
		return t.Filter(predicateFunc(func(relation.Row) bool { return false })), nil
	}
	return union.Distinct(), nil
}

type notFilter struct{ inner Filter }

func (f *notFilter) Apply(t relation.Table) (relation.Table, error) {
	matched, err := f.inner.Apply(t)
	if err != nil {
		return nil, err
	}
	key := func(r relation.Row) string {
		s := ""
		for _, c := range t.Columns() {
			s += c + "=" + toKeyString(r.Get(c)) + "\x1f"
		}
		return s
	}
	excluded := make(map[string]bool)
	for _, r := range matched.ToNative() {
		excluded[key(r)] = true
	}
	return t.Filter(predicateFunc(func(row relation.Row) bool {
		return !excluded[key(row)]
	})), nil
}

func toKeyString(v interface{}) string {
	if v == nil {
		return "\x00"
	}
	return fmt.Sprintf("%v", v)
}
