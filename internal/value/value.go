// Package value implements the Value threshold type used throughout the
// filter and aggregator packages: an operator drawn from {>, >=, <, <=, =}
// paired with a numeric or date bound.
package value

import (
	"fmt"
	"math"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

// Operator is one of the five comparison operators a Value may carry.
type Operator string

const (
	GreaterThan        Operator = ">"
	GreaterThanOrEqual Operator = ">="
	LessThan           Operator = "<"
	LessThanOrEqual    Operator = "<="
	Equal              Operator = "="
)

func (op Operator) valid() bool {
	switch op {
	case GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual, Equal:
		return true
	}
	return false
}

var shortOperator = map[Operator]string{
	GreaterThan:        "g",
	GreaterThanOrEqual: "ge",
	LessThan:           "l",
	LessThanOrEqual:    "le",
	Equal:              "eq",
}

var operatorText = map[Operator]string{
	GreaterThan:        "greater than",
	GreaterThanOrEqual: "greater than or equal to",
	LessThan:           "less than",
	LessThanOrEqual:    "less than or equal to",
	Equal:              "equal to",
}

// Value is a numeric threshold: an operator paired with a float64 bound.
// Integral bounds render without a decimal point, matching the source
// system's to_short_string formatting (e.g. "ge18", not "ge18.0").
type Value struct {
	Operator Operator
	Bound    float64
}

// New constructs a Value, returning an error if op is not one of the five
// recognised comparison operators.
func New(op Operator, bound float64) (Value, error) {
	if !op.valid() {
		return Value{}, fmt.Errorf("value: operator must be >, >=, <, <=, or =, got %q", op)
	}
	return Value{Operator: op, Bound: bound}, nil
}

// GreaterThanValue, GreaterThanOrEqualValue, LessThanValue,
// LessThanOrEqualValue and EqualValue are unchecked convenience
// constructors for the five fixed operators.
func GreaterThanValue(bound float64) Value       { return Value{Operator: GreaterThan, Bound: bound} }
func GreaterThanOrEqualValue(bound float64) Value { return Value{Operator: GreaterThanOrEqual, Bound: bound} }
func LessThanValue(bound float64) Value           { return Value{Operator: LessThan, Bound: bound} }
func LessThanOrEqualValue(bound float64) Value    { return Value{Operator: LessThanOrEqual, Bound: bound} }
func EqualValue(bound float64) Value              { return Value{Operator: Equal, Bound: bound} }

// Satisfies reports whether x satisfies the threshold.
func (v Value) Satisfies(x float64) bool {
	switch v.Operator {
	case GreaterThan:
		return x > v.Bound
	case GreaterThanOrEqual:
		return x >= v.Bound
	case LessThan:
		return x < v.Bound
	case LessThanOrEqual:
		return x <= v.Bound
	case Equal:
		return x == v.Bound
	}
	return false
}

// ShortString renders a compact form such as "ge18" or "le65.5", used to
// build human-readable phenotype and codelist names.
func (v Value) ShortString() string {
	op := shortOperator[v.Operator]
	if v.Bound == math.Trunc(v.Bound) {
		return fmt.Sprintf("%s%d", op, int64(v.Bound))
	}
	return fmt.Sprintf("%s%v", op, v.Bound)
}

// String renders a human-readable form such as "greater than 18".
func (v Value) String() string {
	if v.Bound == math.Trunc(v.Bound) {
		return fmt.Sprintf("%s %d", operatorText[v.Operator], int64(v.Bound))
	}
	return fmt.Sprintf("%s %v", operatorText[v.Operator], v.Bound)
}

// ClassName identifies this type in the to_dict/from_dict wire format.
func (Value) ClassName() string { return "Value" }

// ToDict returns the canonical serialisable representation of v.
func (v Value) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"class_name": v.ClassName(),
		"operator":   string(v.Operator),
		"value":      v.Bound,
	}
}

// FromDict reconstructs a Value from its ToDict representation.
func FromDict(d serialize.Dict) (Value, error) {
	op, _ := d["operator"].(string)
	bound, ok := d["value"].(float64)
	if !ok {
		return Value{}, fmt.Errorf("value: FromDict requires a numeric \"value\" field, got %T", d["value"])
	}
	return New(Operator(op), bound)
}

// DateValue is a date threshold: an operator paired with a calendar date
// bound. Time-of-day is ignored; Bound is always normalised to midnight UTC.
type DateValue struct {
	Operator Operator
	Bound    time.Time
}

// NewDate constructs a DateValue, returning an error if op is not one of
// the five recognised comparison operators.
func NewDate(op Operator, bound time.Time) (DateValue, error) {
	if !op.valid() {
		return DateValue{}, fmt.Errorf("value: operator must be >, >=, <, <=, or =, got %q", op)
	}
	y, m, d := bound.Date()
	return DateValue{Operator: op, Bound: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}, nil
}

// ParseDate parses a "2006-01-02" string and constructs a DateValue.
func ParseDate(op Operator, s string) (DateValue, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return DateValue{}, fmt.Errorf("value: parse date %q: %w", s, err)
	}
	return NewDate(op, t)
}

// Before, BeforeOrOn, After and AfterOrOn build the four DateValue
// boundaries most commonly paired in a DateFilter or a data-period filter
// (internal/dataperiod).
func Before(t time.Time) DateValue     { v, _ := NewDate(LessThan, t); return v }
func BeforeOrOn(t time.Time) DateValue { v, _ := NewDate(LessThanOrEqual, t); return v }
func After(t time.Time) DateValue      { v, _ := NewDate(GreaterThan, t); return v }
func AfterOrOn(t time.Time) DateValue  { v, _ := NewDate(GreaterThanOrEqual, t); return v }

// Satisfies reports whether t (truncated to a calendar date) satisfies the
// threshold.
func (v DateValue) Satisfies(t time.Time) bool {
	y, m, d := t.Date()
	t = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch v.Operator {
	case GreaterThan:
		return t.After(v.Bound)
	case GreaterThanOrEqual:
		return !t.Before(v.Bound)
	case LessThan:
		return t.Before(v.Bound)
	case LessThanOrEqual:
		return !t.After(v.Bound)
	case Equal:
		return t.Equal(v.Bound)
	}
	return false
}

// ShortString renders a compact form such as "ge2020-01-01".
func (v DateValue) ShortString() string {
	return fmt.Sprintf("%s%s", shortOperator[v.Operator], v.Bound.Format("2006-01-02"))
}

// String renders a human-readable form such as "greater than 2020-01-01".
func (v DateValue) String() string {
	return fmt.Sprintf("%s %s", operatorText[v.Operator], v.Bound.Format("2006-01-02"))
}

// ClassName identifies this type in the to_dict/from_dict wire format.
func (DateValue) ClassName() string { return "Date" }

// ToDict returns the canonical serialisable representation of v, wrapping
// the bound the way the wire format wraps every datetime value.
func (v DateValue) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"class_name": v.ClassName(),
		"operator":   string(v.Operator),
		"value": map[string]interface{}{
			"__datetime__": v.Bound.Format("2006-01-02T15:04:05"),
		},
	}
}

// DateFromDict reconstructs a DateValue from its ToDict representation.
func DateFromDict(d serialize.Dict) (DateValue, error) {
	op, _ := d["operator"].(string)
	t, ok := serialize.UnwrapDatetime(d["value"])
	if !ok {
		return DateValue{}, fmt.Errorf("value: DateFromDict requires a wrapped datetime \"value\" field")
	}
	return NewDate(Operator(op), t)
}
