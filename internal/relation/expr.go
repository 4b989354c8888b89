package relation

import (
	"time"
)

// Expr is a scalar expression evaluated per row: a column reference, a
// literal, or an operator over sub-expressions.
type Expr interface {
	Eval(row Row) interface{}
}

// Col references a row's column by name; absent or nil both evaluate to
// nil (SQL NULL semantics).
func Col(name string) Expr { return colExpr(name) }

type colExpr string

func (c colExpr) Eval(row Row) interface{} { return row[string(c)] }

// Lit wraps a constant value: a number, string, bool, time.Time, or nil.
func Lit(value interface{}) Expr { return litExpr{value} }

type litExpr struct{ value interface{} }

func (l litExpr) Eval(Row) interface{} { return l.value }

// Null is the nil literal.
func Null() Expr { return litExpr{nil} }

type binaryExpr struct {
	left, right Expr
	op          func(a, b interface{}) interface{}
}

func (b binaryExpr) Eval(row Row) interface{} {
	return b.op(b.left.Eval(row), b.right.Eval(row))
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

// Add, Sub, Mul and Div build arithmetic expressions over numeric
// operands; either side evaluating to nil or a non-numeric value yields
// nil.
func Add(a, b Expr) Expr { return arith(a, b, func(x, y float64) float64 { return x + y }) }
func Sub(a, b Expr) Expr { return arith(a, b, func(x, y float64) float64 { return x - y }) }
func Mul(a, b Expr) Expr { return arith(a, b, func(x, y float64) float64 { return x * y }) }
func Div(a, b Expr) Expr {
	return arith(a, b, func(x, y float64) float64 {
		if y == 0 {
			return 0
		}
		return x / y
	})
}

func arith(a, b Expr, f func(x, y float64) float64) Expr {
	return binaryExpr{a, b, func(av, bv interface{}) interface{} {
		af, aok := asFloat(av)
		bf, bok := asFloat(bv)
		if !aok || !bok {
			return nil
		}
		return f(af, bf)
	}}
}

// DaySub computes the whole-day difference a - b for two date/time
// operands, such as an anchor-to-target day delta. Yields nil if either
// operand is not a time.Time.
func DaySub(a, b Expr) Expr {
	return binaryExpr{a, b, func(av, bv interface{}) interface{} {
		at, aok := av.(time.Time)
		bt, bok := bv.(time.Time)
		if !aok || !bok {
			return nil
		}
		return float64(int(at.Sub(bt).Hours()) / 24)
	}}
}

// comparisonExpr compares two operands and always yields a bool rather
// than propagating NULL through Filter; how each comparison treats nil is
// described on EqOp below.
type comparisonExpr struct {
	left, right Expr
	cmp         func(a, b interface{}) bool
}

func (c comparisonExpr) Eval(row Row) interface{} {
	return c.cmp(c.left.Eval(row), c.right.Eval(row))
}

func compareOrdered(a, b interface{}, lt, eq bool) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			if af == bf {
				return eq
			}
			return (af < bf) == lt
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			if at.Equal(bt) {
				return eq
			}
			return at.Before(bt) == lt
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			if as == bs {
				return eq
			}
			return (as < bs) == lt
		}
	}
	return false
}

// EqOp, NotEq, Gt, Gte, Lt and Lte build two-operand comparisons. Gt, Gte,
// Lt and Lte evaluate to false when either operand is nil or the operands
// are of incomparable types. EqOp is true when both operands are nil, and
// false when only one is or the types are incomparable; NotEq is EqOp's
// negation.
func EqOp(a, b Expr) Expr {
	return comparisonExpr{a, b, func(av, bv interface{}) bool {
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return av == bv || compareOrdered(av, bv, false, true)
	}}
}

func NotEq(a, b Expr) Expr {
	eq := EqOp(a, b)
	return unaryExpr{eq, func(v interface{}) interface{} { return !truthy(v) }}
}

func Gt(a, b Expr) Expr  { return comparisonExpr{a, b, func(x, y interface{}) bool { return cmpOk(x, y) && compareOrdered(x, y, false, false) }} }
func Gte(a, b Expr) Expr { return comparisonExpr{a, b, func(x, y interface{}) bool { return cmpOk(x, y) && compareOrdered(x, y, false, true) }} }
func Lt(a, b Expr) Expr  { return comparisonExpr{a, b, func(x, y interface{}) bool { return cmpOk(x, y) && compareOrdered(x, y, true, false) }} }
func Lte(a, b Expr) Expr { return comparisonExpr{a, b, func(x, y interface{}) bool { return cmpOk(x, y) && compareOrdered(x, y, true, true) }} }

func cmpOk(a, b interface{}) bool { return a != nil && b != nil }

type unaryExpr struct {
	inner Expr
	op    func(v interface{}) interface{}
}

func (u unaryExpr) Eval(row Row) interface{} { return u.op(u.inner.Eval(row)) }

// IsNull builds a predicate that is true iff expr evaluates to nil.
func IsNull(expr Expr) Expr {
	return unaryExpr{expr, func(v interface{}) interface{} { return v == nil }}
}

// IsNotNull builds a predicate that is true iff expr does not evaluate to nil.
func IsNotNull(expr Expr) Expr {
	return unaryExpr{expr, func(v interface{}) interface{} { return v != nil }}
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// And, Or and Not build boolean combinators; non-bool operands are
// treated as false.
func And(exprs ...Expr) Expr {
	return multiExpr{exprs, func(vals []interface{}) interface{} {
		for _, v := range vals {
			if !truthy(v) {
				return false
			}
		}
		return true
	}}
}

func Or(exprs ...Expr) Expr {
	return multiExpr{exprs, func(vals []interface{}) interface{} {
		for _, v := range vals {
			if truthy(v) {
				return true
			}
		}
		return false
	}}
}

func Not(expr Expr) Expr {
	return unaryExpr{expr, func(v interface{}) interface{} { return !truthy(v) }}
}

type multiExpr struct {
	exprs []Expr
	op    func(vals []interface{}) interface{}
}

func (m multiExpr) Eval(row Row) interface{} {
	vals := make([]interface{}, len(m.exprs))
	for i, e := range m.exprs {
		vals[i] = e.Eval(row)
	}
	return m.op(vals)
}

// CaseWhen builds a searched CASE expression: the first branch whose
// condition is truthy supplies the result; otherwise els is evaluated (nil
// if omitted).
type WhenThen struct {
	When Expr
	Then Expr
}

func CaseWhen(branches []WhenThen, els Expr) Expr {
	return caseExpr{branches, els}
}

type caseExpr struct {
	branches []WhenThen
	els      Expr
}

func (c caseExpr) Eval(row Row) interface{} {
	for _, b := range c.branches {
		if truthy(b.When.Eval(row)) {
			return b.Then.Eval(row)
		}
	}
	if c.els == nil {
		return nil
	}
	return c.els.Eval(row)
}

// Greatest and Least return the maximum/minimum of their operands,
// ignoring nil operands; if every operand is nil the result is nil.
func Greatest(exprs ...Expr) Expr { return extremum(exprs, false) }
func Least(exprs ...Expr) Expr    { return extremum(exprs, true) }

func extremum(exprs []Expr, least bool) Expr {
	return multiExpr{exprs, func(vals []interface{}) interface{} {
		var best interface{}
		for _, v := range vals {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			if compareOrdered(v, best, least, false) {
				best = v
			}
		}
		return best
	}}
}
