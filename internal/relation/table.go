// Package relation defines the Table abstraction the engine computes
// against: a backend-agnostic relational query builder exposing select,
// filter, mutate, join, group-by/aggregate, window, distinct and union
//. Filters, aggregators and phenotypes are written purely
// against this interface; a backend (the in-memory MemoryTable here, or a
// DuckDB-backed table in internal/connector) supplies the Table it returns.
package relation

import "fmt"

// Canonical column names the engine's compute nodes read and write.
const (
	ColPersonID  = "PERSON_ID"
	ColEventDate = "EVENT_DATE"
	ColValue     = "VALUE"
	ColStartDate = "START_DATE"
	ColEndDate   = "END_DATE"
	ColCode      = "CODE"
	ColCodeType  = "CODE_TYPE"
	ColBoolean   = "BOOLEAN"
	ColIndexDate = "INDEX_DATE"
)

// JoinHow selects the join semantics for Table.Join.
type JoinHow string

const (
	JoinInner JoinHow = "inner"
	JoinLeft  JoinHow = "left"
	JoinOuter JoinHow = "outer"
	JoinAnti  JoinHow = "anti"
	JoinSemi  JoinHow = "semi"
)

// Row is one record: a column name to value mapping. A missing key and a
// key mapped to nil are both treated as SQL NULL by Expr evaluation.
type Row map[string]interface{}

// Get returns the value for col, or nil if absent.
func (r Row) Get(col string) interface{} {
	return r[col]
}

// Clone returns a shallow copy of r, safe to mutate independently.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is the relational expression the engine's compute nodes are
// written against. Every method returns a new Table,
// leaving the receiver unmodified.
type Table interface {
	// Columns lists the table's column names in a stable order.
	Columns() []string

	// Select projects the table down to cols, in the given order.
	Select(cols ...string) Table

	// Filter keeps rows for which predicate evaluates truthy.
	Filter(predicate Expr) Table

	// Mutate adds or replaces the named column with expr evaluated per row.
	Mutate(col string, expr Expr) Table

	// Join combines t with other on the given column-equality pairs.
	Join(other Table, on []JoinOn, how JoinHow) Table

	// GroupBy partitions the table by cols for a subsequent Aggregate.
	GroupBy(cols ...string) Grouped

	// Window partitions by groupBy and orders each partition by orderBy,
	// for aggregators that need ordered access within a group (First,
	// Last, Nearest, Daily variants).
	Window(groupBy []string, orderBy ...OrderBy) []Partition

	// Distinct removes duplicate rows across every column.
	Distinct() Table

	// Union appends other's rows to t's, requiring identical columns.
	Union(other Table) Table

	// ToNative materialises the table to a concrete row slice.
	ToNative() []Row
}

// JoinOn names a column-equality condition, optionally cross-naming when
// the left and right tables use different column names for the same key.
type JoinOn struct {
	Left  string
	Right string
}

// Eq builds a JoinOn where both sides use the same column name.
func Eq(col string) JoinOn { return JoinOn{Left: col, Right: col} }

// OrderBy names a sort key and direction for Window.
type OrderBy struct {
	Column string
	Desc   bool
}

// Asc builds an ascending OrderBy.
func Asc(col string) OrderBy { return OrderBy{Column: col} }

// Desc builds a descending OrderBy.
func Desc(col string) OrderBy { return OrderBy{Column: col, Desc: true} }

// Partition is one group produced by Table.Window: the group-by key
// values and the group's rows, sorted per the requested OrderBy.
type Partition struct {
	Key  Row
	Rows []Row
}

// Grouped is the intermediate value produced by Table.GroupBy, awaiting an
// Aggregate call to become a Table again.
type Grouped interface {
	// Aggregate computes one output column per entry in aggs, keyed by
	// output column name, plus the group-by columns.
	Aggregate(aggs map[string]AggExpr) Table
}

// AggExpr is a group aggregate function: Count, Sum, Min, Max, Mean,
// Median, First or Last, applied to a column expression.
type AggExpr struct {
	Func AggFunc
	Expr Expr
}

// AggFunc enumerates the aggregate functions GroupBy.Aggregate supports.
type AggFunc string

const (
	AggCount  AggFunc = "count"
	AggSum    AggFunc = "sum"
	AggMin    AggFunc = "min"
	AggMax    AggFunc = "max"
	AggMean   AggFunc = "mean"
	AggMedian AggFunc = "median"
	AggFirst  AggFunc = "first"
	AggLast   AggFunc = "last"
)

// Count builds a count(*) aggregate; its Expr is ignored.
func Count() AggExpr { return AggExpr{Func: AggCount} }

// Sum, Min, Max, Mean, Median, First and Last build an aggregate over expr.
func Sum(expr Expr) AggExpr    { return AggExpr{Func: AggSum, Expr: expr} }
func Min(expr Expr) AggExpr    { return AggExpr{Func: AggMin, Expr: expr} }
func Max(expr Expr) AggExpr    { return AggExpr{Func: AggMax, Expr: expr} }
func Mean(expr Expr) AggExpr   { return AggExpr{Func: AggMean, Expr: expr} }
func Median(expr Expr) AggExpr { return AggExpr{Func: AggMedian, Expr: expr} }
func First(expr Expr) AggExpr  { return AggExpr{Func: AggFirst, Expr: expr} }
func Last(expr Expr) AggExpr   { return AggExpr{Func: AggLast, Expr: expr} }

// ErrColumnMissing reports a column absent from a table. Expression
// evaluation does not return it: Col yields nil for an absent column.
type ErrColumnMissing struct {
	Column string
}

func (e *ErrColumnMissing) Error() string {
	return fmt.Sprintf("relation: column %q not present", e.Column)
}
