package relation

import (
	"fmt"
	"sort"
)

// MemoryTable is the reference Table implementation: rows held in memory,
// used by the in-memory connector and by every package's unit tests. It
// generalises a string/args WHERE-clause accumulator into a
// backend-agnostic relational
// expression tree that a real connector (e.g. DuckDB) could instead lower
// to SQL.
type MemoryTable struct {
	cols []string
	rows []Row
}

// NewMemoryTable builds a table from cols (defining column order) and
// rows. Rows are copied defensively.
func NewMemoryTable(cols []string, rows []Row) *MemoryTable {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	c := make([]string, len(cols))
	copy(c, cols)
	return &MemoryTable{cols: c, rows: out}
}

func (t *MemoryTable) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

func (t *MemoryTable) ToNative() []Row {
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}

func (t *MemoryTable) Select(cols ...string) Table {
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		nr := make(Row, len(cols))
		for _, c := range cols {
			nr[c] = r[c]
		}
		rows[i] = nr
	}
	return &MemoryTable{cols: append([]string{}, cols...), rows: rows}
}

func (t *MemoryTable) Filter(predicate Expr) Table {
	var rows []Row
	for _, r := range t.rows {
		if truthy(predicate.Eval(r)) {
			rows = append(rows, r.Clone())
		}
	}
	return &MemoryTable{cols: t.Columns(), rows: rows}
}

func (t *MemoryTable) Mutate(col string, expr Expr) Table {
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		nr := r.Clone()
		nr[col] = expr.Eval(r)
		rows[i] = nr
	}
	cols := t.cols
	if !containsStr(cols, col) {
		cols = append(append([]string{}, cols...), col)
	}
	return &MemoryTable{cols: cols, rows: rows}
}

func containsStr(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func (t *MemoryTable) Join(other Table, on []JoinOn, how JoinHow) Table {
	otherRows := other.ToNative()
	leftCols := t.Columns()
	rightCols := other.Columns()

	cols := append([]string{}, leftCols...)
	for _, c := range rightCols {
		if !containsStr(cols, c) {
			cols = append(cols, c)
		}
	}

	matches := func(l, r Row) bool {
		for _, pair := range on {
			lv, rv := l[pair.Left], r[pair.Right]
			if lv == nil || rv == nil || lv != rv {
				return false
			}
		}
		return true
	}

	merge := func(l, r Row) Row {
		nr := make(Row, len(cols))
		for k, v := range l {
			nr[k] = v
		}
		for k, v := range r {
			if _, ok := nr[k]; !ok || v != nil {
				nr[k] = v
			}
		}
		return nr
	}

	var out []Row
	switch how {
	case JoinInner, JoinLeft, JoinOuter:
		rightMatched := make([]bool, len(otherRows))
		for _, l := range t.rows {
			matched := false
			for ri, r := range otherRows {
				if matches(l, r) {
					out = append(out, merge(l, r))
					matched = true
					rightMatched[ri] = true
				}
			}
			if !matched && how != JoinInner {
				out = append(out, merge(l, Row{}))
			}
		}
		if how == JoinOuter {
			for ri, r := range otherRows {
				if !rightMatched[ri] {
					out = append(out, merge(Row{}, r))
				}
			}
		}
	case JoinSemi:
		for _, l := range t.rows {
			for _, r := range otherRows {
				if matches(l, r) {
					out = append(out, l.Clone())
					break
				}
			}
		}
		cols = leftCols
	case JoinAnti:
		for _, l := range t.rows {
			matched := false
			for _, r := range otherRows {
				if matches(l, r) {
					matched = true
					break
				}
			}
			if !matched {
				out = append(out, l.Clone())
			}
		}
		cols = leftCols
	}
	return &MemoryTable{cols: cols, rows: out}
}

func (t *MemoryTable) Distinct() Table {
	seen := make(map[string]bool)
	var rows []Row
	for _, r := range t.rows {
		key := rowKey(r, t.cols)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, r.Clone())
	}
	return &MemoryTable{cols: t.Columns(), rows: rows}
}

func (t *MemoryTable) Union(other Table) Table {
	rows := append(t.ToNative(), other.ToNative()...)
	return &MemoryTable{cols: t.Columns(), rows: rows}
}

func sortRows(rows []Row, orderBy []OrderBy) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ob := range orderBy {
			a, b := rows[i][ob.Column], rows[j][ob.Column]
			if a == nil && b == nil {
				continue
			}
			if a == nil {
				return !ob.Desc
			}
			if b == nil {
				return ob.Desc
			}
			if compareOrdered(a, b, true, false) {
				return !ob.Desc
			}
			if compareOrdered(b, a, true, false) {
				return ob.Desc
			}
		}
		return false
	})
}

func (t *MemoryTable) Window(groupBy []string, orderBy ...OrderBy) []Partition {
	index := make(map[string]int)
	var parts []Partition
	for _, r := range t.rows {
		key := rowKey(r, groupBy)
		idx, ok := index[key]
		if !ok {
			idx = len(parts)
			index[key] = idx
			keyRow := make(Row, len(groupBy))
			for _, c := range groupBy {
				keyRow[c] = r[c]
			}
			parts = append(parts, Partition{Key: keyRow})
		}
		parts[idx].Rows = append(parts[idx].Rows, r.Clone())
	}
	for i := range parts {
		sortRows(parts[i].Rows, orderBy)
	}
	return parts
}

func rowKey(r Row, cols []string) string {
	var key string
	for _, c := range cols {
		key += c + "=" + formatKey(r[c]) + "\x1f"
	}
	return key
}

func formatKey(v interface{}) string {
	if v == nil {
		return "\x00"
	}
	switch x := v.(type) {
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
