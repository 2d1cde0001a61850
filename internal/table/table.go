// Package table defines the in-memory, column-typed table passed between the
// stages of the report pipeline.
//
// A Table is immutable once built: every stage returns a new Table and never
// writes into the rows of its input. Cells are string, float64, or nil
// (missing), and the Kind of each column decides which of the two non-nil
// types it may hold. Named access goes through Index, which rejects unknown
// columns with ErrUnknownColumn instead of yielding a missing sentinel.
package table

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the value type of a column.
type Kind int

const (
	// String columns hold string or nil cells.
	String Kind = iota
	// Float columns hold float64 or nil cells.
	Float
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Float:
		return "float"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Column describes one column of a Table.
type Column struct {
	Name string
	Kind Kind
}

// Row is a single ordered record; len(Row) equals the table width.
type Row []any

// Table is an ordered sequence of homogeneous rows.
type Table struct {
	cols  []Column
	index map[string]int
	rows  []Row
}

// New builds a Table and checks that column names are unique, that every row
// matches the column count, and that cells agree with their column's Kind.
// New takes ownership of rows; callers must not modify them afterwards.
func New(cols []Column, rows []Row) (*Table, error) {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("table: column %q: %w", c.Name, ErrDuplicateColumn)
		}
		index[c.Name] = i
	}
	for r, row := range rows {
		if len(row) != len(cols) {
			return nil, fmt.Errorf("table: row %d has %d cells, want %d: %w", r, len(row), len(cols), ErrMalformedInput)
		}
		for i, v := range row {
			if !kindAccepts(cols[i].Kind, v) {
				return nil, fmt.Errorf("table: row %d column %q: %T in %s column: %w", r, cols[i].Name, v, cols[i].Kind, ErrColumnKind)
			}
		}
	}
	cp := make([]Column, len(cols))
	copy(cp, cols)
	return &Table{cols: cp, index: index, rows: rows}, nil
}

// MustNew is New that panics on error. It is meant for literals in tests and
// static fixtures.
func MustNew(cols []Column, rows []Row) *Table {
	t, err := New(cols, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a Table with the given columns and no rows.
func Empty(cols []Column) (*Table, error) { return New(cols, nil) }

func kindAccepts(k Kind, v any) bool {
	if v == nil {
		return true
	}
	switch k {
	case String:
		_, ok := v.(string)
		return ok
	case Float:
		_, ok := v.(float64)
		return ok
	}
	return false
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Columns returns a copy of the column descriptors.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column.
func (t *Table) Index(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, fmt.Errorf("column %q (have %s): %w", name, strings.Join(t.Names(), ", "), ErrUnknownColumn)
	}
	return i, nil
}

// Column returns the descriptor of the named column.
func (t *Table) Column(name string) (Column, error) {
	i, err := t.Index(name)
	if err != nil {
		return Column{}, err
	}
	return t.cols[i], nil
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Row returns row i. The returned slice is shared and must not be modified.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Value returns the cell at row i, column position c.
func (t *Table) Value(i, c int) any { return t.rows[i][c] }

// String returns the cell at row i, column c as a string; ok is false for a
// missing cell or a non-string column.
func (t *Table) String(i, c int) (string, bool) {
	s, ok := t.rows[i][c].(string)
	return s, ok
}

// Float returns the cell at row i, column c as a float64; ok is false for a
// missing cell or a non-float column.
func (t *Table) Float(i, c int) (float64, bool) {
	f, ok := t.rows[i][c].(float64)
	return f, ok
}

// Head returns the first n rows (all rows when n <= 0 or n >= Len).
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= len(t.rows) {
		return t
	}
	return &Table{cols: t.cols, index: t.index, rows: t.rows[:n:n]}
}

// Unique returns the sorted distinct non-missing values of a string column.
func (t *Table) Unique(name string) ([]string, error) {
	c, err := t.Index(name)
	if err != nil {
		return nil, err
	}
	if t.cols[c].Kind != String {
		return nil, fmt.Errorf("unique %q: %w", name, ErrColumnKind)
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range t.rows {
		s, ok := t.String(i, c)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Concat returns a copy of t with an extra string column dst whose cells join
// the string form of cols with sep. A missing source cell renders as "nan",
// matching how the derived "settlement/borough" label was built from a text
// cast of the settlement column.
func (t *Table) Concat(dst, sep string, cols ...string) (*Table, error) {
	if t.Has(dst) {
		return nil, fmt.Errorf("concat %q: %w", dst, ErrDuplicateColumn)
	}
	idx := make([]int, len(cols))
	for j, name := range cols {
		c, err := t.Index(name)
		if err != nil {
			return nil, fmt.Errorf("concat %q: %w", dst, err)
		}
		idx[j] = c
	}

	outCols := append(t.Columns(), Column{Name: dst, Kind: String})
	rows := make([]Row, len(t.rows))
	parts := make([]string, len(idx))
	for i, row := range t.rows {
		for j, c := range idx {
			parts[j] = Format(row[c])
		}
		nr := make(Row, len(row)+1)
		copy(nr, row)
		nr[len(row)] = strings.Join(parts, sep)
		rows[i] = nr
	}
	return New(outCols, rows)
}

// Format renders a cell for display: strings verbatim, floats in shortest
// form, missing as "nan".
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "nan"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Records returns the rows rendered as strings, header first. It is the
// shape expected by encoding/csv writers and spreadsheet exporters.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.rows)+1)
	out = append(out, t.Names())
	for _, row := range t.rows {
		rec := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				continue
			}
			rec[i] = Format(v)
		}
		out = append(out, rec)
	}
	return out
}

// Maps returns the rows as column-name keyed maps, for JSON presenters.
func (t *Table) Maps() []map[string]any {
	out := make([]map[string]any, len(t.rows))
	for i, row := range t.rows {
		m := make(map[string]any, len(row))
		for c, v := range row {
			m[t.cols[c].Name] = v
		}
		out[i] = m
	}
	return out
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...], ...]}
// with missing cells as null.
func (t *Table) MarshalJSON() ([]byte, error) {
	type column struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	cols := make([]column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = column{Name: c.Name, Kind: c.Kind.String()}
	}
	rows := t.rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(struct {
		Columns []column `json:"columns"`
		Rows    []Row    `json:"rows"`
	}{cols, rows})
}

// Named pairs a table with a stable export name.
type Named struct {
	Name  string
	Table *Table
}
