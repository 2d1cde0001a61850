package builtin

import (
	"fmt"
	"math"

	"lodging/internal/table"
)

// AtMost keeps rows whose Column value is <= Bound. The bound must be
// finite (table.ErrInvalidThreshold otherwise) and the column numeric
// (table.ErrColumnKind). Rows with a missing value are dropped, since a
// missing value cannot be shown to satisfy the bound.
type AtMost struct {
	Column string
	Bound  float64
}

// Apply implements transformer.Transformer.
func (f AtMost) Apply(in *table.Table) (*table.Table, error) {
	if math.IsNaN(f.Bound) || math.IsInf(f.Bound, 0) {
		return nil, fmt.Errorf("filter %s <= %v: %w", f.Column, f.Bound, table.ErrInvalidThreshold)
	}
	c, err := numericColumn(in, f.Column)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return keepRows(in, func(r table.Row) bool {
		v, ok := r[c].(float64)
		return ok && v <= f.Bound
	})
}

// Where keeps rows whose string Column equals Value.
type Where struct {
	Column string
	Value  string
}

// Apply implements transformer.Transformer.
func (w Where) Apply(in *table.Table) (*table.Table, error) {
	c, err := stringColumn(in, w.Column)
	if err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	return keepRows(in, func(r table.Row) bool {
		s, ok := r[c].(string)
		return ok && s == w.Value
	})
}

// Match keeps rows whose string Column is matched by any rule of Rules.
// It reuses normalization matchers for inspection views such as "every
// settlement starting with CENTR".
type Match struct {
	Column string
	Rules  RuleSet
}

// Apply implements transformer.Transformer.
func (m Match) Apply(in *table.Table) (*table.Table, error) {
	c, err := stringColumn(in, m.Column)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	return keepRows(in, func(r table.Row) bool {
		s, ok := r[c].(string)
		return ok && m.Rules.Match(s)
	})
}

// Top keeps the first N rows (all rows when N <= 0).
type Top struct {
	N int
}

// Apply implements transformer.Transformer.
func (t Top) Apply(in *table.Table) (*table.Table, error) { return in.Head(t.N), nil }

func keepRows(in *table.Table, keep func(table.Row) bool) (*table.Table, error) {
	rows := make([]table.Row, 0, in.Len())
	for i := 0; i < in.Len(); i++ {
		if r := in.Row(i); keep(r) {
			rows = append(rows, r)
		}
	}
	return table.New(in.Columns(), rows)
}

func numericColumn(in *table.Table, name string) (int, error) {
	return kindColumn(in, name, table.Float)
}

func stringColumn(in *table.Table, name string) (int, error) {
	return kindColumn(in, name, table.String)
}

func kindColumn(in *table.Table, name string, want table.Kind) (int, error) {
	c, err := in.Index(name)
	if err != nil {
		return -1, err
	}
	if got := in.Columns()[c].Kind; got != want {
		return -1, fmt.Errorf("column %q is %s, want %s: %w", name, got, want, table.ErrColumnKind)
	}
	return c, nil
}
