package builtin

import (
	"fmt"
	"sort"
	"strings"

	"lodging/internal/table"
)

// Op is the aggregation applied to each group.
type Op int

const (
	// Count counts the rows of a group.
	Count Op = iota
	// Mean averages the non-missing values of a numeric column.
	Mean
)

func (o Op) String() string {
	if o == Mean {
		return "mean"
	}
	return "count"
}

// ParseOp maps the config spelling of an aggregation.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "count", "size":
		return Count, nil
	case "mean", "avg":
		return Mean, nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q (want count or mean)", s)
	}
}

// Aggregate groups rows by one or two key columns and computes Op per group.
//
// The output holds the key columns followed by one Float value column, one
// row per key combination actually present in the input. Rows with a
// missing key cell belong to no group. For Mean, missing values are skipped
// and a group with no values gets a missing mean.
//
// Groups start in first-occurrence order and are then stably sorted by
// SortBy (the value column when empty), so ties keep input order. Missing
// values sort last in either direction.
type Aggregate struct {
	Keys []string
	Op   Op
	// Value is the numeric column averaged by Mean; ignored by Count.
	Value string
	// As names the value column. Defaults to "count" for Count and to Value
	// for Mean.
	As         string
	SortBy     string
	Descending bool
}

// groupKey holds the cell values of up to two key columns. Cells are strings
// or float64s, both comparable, so equal values (0 and -0 included) land in
// the same group whatever text they contain.
type groupKey [2]any

type group struct {
	key   table.Row
	n     int
	sum   float64
	valid int
}

// Apply implements transformer.Transformer.
func (a Aggregate) Apply(in *table.Table) (*table.Table, error) {
	if len(a.Keys) < 1 || len(a.Keys) > 2 {
		return nil, fmt.Errorf("aggregate: want one or two key columns, got %d", len(a.Keys))
	}
	all := in.Columns()
	keyIdx := make([]int, len(a.Keys))
	cols := make([]table.Column, 0, len(a.Keys)+1)
	for j, name := range a.Keys {
		c, err := in.Index(name)
		if err != nil {
			return nil, fmt.Errorf("aggregate: %w", err)
		}
		keyIdx[j] = c
		cols = append(cols, all[c])
	}

	valIdx := -1
	as := a.As
	switch a.Op {
	case Count:
		if as == "" {
			as = "count"
		}
	case Mean:
		c, err := numericColumn(in, a.Value)
		if err != nil {
			return nil, fmt.Errorf("aggregate mean: %w", err)
		}
		valIdx = c
		if as == "" {
			as = a.Value
		}
	default:
		return nil, fmt.Errorf("aggregate: unknown op %v", a.Op)
	}
	cols = append(cols, table.Column{Name: as, Kind: table.Float})

	sortIdx := len(cols) - 1
	if a.SortBy != "" && a.SortBy != as {
		sortIdx = -1
		for j, name := range a.Keys {
			if name == a.SortBy {
				sortIdx = j
			}
		}
		if sortIdx < 0 {
			return nil, fmt.Errorf("aggregate: sort key %q is not an output column: %w", a.SortBy, table.ErrUnknownColumn)
		}
	}

	var groups []*group
	byKey := make(map[groupKey]*group)
rows:
	for i := 0; i < in.Len(); i++ {
		r := in.Row(i)
		var k groupKey
		for j, c := range keyIdx {
			if r[c] == nil {
				continue rows
			}
			k[j] = r[c]
		}
		g, ok := byKey[k]
		if !ok {
			key := make(table.Row, len(keyIdx))
			copy(key, k[:len(keyIdx)])
			g = &group{key: key}
			byKey[k] = g
			groups = append(groups, g)
		}
		g.n++
		if valIdx >= 0 {
			if v, ok := r[valIdx].(float64); ok {
				g.sum += v
				g.valid++
			}
		}
	}

	out := make([]table.Row, len(groups))
	for i, g := range groups {
		row := make(table.Row, len(cols))
		copy(row, g.key)
		switch a.Op {
		case Count:
			row[len(cols)-1] = float64(g.n)
		case Mean:
			if g.valid > 0 {
				row[len(cols)-1] = g.sum / float64(g.valid)
			}
		}
		out[i] = row
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i][sortIdx], out[j][sortIdx], a.Descending)
	})

	res, err := table.New(cols, out)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return res, nil
}

// less orders two cells of the same kind. Missing cells go last regardless
// of direction.
func less(x, y any, desc bool) bool {
	switch {
	case x == nil:
		return false
	case y == nil:
		return true
	}
	switch xv := x.(type) {
	case float64:
		yv := y.(float64)
		if desc {
			return xv > yv
		}
		return xv < yv
	case string:
		yv := y.(string)
		if desc {
			return xv > yv
		}
		return xv < yv
	}
	return false
}
