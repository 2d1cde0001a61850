// Package builtin contains the concrete stages of the report pipeline:
// projection, label normalization, row filters and grouped aggregation.
package builtin

import (
	"fmt"

	"lodging/internal/table"
)

// Project keeps Keep (in that order) and renames per Rename.
//
// Every name in Keep must exist, and every Rename key must be one of the kept
// columns; both fail with table.ErrUnknownColumn. A rename that would
// produce two columns with the same name fails with
// table.ErrDuplicateColumn. Row order and count are preserved.
type Project struct {
	Keep   []string
	Rename map[string]string
}

// Apply implements transformer.Transformer.
func (p Project) Apply(in *table.Table) (*table.Table, error) {
	all := in.Columns()
	idx := make([]int, len(p.Keep))
	cols := make([]table.Column, len(p.Keep))
	kept := make(map[string]struct{}, len(p.Keep))
	for j, name := range p.Keep {
		c, err := in.Index(name)
		if err != nil {
			return nil, fmt.Errorf("project: %w", err)
		}
		idx[j] = c
		cols[j] = all[c]
		kept[name] = struct{}{}
	}
	for from := range p.Rename {
		if _, ok := kept[from]; !ok {
			return nil, fmt.Errorf("project: rename source %q is not a kept column: %w", from, table.ErrUnknownColumn)
		}
	}
	for j := range cols {
		if to, ok := p.Rename[cols[j].Name]; ok {
			cols[j].Name = to
		}
	}

	rows := make([]table.Row, in.Len())
	for i := range rows {
		src := in.Row(i)
		r := make(table.Row, len(idx))
		for j, c := range idx {
			r[j] = src[c]
		}
		rows[i] = r
	}
	out, err := table.New(cols, rows)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	return out, nil
}

// Drop removes Columns and keeps the rest in their original order. Unknown
// names fail with table.ErrUnknownColumn.
type Drop struct {
	Columns []string
}

// Apply implements transformer.Transformer.
func (d Drop) Apply(in *table.Table) (*table.Table, error) {
	drop := make(map[string]struct{}, len(d.Columns))
	for _, name := range d.Columns {
		if !in.Has(name) {
			_, err := in.Index(name)
			return nil, fmt.Errorf("drop: %w", err)
		}
		drop[name] = struct{}{}
	}
	keep := make([]string, 0, in.Width())
	for _, name := range in.Names() {
		if _, ok := drop[name]; !ok {
			keep = append(keep, name)
		}
	}
	return Project{Keep: keep}.Apply(in)
}

// Concat derives the string column Dst by joining Columns with Sep (the
// "settlement/borough" label). Missing cells render as "nan".
type Concat struct {
	Dst     string
	Sep     string
	Columns []string
}

// Apply implements transformer.Transformer.
func (c Concat) Apply(in *table.Table) (*table.Table, error) {
	return in.Concat(c.Dst, c.Sep, c.Columns...)
}
