// Package transformer defines the table-to-table stage contract shared by the
// report pipeline. Concrete stages live in transformer/builtin.
//
// Stages are pure: Apply never modifies its input and returns either a new
// table or an error. A Chain stops at the first failing stage.
package transformer

import (
	"fmt"

	"lodging/internal/table"
)

// Transformer is one pipeline stage.
type Transformer interface {
	Apply(in *table.Table) (*table.Table, error)
}

// Func adapts a plain function to Transformer.
type Func func(in *table.Table) (*table.Table, error)

// Apply calls f.
func (f Func) Apply(in *table.Table) (*table.Table, error) { return f(in) }

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs every stage in order. The error of a failing stage is wrapped
// with its position and type; the taxonomy sentinel stays reachable through
// errors.Is.
func (c Chain) Apply(in *table.Table) (*table.Table, error) {
	out := in
	for i, t := range c {
		next, err := t.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%T): %w", i, t, err)
		}
		out = next
	}
	return out, nil
}
