package builtin

import (
	"fmt"
	"sort"

	"lodging/internal/table"
)

// Audit flags labels of a string column that are not in Allowed. It does not
// rewrite anything: settlement, borough and activity labels have no
// canonical vocabulary, and an unknown label is a data-quality signal for a
// human, not something to fix silently.
type Audit struct {
	Column  string
	Allowed []string
}

// Finding is one label outside the vocabulary and how many rows carry it.
type Finding struct {
	Value string `json:"value"`
	Rows  int    `json:"rows"`
}

// Run returns the unknown labels sorted by descending row count, then by
// label. An empty Allowed list disables the audit.
func (a Audit) Run(in *table.Table) ([]Finding, error) {
	if len(a.Allowed) == 0 {
		return nil, nil
	}
	c, err := stringColumn(in, a.Column)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	allowed := make(map[string]struct{}, len(a.Allowed))
	for _, s := range a.Allowed {
		allowed[s] = struct{}{}
	}

	counts := make(map[string]int)
	for i := 0; i < in.Len(); i++ {
		s, ok := in.String(i, c)
		if !ok {
			continue
		}
		if _, known := allowed[s]; !known {
			counts[s]++
		}
	}

	out := make([]Finding, 0, len(counts))
	for v, n := range counts {
		out = append(out, Finding{Value: v, Rows: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rows != out[j].Rows {
			return out[i].Rows > out[j].Rows
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}
