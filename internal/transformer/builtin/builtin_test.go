package builtin

import (
	"fmt"
	"math/rand"

	"lodging/internal/table"
)

// hg is n establishments sharing a (settlement, borough); a nil settlement
// is missing.
type hg struct {
	settlement any
	borough    string
	n          int
}

// hotels builds an establishment table, groups in order.
func hotels(groups ...hg) *table.Table {
	var rows []table.Row
	for _, g := range groups {
		for i := 0; i < g.n; i++ {
			rows = append(rows, table.Row{fmt.Sprintf("HOTEL %d", len(rows)), g.settlement, g.borough})
		}
	}
	return table.MustNew([]table.Column{
		{Name: "nom_estab", Kind: table.String},
		{Name: "nomb_asent", Kind: table.String},
		{Name: "alcaldia", Kind: table.String},
	}, rows)
}

// listings builds a listings table from prices; nil means missing.
func listings(prices ...any) *table.Table {
	rows := make([]table.Row, len(prices))
	hoods := []string{"Cuauhtémoc", "Coyoacán", "Milpa Alta"}
	for i, p := range prices {
		rows[i] = table.Row{fmt.Sprint(i + 1), hoods[i%len(hoods)], p}
	}
	return table.MustNew([]table.Column{
		{Name: "id", Kind: table.String},
		{Name: "neighbourhood", Kind: table.String},
		{Name: "price", Kind: table.Float},
	}, rows)
}

// randomListings is a reproducible generator for property checks.
func randomListings(seed int64, n int) *table.Table {
	rng := rand.New(rand.NewSource(seed))
	prices := make([]any, n)
	for i := range prices {
		switch rng.Intn(10) {
		case 0:
			prices[i] = nil
		default:
			prices[i] = float64(rng.Intn(40000))
		}
	}
	return listings(prices...)
}

func column(t *table.Table, name string) []any {
	c, err := t.Index(name)
	if err != nil {
		panic(err)
	}
	out := make([]any, t.Len())
	for i := range out {
		out[i] = t.Value(i, c)
	}
	return out
}
