package report

import (
	"lodging/internal/config"
	"lodging/internal/metrics"
	"lodging/internal/table"
	"lodging/internal/transformer"
	"lodging/internal/transformer/builtin"
)

// Hotels is the establishments half of the report.
type Hotels struct {
	Rows int `json:"rows"`

	Activities      []string `json:"activities"`
	Settlements     []string `json:"settlements"`
	SettlementCount int      `json:"settlement_count"`
	Boroughs        []string `json:"boroughs"`

	// Establishments per (settlement, borough) before cleaning.
	BySettlement *table.Table `json:"by_settlement"`
	// Establishments per derived "settlement/borough" label.
	ByDerived *table.Table `json:"by_settlement_borough"`
	// Settlements starting with the inspect prefix: before cleaning, after
	// the literal rules alone, and after every rule.
	InspectBefore  *table.Table `json:"inspect_before"`
	InspectLiteral *table.Table `json:"inspect_literal,omitempty"`
	InspectAfter   *table.Table `json:"inspect_after"`
	// Establishments per (settlement, borough) after cleaning.
	BySettlementClean *table.Table `json:"by_settlement_clean"`
	// The same counts ranked by count, highest first, cut to the configured
	// top.
	TopSettlement      *table.Table `json:"top_settlement"`
	TopDerived         *table.Table `json:"top_settlement_borough"`
	TopSettlementClean *table.Table `json:"top_settlement_clean"`
	// Establishments per (borough, activity), the faceted chart.
	ByBoroughActivity *table.Table `json:"by_borough_activity"`

	// Unknown lists settlement labels outside the configured vocabulary.
	Unknown []builtin.Finding `json:"unknown_settlements,omitempty"`
}

func buildHotels(p *pass, cfg config.Hotels, raw *table.Table) (*Hotels, error) {
	h := &Hotels{}

	var hotels *table.Table
	err := p.step("hotels.project", func() error {
		var err error
		hotels, err = builtin.Project{Keep: cfg.Keep, Rename: cfg.Rename}.Apply(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	h.Rows = hotels.Len()
	metrics.RecordRow("hotels", "projected", h.Rows)

	err = p.step("hotels.unique", func() error {
		var err error
		if h.Activities, err = hotels.Unique(cfg.Activity); err != nil {
			return err
		}
		if h.Settlements, err = hotels.Unique(cfg.Settlement); err != nil {
			return err
		}
		h.SettlementCount = len(h.Settlements)
		h.Boroughs, err = hotels.Unique(cfg.Borough)
		return err
	})
	if err != nil {
		return nil, err
	}

	var inspect transformer.Transformer
	if cfg.Inspect != "" {
		rs, err := builtin.CompileRules(builtin.Rule{Kind: builtin.Prefix, From: cfg.Inspect})
		if err != nil {
			return nil, err
		}
		inspect = builtin.Match{Column: cfg.Settlement, Rules: rs}
	}
	bySettlement := builtin.Aggregate{
		Keys:   []string{cfg.Settlement, cfg.Borough},
		Op:     builtin.Count,
		SortBy: cfg.Settlement,
	}
	ranked := func(keys ...string) transformer.Chain {
		return transformer.Chain{
			builtin.Aggregate{Keys: keys, Op: builtin.Count, Descending: true},
			builtin.Top{N: cfg.Top},
		}
	}

	err = p.step("hotels.count_raw", func() error {
		var err error
		if h.BySettlement, err = bySettlement.Apply(hotels); err != nil {
			return err
		}
		if h.TopSettlement, err = ranked(cfg.Settlement, cfg.Borough).Apply(hotels); err != nil {
			return err
		}
		if inspect != nil {
			h.InspectBefore, err = inspect.Apply(h.BySettlement)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step("hotels.count_derived", func() error {
		var err error
		derived, err := builtin.Concat{Dst: cfg.Derived, Sep: "/", Columns: []string{cfg.Settlement, cfg.Borough}}.Apply(hotels)
		if err != nil {
			return err
		}
		h.ByDerived, err = builtin.Aggregate{Keys: []string{cfg.Derived, cfg.Borough}, Op: builtin.Count, SortBy: cfg.Derived}.Apply(derived)
		if err != nil {
			return err
		}
		h.TopDerived, err = ranked(cfg.Derived, cfg.Borough).Apply(derived)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step("hotels.normalize", func() error {
		if literal := literalRules(cfg.Rules); inspect != nil && len(literal) > 0 && len(literal) < len(cfg.Rules) {
			rules, err := config.CompileRules(literal)
			if err != nil {
				return err
			}
			h.InspectLiteral, err = transformer.Chain{
				builtin.Normalize{Column: cfg.Settlement, Rules: rules},
				bySettlement,
				inspect,
			}.Apply(hotels)
			if err != nil {
				return err
			}
		}
		rules, err := config.CompileRules(cfg.Rules)
		if err != nil {
			return err
		}
		hotels, err = builtin.Normalize{Column: cfg.Settlement, Rules: rules}.Apply(hotels)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step("hotels.count_clean", func() error {
		var err error
		if h.BySettlementClean, err = bySettlement.Apply(hotels); err != nil {
			return err
		}
		if h.TopSettlementClean, err = ranked(cfg.Settlement, cfg.Borough).Apply(hotels); err != nil {
			return err
		}
		if inspect != nil {
			h.InspectAfter, err = inspect.Apply(h.BySettlementClean)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step("hotels.count_activity", func() error {
		var err error
		h.ByBoroughActivity, err = builtin.Aggregate{
			Keys:   []string{cfg.Borough, cfg.Activity},
			Op:     builtin.Count,
			SortBy: cfg.Borough,
		}.Apply(hotels)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(cfg.Vocabulary) > 0 {
		err = p.step("hotels.audit", func() error {
			var err error
			h.Unknown, err = builtin.Audit{Column: cfg.Settlement, Allowed: cfg.Vocabulary}.Run(hotels)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	return h, nil
}

// literalRules returns the exact-match rules of decl, in order. Their effect
// alone is shown before the broader prefix and pattern sweeps.
func literalRules(decl []config.Rule) []config.Rule {
	var out []config.Rule
	for _, r := range decl {
		if k, err := builtin.ParseRuleKind(r.Kind); err == nil && k == builtin.Literal {
			out = append(out, r)
		}
	}
	return out
}
