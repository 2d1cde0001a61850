package report

import (
	"lodging/internal/config"
	"lodging/internal/metrics"
	"lodging/internal/stats"
	"lodging/internal/table"
	"lodging/internal/transformer/builtin"
)

// Listings is the short-term rentals half of the report.
type Listings struct {
	// Rows is the row count as loaded; Kept is what survives the price
	// bound.
	Rows int `json:"rows"`
	Kept int `json:"kept"`

	DescribeBefore *table.Table `json:"describe_before"`
	DescribeAfter  *table.Table `json:"describe_after"`

	KPI KPI `json:"kpi"`

	// Listings per neighbourhood, ascending, and its max/mean/min.
	PerNeighbourhood        *table.Table  `json:"per_neighbourhood"`
	PerNeighbourhoodSummary stats.Summary `json:"per_neighbourhood_summary"`

	// Mean price per neighbourhood, descending.
	MeanPrice *table.Table `json:"mean_price"`

	BoxBorough string    `json:"box_borough"`
	Box        stats.Box `json:"box"`
}

// KPI holds the dashboard indicators, computed after the price bound.
type KPI struct {
	MaxPrice    float64 `json:"max_price"`
	MeanPrice   float64 `json:"mean_price"`
	MeanReviews float64 `json:"mean_reviews"`
	Rows        int     `json:"rows"`
}

func buildListings(p *pass, cfg config.Listings, raw *table.Table) (*Listings, error) {
	l := &Listings{Rows: raw.Len(), BoxBorough: cfg.BoxBorough}

	var listings *table.Table
	err := p.step("listings.drop", func() error {
		var err error
		listings, err = builtin.Drop{Columns: cfg.Drop}.Apply(raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step("listings.describe_raw", func() error {
		var err error
		l.DescribeBefore, err = stats.Describe(listings)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step("listings.filter", func() error {
		var err error
		listings, err = builtin.AtMost{Column: cfg.Price, Bound: cfg.PriceBound}.Apply(listings)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.Kept = listings.Len()
	metrics.RecordRow("listings", "filtered", l.Rows-l.Kept)

	err = p.step("listings.describe_filtered", func() error {
		var err error
		l.DescribeAfter, err = stats.Describe(listings)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step("listings.kpi", func() error {
		price, err := stats.Summarize(listings, cfg.Price)
		if err != nil {
			return err
		}
		reviews, err := stats.Summarize(listings, cfg.Reviews)
		if err != nil {
			return err
		}
		l.KPI = KPI{
			MaxPrice:    price.Max,
			MeanPrice:   price.Mean,
			MeanReviews: reviews.Mean,
			Rows:        listings.Len(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.step("listings.per_neighbourhood", func() error {
		var err error
		l.PerNeighbourhood, err = builtin.Aggregate{
			Keys: []string{cfg.Neighbourhood},
			Op:   builtin.Count,
			As:   cfg.CountLabel,
		}.Apply(listings)
		if err != nil {
			return err
		}
		l.PerNeighbourhoodSummary, err = stats.Summarize(l.PerNeighbourhood, cfg.CountLabel)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step("listings.mean_price", func() error {
		var err error
		l.MeanPrice, err = builtin.Aggregate{
			Keys:       []string{cfg.Neighbourhood},
			Op:         builtin.Mean,
			Value:      cfg.Price,
			Descending: true,
		}.Apply(listings)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.step("listings.box", func() error {
		subset, err := builtin.Where{Column: cfg.Neighbourhood, Value: cfg.BoxBorough}.Apply(listings)
		if err != nil {
			return err
		}
		l.Box, err = stats.BoxStats(subset, cfg.Price)
		return err
	})
	if err != nil {
		return nil, err
	}

	return l, nil
}
