// Package report runs one render pass of the CDMX lodging report: load the
// hotels extract and the listings export, clean and aggregate them, and
// return every table and indicator the presenter shows.
//
// A pass is all-or-nothing. The first failing step aborts it and its error
// keeps the table.Err* sentinel it was raised with.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"lodging/internal/config"
	"lodging/internal/datasource"
	"lodging/internal/datasource/file"
	"lodging/internal/datasource/httpds"
	"lodging/internal/loader"
	"lodging/internal/metrics"
	"lodging/internal/table"
)

// ErrInvalidConfig is returned by Build when ValidateReport reports errors.
var ErrInvalidConfig = errors.New("invalid report config")

// Result is the output of one render pass.
type Result struct {
	Job         string    `json:"job"`
	GeneratedAt time.Time `json:"generated_at"`
	Hotels      *Hotels   `json:"hotels"`
	Listings    *Listings `json:"listings"`
	Steps       []Step    `json:"steps"`
}

// Step records the timing of one stage of the pass.
type Step struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
}

// Tables returns the result tables in presentation order, for exporters.
func (r *Result) Tables() []table.Named {
	var out []table.Named
	add := func(name string, t *table.Table) {
		if t != nil {
			out = append(out, table.Named{Name: name, Table: t})
		}
	}
	if h := r.Hotels; h != nil {
		add("hotels_by_settlement", h.BySettlement)
		add("hotels_top_settlement", h.TopSettlement)
		add("hotels_by_settlement_borough", h.ByDerived)
		add("hotels_top_settlement_borough", h.TopDerived)
		add("hotels_inspect_before", h.InspectBefore)
		add("hotels_inspect_literal", h.InspectLiteral)
		add("hotels_by_settlement_clean", h.BySettlementClean)
		add("hotels_top_settlement_clean", h.TopSettlementClean)
		add("hotels_inspect_after", h.InspectAfter)
		add("hotels_by_borough_activity", h.ByBoroughActivity)
	}
	if l := r.Listings; l != nil {
		add("listings_describe_before", l.DescribeBefore)
		add("listings_describe_after", l.DescribeAfter)
		add("listings_per_neighbourhood", l.PerNeighbourhood)
		add("listings_mean_price", l.MeanPrice)
	}
	return out
}

// Build runs one render pass with cfg, loading through l. Loads are
// memoized by l, so repeated passes on one Loader fetch each source once.
func Build(ctx context.Context, cfg config.Report, l *loader.Loader) (*Result, error) {
	if issues := config.ValidateReport(cfg); config.HasErrors(issues) {
		var errs []error
		for _, iss := range issues {
			if iss.Severity == config.SeverityError {
				errs = append(errs, iss)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	hotelsSpec, listingsSpec, err := Specs(cfg)
	if err != nil {
		return nil, err
	}

	p := &pass{ctx: ctx, job: cfg.Job}
	res := &Result{Job: cfg.Job}

	var hotelsRaw, listingsRaw *table.Table
	err = p.step("load", func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			t, err := l.Load(gctx, hotelsSpec)
			hotelsRaw = t
			return err
		})
		g.Go(func() error {
			t, err := l.Load(gctx, listingsSpec)
			listingsRaw = t
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}

	if res.Hotels, err = buildHotels(p, cfg.Hotels, hotelsRaw); err != nil {
		return nil, err
	}
	if res.Listings, err = buildListings(p, cfg.Listings, listingsRaw); err != nil {
		return nil, err
	}

	res.Steps = p.steps
	res.GeneratedAt = time.Now().UTC()
	return res, nil
}

// Specs returns the loader specs of the two datasets.
func Specs(cfg config.Report) (hotels, listings loader.Spec, err error) {
	client := httpds.NewClient(httpds.Config{
		Timeout:            cfg.Remote.Timeout.Std(),
		InsecureSkipVerify: cfg.Remote.InsecureSkipVerify,
		UserAgent:          cfg.Remote.UserAgent,
	})

	hs, err := sourceFor(cfg.Hotels.Source, client)
	if err != nil {
		return loader.Spec{}, loader.Spec{}, fmt.Errorf("hotels source: %w", err)
	}
	ls, err := sourceFor(cfg.Listings.Source, client)
	if err != nil {
		return loader.Spec{}, loader.Spec{}, fmt.Errorf("listings source: %w", err)
	}
	return loader.Spec{Name: "hotels", Source: hs, Parse: cfg.Hotels.Parse.CSV()},
		loader.Spec{Name: "listings", Source: ls, Parse: cfg.Listings.Parse.CSV()},
		nil
}

func sourceFor(s config.Source, client *httpds.Client) (datasource.Source, error) {
	switch s.Kind {
	case "file":
		return file.NewLocal(s.Path), nil
	case "http":
		return httpds.NewRemote(client, s.URL, s.Vars)
	default:
		return nil, fmt.Errorf("unknown source kind %q", s.Kind)
	}
}

// pass carries the per-pass context and step log.
type pass struct {
	ctx   context.Context
	job   string
	steps []Step
}

// step runs fn as a named, timed stage. A canceled pass stops before the
// next step starts.
func (p *pass) step(name string, fn func() error) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.RecordStep(p.job, name, err, d)
	p.steps = append(p.steps, Step{Name: name, DurationMS: float64(d.Microseconds()) / 1000})
	if err != nil {
		log.Printf("report: step=%s failed after %s: %v", name, d.Round(time.Millisecond), err)
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Printf("report: step=%s ok in %s", name, d.Round(time.Millisecond))
	return nil
}
