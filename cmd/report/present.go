package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"lodging/internal/report"
	"lodging/internal/table"
)

// writeText prints the report for a terminal: scalars first, then every
// table in presentation order.
func writeText(w io.Writer, res *report.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "# %s (%s)\n\n", res.Job, res.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if h := res.Hotels; h != nil {
		fmt.Fprintf(tw, "hotels\t%d rows\n", h.Rows)
		fmt.Fprintf(tw, "activities\t%s\n", strings.Join(h.Activities, "; "))
		fmt.Fprintf(tw, "settlements\t%d\n", h.SettlementCount)
		fmt.Fprintf(tw, "boroughs\t%s\n", strings.Join(h.Boroughs, "; "))
		for _, f := range h.Unknown {
			fmt.Fprintf(tw, "unknown settlement\t%q (%d rows)\n", f.Value, f.Rows)
		}
	}
	if l := res.Listings; l != nil {
		fmt.Fprintf(tw, "listings\t%d rows, %d within price bound\n", l.Rows, l.Kept)
		fmt.Fprintf(tw, "max price\t%.2f\n", l.KPI.MaxPrice)
		fmt.Fprintf(tw, "mean price\t%.2f\n", l.KPI.MeanPrice)
		fmt.Fprintf(tw, "mean reviews\t%.2f\n", l.KPI.MeanReviews)
		s := l.PerNeighbourhoodSummary
		fmt.Fprintf(tw, "listings per neighbourhood\tmin %.0f, mean %.2f, max %.0f\n", s.Min, s.Mean, s.Max)
		b := l.Box
		fmt.Fprintf(tw, "price box (%s)\tn=%d q1=%.2f median=%.2f q3=%.2f outliers=%d\n",
			l.BoxBorough, b.N, b.Q1, b.Median, b.Q3, len(b.Outliers))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, nt := range res.Tables() {
		if err := writeTable(w, nt); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, nt table.Named) error {
	fmt.Fprintf(w, "\n## %s (%d rows)\n", nt.Name, nt.Table.Len())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, rec := range nt.Table.Records() {
		if i > 0 {
			for c := range rec {
				if rec[c] == "" {
					rec[c] = "-"
				}
			}
		}
		fmt.Fprintln(tw, strings.Join(rec, "\t"))
	}
	return tw.Flush()
}
