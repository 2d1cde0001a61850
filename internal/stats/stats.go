// Package stats computes the scalar summaries shown next to the report's
// tables: KPI indicators, describe()-style column statistics and box-plot
// figures. Missing cells are ignored everywhere.
package stats

import (
	"fmt"
	"math"
	"sort"

	"lodging/internal/table"
)

// Summary holds the indicators of one numeric column. When Count is zero
// the other fields are zero and carry no meaning.
type Summary struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summarize returns the Summary of a Float column.
func Summarize(t *table.Table, col string) (Summary, error) {
	vals, err := values(t, col)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	for i, v := range vals {
		if i == 0 || v < s.Min {
			s.Min = v
		}
		if i == 0 || v > s.Max {
			s.Max = v
		}
		s.Sum += v
	}
	s.Count = len(vals)
	if s.Count > 0 {
		s.Mean = s.Sum / float64(s.Count)
	}
	return s, nil
}

// DescribeStats are the row labels of Describe, in order.
var DescribeStats = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// Describe returns one row per statistic in DescribeStats and one Float
// column per Float column of t, preceded by a "stat" label column. std is
// the sample standard deviation (n-1); quantiles interpolate linearly.
// Statistics that are undefined for the data (mean of nothing, std of one
// value) are missing.
func Describe(t *table.Table) (*table.Table, error) {
	cols := []table.Column{{Name: "stat", Kind: table.String}}
	var series [][]float64
	for _, c := range t.Columns() {
		if c.Kind != table.Float {
			continue
		}
		vals, err := values(t, c.Name)
		if err != nil {
			return nil, err
		}
		sort.Float64s(vals)
		series = append(series, vals)
		cols = append(cols, c)
	}

	rows := make([]table.Row, len(DescribeStats))
	for i, name := range DescribeStats {
		rows[i] = make(table.Row, len(cols))
		rows[i][0] = name
	}
	for j, vals := range series {
		for i, v := range describe(vals) {
			rows[i][j+1] = v
		}
	}
	return table.New(cols, rows)
}

// describe computes DescribeStats over sorted values.
func describe(sorted []float64) []any {
	out := make([]any, len(DescribeStats))
	n := len(sorted)
	out[0] = float64(n)
	if n == 0 {
		return out
	}
	mean := meanOf(sorted)
	out[1] = mean
	if n > 1 {
		out[2] = stddev(sorted, mean)
	}
	out[3] = sorted[0]
	out[4] = Quantile(sorted, 0.25)
	out[5] = Quantile(sorted, 0.5)
	out[6] = Quantile(sorted, 0.75)
	out[7] = sorted[n-1]
	return out
}

// Box holds box-plot figures: quartiles, Tukey whiskers (the most extreme
// values within 1.5 IQR of the box) and the points beyond them.
type Box struct {
	N            int       `json:"n"`
	Min          float64   `json:"min"`
	Q1           float64   `json:"q1"`
	Median       float64   `json:"median"`
	Q3           float64   `json:"q3"`
	Max          float64   `json:"max"`
	IQR          float64   `json:"iqr"`
	LowerWhisker float64   `json:"lower_whisker"`
	UpperWhisker float64   `json:"upper_whisker"`
	Outliers     []float64 `json:"outliers"`
}

// BoxStats returns the Box of a Float column. An empty column yields a Box
// with N == 0.
func BoxStats(t *table.Table, col string) (Box, error) {
	vals, err := values(t, col)
	if err != nil {
		return Box{}, err
	}
	b := Box{N: len(vals), Outliers: []float64{}}
	if b.N == 0 {
		return b, nil
	}
	sort.Float64s(vals)
	b.Min, b.Max = vals[0], vals[b.N-1]
	b.Q1 = Quantile(vals, 0.25)
	b.Median = Quantile(vals, 0.5)
	b.Q3 = Quantile(vals, 0.75)
	b.IQR = b.Q3 - b.Q1
	lo, hi := b.Q1-1.5*b.IQR, b.Q3+1.5*b.IQR
	b.LowerWhisker, b.UpperWhisker = b.Max, b.Min
	for _, v := range vals {
		if v < lo || v > hi {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		if v < b.LowerWhisker {
			b.LowerWhisker = v
		}
		if v > b.UpperWhisker {
			b.UpperWhisker = v
		}
	}
	return b, nil
}

// Quantile returns the q-th quantile of sorted values with linear
// interpolation between closest ranks. sorted must be non-empty.
func Quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func meanOf(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64, mean float64) float64 {
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

// values collects the non-missing cells of a Float column.
func values(t *table.Table, col string) ([]float64, error) {
	c, err := t.Index(col)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if k := t.Columns()[c].Kind; k != table.Float {
		return nil, fmt.Errorf("stats: column %q is %s: %w", col, k, table.ErrColumnKind)
	}
	out := make([]float64, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if v, ok := t.Float(i, c); ok {
			out = append(out, v)
		}
	}
	return out, nil
}
