package stats

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"lodging/internal/table"
)

func prices(vals ...any) *table.Table {
	rows := make([]table.Row, len(vals))
	for i, v := range vals {
		rows[i] = table.Row{"Milpa Alta", v}
	}
	return table.MustNew([]table.Column{
		{Name: "neighbourhood", Kind: table.String},
		{Name: "price", Kind: table.Float},
	}, rows)
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSummarize(t *testing.T) {
	t.Parallel()

	s, err := Summarize(prices(100.0, 200.0, nil), "price")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := Summary{Count: 2, Sum: 300, Mean: 150, Min: 100, Max: 200}
	if s != want {
		t.Fatalf("Summary = %+v, want %+v", s, want)
	}

	empty, err := Summarize(prices(), "price")
	if err != nil || empty != (Summary{}) {
		t.Fatalf("empty Summary = %+v, %v", empty, err)
	}

	if _, err := Summarize(prices(1.0), "neighbourhood"); !errors.Is(err, table.ErrColumnKind) {
		t.Fatalf("err = %v, want ErrColumnKind", err)
	}
	if _, err := Summarize(prices(1.0), "precio"); !errors.Is(err, table.ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}
}

func TestQuantile_Linear(t *testing.T) {
	t.Parallel()

	vals := []float64{1, 2, 3, 4}
	tests := map[float64]float64{0: 1, 0.25: 1.75, 0.5: 2.5, 0.75: 3.25, 1: 4}
	for q, want := range tests {
		if got := Quantile(vals, q); !near(got, want) {
			t.Fatalf("Quantile(%v) = %v, want %v", q, got, want)
		}
	}
	if got := Quantile([]float64{7}, 0.5); got != 7 {
		t.Fatalf("single value quantile = %v", got)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	d, err := Describe(prices(4.0, 1.0, nil, 3.0, 2.0))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !reflect.DeepEqual(d.Names(), []string{"stat", "price"}) {
		t.Fatalf("names = %v", d.Names())
	}
	want := map[string]float64{
		"count": 4, "mean": 2.5, "std": math.Sqrt(5.0 / 3.0),
		"min": 1, "25%": 1.75, "50%": 2.5, "75%": 3.25, "max": 4,
	}
	for i := 0; i < d.Len(); i++ {
		label, _ := d.String(i, 0)
		got, ok := d.Float(i, 1)
		if !ok || !near(got, want[label]) {
			t.Fatalf("%s = %v (ok=%v), want %v", label, got, ok, want[label])
		}
	}
}

func TestDescribe_DegenerateColumns(t *testing.T) {
	t.Parallel()

	one, err := Describe(prices(5.0))
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if v := one.Value(2, 1); v != nil {
		t.Fatalf("std of one value = %v, want missing", v)
	}

	none, err := Describe(prices())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if v, _ := none.Float(0, 1); v != 0 {
		t.Fatalf("count = %v, want 0", v)
	}
	for i := 1; i < none.Len(); i++ {
		if v := none.Value(i, 1); v != nil {
			t.Fatalf("row %d = %v, want missing", i, v)
		}
	}
}

func TestBoxStats(t *testing.T) {
	t.Parallel()

	b, err := BoxStats(prices(100.0, 200.0, 300.0, 400.0, 10000.0), "price")
	if err != nil {
		t.Fatalf("BoxStats: %v", err)
	}
	// Q1=200 Q3=400 IQR=200, fences [-100, 700].
	if b.N != 5 || b.Q1 != 200 || b.Median != 300 || b.Q3 != 400 || b.IQR != 200 {
		t.Fatalf("box = %+v", b)
	}
	if b.LowerWhisker != 100 || b.UpperWhisker != 400 {
		t.Fatalf("whiskers = %v..%v, want 100..400", b.LowerWhisker, b.UpperWhisker)
	}
	if !reflect.DeepEqual(b.Outliers, []float64{10000}) {
		t.Fatalf("outliers = %v", b.Outliers)
	}

	empty, err := BoxStats(prices(nil), "price")
	if err != nil || empty.N != 0 {
		t.Fatalf("empty box = %+v, %v", empty, err)
	}
}
