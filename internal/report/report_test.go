package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"lodging/internal/config"
	"lodging/internal/loader"
	"lodging/internal/table"
)

const hotelsHeader = "id|nom_estab|raz_social|nombre_act|nomb_asent|municipio|latitud|longitud\n"

// hotelsFixture: 2 CENTR0 + 3 CENTRO + 1 CENTRO HISTORICO + 1 ROMA NORTE in
// Cuauhtémoc, 1 CENTRO in Coyoacán.
var hotelsFixture = hotelsHeader +
	"1|HOTEL A||Hoteles con otros servicios integrados|CENTRO|Cuauhtémoc|19.43|-99.13\n" +
	"2|HOTEL B||Hoteles con otros servicios integrados|CENTR0|Cuauhtémoc|19.43|-99.13\n" +
	"3|HOTEL C||Moteles|CENTRO|Coyoacán|19.35|-99.16\n" +
	"4|HOTEL D||Hoteles con otros servicios integrados|CENTRO|Cuauhtémoc|19.43|-99.14\n" +
	"5|HOTEL E||Moteles|ROMA NORTE|Cuauhtémoc|19.41|-99.16\n" +
	"6|HOTEL F||Hoteles con otros servicios integrados|CENTRO HISTORICO|Cuauhtémoc||\n" +
	"7|HOTEL G||Hoteles con otros servicios integrados|CENTR0|Cuauhtémoc|19.43|-99.13\n" +
	"8|HOTEL H||Moteles|CENTRO|Cuauhtémoc|19.44|-99.13\n"

const listingsHeader = "id,name,host_id,host_name,neighbourhood_group,neighbourhood,latitude,longitude,room_type," +
	"price,minimum_nights,number_of_reviews,last_review,reviews_per_month,calculated_host_listings_count," +
	"availability_365,number_of_reviews_ltm,license\n"

func listingRow(id int, hood string, price float64, reviews int) string {
	return fmt.Sprintf("%d,Listing %d,%d,Host,,%s,19.4,-99.1,Entire home/apt,%g,2,%d,2021-11-01,0.5,1,300,3,\n",
		id, id, 100+id, hood, price, reviews)
}

var listingsFixture = listingsHeader +
	listingRow(1, "Cuauhtémoc", 100, 10) +
	listingRow(2, "Milpa Alta", 500, 0) +
	listingRow(3, "Cuauhtémoc", 200, 20) +
	listingRow(4, "Coyoacán", 300, 5) +
	listingRow(5, "Cuauhtémoc", 25000, 1) +
	listingRow(6, "Milpa Alta", 700, 15)

// fixture writes the hotels file and serves the listings export; it returns
// a config pointing at both and a counter of remote hits.
func fixture(t *testing.T, listings string, status int) (config.Report, *atomic.Int32) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hoteles.csv")
	if err := os.WriteFile(path, []byte(hotelsFixture), 0o644); err != nil {
		t.Fatal(err)
	}

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/mexico-city/listings.csv" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(listings))
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultReport()
	cfg.Hotels.Source = config.Source{Kind: "file", Path: path}
	cfg.Listings.Source = config.Source{
		Kind: "http",
		URL:  srv.URL + "/{city}/listings.csv",
		Vars: map[string]string{"city": "mexico-city"},
	}
	return cfg, &hits
}

func rows(t *testing.T, tb *table.Table) [][]any {
	t.Helper()
	out := make([][]any, tb.Len())
	for i := range out {
		out[i] = []any(tb.Row(i))
	}
	return out
}

func TestBuild_Hotels(t *testing.T) {
	t.Parallel()

	cfg, _ := fixture(t, listingsFixture, http.StatusOK)
	res, err := Build(context.Background(), cfg, loader.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h := res.Hotels

	if h.Rows != 8 {
		t.Fatalf("rows=%d", h.Rows)
	}
	if want := []string{"Coyoacán", "Cuauhtémoc"}; !reflect.DeepEqual(h.Boroughs, want) {
		t.Fatalf("boroughs=%v", h.Boroughs)
	}
	if want := []string{"Hoteles con otros servicios integrados", "Moteles"}; !reflect.DeepEqual(h.Activities, want) {
		t.Fatalf("activities=%v", h.Activities)
	}
	if h.SettlementCount != 4 {
		t.Fatalf("settlement count=%d (%v)", h.SettlementCount, h.Settlements)
	}

	wantBefore := [][]any{
		{"CENTR0", "Cuauhtémoc", 2.0},
		{"CENTRO", "Cuauhtémoc", 3.0},
		{"CENTRO", "Coyoacán", 1.0},
		{"CENTRO HISTORICO", "Cuauhtémoc", 1.0},
		{"ROMA NORTE", "Cuauhtémoc", 1.0},
	}
	if got := rows(t, h.BySettlement); !reflect.DeepEqual(got, wantBefore) {
		t.Fatalf("before cleaning=%v\nwant %v", got, wantBefore)
	}
	if got := h.InspectBefore.Len(); got != 4 {
		t.Fatalf("inspect before rows=%d", got)
	}

	wantAfter := [][]any{
		{"CENTRO", "Cuauhtémoc", 6.0},
		{"CENTRO", "Coyoacán", 1.0},
		{"ROMA NORTE", "Cuauhtémoc", 1.0},
	}
	if got := rows(t, h.BySettlementClean); !reflect.DeepEqual(got, wantAfter) {
		t.Fatalf("after cleaning=%v\nwant %v", got, wantAfter)
	}
	if got := h.InspectAfter.Len(); got != 2 {
		t.Fatalf("inspect after rows=%d", got)
	}

	if got := h.ByDerived.Names(); !reflect.DeepEqual(got, []string{"col_alc", "alcaldia", "count"}) {
		t.Fatalf("derived columns=%v", got)
	}
	if s, _ := h.ByDerived.String(0, 0); s != "CENTR0/Cuauhtémoc" {
		t.Fatalf("first derived label=%q", s)
	}

	wantActivity := [][]any{
		{"Coyoacán", "Moteles", 1.0},
		{"Cuauhtémoc", "Hoteles con otros servicios integrados", 5.0},
		{"Cuauhtémoc", "Moteles", 2.0},
	}
	if got := rows(t, h.ByBoroughActivity); !reflect.DeepEqual(got, wantActivity) {
		t.Fatalf("by activity=%v\nwant %v", got, wantActivity)
	}

	// Counts are conserved through cleaning.
	var before, after float64
	for _, r := range rows(t, h.BySettlement) {
		before += r[2].(float64)
	}
	for _, r := range rows(t, h.BySettlementClean) {
		after += r[2].(float64)
	}
	if before != 8 || after != 8 {
		t.Fatalf("sum before=%v after=%v, want 8", before, after)
	}
}

func TestBuild_HotelsRankedAndLiteralInspection(t *testing.T) {
	t.Parallel()

	cfg, _ := fixture(t, listingsFixture, http.StatusOK)
	cfg.Hotels.Top = 3
	res, err := Build(context.Background(), cfg, loader.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h := res.Hotels

	// Highest counts first; ties keep first-occurrence order.
	wantTop := [][]any{
		{"CENTRO", "Cuauhtémoc", 3.0},
		{"CENTR0", "Cuauhtémoc", 2.0},
		{"CENTRO", "Coyoacán", 1.0},
	}
	if got := rows(t, h.TopSettlement); !reflect.DeepEqual(got, wantTop) {
		t.Fatalf("top before cleaning=%v\nwant %v", got, wantTop)
	}
	if got := h.TopDerived.Len(); got != 3 {
		t.Fatalf("top derived rows=%d, want 3", got)
	}
	if s, _ := h.TopDerived.String(0, 0); s != "CENTRO/Cuauhtémoc" {
		t.Fatalf("top derived label=%q", s)
	}
	wantTopClean := [][]any{
		{"CENTRO", "Cuauhtémoc", 6.0},
		{"CENTRO", "Coyoacán", 1.0},
		{"ROMA NORTE", "Cuauhtémoc", 1.0},
	}
	if got := rows(t, h.TopSettlementClean); !reflect.DeepEqual(got, wantTopClean) {
		t.Fatalf("top after cleaning=%v\nwant %v", got, wantTopClean)
	}

	// The literal CENTR0 fix alone merges the misspelling but leaves the
	// longer CENTRO variants for the prefix sweep.
	wantLiteral := [][]any{
		{"CENTRO", "Cuauhtémoc", 5.0},
		{"CENTRO", "Coyoacán", 1.0},
		{"CENTRO HISTORICO", "Cuauhtémoc", 1.0},
	}
	if got := rows(t, h.InspectLiteral); !reflect.DeepEqual(got, wantLiteral) {
		t.Fatalf("inspect after literal rules=%v\nwant %v", got, wantLiteral)
	}

	// Zero keeps every group.
	cfg.Hotels.Top = 0
	res, err = Build(context.Background(), cfg, loader.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := res.Hotels.TopSettlement.Len(); got != 5 {
		t.Fatalf("unbounded top rows=%d, want 5", got)
	}
}

func TestBuild_Listings(t *testing.T) {
	t.Parallel()

	cfg, _ := fixture(t, listingsFixture, http.StatusOK)
	res, err := Build(context.Background(), cfg, loader.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	l := res.Listings

	if l.Rows != 6 || l.Kept != 5 {
		t.Fatalf("rows=%d kept=%d", l.Rows, l.Kept)
	}
	if l.KPI.MaxPrice != 700 || l.KPI.MeanPrice != 360 || l.KPI.MeanReviews != 10 || l.KPI.Rows != 5 {
		t.Fatalf("kpi=%+v", l.KPI)
	}

	wantPer := [][]any{
		{"Coyoacán", 1.0},
		{"Cuauhtémoc", 2.0},
		{"Milpa Alta", 2.0},
	}
	if got := rows(t, l.PerNeighbourhood); !reflect.DeepEqual(got, wantPer) {
		t.Fatalf("per neighbourhood=%v", got)
	}
	if got := l.PerNeighbourhood.Names()[1]; got != "Cant. Listings" {
		t.Fatalf("count label=%q", got)
	}
	s := l.PerNeighbourhoodSummary
	if s.Max != 2 || s.Min != 1 || math.Abs(s.Mean-5.0/3) > 1e-12 {
		t.Fatalf("per neighbourhood summary=%+v", s)
	}

	wantMean := [][]any{
		{"Milpa Alta", 600.0},
		{"Coyoacán", 300.0},
		{"Cuauhtémoc", 150.0},
	}
	if got := rows(t, l.MeanPrice); !reflect.DeepEqual(got, wantMean) {
		t.Fatalf("mean price=%v", got)
	}

	if l.BoxBorough != "Milpa Alta" || l.Box.N != 2 || l.Box.Median != 600 || l.Box.Q1 != 550 || l.Box.Q3 != 650 {
		t.Fatalf("box=%+v", l.Box)
	}

	// describe() keeps the dropped columns out and sees the outlier only
	// before filtering.
	if l.DescribeBefore.Has("reviews_per_month") {
		t.Fatalf("dropped column described: %v", l.DescribeBefore.Names())
	}
	pc, _ := l.DescribeBefore.Index("price")
	if v, _ := l.DescribeBefore.Float(7, pc); v != 25000 {
		t.Fatalf("max price before filter=%v", v)
	}
	pc, _ = l.DescribeAfter.Index("price")
	if v, _ := l.DescribeAfter.Float(7, pc); v != 700 {
		t.Fatalf("max price after filter=%v", v)
	}

	if len(res.Steps) == 0 || res.Steps[0].Name != "load" {
		t.Fatalf("steps=%+v", res.Steps)
	}
	names := make([]string, 0, len(res.Tables()))
	for _, n := range res.Tables() {
		names = append(names, n.Name)
	}
	if len(names) != 14 || names[0] != "hotels_by_settlement" || names[13] != "listings_mean_price" {
		t.Fatalf("tables=%v", names)
	}
}

func TestBuild_RemoteFetchedOncePerLoader(t *testing.T) {
	t.Parallel()

	cfg, hits := fixture(t, listingsFixture, http.StatusOK)
	l := loader.New()
	for i := 0; i < 3; i++ {
		if _, err := Build(context.Background(), cfg, l); err != nil {
			t.Fatalf("Build #%d: %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("remote hits=%d, want 1", got)
	}
	if got := l.Fetches(); got != 2 {
		t.Fatalf("fetches=%d, want 2 (one per dataset)", got)
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		listings string
		status   int
		mutate   func(cfg *config.Report)
		want     error
	}{
		{
			name:     "missing_hotels_file",
			listings: listingsFixture,
			status:   http.StatusOK,
			mutate:   func(cfg *config.Report) { cfg.Hotels.Source.Path += ".missing" },
			want:     table.ErrSourceUnavailable,
		},
		{
			name:     "listings_404",
			listings: listingsFixture,
			status:   http.StatusOK,
			mutate:   func(cfg *config.Report) { cfg.Listings.Source.Vars = map[string]string{"city": "nowhere"} },
			want:     table.ErrSourceUnavailable,
		},
		{
			name:     "listings_server_error",
			listings: "",
			status:   http.StatusInternalServerError,
			want:     table.ErrSourceUnavailable,
		},
		{
			name:     "listings_width_mismatch",
			listings: listingsFixture + "7,extra\n",
			status:   http.StatusOK,
			want:     table.ErrMalformedInput,
		},
		{
			name:     "listings_non_numeric_price",
			listings: listingsHeader + strings.Replace(listingRow(1, "Tlalpan", 1, 1), ",1,2,", ",$1,2,", 1),
			status:   http.StatusOK,
			want:     table.ErrMalformedInput,
		},
		{
			name:     "keep_unknown_column",
			listings: listingsFixture,
			status:   http.StatusOK,
			mutate: func(cfg *config.Report) {
				cfg.Hotels.Keep = append(cfg.Hotels.Keep, "codigo_postal")
			},
			want: table.ErrUnknownColumn,
		},
		{
			name:     "drop_unknown_column",
			listings: listingsFixture,
			status:   http.StatusOK,
			mutate:   func(cfg *config.Report) { cfg.Listings.Drop = append(cfg.Listings.Drop, "amenities") },
			want:     table.ErrUnknownColumn,
		},
		{
			name:     "nan_bound",
			listings: listingsFixture,
			status:   http.StatusOK,
			mutate:   func(cfg *config.Report) { cfg.Listings.PriceBound = math.NaN() },
			want:     ErrInvalidConfig,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, _ := fixture(t, tc.listings, tc.status)
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			_, err := Build(context.Background(), cfg, loader.New())
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
		})
	}
}

func TestBuild_CanceledContext(t *testing.T) {
	t.Parallel()

	cfg, _ := fixture(t, listingsFixture, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, cfg, loader.New()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestBuild_VocabularyAudit(t *testing.T) {
	t.Parallel()

	cfg, _ := fixture(t, listingsFixture, http.StatusOK)
	cfg.Hotels.Vocabulary = []string{"CENTRO", "ROMA NORTE"}
	res, err := Build(context.Background(), cfg, loader.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Hotels.Unknown) != 0 {
		t.Fatalf("unknown after cleaning=%+v", res.Hotels.Unknown)
	}

	cfg.Hotels.Vocabulary = []string{"CENTRO"}
	res, err = Build(context.Background(), cfg, loader.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Hotels.Unknown) != 1 || res.Hotels.Unknown[0].Value != "ROMA NORTE" {
		t.Fatalf("unknown=%+v", res.Hotels.Unknown)
	}
}
