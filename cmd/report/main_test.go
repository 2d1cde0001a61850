package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// These tests share the process environment and the global logger, so none
// of them run in parallel.

const hotels = "id|nom_estab|raz_social|nombre_act|nomb_asent|municipio|latitud|longitud\n" +
	"1|HOTEL A||Hoteles con otros servicios integrados|CENTRO|Cuauhtémoc|19.43|-99.13\n" +
	"2|HOTEL B||Hoteles con otros servicios integrados|CENTR0|Cuauhtémoc|19.43|-99.13\n" +
	"3|HOTEL C||Moteles|CENTRO|Coyoacán|19.35|-99.16\n"

const listingsHeader = "id,name,host_id,host_name,neighbourhood_group,neighbourhood,latitude,longitude,room_type," +
	"price,minimum_nights,number_of_reviews,last_review,reviews_per_month,calculated_host_listings_count," +
	"availability_365,number_of_reviews_ltm,license\n"

func listing(id int, hood string, price float64) string {
	return fmt.Sprintf("%d,Listing %d,%d,Host,,%s,19.4,-99.1,Entire home/apt,%g,2,4,2021-11-01,0.5,1,300,3,\n",
		id, id, 100+id, hood, price)
}

var listings = listingsHeader +
	listing(1, "Cuauhtémoc", 100) +
	listing(2, "Milpa Alta", 500) +
	listing(3, "Milpa Alta", 700)

// sources writes the hotels file, serves listings and points LODGING_* at
// both.
func sources(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hoteles.csv")
	if err := os.WriteFile(path, []byte(hotels), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listings))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("LODGING_HOTELS_PATH", path)
	t.Setenv("LODGING_LISTINGS_URL", srv.URL+"/listings.csv")
	t.Setenv("LODGING_METRICS_BACKEND", "none")
	return dir
}

func runReport(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Text(t *testing.T) {
	sources(t)

	code, out, errOut := runReport(t)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	for _, want := range []string{
		"# cdmx_lodging",
		"max price",
		"700.00",
		"## hotels_by_settlement_clean (2 rows)",
		"## listings_mean_price (2 rows)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_JSONAndExports(t *testing.T) {
	dir := sources(t)
	csvDir := filepath.Join(dir, "csv")
	xlsx := filepath.Join(dir, "report.xlsx")
	db := filepath.Join(dir, "report.db")

	cfgPath := filepath.Join(dir, "report.yaml")
	cfgYAML := "job: cdmx_test\nstorage:\n  kind: sqlite\n  dsn: " + db + "\n  batch_size: 2\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := runReport(t, "-config", cfgPath, "-format", "json", "-export-csv", csvDir, "-export-xlsx", xlsx)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}

	var res struct {
		Job      string `json:"job"`
		Listings struct {
			Kept int `json:"kept"`
		} `json:"listings"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if res.Job != "cdmx_test" || res.Listings.Kept != 3 {
		t.Fatalf("result = %+v", res)
	}

	if _, err := os.Stat(filepath.Join(csvDir, "listings_mean_price.csv")); err != nil {
		t.Fatalf("csv export: %v", err)
	}
	if _, err := os.Stat(xlsx); err != nil {
		t.Fatalf("xlsx export: %v", err)
	}

	conn, err := sql.Open("sqlite", db)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM "report_listings_mean_price"`).Scan(&n); err != nil {
		t.Fatalf("sqlite export: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported rows = %d, want 2", n)
	}
}

func TestRun_Validate(t *testing.T) {
	sources(t)

	code, _, errOut := runReport(t, "-validate")
	if code != 0 || !strings.Contains(errOut, "configuration is valid") {
		t.Fatalf("exit %d: %s", code, errOut)
	}

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"hotels": {"top": -3}, "listings": {"price_bound": -1}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, errOut = runReport(t, "-validate", "-config", bad)
	if code != 1 || !strings.Contains(errOut, "hotels.top") {
		t.Fatalf("exit %d: %s", code, errOut)
	}
}

func TestRun_Failures(t *testing.T) {
	sources(t)
	missing := filepath.Join(t.TempDir(), "nope.csv")

	cases := []struct {
		name  string
		env   map[string]string
		args  []string
		code  int
		class string
	}{
		{name: "bad flag", args: []string{"-nope"}, code: 2},
		{name: "bad format", args: []string{"-format", "xml"}, code: 2},
		{name: "missing config", args: []string{"-config", missing + ".json"}, code: 1, class: "report: "},
		{name: "missing hotels", env: map[string]string{"LODGING_HOTELS_PATH": missing}, code: 1, class: "report: SourceUnavailable: "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			code, out, errOut := runReport(t, tc.args...)
			if code != tc.code {
				t.Fatalf("exit %d, want %d: %s", code, tc.code, errOut)
			}
			if out != "" {
				t.Fatalf("stdout not empty on failure: %q", out)
			}
			if tc.class != "" {
				if !strings.HasPrefix(errOut, tc.class) || strings.Count(errOut, "\n") != 1 {
					t.Fatalf("stderr = %q, want one line starting %q", errOut, tc.class)
				}
			}
		})
	}
}
