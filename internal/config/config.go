// Package config defines the report configuration model: where the two
// datasets come from, how they are parsed and cleaned, and where results are
// exported.
//
// A Report is decoded from JSON or YAML (see Load) on top of DefaultReport,
// so a config file only needs the fields it changes. Environment overrides
// are applied afterwards (see Env).
//
// Example (trimmed):
//
//	{
//	  "job": "cdmx_lodging",
//	  "hotels":   { "source": { "kind": "file", "path": "data/denue_hoteles_cdmx_2020.csv" },
//	                "parse":  { "delimiter": "|" },
//	                "rules":  [ { "kind": "literal", "from": "CENTR0", "to": "CENTRO" } ] },
//	  "listings": { "source": { "kind": "http", "url": "http://host/{city}/{date}/listings.csv",
//	                            "vars": { "city": "mexico-city", "date": "2021-12-25" } },
//	                "price_bound": 20000 },
//	  "storage":  { "kind": "sqlite", "dsn": "file:report.db" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	pcsv "lodging/internal/parser/csv"
	"lodging/internal/transformer/builtin"
)

// Report is the top-level configuration of one report.
type Report struct {
	// Job labels metrics and log lines.
	Job      string   `json:"job" yaml:"job"`
	Hotels   Hotels   `json:"hotels" yaml:"hotels"`
	Listings Listings `json:"listings" yaml:"listings"`
	Remote   Remote   `json:"remote" yaml:"remote"`
	Export   Export   `json:"export" yaml:"export"`
	Storage  Storage  `json:"storage" yaml:"storage"`
}

// Source locates one dataset.
type Source struct {
	// Kind is "file" or "http".
	Kind string `json:"kind" yaml:"kind"`

	// Path is the local file for Kind "file".
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// URL is a template for Kind "http"; {name} placeholders are filled from
	// Vars.
	URL  string            `json:"url,omitempty" yaml:"url,omitempty"`
	Vars map[string]string `json:"vars,omitempty" yaml:"vars,omitempty"`
}

// Parse holds the CSV options of a dataset.
type Parse struct {
	// Delimiter is a single character; "," when empty.
	Delimiter        string   `json:"delimiter" yaml:"delimiter"`
	Encoding         string   `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	TrimSpace        bool     `json:"trim_space" yaml:"trim_space"`
	LazyQuotes       bool     `json:"lazy_quotes" yaml:"lazy_quotes"`
	NormalizeUnicode bool     `json:"normalize_unicode" yaml:"normalize_unicode"`
	Numeric          []string `json:"numeric" yaml:"numeric"`
}

// Comma returns the delimiter rune.
func (p Parse) Comma() rune {
	if p.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(p.Delimiter)
	return r
}

// CSV converts p into parser options.
func (p Parse) CSV() pcsv.Options {
	return pcsv.Options{
		Comma:            p.Comma(),
		TrimSpace:        p.TrimSpace,
		LazyQuotes:       p.LazyQuotes,
		Numeric:          append([]string(nil), p.Numeric...),
		Encoding:         p.Encoding,
		NormalizeUnicode: p.NormalizeUnicode,
	}
}

// Rule declares one normalization rule.
type Rule struct {
	// Kind is "literal", "prefix" or "pattern".
	Kind string `json:"kind" yaml:"kind"`
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// CompileRules turns rule declarations into a builtin.RuleSet. Unknown kinds
// and invalid expressions fail here.
func CompileRules(decl []Rule) (builtin.RuleSet, error) {
	rules := make([]builtin.Rule, len(decl))
	for i, d := range decl {
		k, err := builtin.ParseRuleKind(d.Kind)
		if err != nil {
			return builtin.RuleSet{}, fmt.Errorf("rule %d: %w", i, err)
		}
		rules[i] = builtin.Rule{Kind: k, From: d.From, To: d.To}
	}
	return builtin.CompileRules(rules...)
}

// Hotels configures the DENUE establishments dataset.
type Hotels struct {
	Source Source `json:"source" yaml:"source"`
	Parse  Parse  `json:"parse" yaml:"parse"`

	// Keep lists the projected columns in output order.
	Keep []string `json:"keep" yaml:"keep"`

	// Rename maps kept source names to report names.
	Rename map[string]string `json:"rename" yaml:"rename"`

	// Column names after renaming.
	Activity   string `json:"activity_column" yaml:"activity_column"`
	Settlement string `json:"settlement_column" yaml:"settlement_column"`
	Borough    string `json:"borough_column" yaml:"borough_column"`

	// Derived names the "settlement/borough" column.
	Derived string `json:"derived_column" yaml:"derived_column"`

	// Rules normalize the settlement column, in order.
	Rules []Rule `json:"rules" yaml:"rules"`

	// Inspect is the settlement prefix listed before and after cleaning.
	Inspect string `json:"inspect_prefix" yaml:"inspect_prefix"`

	// Top bounds the ranked settlement tables, highest counts first (0 = all).
	Top int `json:"top" yaml:"top"`

	// Vocabulary, when set, is the list of canonical settlement names; values
	// outside it are reported but never rewritten.
	Vocabulary []string `json:"vocabulary,omitempty" yaml:"vocabulary,omitempty"`
}

// Listings configures the short-term rental listings dataset.
type Listings struct {
	Source Source `json:"source" yaml:"source"`
	Parse  Parse  `json:"parse" yaml:"parse"`

	// Drop lists metadata columns removed after load.
	Drop []string `json:"drop" yaml:"drop"`

	Price         string `json:"price_column" yaml:"price_column"`
	Reviews       string `json:"reviews_column" yaml:"reviews_column"`
	Neighbourhood string `json:"neighbourhood_column" yaml:"neighbourhood_column"`

	// PriceBound is the inclusive upper bound of the outlier filter.
	PriceBound float64 `json:"price_bound" yaml:"price_bound"`

	// CountLabel names the listings-per-neighbourhood value column.
	CountLabel string `json:"count_label" yaml:"count_label"`

	// BoxBorough selects the neighbourhood whose prices get box statistics.
	BoxBorough string `json:"box_borough" yaml:"box_borough"`
}

// Remote configures the HTTP client used for "http" sources.
type Remote struct {
	Timeout            Duration `json:"timeout" yaml:"timeout"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	UserAgent          string   `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// Export names the file exports produced after a pass. Empty fields are
// skipped.
type Export struct {
	CSVDir   string `json:"csv_dir,omitempty" yaml:"csv_dir,omitempty"`
	XLSXFile string `json:"xlsx_file,omitempty" yaml:"xlsx_file,omitempty"`
}

// Storage configures the optional SQL export.
type Storage struct {
	// Kind selects a registered backend: "sqlite", "postgres", "mssql",
	// "mysql". Empty disables the SQL export.
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`

	// TablePrefix is prepended to every exported table name.
	TablePrefix string `json:"table_prefix" yaml:"table_prefix"`

	BatchSize       int  `json:"batch_size" yaml:"batch_size"`
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table"`
}

// Duration is a time.Duration that decodes from "30s" style strings in JSON
// and YAML. Plain JSON numbers are read as seconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		*d = Duration(time.Duration(x * float64(time.Second)))
		return nil
	case string:
		return d.parse(x)
	default:
		return fmt.Errorf("duration: unexpected %T", v)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler (gopkg.in/yaml.v2).
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		return d.parse(s)
	}
	var secs float64
	if err := unmarshal(&secs); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// DefaultListingsURL is the listings export the report was built around.
const DefaultListingsURL = "http://data.insideairbnb.com/mexico/df/{city}/{date}/visualisations/listings.csv"

// DefaultReport returns the configuration of the CDMX lodging report: the
// 2020 DENUE hotels extract and the December 2021 Mexico City listings.
func DefaultReport() Report {
	return Report{
		Job: "cdmx_lodging",
		Hotels: Hotels{
			Source: Source{Kind: "file", Path: "data/denue_hoteles_cdmx_2020.csv"},
			Parse: Parse{
				Delimiter: "|",
				TrimSpace: true,
				Numeric:   []string{"latitud", "longitud"},
			},
			Keep:       []string{"nom_estab", "nombre_act", "nomb_asent", "municipio", "latitud", "longitud"},
			Rename:     map[string]string{"municipio": "alcaldia"},
			Activity:   "nombre_act",
			Settlement: "nomb_asent",
			Borough:    "alcaldia",
			Derived:    "col_alc",
			Rules: []Rule{
				{Kind: "literal", From: "CENTR0", To: "CENTRO"},
				{Kind: "prefix", From: "CENTRO", To: "CENTRO"},
			},
			Inspect: "CENTR",
			Top:     20,
		},
		Listings: Listings{
			Source: Source{
				Kind: "http",
				URL:  DefaultListingsURL,
				Vars: map[string]string{"city": "mexico-city", "date": "2021-12-25"},
			},
			Parse: Parse{
				Delimiter: ",",
				Numeric:   []string{"latitude", "longitude", "price", "minimum_nights", "number_of_reviews"},
			},
			Drop: []string{
				"host_id", "neighbourhood_group", "last_review", "reviews_per_month",
				"calculated_host_listings_count", "availability_365", "number_of_reviews_ltm", "license",
			},
			Price:         "price",
			Reviews:       "number_of_reviews",
			Neighbourhood: "neighbourhood",
			PriceBound:    20000,
			CountLabel:    "Cant. Listings",
			BoxBorough:    "Milpa Alta",
		},
		Remote:  Remote{Timeout: Duration(30 * time.Second)},
		Storage: Storage{TablePrefix: "report_", BatchSize: 1000, AutoCreateTable: true},
	}
}
