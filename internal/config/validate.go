package config

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"lodging/internal/datasource/httpds"
	pcsv "lodging/internal/parser/csv"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Report.
//
// Path is a dotted path into the config (e.g. "listings.price_bound",
// "hotels.rules[1]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateReport performs static validation of a Report. It checks what can
// be checked without touching the data: required fields, delimiters and
// encodings, URL templates, rule compilation, thresholds and the storage
// section. Column existence is checked again at run time against the
// loaded headers.
//
// It does not mutate the report. Callers decide whether warnings are fatal.
func ValidateReport(r Report) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateHotels(r.Hotels)...)
	issues = append(issues, validateListings(r.Listings)...)
	issues = append(issues, validateRemote(r.Remote)...)
	issues = append(issues, validateStorage(r.Storage)...)

	return issues
}

func validateSource(path string, s Source) []Issue {
	var issues []Issue

	switch strings.TrimSpace(s.Kind) {
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  "source kind must not be empty",
		})
	case "file":
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		if strings.TrimSpace(s.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".url",
				Message:  "http source requires a url",
			})
			break
		}
		if _, err := httpds.ExpandURL(s.URL, s.Vars); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".url",
				Message:  err.Error(),
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown source kind %q (want file or http)", s.Kind),
		})
	}

	return issues
}

func validateParse(path string, p Parse) []Issue {
	var issues []Issue

	if n := utf8.RuneCountInString(p.Delimiter); n > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".delimiter",
			Message:  fmt.Sprintf("delimiter must be a single character, got %q", p.Delimiter),
		})
	}
	if c := p.Comma(); c == '"' || c == '\r' || c == '\n' || c == utf8.RuneError {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".delimiter",
			Message:  fmt.Sprintf("invalid delimiter %q", p.Delimiter),
		})
	}
	if err := pcsv.CheckEncoding(p.Encoding); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".encoding",
			Message:  err.Error(),
		})
	}

	return issues
}

func validateHotels(h Hotels) []Issue {
	var issues []Issue

	issues = append(issues, validateSource("hotels.source", h.Source)...)
	issues = append(issues, validateParse("hotels.parse", h.Parse)...)

	if len(h.Keep) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "hotels.keep",
			Message:  "hotels.keep must list at least one column",
		})
	}
	kept := make(map[string]struct{}, len(h.Keep))
	for _, k := range h.Keep {
		kept[k] = struct{}{}
	}
	names := make(map[string]struct{}, len(h.Keep))
	for _, k := range h.Keep {
		if to, ok := h.Rename[k]; ok {
			k = to
		}
		if _, dup := names[k]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "hotels.rename",
				Message:  fmt.Sprintf("projection would produce column %q twice", k),
			})
		}
		names[k] = struct{}{}
	}
	for from := range h.Rename {
		if _, ok := kept[from]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "hotels.rename." + from,
				Message:  fmt.Sprintf("rename source %q is not among the kept columns", from),
			})
		}
	}

	for field, col := range map[string]string{
		"activity_column":   h.Activity,
		"settlement_column": h.Settlement,
		"borough_column":    h.Borough,
	} {
		if col == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "hotels." + field,
				Message:  "column name must not be empty",
			})
			continue
		}
		if len(names) > 0 {
			if _, ok := names[col]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "hotels." + field,
					Message:  fmt.Sprintf("column %q is not produced by the projection", col),
				})
			}
		}
	}
	if h.Derived == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "hotels.derived_column",
			Message:  "derived column name must not be empty",
		})
	} else if _, clash := names[h.Derived]; clash {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "hotels.derived_column",
			Message:  fmt.Sprintf("derived column %q collides with a projected column", h.Derived),
		})
	}

	if len(h.Rules) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "hotels.rules",
			Message:  "no normalization rules; settlement counts before and after cleaning will be identical",
		})
	}
	if h.Top < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "hotels.top",
			Message:  "top must not be negative",
		})
	}
	for i, rule := range h.Rules {
		if _, err := CompileRules([]Rule{rule}); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("hotels.rules[%d]", i),
				Message:  err.Error(),
			})
		}
	}

	return issues
}

func validateListings(l Listings) []Issue {
	var issues []Issue

	issues = append(issues, validateSource("listings.source", l.Source)...)
	issues = append(issues, validateParse("listings.parse", l.Parse)...)

	numeric := make(map[string]struct{}, len(l.Parse.Numeric))
	for _, n := range l.Parse.Numeric {
		numeric[n] = struct{}{}
	}
	dropped := make(map[string]struct{}, len(l.Drop))
	for _, d := range l.Drop {
		dropped[d] = struct{}{}
	}

	for field, col := range map[string]string{
		"price_column":   l.Price,
		"reviews_column": l.Reviews,
	} {
		if col == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "listings." + field,
				Message:  "column name must not be empty",
			})
			continue
		}
		if _, ok := numeric[col]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "listings." + field,
				Message:  fmt.Sprintf("column %q must be listed in listings.parse.numeric", col),
			})
		}
	}
	if l.Neighbourhood == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "listings.neighbourhood_column",
			Message:  "column name must not be empty",
		})
	}
	for _, col := range []string{l.Price, l.Reviews, l.Neighbourhood} {
		if _, ok := dropped[col]; ok && col != "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "listings.drop",
				Message:  fmt.Sprintf("column %q is dropped but used by the report", col),
			})
		}
	}

	switch {
	case math.IsNaN(l.PriceBound) || math.IsInf(l.PriceBound, 0):
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "listings.price_bound",
			Message:  "price_bound must be a finite number",
		})
	case l.PriceBound <= 0:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "listings.price_bound",
			Message:  fmt.Sprintf("price_bound=%v keeps no listing with a positive price", l.PriceBound),
		})
	}
	if l.CountLabel == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "listings.count_label",
			Message:  "count_label must not be empty",
		})
	}
	if l.BoxBorough == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "listings.box_borough",
			Message:  "box_borough is empty; box statistics will cover no listings",
		})
	}
	return issues
}

func validateRemote(r Remote) []Issue {
	var issues []Issue

	if r.Timeout < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "remote.timeout",
			Message:  "timeout must not be negative",
		})
	}
	if r.InsecureSkipVerify {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "remote.insecure_skip_verify",
			Message:  "TLS certificate verification is disabled",
		})
	}

	return issues
}

// validateStorage validates the SQL export. An empty kind disables it.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return nil
	}

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}
	if s.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; rows will be written one batch per table", s.BatchSize),
		})
	}
	if !s.AutoCreateTable {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.auto_create_table",
			Message:  "auto_create_table is false; destination tables must already exist",
		})
	}

	return issues
}
