// Command report runs one render pass of the CDMX lodging report and prints
// it, optionally exporting the result tables to CSV, XLSX or a SQL database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lodging/internal/config"
	"lodging/internal/export"
	"lodging/internal/loader"
	"lodging/internal/metrics/backends"
	"lodging/internal/report"
	"lodging/internal/storage"
	"lodging/internal/table"

	// register all backends with the storage factory.
	_ "lodging/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	cfgPath        string
	validate       bool
	verbose        bool
	format         string
	exportCSV      string
	exportXLSX     string
	metricsBackend string
	pushgatewayURL string
	datadogAddr    string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.cfgPath, "config", "", "report config (.json, .yaml or .yml); built-in defaults when empty")
	fs.BoolVar(&o.validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&o.verbose, "v", false, "enable verbose logs")
	fs.StringVar(&o.format, "format", "text", "output format: text or json")
	fs.StringVar(&o.exportCSV, "export-csv", "", "write every table as CSV into this directory")
	fs.StringVar(&o.exportXLSX, "export-xlsx", "", "write every table into this XLSX workbook")
	fs.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides LODGING_METRICS_BACKEND)")
	fs.StringVar(&o.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides LODGING_PUSHGATEWAY_URL)")
	fs.StringVar(&o.datadogAddr, "datadog-addr", "", "DogStatsD address (overrides LODGING_DATADOG_ADDR)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.format != "text" && o.format != "json" {
		return o, fmt.Errorf("unknown -format %q", o.format)
	}
	return o, nil
}

// loadConfig reads the config file (or defaults) and overlays LODGING_* env.
func loadConfig(o options) (config.Report, config.Env, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return config.Report{}, env, err
	}
	cfg := config.DefaultReport()
	if o.cfgPath != "" {
		if cfg, err = config.Load(o.cfgPath); err != nil {
			return cfg, env, err
		}
	}
	env.Apply(&cfg)
	if o.exportCSV != "" {
		cfg.Export.CSVDir = o.exportCSV
	}
	if o.exportXLSX != "" {
		cfg.Export.XLSXFile = o.exportXLSX
	}
	return cfg, env, nil
}

// run is main without the process exit; it returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}
	if !o.verbose {
		log.SetOutput(io.Discard)
		defer log.SetOutput(os.Stderr)
	}

	cfg, env, err := loadConfig(o)
	if err != nil {
		return fail(stderr, err)
	}

	issues := config.ValidateReport(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "report: configuration is invalid\n")
		return 1
	}
	if o.validate {
		fmt.Fprintf(stderr, "report: configuration is valid\n")
		return 0
	}

	backend := firstNonEmpty(o.metricsBackend, env.MetricsBackend)
	flush, err := backends.Install(backends.Options{
		Backend:        backend,
		Job:            cfg.Job,
		PushgatewayURL: firstNonEmpty(o.pushgatewayURL, env.PushgatewayURL),
		DatadogAddr:    firstNonEmpty(o.datadogAddr, env.DatadogAddr),
	})
	if err != nil {
		log.Printf("%v; metrics disabled", err)
	}
	defer flush()

	start := time.Now()
	res, err := report.Build(ctx, cfg, loader.New())
	if err != nil {
		return fail(stderr, err)
	}
	log.Printf("report: rendered in %s", time.Since(start).Truncate(time.Millisecond))

	switch o.format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(res)
	default:
		err = writeText(stdout, res)
	}
	if err != nil {
		return fail(stderr, err)
	}

	if err := exportAll(ctx, cfg, res.Tables()); err != nil {
		return fail(stderr, err)
	}
	return 0
}

func exportAll(ctx context.Context, cfg config.Report, tables []table.Named) error {
	if dir := cfg.Export.CSVDir; dir != "" {
		if err := export.CSVDir(dir, tables); err != nil {
			return err
		}
		log.Printf("export: csv dir=%s tables=%d", dir, len(tables))
	}
	if path := cfg.Export.XLSXFile; path != "" {
		if err := export.XLSX(path, tables); err != nil {
			return err
		}
		log.Printf("export: xlsx file=%s sheets=%d", path, len(tables))
	}
	if cfg.Storage.Kind != "" {
		if err := storage.WriteAll(ctx, cfg.Storage, tables); err != nil {
			return err
		}
	}
	return nil
}

// fail prints a single-line message and returns exit code 1.
func fail(w io.Writer, err error) int {
	msg := strings.ReplaceAll(err.Error(), "\n", "; ")
	fmt.Fprintf(w, "report: %s: %s\n", table.Classify(err), msg)
	return 1
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
