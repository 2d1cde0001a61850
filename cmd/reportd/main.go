// Command reportd serves the CDMX lodging report over HTTP. Every viewer gets
// a session whose remote export is fetched once and cached.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lodging/internal/config"
	"lodging/internal/metrics/backends"
	"lodging/internal/webui"
)

func main() {
	var (
		cfgPath        string
		addr           string
		sessionTTL     time.Duration
		renderTimeout  time.Duration
		metricsBackend string
		pushgatewayURL string
		datadogAddr    string
	)
	flag.StringVar(&cfgPath, "config", "", "report config (.json, .yaml or .yml); built-in defaults when empty")
	flag.StringVar(&addr, "addr", "", "listen address (overrides LODGING_ADDR, default :8080)")
	flag.DurationVar(&sessionTTL, "session-ttl", 2*time.Hour, "expire sessions older than this; 0 keeps them")
	flag.DurationVar(&renderTimeout, "render-timeout", 2*time.Minute, "upper bound for one render request")
	flag.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none")
	flag.StringVar(&pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL")
	flag.StringVar(&datadogAddr, "datadog-addr", "", "DogStatsD address")
	flag.Parse()

	env, err := config.LoadEnv()
	if err != nil {
		fatalf("env: %v", err)
	}
	cfg := config.DefaultReport()
	if cfgPath != "" {
		if cfg, err = config.Load(cfgPath); err != nil {
			fatalf("config: %v", err)
		}
	}
	env.Apply(&cfg)

	issues := config.ValidateReport(cfg)
	for _, iss := range issues {
		log.Printf("config %s: %s: %s", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fatalf("config: invalid")
	}

	flush, err := backends.Install(backends.Options{
		Backend:        pick(metricsBackend, env.MetricsBackend),
		Job:            cfg.Job,
		PushgatewayURL: pick(pushgatewayURL, env.PushgatewayURL),
		DatadogAddr:    pick(datadogAddr, env.DatadogAddr),
	})
	if err != nil {
		log.Printf("%v; metrics disabled", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := webui.NewServer(webui.Config{
		Addr:          pick(addr, env.Addr),
		SessionTTL:    sessionTTL,
		RenderTimeout: renderTimeout,
	}, cfg)
	if err := srv.ListenAndServe(ctx); err != nil {
		stop()
		flush()
		fatalf("%v", err)
	}
	log.Printf("reportd: shut down")
}

func pick(flagVal, envVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return envVal
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "reportd: "+format+"\n", a...)
	os.Exit(1)
}
