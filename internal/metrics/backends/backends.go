// Package backends selects and installs a metrics backend by name for the
// binaries.
package backends

import (
	"fmt"
	"log"

	"lodging/internal/metrics"
	"lodging/internal/metrics/datadog"
	"lodging/internal/metrics/prompush"
)

// Options name the backend and its endpoint.
type Options struct {
	// Backend is "pushgateway", "datadog", "none" or empty.
	Backend        string
	Job            string
	PushgatewayURL string
	DatadogAddr    string
}

// DefaultPushgatewayURL is used when no URL is configured.
const DefaultPushgatewayURL = "http://localhost:9091"

// Install builds the named backend, installs it globally and returns the
// flush to run at exit. "none" and "" leave the no-op backend in place.
func Install(o Options) (flush func(), err error) {
	nop := func() {}
	switch o.Backend {
	case "", "none":
		return nop, nil

	case "pushgateway":
		url := o.PushgatewayURL
		if url == "" {
			url = DefaultPushgatewayURL
		}
		b, err := prompush.NewBackend(o.Job, url)
		if err != nil {
			return nop, err
		}
		metrics.SetBackend(b)
		log.Printf("metrics: backend=pushgateway url=%s job=%s", url, o.Job)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: o.DatadogAddr, Namespace: "lodging."})
		if err != nil {
			return nop, err
		}
		metrics.SetBackend(b)
		log.Printf("metrics: backend=datadog addr=%s", o.DatadogAddr)

	default:
		return nop, fmt.Errorf("metrics: unknown backend %q", o.Backend)
	}

	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush: %v", err)
		}
	}, nil
}
