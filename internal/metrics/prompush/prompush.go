// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A report run is a short-lived batch job, so metrics are pushed to a
// Pushgateway on Flush instead of being scraped. All Prometheus-specific
// dependencies stay in this package.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"lodging/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // report_step_total{step,status}
	stepDuration  *prometheus.SummaryVec // report_step_duration_seconds{step,status}
	rowCounter    *prometheus.CounterVec // report_rows_total{dataset,kind}
	cacheCounter  *prometheus.CounterVec // report_cache_total{dataset,result}
	exportCounter *prometheus.CounterVec // report_exports_total{target,status}
}

// NewBackend constructs a Prometheus Pushgateway backend. jobName is the
// Pushgateway grouping key and defaults to "lodging_report".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "lodging_report"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Report step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of report steps in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows seen per dataset and kind (loaded, filtered_out, exported).",
		}, []string{"dataset", "kind"}),
		cacheCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CacheTotal,
			Help: "Session cache lookups per dataset and result.",
		}, []string{"dataset", "result"}),
		exportCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ExportsTotal,
			Help: "Export attempts per target and status.",
		}, []string{"target", "status"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":   b.stepCounter,
		"step summary":   b.stepDuration,
		"row counter":    b.rowCounter,
		"cache counter":  b.cacheCounter,
		"export counter": b.exportCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["dataset"], labels["kind"]).Add(delta)
		}
	case metrics.CacheTotal:
		if b.cacheCounter != nil {
			b.cacheCounter.WithLabelValues(labels["dataset"], labels["result"]).Add(delta)
		}
	case metrics.ExportsTotal:
		if b.exportCounter != nil {
			b.exportCounter.WithLabelValues(labels["target"], labels["status"]).Add(delta)
		}
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
