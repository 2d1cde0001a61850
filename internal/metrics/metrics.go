// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the report pipeline.
//
// It exposes a narrow Backend interface focused on counters and timing data.
// The global backend defaults to a no-op implementation, so the helpers are
// always safe to call even when no real backend is configured. Concrete
// systems (Pushgateway, DogStatsD) live in subpackages and are installed by
// the binaries at startup.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal    = "report_step_total"
	StepDuration = "report_step_duration_seconds"
	RowsTotal    = "report_rows_total"
	CacheTotal   = "report_cache_total"
	ExportsTotal = "report_exports_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend. Call it before any render pass starts.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure of one report step
// ("load_hotels", "normalize", "filter_price", ...).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta rows of the given kind for a dataset.
//
// Kinds used by the pipeline:
//   - "loaded"
//   - "filtered_out"
//   - "normalized"
//   - "exported"
func RecordRow(dataset, kind string, delta int) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"dataset": dataset,
		"kind":    kind,
	})
}

// RecordCache counts session cache lookups for a dataset.
func RecordCache(dataset string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	backend.IncCounter(CacheTotal, 1, Labels{
		"dataset": dataset,
		"result":  result,
	})
}

// RecordExport counts one export attempt to a target ("csv", "xlsx",
// "sqlite", ...).
func RecordExport(target string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	backend.IncCounter(ExportsTotal, 1, Labels{
		"target": target,
		"status": status,
	})
}
