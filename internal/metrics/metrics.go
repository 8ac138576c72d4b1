// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the ingestion pipeline.
//
// It exposes a narrow Backend interface and a global, pluggable backend
// defaulting to a no-op implementation, so instrumentation calls are always
// safe even when no metrics system is configured. Concrete systems live in
// subpackages (see prompush for the Prometheus Pushgateway backend) and the
// rest of the codebase depends only on this interface.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a latency/duration style value in seconds.
	ObserveDuration(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics if the backend needs it
	// (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)      {}
func (nopBackend) ObserveDuration(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                              { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
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

// RecordStep measures latency and success/failure for one pipeline step.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	backend.IncCounter("birt_step_total", 1, lbls)
	backend.ObserveDuration("birt_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows counts rows by outcome kind. Kinds mirror the run summary:
// "processed", "valid", "invalid", "matched", "upserted", "failed".
func RecordRows(job, kind string, n int64) {
	if n == 0 {
		return
	}
	backend.IncCounter("birt_records_total", float64(n), Labels{"job": job, "kind": kind})
}
