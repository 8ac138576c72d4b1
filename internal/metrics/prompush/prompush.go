// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It adapts the generic metrics.Backend interface to Prometheus by mapping
// the common labels (job, step, status, kind) onto CounterVec and SummaryVec
// collectors. Metrics are pushed to a Pushgateway rather than exposed on a
// scrape endpoint, since the consumer is a short-lived batch process.
// All Prometheus-specific dependencies stay inside this package.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ecohealthalliance/birt-consumer/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // birt_step_total
	stepDuration *prometheus.SummaryVec // birt_step_duration_seconds
	rowCounter   *prometheus.CounterVec // birt_records_total
}

// NewBackend constructs a Pushgateway backend. jobName is the Pushgateway
// "job" grouping key; gatewayURL is the base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "birt"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birt_step_total",
			Help: "Total pipeline step executions, partitioned by job, step, and status.",
		},
		[]string{"job", "step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "birt_step_duration_seconds",
			Help: "Pipeline step duration in seconds.",
		},
		[]string{"job", "step", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birt_records_total",
			Help: "Rows handled by the pipeline, partitioned by job and outcome kind.",
		},
		[]string{"job", "kind"},
	)

	reg.MustRegister(stepCounter, stepDuration, rowCounter)

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		stepCounter:  stepCounter,
		stepDuration: stepDuration,
		rowCounter:   rowCounter,
	}, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "birt_step_total":
		b.stepCounter.With(prometheus.Labels{
			"job":    labels["job"],
			"step":   labels["step"],
			"status": labels["status"],
		}).Add(delta)
	case "birt_records_total":
		b.rowCounter.With(prometheus.Labels{
			"job":  labels["job"],
			"kind": labels["kind"],
		}).Add(delta)
	}
}

// ObserveDuration implements metrics.Backend.
func (b *Backend) ObserveDuration(name string, value float64, labels metrics.Labels) {
	if name != "birt_step_duration_seconds" {
		return
	}
	b.stepDuration.With(prometheus.Labels{
		"job":    labels["job"],
		"step":   labels["step"],
		"status": labels["status"],
	}).Observe(value)
}

// Flush pushes the collected metrics to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
