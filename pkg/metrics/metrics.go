// Package metrics provides Prometheus instrumentation for pipeline runs.
//
// # Overview
//
// Each Collector owns its own prometheus.Registry so that independent runs,
// and tests, never share counters. A nil *Collector is valid and records
// nothing, which keeps call sites free of nil checks.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("formatflow")
//	collector.RunFinished("sync", "success", time.Since(start))
//	collector.BytesRead("json", 512)
//	_ = collector.WriteText(os.Stderr)
//
// # Metric Types
//
// Counter: runs, unit failures, bytes and documents moved, detection outcomes
// Histogram: run and step durations in seconds
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Collector wraps the Prometheus metrics recorded by the executors and the
// records stream.
type Collector struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec   // executor, status
	runDuration   *prometheus.HistogramVec // executor
	stepDuration  *prometheus.HistogramVec // phase
	unitFailures  *prometheus.CounterVec   // phase
	bytesRead     *prometheus.CounterVec   // format
	bytesWritten  *prometheus.CounterVec   // format
	documents     *prometheus.CounterVec   // direction, format
	detections    *prometheus.CounterVec   // format, outcome
	streamRecords *prometheus.CounterVec   // format
}

// NewCollector creates a collector whose metric names are prefixed with
// namespace
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by executor and outcome",
		}, []string{"executor", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of whole pipeline runs",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"executor"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_step_duration_seconds",
			Help:      "Wall time of one unit step",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
		}, []string{"phase"}),
		unitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_failures_total",
			Help:      "Failed input or output units by phase",
		}, []string{"phase"}),
		bytesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Bytes read from sources before decoding",
		}, []string{"format"}),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Encoded bytes written to sinks",
		}, []string{"format"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents decoded from inputs or encoded into outputs",
		}, []string{"direction", "format"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Auto-detection outcomes",
		}, []string{"format", "outcome"}),
		streamRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_records_total",
			Help:      "Records yielded by record streams",
		}, []string{"format"}),
	}
	c.registry.MustRegister(
		c.runs, c.runDuration, c.stepDuration, c.unitFailures,
		c.bytesRead, c.bytesWritten, c.documents, c.detections, c.streamRecords,
	)
	return c
}

// Registry exposes the underlying registry, for example to serve it over HTTP
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RunFinished records one completed run
func (c *Collector) RunFinished(executor, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(executor, status).Inc()
	c.runDuration.WithLabelValues(executor).Observe(d.Seconds())
}

// Step records the duration of one unit step
func (c *Collector) Step(phase string, d time.Duration) {
	if c == nil {
		return
	}
	c.stepDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// UnitFailed counts a failed unit
func (c *Collector) UnitFailed(phase string) {
	if c == nil {
		return
	}
	c.unitFailures.WithLabelValues(phase).Inc()
}

// BytesRead counts bytes taken from a source
func (c *Collector) BytesRead(format string, n int) {
	if c == nil {
		return
	}
	c.bytesRead.WithLabelValues(format).Add(float64(n))
}

// BytesWritten counts bytes handed to a sink
func (c *Collector) BytesWritten(format string, n int) {
	if c == nil {
		return
	}
	c.bytesWritten.WithLabelValues(format).Add(float64(n))
}

// Documents counts decoded ("in") or encoded ("out") documents
func (c *Collector) Documents(direction, format string, n int) {
	if c == nil {
		return
	}
	c.documents.WithLabelValues(direction, format).Add(float64(n))
}

// Detection records an auto-detection outcome. format is empty on failure.
func (c *Collector) Detection(format string, matched bool) {
	if c == nil {
		return
	}
	outcome := "matched"
	if !matched {
		outcome = "no_match"
	}
	c.detections.WithLabelValues(format, outcome).Inc()
}

// StreamRecord counts one record yielded by a stream
func (c *Collector) StreamRecord(format string) {
	if c == nil {
		return
	}
	c.streamRecords.WithLabelValues(format).Inc()
}

// WriteText writes every gathered family in the Prometheus text exposition
// format
func (c *Collector) WriteText(w io.Writer) error {
	if c == nil {
		return nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label the timer was created with
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
