// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/robert-malhotra/cohdet/internal/processing"
	"github.com/robert-malhotra/cohdet/internal/scene"
)

const namespace = "cohdet"

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	// downloads counts archive transfers.
	// Labels: status (ok, failed)
	downloads *prometheus.CounterVec

	// stages counts stage decisions.
	// Labels: stage, outcome (ran, skipped, blocked, failed)
	stages *prometheus.CounterVec

	// operatorDuration measures processor runs.
	// Labels: operation, status (ok, failed)
	operatorDuration *prometheus.HistogramVec

	// latest is the latest marker as a Unix timestamp.
	latest prometheus.Gauge

	// runs counts pipeline runs.
	// Labels: status (ok, failed)
	runs *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		downloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "downloads_total",
			Help:      "Scene archive downloads by status",
		}, []string{"status"}),
		stages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_results_total",
			Help:      "Stage decisions by stage and outcome",
		}, []string{"stage", "outcome"}),
		operatorDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processing",
			Name:      "operation_duration_seconds",
			Help:      "Processing operation duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"operation", "status"}),
		latest: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "environment",
			Name:      "latest_acquisition_timestamp_seconds",
			Help:      "Acquisition date of the most recently ingested scene",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by status",
		}, []string{"status"}),
	}
}

// ObserveDownload counts one download attempt.
func (m *Metrics) ObserveDownload(err error) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(status(err)).Inc()
}

// ObserveStage counts one stage decision.
func (m *Metrics) ObserveStage(stage, outcome string) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage, outcome).Inc()
}

// ObserveRun counts one pipeline run.
func (m *Metrics) ObserveRun(err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status(err)).Inc()
}

// SetLatest publishes the latest marker.
func (m *Metrics) SetLatest(d scene.Date) {
	if m == nil || d.IsZero() {
		return
	}
	m.latest.Set(float64(d.Time().Unix()))
}

// Instrument wraps p so every run is timed.
func (m *Metrics) Instrument(p processing.Processor) processing.Processor {
	if m == nil {
		return p
	}
	return &instrumented{next: p, m: m}
}

type instrumented struct {
	next processing.Processor
	m    *Metrics
}

func (i *instrumented) Run(ctx context.Context, op processing.Operation) (string, error) {
	start := time.Now()
	path, err := i.next.Run(ctx, op)
	i.m.operatorDuration.WithLabelValues(op.Name, status(err)).Observe(time.Since(start).Seconds())
	return path, err
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
