// Package metrics exposes scenario runs as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tbreport/selector"
)

const (
	// Namespace is the namespace for all suite metrics.
	Namespace = "tbreport"

	// Subsystem is the subsystem for scenario metrics.
	Subsystem = "scenario"
)

// Metrics holds the scenario collectors. It implements scenario.Observer.
type Metrics struct {
	// Run metrics
	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds prometheus.Histogram
	RunsInProgress     prometheus.Gauge

	// Step metrics
	StepsTotal          *prometheus.CounterVec
	StepDurationSeconds *prometheus.HistogramVec

	// Selection metrics
	SelectionsTotal *prometheus.CounterVec

	// Verification metrics
	VerificationsTotal *prometheus.CounterVec

	// Queue metrics
	QueueDepth prometheus.Gauge
}

// New creates and registers the metrics on reg, or on the default registerer
// when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{}
	m.initRunMetrics(factory)
	m.initStepMetrics(factory)
	return m
}

func (m *Metrics) initRunMetrics(factory promauto.Factory) {
	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "runs_total",
			Help:      "Total number of scenario runs by final status",
		},
		[]string{"status"},
	)

	m.RunDurationSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "run_duration_seconds",
			Help:      "Duration of scenario runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5min
		},
	)

	m.RunsInProgress = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "runs_in_progress",
			Help:      "Number of scenario runs currently executing",
		},
	)

	m.QueueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "queue_depth",
			Help:      "Number of runs waiting for the worker",
		},
	)
}

func (m *Metrics) initStepMetrics(factory promauto.Factory) {
	m.StepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "steps_total",
			Help:      "Total number of executed steps by step and status",
		},
		[]string{"step", "status"},
	)

	m.StepDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "step_duration_seconds",
			Help:      "Duration of scenario steps in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"step"},
	)

	m.SelectionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "selections_total",
			Help:      "Committed dropdown selections by match kind and interaction",
		},
		[]string{"kind", "interaction"},
	)

	m.VerificationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "verifications_total",
			Help:      "Report verifications by result",
		},
		[]string{"result"},
	)
}

func (m *Metrics) ObserveStep(step, status string, d time.Duration) {
	m.StepsTotal.WithLabelValues(step, status).Inc()
	m.StepDurationSeconds.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) ObserveSelection(out selector.SelectionOutcome) {
	m.SelectionsTotal.WithLabelValues(out.Kind.String(), out.Interaction).Inc()
}

func (m *Metrics) ObserveVerification(matched bool) {
	result := "mismatch"
	if matched {
		result = "match"
	}
	m.VerificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRun(status string, d time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.Observe(d.Seconds())
}
