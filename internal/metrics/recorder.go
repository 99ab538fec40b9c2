// Package metrics records pipeline metrics in a private prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spice_insight"

// Recorder collects run, stage and external-call metrics. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry          *prometheus.Registry
	runsTotal         *prometheus.CounterVec
	stageRunsTotal    *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	externalCalls     *prometheus.CounterVec
	embeddingFallback prometheus.Counter
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs by final phase.",
		},
		[]string{"outcome"},
	)
	stageRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Analysis stage executions by outcome.",
		},
		[]string{"stage", "outcome"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Analysis stage duration in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)
	externalCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "External classification, embedding and generation calls by outcome.",
		},
		[]string{"capability", "outcome"},
	)
	embeddingFallback := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_fallbacks_total",
			Help:      "Merchant keys that used a hash vector instead of an embedding.",
		},
	)

	registry.MustRegister(runsTotal, stageRunsTotal, stageDuration, externalCalls, embeddingFallback)

	return &Recorder{
		registry:          registry,
		runsTotal:         runsTotal,
		stageRunsTotal:    stageRunsTotal,
		stageDuration:     stageDuration,
		externalCalls:     externalCalls,
		embeddingFallback: embeddingFallback,
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRun counts one finished run.
func (r *Recorder) ObserveRun(outcome string) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage counts one stage execution and its duration.
func (r *Recorder) ObserveStage(stage, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.stageRunsTotal.WithLabelValues(stage, outcome).Inc()
	r.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveExternalCall counts one external capability call.
func (r *Recorder) ObserveExternalCall(capability, outcome string) {
	if r == nil {
		return
	}
	r.externalCalls.WithLabelValues(capability, outcome).Inc()
}

// ObserveEmbeddingFallbacks adds n hash-vector fallbacks.
func (r *Recorder) ObserveEmbeddingFallbacks(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.embeddingFallback.Add(float64(n))
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
