package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry collects pipeline metrics on its own registry so multiple
// instances can coexist in one process. A nil *Telemetry is valid and
// records nothing.
type Telemetry struct {
	registry *prometheus.Registry

	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	generationAttempts *prometheus.CounterVec
	generationFailures *prometheus.CounterVec
	fallbacks          *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
}

// New builds a Telemetry with all collectors registered. Returns nil when
// telemetry is disabled.
func New(enabled bool) *Telemetry {
	if !enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		registry: reg,
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_cache_hits_total",
			Help: "Cache hits by namespace",
		}, []string{"namespace"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_cache_misses_total",
			Help: "Cache misses by namespace",
		}, []string{"namespace"}),
		generationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_generation_attempts_total",
			Help: "Model generation attempts by agent",
		}, []string{"agent"}),
		generationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_generation_failures_total",
			Help: "Model generation failures by agent and error kind",
		}, []string{"agent", "kind"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_fallbacks_total",
			Help: "Local fallback generations by agent",
		}, []string{"agent"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deepresearch_stage_duration_seconds",
			Help:    "Pipeline stage duration",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepresearch_runs_total",
			Help: "Completed research runs by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deepresearch_run_duration_seconds",
			Help:    "End-to-end research run duration",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	reg.MustRegister(
		t.cacheHits, t.cacheMisses,
		t.generationAttempts, t.generationFailures, t.fallbacks,
		t.stageDuration, t.runsTotal, t.runDuration,
	)
	return t
}

// Registry exposes the collectors for the /metrics handler. Nil when
// telemetry is disabled.
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return nil
	}
	return t.registry
}

func (t *Telemetry) RecordCacheHit(namespace string) {
	if t == nil {
		return
	}
	t.cacheHits.WithLabelValues(namespace).Inc()
}

func (t *Telemetry) RecordCacheMiss(namespace string) {
	if t == nil {
		return
	}
	t.cacheMisses.WithLabelValues(namespace).Inc()
}

func (t *Telemetry) RecordGenerationAttempt(agent string) {
	if t == nil {
		return
	}
	t.generationAttempts.WithLabelValues(agent).Inc()
}

func (t *Telemetry) RecordGenerationFailure(agent, kind string) {
	if t == nil {
		return
	}
	t.generationFailures.WithLabelValues(agent, kind).Inc()
}

func (t *Telemetry) RecordFallback(agent string) {
	if t == nil {
		return
	}
	t.fallbacks.WithLabelValues(agent).Inc()
}

func (t *Telemetry) ObserveStageDuration(stage string, d time.Duration) {
	if t == nil {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (t *Telemetry) RecordRun(success bool, d time.Duration) {
	if t == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	t.runsTotal.WithLabelValues(outcome).Inc()
	t.runDuration.Observe(d.Seconds())
}
