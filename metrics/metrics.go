// Package metrics exposes Prometheus metrics for translation jobs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZaguanLabs/lingoflow"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "lingoflow"

// Metrics holds the job collectors. It implements lingoflow.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// Job metrics
	JobsStarted  *prometheus.CounterVec
	JobsFinished *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec
	ActiveJobs   prometheus.Gauge

	// Unit metrics
	Units *prometheus.CounterVec

	// Remote call metrics
	ProviderAttempts *prometheus.CounterVec
	ProviderDuration prometheus.Histogram
	RateLimitWait    prometheus.Counter

	// Checkpoint metrics
	CheckpointSaves *prometheus.CounterVec
}

// New registers the collectors on a private registry, together with the
// Go and process collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		JobsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_started_total",
				Help:      "Total number of jobs started",
			},
			[]string{"kind"},
		),
		JobsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Total number of jobs finished, by final state",
			},
			[]string{"state"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of a job from start to its final state",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~2h
			},
			[]string{"state"},
		),
		ActiveJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_jobs",
				Help:      "Number of jobs currently running",
			},
		),
		Units: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_total",
				Help:      "Text units processed, by outcome",
			},
			[]string{"outcome"},
		),
		ProviderAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_attempts_total",
				Help:      "Remote translation attempts, by status class",
			},
			[]string{"status"},
		),
		ProviderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_attempt_duration_seconds",
				Help:      "Duration of a single remote translation attempt",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
		),
		RateLimitWait: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_wait_seconds_total",
				Help:      "Time spent waiting for the rate limiter",
			},
		),
		CheckpointSaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoint_saves_total",
				Help:      "Checkpoint saves, by result",
			},
			[]string{"result"},
		),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// JobStarted counts a job of the given kind ("document", "article",
// "improve") and marks it active. JobFinished releases it.
func (m *Metrics) JobStarted(kind string) {
	m.JobsStarted.WithLabelValues(kind).Inc()
	m.ActiveJobs.Inc()
}

// JobFinished implements lingoflow.Observer.
func (m *Metrics) JobFinished(state lingoflow.JobState, duration time.Duration) {
	m.JobsFinished.WithLabelValues(state.String()).Inc()
	m.JobDuration.WithLabelValues(state.String()).Observe(duration.Seconds())
	m.ActiveJobs.Dec()
}

// AttemptFinished implements lingoflow.Observer.
func (m *Metrics) AttemptFinished(err error, duration time.Duration) {
	m.ProviderAttempts.WithLabelValues(StatusClass(err)).Inc()
	m.ProviderDuration.Observe(duration.Seconds())
}

// RateLimited implements lingoflow.Observer.
func (m *Metrics) RateLimited(wait time.Duration) {
	m.RateLimitWait.Add(wait.Seconds())
}

// UnitFinished implements lingoflow.Observer.
func (m *Metrics) UnitFinished(outcome lingoflow.UnitOutcome) {
	m.Units.WithLabelValues(string(outcome)).Inc()
}

// CheckpointSaved implements lingoflow.Observer.
func (m *Metrics) CheckpointSaved(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CheckpointSaves.WithLabelValues(result).Inc()
}

// StatusClass labels the outcome of one remote attempt: "ok", "429",
// "5xx", "4xx", "timeout", "cancelled" or "error".
func StatusClass(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var providerErr *lingoflow.ProviderError
	if !errors.As(err, &providerErr) || providerErr.StatusCode == 0 {
		return "error"
	}
	switch code := providerErr.StatusCode; {
	case code == http.StatusTooManyRequests:
		return strconv.Itoa(code)
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "error"
	}
}

var _ lingoflow.Observer = (*Metrics)(nil)
