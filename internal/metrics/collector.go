// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relabs-ai/agentchain/types"
)

// Collector records pipeline and completion-call metrics. A nil Collector
// is valid and records nothing, so instrumented code never needs nil
// checks at call sites.
type Collector struct {
	runsStarted        prometheus.Counter
	runsFinished       *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	stepTransitions    *prometheus.CounterVec
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	tokensUsed         *prometheus.CounterVec
	retriesTotal       prometheus.Counter
	staleDiscarded     prometheus.Counter
}

// NewCollector registers the pipeline metrics on the given registerer.
// Pass prometheus.DefaultRegisterer for the process-global registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of pipeline runs started",
		}),
		runsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Total number of pipeline runs finished",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),
		stepTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_transitions_total",
			Help:      "Total number of agent phase transitions",
		}, []string{"phase"}),
		completionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Total number of completion backend calls",
		}, []string{"outcome"}),
		completionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Completion backend call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		tokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Total number of tokens used",
		}, []string{"type"}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_retries_total",
			Help:      "Total number of agent retries",
		}),
		staleDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_discarded_total",
			Help:      "Total number of completion results discarded for stale or stopped runs",
		}),
	}
}

// RunStarted records the start of a pipeline run.
func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	c.runsStarted.Inc()
}

// RunFinished records a finished run and its duration.
func (c *Collector) RunFinished(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.runsFinished.WithLabelValues(outcome).Inc()
	c.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// StepTransition records an agent phase transition.
func (c *Collector) StepTransition(phase string) {
	if c == nil {
		return
	}
	c.stepTransitions.WithLabelValues(phase).Inc()
}

// CompletionObserved records one completion backend call.
func (c *Collector) CompletionObserved(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.completionsTotal.WithLabelValues(outcome).Inc()
	c.completionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// TokensObserved records token usage reported by the backend.
func (c *Collector) TokensObserved(usage types.TokenUsage) {
	if c == nil {
		return
	}
	c.tokensUsed.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	c.tokensUsed.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
}

// RetryObserved records an agent retry.
func (c *Collector) RetryObserved() {
	if c == nil {
		return
	}
	c.retriesTotal.Inc()
}

// StaleDiscarded records a completion result discarded after stop or
// session change.
func (c *Collector) StaleDiscarded() {
	if c == nil {
		return
	}
	c.staleDiscarded.Inc()
}
