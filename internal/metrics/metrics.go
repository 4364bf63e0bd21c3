// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "ingest"

// Upsert outcomes
const (
	OutcomeInserted  = "inserted"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SourceFetches        *prometheus.CounterVec
	SourceFetchDuration  *prometheus.HistogramVec
	ArticleUpserts       *prometheus.CounterVec
	EnrichmentFallbacks  *prometheus.CounterVec
	SchedulerRuns        *prometheus.CounterVec
	SchedulerRunDuration prometheus.Histogram
}

// New creates and registers the collectors on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SourceFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "source_fetches_total",
				Help:      "Total number of source fetches by type and outcome",
			},
			[]string{"type", "status"},
		),
		SourceFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "source_fetch_duration_seconds",
				Help:      "Duration of a single source fetch in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~3.4min
			},
			[]string{"type"},
		),
		ArticleUpserts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "article_upserts_total",
				Help:      "Total number of article upserts by outcome",
			},
			[]string{"outcome"},
		),
		EnrichmentFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "enrichment_fallbacks_total",
				Help:      "Total number of enrichment calls answered by the local fallback",
			},
			[]string{"capability"},
		),
		SchedulerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "scheduler_runs_total",
				Help:      "Total number of scheduled job runs by trigger and outcome",
			},
			[]string{"trigger", "status"},
		),
		SchedulerRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "scheduler_run_duration_seconds",
				Help:      "Duration of a scheduled job run in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
	}
}

// ObserveSourceFetch records one source fetch.
func (m *Metrics) ObserveSourceFetch(sourceType string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SourceFetches.WithLabelValues(sourceType, status(success)).Inc()
	m.SourceFetchDuration.WithLabelValues(sourceType).Observe(elapsed.Seconds())
}

// ObserveUpsert records the outcome of one article upsert.
func (m *Metrics) ObserveUpsert(outcome string) {
	if m == nil {
		return
	}
	m.ArticleUpserts.WithLabelValues(outcome).Inc()
}

// ObserveFallback records an enrichment capability served by its fallback.
func (m *Metrics) ObserveFallback(capability string) {
	if m == nil {
		return
	}
	m.EnrichmentFallbacks.WithLabelValues(capability).Inc()
}

// ObserveSchedulerRun records a finished or skipped job run.
func (m *Metrics) ObserveSchedulerRun(trigger, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SchedulerRuns.WithLabelValues(trigger, outcome).Inc()
	if elapsed > 0 {
		m.SchedulerRunDuration.Observe(elapsed.Seconds())
	}
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
