// Package metrics holds the registry's domain metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// Metrics are the domain metrics. A nil *Metrics records nothing.
type Metrics struct {
	submissions       *prometheus.CounterVec
	submitDuration    *prometheus.HistogramVec
	activeSubmissions prometheus.Gauge
	analysisDuration  prometheus.Histogram
	searchHits        prometheus.Counter
	searchMisses      prometheus.Counter
}

// New registers the domain metrics on reg under namespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submit attempts by outcome",
		}, []string{"outcome"}),

		submitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Submit duration by outcome",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		activeSubmissions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_submissions",
			Help:      "Open submission sessions",
		}),

		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Source analysis duration in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),

		searchHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_hits_total",
			Help:      "Palette searches served from cache",
		}),

		searchMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_misses_total",
			Help:      "Palette searches that went to the searcher",
		}),
	}
}

// ObserveSubmit records a finished submit attempt.
func (m *Metrics) ObserveSubmit(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	m.submitDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SessionOpened increments the active submissions gauge.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.activeSubmissions.Inc()
	}
}

// SessionClosed decrements the active submissions gauge.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.activeSubmissions.Dec()
	}
}

// ObserveAnalysis records one source analysis.
func (m *Metrics) ObserveAnalysis(d time.Duration) {
	if m != nil {
		m.analysisDuration.Observe(d.Seconds())
	}
}

// ObserveSearchLookup records a palette cache hit or miss.
func (m *Metrics) ObserveSearchLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.searchHits.Inc()
	} else {
		m.searchMisses.Inc()
	}
}
