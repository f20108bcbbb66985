// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus collectors for the search pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricSourceRequestsTotal = "litfinder_source_requests_total"
	MetricSourceDuration      = "litfinder_source_request_duration_seconds"
	MetricSourceRetriesTotal  = "litfinder_source_retries_total"
	MetricCacheLookupsTotal   = "litfinder_cache_lookups_total"
	MetricCacheWriteErrors    = "litfinder_cache_write_errors_total"
	MetricSearchesTotal       = "litfinder_searches_total"
	MetricSearchDuration      = "litfinder_search_duration_seconds"
)

// Source call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePanic   = "panic"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Search modes.
const (
	ModeOffset = "offset"
	ModeCursor = "cursor"
	ModeCached = "cached"
)

// Metrics contains the pipeline collectors. All methods are safe for
// concurrent use.
type Metrics struct {
	sourceRequests *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	sourceRetries  *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	cacheWriteErrs prometheus.Counter
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sourceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSourceRequestsTotal,
				Help: "Source adapter calls by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		sourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSourceDuration,
				Help:    "Source adapter call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		),
		sourceRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSourceRetriesTotal,
				Help: "HTTP retries issued by source adapters",
			},
			[]string{"source"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheLookupsTotal,
				Help: "Result cache lookups by result",
			},
			[]string{"result"},
		),
		cacheWriteErrs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricCacheWriteErrors,
				Help: "Result cache writes that failed and were dropped",
			},
		),
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchesTotal,
				Help: "Completed searches by pagination mode",
			},
			[]string{"mode"},
		),
		searchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricSearchDuration,
				Help:    "End-to-end search latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	if reg != nil {
		for _, c := range m.Collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Collectors returns every collector owned by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sourceRequests,
		m.sourceDuration,
		m.sourceRetries,
		m.cacheLookups,
		m.cacheWriteErrs,
		m.searches,
		m.searchDuration,
	}
}

// SourceCall records one adapter call.
func (m *Metrics) SourceCall(source, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.sourceRequests.WithLabelValues(source, outcome).Inc()
	m.sourceDuration.WithLabelValues(source).Observe(seconds)
}

// SourceRetry counts one HTTP retry by an adapter.
func (m *Metrics) SourceRetry(source string) {
	if m == nil {
		return
	}
	m.sourceRetries.WithLabelValues(source).Inc()
}

// CacheLookup counts a cache read by result (CacheHit, CacheMiss, CacheError).
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CacheWriteFailed counts a dropped cache write.
func (m *Metrics) CacheWriteFailed() {
	if m == nil {
		return
	}
	m.cacheWriteErrs.Inc()
}

// Search records a completed search.
func (m *Metrics) Search(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(mode).Inc()
	m.searchDuration.Observe(seconds)
}
