// Package metrics provides Prometheus metrics for wikikit. It tracks
// API request counts, latencies, retries, maxlag backoff and cache
// performance for every wiki session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all wikikit metrics
const (
	Namespace = "wikikit"
)

var (
	// APIRequestsTotal counts MediaWiki API requests by action and status
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Total MediaWiki API requests by action and status",
	}, []string{"action", "status"})

	// APIRequestDuration measures API call latency distribution by action
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "api_request_duration_seconds",
		Help:      "MediaWiki API call latency distribution by action",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"action"})

	// APIRetries counts request retries by reason (network, http, maxlag)
	APIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_retries_total",
		Help:      "MediaWiki API request retries by reason",
	}, []string{"reason"})

	// MaxlagWaits counts backoff waits triggered by the maxlag protocol
	MaxlagWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "maxlag_waits_total",
		Help:      "Waits triggered by MediaWiki maxlag throttling",
	})

	// MaxlagWaitSeconds accumulates time spent waiting on maxlag backoff
	MaxlagWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "maxlag_wait_seconds_total",
		Help:      "Total seconds spent waiting on maxlag throttling",
	})

	// CacheHits counts response cache hits
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_hits_total",
		Help:      "Total response cache hit count",
	})

	// CacheMisses counts response cache misses
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_misses_total",
		Help:      "Total response cache miss count",
	})

	// DedupShared counts API calls answered by an identical in-flight request
	DedupShared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "dedup_shared_total",
		Help:      "API calls coalesced with an identical in-flight request",
	})

	// EditsTotal counts write operations by kind and outcome
	EditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "edits_total",
		Help:      "Write operations by kind (edit, delete, move, upload) and outcome",
	}, []string{"kind", "outcome"})

	// FarmTasksTotal counts per-wiki tasks run through the farm fan-out
	FarmTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "farm_tasks_total",
		Help:      "Per-wiki fan-out tasks by status",
	}, []string{"status"})
)

// RecordRequest records one API request outcome with its latency in seconds.
func RecordRequest(action, status string, seconds float64) {
	APIRequestsTotal.WithLabelValues(action, status).Inc()
	APIRequestDuration.WithLabelValues(action).Observe(seconds)
}

// RecordCacheAccess records a cache hit or miss.
func RecordCacheAccess(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}
