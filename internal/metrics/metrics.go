package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceCallsTotal counts aggregator calls into a source adapter by outcome.
	SourceCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiences_source_calls_total",
			Help: "Calls made by the aggregator into source adapters (by source, operation, and result).",
		},
		[]string{"source", "op", "result"}, // result = ok | error | timeout | degraded | skipped
	)

	// SourceCallDuration measures how long a source adapter call took.
	SourceCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "experiences_source_call_duration_seconds",
			Help:    "Duration of source adapter calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms → ~32s
		},
		[]string{"source", "op"},
	)

	// UpstreamRequestsTotal counts outbound HTTP calls to provider APIs.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiences_upstream_requests_total",
			Help: "Outbound provider API requests (by provider, endpoint, and status).",
		},
		[]string{"provider", "endpoint", "status"},
	)

	// CacheAccessTotal tracks cache hits and misses.
	CacheAccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiences_cache_access_total",
			Help: "Cache lookups by cache name and result.",
		},
		[]string{"cache", "result"}, // hit | miss | expired | error
	)

	// EventsPublishedTotal tracks event delivery to the configured sink.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiences_events_published_total",
			Help: "Events delivered to the event sink by backend and result.",
		},
		[]string{"backend", "result"},
	)

	// MergedListingSize records how many experiences a merged listing contained.
	MergedListingSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "experiences_merged_listing_size",
			Help:    "Number of experiences in a freshly merged listing.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

// IncSourceCall increments the source call counter.
func IncSourceCall(source, op, result string) {
	SourceCallsTotal.WithLabelValues(source, op, result).Inc()
}

// IncUpstreamRequest increments the upstream request counter.
func IncUpstreamRequest(provider, endpoint, status string) {
	UpstreamRequestsTotal.WithLabelValues(provider, endpoint, status).Inc()
}

// IncCacheAccess increments the cache access counter.
func IncCacheAccess(cache, result string) {
	CacheAccessTotal.WithLabelValues(cache, result).Inc()
}

// IncEventPublished increments the event delivery counter.
func IncEventPublished(backend, result string) {
	EventsPublishedTotal.WithLabelValues(backend, result).Inc()
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}
