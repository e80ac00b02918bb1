// Package metrics exposes Prometheus metrics for the link engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "link_engine"

var (
	// ResolutionsTotal counts GetBestLinks outcomes: cache_hit, resolved, fallback.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of link resolutions by outcome and action.",
		},
		[]string{"outcome", "action"},
	)

	ResolutionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Link resolution duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 11), // 5ms to ~5s
		},
		[]string{"outcome"},
	)

	// ProviderCallsTotal counts search provider calls by kind (official, merchant) and status.
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of search provider calls.",
		},
		[]string{"provider", "kind", "status"},
	)

	ProviderDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Search provider call duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"kind"},
	)

	// LinksBlockedTotal counts links rejected by the safety policy.
	LinksBlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_blocked_total",
			Help:      "Total number of links blocked by the safety policy, by reason.",
		},
		[]string{"reason", "high_risk"},
	)

	BatchRiskTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_batches_total",
			Help:      "Total number of validated link batches by risk level.",
		},
		[]string{"risk_level"},
	)

	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits per tier.",
		},
		[]string{"tier"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses per tier.",
		},
		[]string{"tier"},
	)

	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of entries removed by pruning, by tier and cause.",
		},
		[]string{"tier", "cause"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of entries currently held per tier.",
		},
		[]string{"tier"},
	)

	// CatalogInfo is 1 for the catalog version currently loaded.
	CatalogInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_info",
			Help:      "Loaded catalog version.",
		},
		[]string{"version"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		},
		[]string{"method", "route"},
	)
)

// SetCatalogVersion marks version as the loaded catalog.
func SetCatalogVersion(version string) {
	CatalogInfo.Reset()
	CatalogInfo.WithLabelValues(version).Set(1)
}
