// Package metrics holds the Prometheus collectors shared across saiyo components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "saiyo"

// Embedding metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "status"},
	)

	EmbeddingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	EmbeddingFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_fallbacks_total",
			Help:      "Embedding failures degraded to the zero vector",
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// Search and parsing metrics.
var (
	AspectParseFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aspect_parse_fallbacks_total",
			Help:      "Queries whose categorization failed and fell back to raw text",
		},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of candidate searches by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Candidate search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ProfileResolutionMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_resolution_misses_total",
			Help:      "Ranked candidates dropped because the profile store had no record",
		},
	)
)

// Index metrics.
var (
	IndexEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Vector index entries by state",
		},
		[]string{"state"}, // "live" / "tombstoned"
	)

	IndexPersistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_persist_total",
			Help:      "Index save/load operations",
		},
		[]string{"op", "status"},
	)
)

var registerOnce sync.Once

// Register registers every saiyo collector with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingDuration,
			EmbeddingFallbacksTotal,
			EmbeddingCacheTotal,
			AspectParseFallbacksTotal,
			SearchRequestsTotal,
			SearchDuration,
			ProfileResolutionMissesTotal,
			IndexEntries,
			IndexPersistTotal,
		)
	})
}

// SetIndexEntries publishes live and tombstoned entry counts.
func SetIndexEntries(live, tombstoned int) {
	IndexEntries.WithLabelValues("live").Set(float64(live))
	IndexEntries.WithLabelValues("tombstoned").Set(float64(tombstoned))
}
