package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCount counts HTTP requests
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	// FingerprintsIndexed counts index attempts by kind and outcome
	// (created, existing, malformed).
	FingerprintsIndexed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchcode_fingerprints_indexed_total",
			Help: "Total number of fingerprint index attempts",
		},
		[]string{"kind", "outcome"},
	)

	// MatchQueries counts match lookups by kind
	MatchQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchcode_match_queries_total",
			Help: "Total number of fingerprint match queries",
		},
		[]string{"kind"},
	)

	// MatchCandidates observes how many candidates a chunk lookup returned
	// before distance filtering.
	MatchCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchcode_match_candidates",
			Help:    "Candidates retrieved per approximate match query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"kind"},
	)

	// PackagesIndexed counts package indexing passes by status
	PackagesIndexed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchcode_packages_indexed_total",
			Help: "Total number of package indexing passes",
		},
		[]string{"status"},
	)

	// IndexDuration measures a package indexing pass
	IndexDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "matchcode_index_duration_seconds",
			Help: "Package indexing duration in seconds",
		},
	)
)

// InitPrometheus registers all collectors with the default registry
func InitPrometheus() {
	prometheus.MustRegister(RequestCount)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(FingerprintsIndexed)
	prometheus.MustRegister(MatchQueries)
	prometheus.MustRegister(MatchCandidates)
	prometheus.MustRegister(PackagesIndexed)
	prometheus.MustRegister(IndexDuration)
}

// Handler returns Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}
