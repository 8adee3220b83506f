package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search backend and document pipeline metrics.
var (
	SonicRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sonicweb",
			Name:      "sonic_requests_total",
			Help:      "Total number of Sonic channel commands",
		},
		[]string{"channel", "op", "status"},
	)

	SonicRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sonicweb",
			Name:      "sonic_request_duration_seconds",
			Help:      "Sonic channel command duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
		[]string{"channel", "op"},
	)

	SonicConnectionsInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sonicweb",
			Name:      "sonic_connections_in_use",
			Help:      "Sonic channel connections currently checked out",
		},
		[]string{"channel"},
	)

	DocumentCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sonicweb",
			Name:      "document_cache_total",
			Help:      "Document cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	OrphanedReferencesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sonicweb",
			Name:      "orphaned_references_total",
			Help:      "Index hits with no matching database row",
		},
	)

	IndexPushFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sonicweb",
			Name:      "index_push_failures_total",
			Help:      "Documents stored but not pushed into the index",
		},
		[]string{"source"}, // "ingest" / "reindex"
	)
)

var sonicMetricsRegistered bool

// RegisterSonicMetrics registers search backend metrics. Must be called once from main.
func RegisterSonicMetrics() {
	if sonicMetricsRegistered {
		return
	}
	prometheus.MustRegister(SonicRequestsTotal)
	prometheus.MustRegister(SonicRequestDuration)
	prometheus.MustRegister(SonicConnectionsInUse)
	prometheus.MustRegister(DocumentCacheTotal)
	prometheus.MustRegister(OrphanedReferencesTotal)
	prometheus.MustRegister(IndexPushFailuresTotal)
	sonicMetricsRegistered = true
}
