package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	RetrievalStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clinrag",
			Name:      "retrieval_stage_duration_seconds",
			Help:      "Retrieval pipeline stage latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	RetrievalResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clinrag",
			Name:      "retrieval_results",
			Help:      "Number of hits returned per query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
	)

	RetrievalTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clinrag",
			Name:      "retrieval_timeouts_total",
			Help:      "Queries that hit the retrieval deadline and returned no hits",
		},
	)

	RerankFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clinrag",
			Name:      "rerank_failures_total",
			Help:      "Cross-encoder failures that fell back to the fused order",
		},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalStageDuration)
	prometheus.MustRegister(RetrievalResults)
	prometheus.MustRegister(RetrievalTimeoutsTotal)
	prometheus.MustRegister(RerankFailuresTotal)
	retrievalMetricsRegistered = true
}
