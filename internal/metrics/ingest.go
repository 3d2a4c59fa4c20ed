package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chunking and ingestion Prometheus metrics.
var (
	ChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinrag",
			Name:      "chunks_total",
			Help:      "Total chunks produced by the assemblers",
		},
		[]string{"document_type", "semantic_type"},
	)

	ChunksOversizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinrag",
			Name:      "chunks_oversized_total",
			Help:      "Chunks holding a single unit above the max token bound",
		},
		[]string{"document_type"},
	)

	ChunkingFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinrag",
			Name:      "chunking_fallbacks_total",
			Help:      "Documents re-chunked by the fallback assembler",
		},
		[]string{"document_type", "assembler"},
	)

	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinrag",
			Name:      "ingest_documents_total",
			Help:      "Total documents ingested",
		},
		[]string{"document_type", "status"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clinrag",
			Name:      "ingest_duration_seconds",
			Help:      "Per-document ingestion duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"document_type"},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers chunking and ingestion metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(ChunksTotal)
	prometheus.MustRegister(ChunksOversizedTotal)
	prometheus.MustRegister(ChunkingFallbacksTotal)
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestDuration)
	ingestMetricsRegistered = true
}
