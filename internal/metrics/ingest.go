package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion Prometheus metrics.
var (
	IngestFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipdex",
			Name:      "ingest_files_total",
			Help:      "Files seen by the ingest pipeline, by outcome",
		},
		[]string{"outcome"}, // "indexed" / "skipped" / "failed"
	)

	IngestFileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clipdex",
			Name:      "ingest_file_duration_seconds",
			Help:      "Per-file embed-and-upsert duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers Prometheus ingest metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestFilesTotal)
	prometheus.MustRegister(IngestFileDuration)
	ingestMetricsRegistered = true
}
