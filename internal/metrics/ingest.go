package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion Prometheus metrics.
var (
	IngestRowsReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecfeed",
			Name:      "ingest_rows_read_total",
			Help:      "Rows read from source files before preprocessing",
		},
		[]string{"domain"},
	)

	IngestRowsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecfeed",
			Name:      "ingest_rows_dropped_total",
			Help:      "Rows removed during preprocessing",
		},
		[]string{"domain", "reason"}, // "empty_skills" / "missing_embedding"
	)

	IngestChunksSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecfeed",
			Name:      "ingest_chunks_sent_total",
			Help:      "Data chunks written to the remote batch writer",
		},
		[]string{"domain"},
	)

	IngestRecordsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecfeed",
			Name:      "ingest_records_sent_total",
			Help:      "Validated records written to the remote batch writer",
		},
		[]string{"domain"},
	)

	IngestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecfeed",
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by final state",
		},
		[]string{"domain", "status"}, // "completed" / "failed"
	)

	IngestRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecfeed",
			Name:      "ingest_run_duration_seconds",
			Help:      "Ingestion run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"domain"},
	)
)

var registerIngestOnce sync.Once

// RegisterIngestMetrics registers ingestion metrics with the default registry.
// Safe to call more than once.
func RegisterIngestMetrics() {
	registerIngestOnce.Do(func() {
		prometheus.MustRegister(
			IngestRowsReadTotal,
			IngestRowsDroppedTotal,
			IngestChunksSentTotal,
			IngestRecordsSentTotal,
			IngestRunsTotal,
			IngestRunDuration,
		)
	})
}
