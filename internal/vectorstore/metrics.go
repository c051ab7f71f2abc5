package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts store operations.
	// Labels: provider (chromem, qdrant), operation, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docspace",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"provider", "operation", "result"},
	)

	// OperationDuration tracks how long store operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docspace",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// DocumentsUpserted counts documents written.
	DocumentsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docspace",
			Subsystem: "vectorstore",
			Name:      "documents_upserted_total",
			Help:      "Total number of documents upserted",
		},
		[]string{"provider"},
	)
)

// recordOperation records the outcome and latency of one store call.
func recordOperation(provider, operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(provider, operation, result).Inc()
	OperationDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}
