package http

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/logging"
	"github.com/fyrsmithlabs/docspace/internal/workspace"
)

// countWorkspaces totals the counters stored on every workspace.
//
// The totals are as accurate as the per-workspace counters, which may lag
// after a failed counter update until RecountDocuments runs.
func countWorkspaces(ctx context.Context, coord Coordinator) (StatusCounts, error) {
	list, err := coord.ListWorkspaces(ctx)
	if err != nil {
		return StatusCounts{}, err
	}

	counts := StatusCounts{Workspaces: len(list)}
	for _, ws := range list {
		counts.Documents += ws.DocumentCount
		counts.Embedded += ws.EmbeddedCount
		if ws.Vector.Status == workspace.VectorFailed {
			counts.VectorFailed++
		}
	}
	return counts, nil
}

const collectTimeout = 5 * time.Second

// workspaceCollector exports the workspace totals as Prometheus gauges,
// computed on every scrape.
type workspaceCollector struct {
	coord  Coordinator
	logger *logging.Logger

	workspaces   *prometheus.Desc
	documents    *prometheus.Desc
	embedded     *prometheus.Desc
	vectorFailed *prometheus.Desc
}

func newWorkspaceCollector(coord Coordinator, logger *logging.Logger) *workspaceCollector {
	return &workspaceCollector{
		coord:        coord,
		logger:       logger,
		workspaces:   prometheus.NewDesc("docspace_workspaces", "Number of workspaces", nil, nil),
		documents:    prometheus.NewDesc("docspace_documents", "Number of documents across all workspaces", nil, nil),
		embedded:     prometheus.NewDesc("docspace_documents_embedded", "Number of embedded documents across all workspaces", nil, nil),
		vectorFailed: prometheus.NewDesc("docspace_workspaces_vector_failed", "Workspaces whose vector collection could not be created", nil, nil),
	}
}

func (w *workspaceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- w.workspaces
	ch <- w.documents
	ch <- w.embedded
	ch <- w.vectorFailed
}

func (w *workspaceCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	counts, err := countWorkspaces(ctx, w.coord)
	if err != nil {
		w.logger.Warn(ctx, "collecting workspace metrics failed", zap.Error(err))
		return
	}
	ch <- prometheus.MustNewConstMetric(w.workspaces, prometheus.GaugeValue, float64(counts.Workspaces))
	ch <- prometheus.MustNewConstMetric(w.documents, prometheus.GaugeValue, float64(counts.Documents))
	ch <- prometheus.MustNewConstMetric(w.embedded, prometheus.GaugeValue, float64(counts.Embedded))
	ch <- prometheus.MustNewConstMetric(w.vectorFailed, prometheus.GaugeValue, float64(counts.VectorFailed))
}
