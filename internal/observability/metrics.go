package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the stage metrics of one process on a private registry.
// Batch runs are short-lived, so metrics are pushed rather than scraped.
type Metrics struct {
	Registry *prometheus.Registry

	StageRuns     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	RowsIn        *prometheus.GaugeVec
	RowsOut       *prometheus.GaugeVec
	TableRows     *prometheus.GaugeVec
	LastSuccess   *prometheus.GaugeVec
}

// NewMetrics registers the stage metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		StageRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teamhub_stage_runs_total",
				Help: "Stage executions by outcome",
			},
			[]string{"dataset", "stage", "status"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "teamhub_stage_duration_seconds",
				Help:    "Duration of stage executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dataset", "stage"},
		),
		RowsIn: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "teamhub_stage_rows_in",
				Help: "Rows read by the last stage execution",
			},
			[]string{"dataset", "stage"},
		),
		RowsOut: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "teamhub_stage_rows_out",
				Help: "Rows written by the last stage execution",
			},
			[]string{"dataset", "stage"},
		),
		TableRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "teamhub_table_rows",
				Help: "Row count of a table after the last write",
			},
			[]string{"table"},
		),
		LastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "teamhub_stage_last_success_timestamp_seconds",
				Help: "Unix time of the last successful stage execution",
			},
			[]string{"dataset", "stage"},
		),
	}
}

// ObserveStage records one finished stage execution.
func (m *Metrics) ObserveStage(s StageStats) {
	status := "success"
	if s.Err != nil {
		status = "failure"
	}
	m.StageRuns.WithLabelValues(s.Dataset, s.Stage, status).Inc()
	m.StageDuration.WithLabelValues(s.Dataset, s.Stage).Observe(s.Duration.Seconds())
	m.RowsIn.WithLabelValues(s.Dataset, s.Stage).Set(float64(s.RowsIn))
	m.RowsOut.WithLabelValues(s.Dataset, s.Stage).Set(float64(s.RowsOut))
	if s.Table != "" && s.Err == nil {
		m.TableRows.WithLabelValues(s.Table).Set(float64(s.TableRowsAfter))
	}
	if s.Err == nil {
		m.LastSuccess.WithLabelValues(s.Dataset, s.Stage).Set(float64(s.Finished.Unix()))
	}
}

// Push sends the registry to a Pushgateway under job, grouped by run id.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return push.New(url, job).
		Gatherer(m.Registry).
		Grouping("run_id", runID).
		PushContext(ctx)
}
