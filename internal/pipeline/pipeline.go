// Package pipeline runs the four batch stages of a dataset: snapshot capture,
// diff to staging, identity resolution into the operational log and the hub
// merge. Every stage takes the run date as its only input and keeps all other
// state in the store.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamhub/teamhub/internal/config"
	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/internal/fetch"
	"github.com/teamhub/teamhub/internal/ledger"
	"github.com/teamhub/teamhub/internal/observability"
	"github.com/teamhub/teamhub/internal/snapshot"
	"github.com/teamhub/teamhub/internal/store"
	"github.com/teamhub/teamhub/pkg/types"
)

// Stage names as used in logs, metrics and error details.
const (
	StageSnapshot = "snapshot"
	StageDiff     = "diff"
	StageResolve  = "resolve"
	StageMerge    = "merge"
)

// Stages lists the stage names in execution order.
var Stages = []string{StageSnapshot, StageDiff, StageResolve, StageMerge}

// Pipeline holds the collaborators of one pipeline run.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	fetcher   fetch.Fetcher
	ledger    *ledger.Ledger
	snapshots *snapshot.Store
	logger    *zap.Logger
	metrics   *observability.Metrics
	stats     *observability.RunStats

	runID string
	now   func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records stage metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock replaces time.Now as the source of fetch timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRunID sets the run id attached to logs and pushed metrics.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// New creates a pipeline over the given store and fetcher.
func New(cfg *config.Config, s store.Store, f fetch.Fetcher, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := ledger.New(s)
	p := &Pipeline{
		cfg:       cfg,
		store:     s,
		fetcher:   f,
		ledger:    l,
		snapshots: snapshot.New(s, l),
		logger:    logger,
		stats:     observability.NewRunStats(),
		runID:     uuid.NewString(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(
		zap.String("dataset", cfg.Dataset.Name),
		zap.String("run_id", p.runID),
	)
	return p
}

// RunID returns the id of this run.
func (p *Pipeline) RunID() string { return p.runID }

// Stats returns the stage executions recorded so far.
func (p *Pipeline) Stats() *observability.RunStats { return p.stats }

// Ledger returns the snapshot ledger.
func (p *Pipeline) Ledger() *ledger.Ledger { return p.ledger }

// StagingTable holds the change-set of the latest diff.
func (p *Pipeline) StagingTable() store.TableRef {
	return store.Table(store.LayerStaging, p.cfg.Dataset.Name)
}

// OperationalTable is the append-only log of resolved records.
func (p *Pipeline) OperationalTable() store.TableRef {
	return store.Table(store.LayerOperational, p.cfg.Dataset.Name)
}

// HubTable is the historized hub.
func (p *Pipeline) HubTable() store.TableRef {
	return store.Table(store.LayerDetailed, p.cfg.Dataset.HubName)
}

// SnapshotTable is the snapshot table of date.
func (p *Pipeline) SnapshotTable(date types.RunDate) store.TableRef {
	return snapshot.TableFor(p.cfg.Dataset.Name, date)
}

type stageFunc func(ctx context.Context, stats *observability.StageStats) error

// execute runs one stage with logging, stats and metrics. Errors leave the
// stage annotated with dataset, run date and stage name.
func (p *Pipeline) execute(ctx context.Context, stage string, date types.RunDate, fn stageFunc) (observability.StageStats, error) {
	stats := observability.StageStats{
		Dataset: p.cfg.Dataset.Name,
		RunDate: date.String(),
		Stage:   stage,
		RunID:   p.runID,
		Started: time.Now(),
	}
	log := p.logger.With(zap.String("run_date", date.String()), zap.String("stage", stage))
	log.Info("stage started")

	err := ctx.Err()
	if err == nil {
		err = fn(ctx, &stats)
	}

	stats.Finished = time.Now()
	stats.Duration = stats.Finished.Sub(stats.Started)
	if err != nil {
		err = annotate(err, p.cfg.Dataset.Name, date, stage)
		stats.Err = err
		log.Error("stage failed",
			zap.Error(err),
			zap.Bool("retryable", perrors.IsRetryable(err)),
			zap.Duration("duration", stats.Duration))
	} else {
		log.Info("stage finished",
			zap.Int64("rows_in", stats.RowsIn),
			zap.Int64("rows_out", stats.RowsOut),
			zap.String("table", stats.Table),
			zap.Int64("count_before", stats.TableRowsBefore),
			zap.Int64("count_after", stats.TableRowsAfter),
			zap.Duration("duration", stats.Duration))
	}

	p.stats.Record(stats)
	if p.metrics != nil {
		p.metrics.ObserveStage(stats)
	}
	return stats, err
}

func annotate(err error, dataset string, date types.RunDate, stage string) error {
	details := map[string]interface{}{
		perrors.DetailDataset: dataset,
		perrors.DetailRunDate: date.String(),
		perrors.DetailStage:   stage,
	}
	if pe, ok := err.(*perrors.PipelineError); ok {
		return pe.WithDetails(details)
	}
	if perrors.GetCategory(err) != "" {
		// Keep the wrapped PipelineError reachable; attach context on top.
		return perrors.Wrap(perrors.GetCategory(err), perrors.GetCode(err), "stage "+stage+" failed", err).
			WithDetails(details)
	}
	return perrors.NewInternalError("stage "+stage+" failed", err).WithDetails(details)
}

func recordWrite(stats *observability.StageStats, res store.WriteResult) {
	if res.Table.Name == "" {
		return
	}
	stats.Table = res.Table.String()
	stats.TableRowsBefore = res.Before
	stats.TableRowsAfter = res.After
}
