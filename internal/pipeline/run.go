package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/internal/observability"
	"github.com/teamhub/teamhub/pkg/types"
)

// StageFunc is the signature shared by the four stage entry points.
type StageFunc func(ctx context.Context, date types.RunDate) (observability.StageStats, error)

// Stage returns the entry point for a stage name.
func (p *Pipeline) Stage(name string) (StageFunc, error) {
	switch name {
	case StageSnapshot:
		return p.CaptureSnapshot, nil
	case StageDiff:
		return p.DiffToStaging, nil
	case StageResolve:
		return p.ResolveToOperational, nil
	case StageMerge:
		return p.MergeToHub, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}
}

// RunStage runs one stage, retrying retryable failures with the configured
// constant delay. Non-retryable failures return immediately.
func (p *Pipeline) RunStage(ctx context.Context, name string, date types.RunDate) (observability.StageStats, error) {
	fn, err := p.Stage(name)
	if err != nil {
		return observability.StageStats{}, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.cfg.Retry.Delay), uint64(p.cfg.Retry.MaxRetries)),
		ctx)

	var stats observability.StageStats
	attempts := 0
	err = backoff.RetryNotify(func() error {
		attempts++
		var runErr error
		stats, runErr = fn(ctx, date)
		if runErr != nil && !perrors.IsRetryable(runErr) {
			return backoff.Permanent(runErr)
		}
		return runErr
	}, policy, func(err error, next time.Duration) {
		p.logger.Warn("retrying stage",
			zap.String("stage", name),
			zap.String("run_date", date.String()),
			zap.Int("attempt", attempts),
			zap.Duration("delay", next),
			zap.Error(err))
	})
	stats.Attempts = attempts
	return stats, err
}

// Run executes all four stages in order for date. A stage only starts after
// the previous one committed; the first failure stops the run.
func (p *Pipeline) Run(ctx context.Context, date types.RunDate) ([]observability.StageStats, error) {
	var results []observability.StageStats
	for _, name := range Stages {
		stats, err := p.RunStage(ctx, name, date)
		results = append(results, stats)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
