package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamhub/teamhub/internal/diff"
	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/internal/hub"
	"github.com/teamhub/teamhub/internal/identity"
	"github.com/teamhub/teamhub/internal/observability"
	"github.com/teamhub/teamhub/internal/snapshot"
	"github.com/teamhub/teamhub/internal/store"
	"github.com/teamhub/teamhub/pkg/types"
)

// CaptureSnapshot fetches the full catalog and stores it as the snapshot of
// date. A fetch failure writes nothing. Re-running for the same date replaces
// the snapshot without adding a ledger entry.
func (p *Pipeline) CaptureSnapshot(ctx context.Context, date types.RunDate) (observability.StageStats, error) {
	return p.execute(ctx, StageSnapshot, date, func(ctx context.Context, stats *observability.StageStats) error {
		teams, err := p.fetcher.Fetch(ctx, p.cfg.Upstream.Endpoint)
		if err != nil {
			return err
		}
		fetchedAt := p.now().UTC()
		stats.RowsIn = int64(len(teams))

		rows := make([]types.SnapshotRow, len(teams))
		for i, t := range teams {
			rows[i] = types.NewSnapshotRow(t, fetchedAt, p.cfg.Dataset.Source)
		}

		res, err := p.snapshots.WriteSnapshot(ctx, p.cfg.Dataset.Name, date, rows, fetchedAt)
		recordWrite(stats, res.WriteResult)
		if err != nil {
			return err
		}
		stats.RowsOut = int64(len(rows))
		if !res.Recorded {
			p.logger.Info("snapshot replaced, ledger already holds this run date",
				zap.String("run_date", date.String()))
		}
		return nil
	})
}

// DiffToStaging compares the snapshot of date with the snapshot before it and
// overwrites the staging table with the change-set.
func (p *Pipeline) DiffToStaging(ctx context.Context, date types.RunDate) (observability.StageStats, error) {
	return p.execute(ctx, StageDiff, date, func(ctx context.Context, stats *observability.StageStats) error {
		dataset := p.cfg.Dataset.Name
		name := snapshot.LedgerName(dataset)

		current, ok, err := p.ledger.Find(ctx, name, date)
		if err != nil {
			return err
		}
		if !ok {
			return perrors.NewNotFoundError(fmt.Sprintf("ledger entry for %s on %s", name, date))
		}

		curr, err := p.snapshots.ReadSnapshot(ctx, dataset, date)
		if err != nil {
			return err
		}

		prev, err := p.previousSnapshot(ctx, name, date)
		if err != nil {
			return err
		}
		stats.RowsIn = int64(len(curr) + len(prev))

		rows := diff.Diff(prev, curr, date.BatchID(), observedAt(curr, current))
		summary := diff.Summarize(rows)
		p.logger.Info("change-set computed",
			zap.String("run_date", date.String()),
			zap.Int("current", len(curr)),
			zap.Int("previous", len(prev)),
			zap.Int("changed", summary.Changed),
			zap.Int("deleted", summary.Deleted))

		res, err := store.WriteRowsVerified(ctx, p.store, p.StagingTable(), rows, store.Overwrite)
		recordWrite(stats, res)
		if err != nil {
			return err
		}
		stats.RowsOut = int64(len(rows))
		return nil
	})
}

// observedAt is the fetch time of the current snapshot. A re-captured date
// keeps its first ledger entry, so the rows are preferred over the entry; an
// empty snapshot has only the entry to go by.
func observedAt(curr []types.SnapshotRow, entry types.LedgerEntry) time.Time {
	if len(curr) > 0 {
		return curr[0].FetchedAt
	}
	return entry.UpdatedAt
}

// previousSnapshot returns the snapshot preceding date. For the newest run
// date that is the ledger's penultimate entry; a retried diff of an older
// date uses the latest entry before it. No prior snapshot yields nil.
func (p *Pipeline) previousSnapshot(ctx context.Context, name string, date types.RunDate) ([]types.SnapshotRow, error) {
	latest, _, err := p.ledger.FindLatest(ctx, name)
	if err != nil {
		return nil, err
	}

	var prev types.LedgerEntry
	var ok bool
	if latest.RunDate == date {
		prev, ok, err = p.ledger.FindPenultimate(ctx, name)
	} else {
		prev, ok, err = p.ledger.FindPrevious(ctx, name, date)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		p.logger.Info("no previous snapshot, treating every row as new", zap.String("run_date", date.String()))
		return nil, nil
	}

	rows, err := p.snapshots.ReadSnapshot(ctx, p.cfg.Dataset.Name, prev.RunDate)
	if perrors.IsNotFound(err) {
		p.logger.Warn("previous snapshot table missing, treating every row as new",
			zap.String("run_date", date.String()),
			zap.String("previous_run_date", prev.RunDate.String()))
		return nil, nil
	}
	return rows, err
}

// ResolveToOperational assigns surrogate keys to the staged change-set and
// appends it to the operational log. A batch already present in the log is
// not appended again.
func (p *Pipeline) ResolveToOperational(ctx context.Context, date types.RunDate) (observability.StageStats, error) {
	return p.execute(ctx, StageResolve, date, func(ctx context.Context, stats *observability.StageStats) error {
		batchID := date.BatchID()

		changes, err := store.ReadRows[types.ChangeRow](ctx, p.store, p.StagingTable())
		if err != nil {
			return err
		}
		stats.RowsIn = int64(len(changes))
		for _, c := range changes {
			if c.BatchID != batchID {
				return perrors.NewInvalidRecordError(
					fmt.Sprintf("staging holds batch %s, expected %s", c.BatchID, batchID), nil)
			}
		}

		existing, err := store.ReadRows[types.OperationalRecord](ctx, p.store, p.OperationalTable())
		if err != nil && !perrors.IsNotFound(err) {
			return err
		}
		if already := hub.FilterBatch(existing, batchID); len(already) > 0 {
			p.logger.Info("batch already resolved, skipping append",
				zap.String("batch_id", batchID), zap.Int("records", len(already)))
			stats.Table = p.OperationalTable().String()
			stats.TableRowsBefore = int64(len(existing))
			stats.TableRowsAfter = int64(len(existing))
			return nil
		}

		records, err := identity.ResolveAll(changes)
		if err != nil {
			return err
		}
		for i := range records {
			id, err := uuid.NewV7()
			if err != nil {
				return perrors.NewInternalError("failed to generate record id", err)
			}
			records[i].RecordID = id.String()
		}

		res, err := store.WriteRowsVerified(ctx, p.store, p.OperationalTable(), records, store.Append)
		recordWrite(stats, res)
		if err != nil {
			return err
		}
		stats.RowsOut = int64(len(records))
		return nil
	})
}

// MergeToHub adds the surrogate keys first seen in the batch of date to the
// hub. Keys already in the hub are never updated.
func (p *Pipeline) MergeToHub(ctx context.Context, date types.RunDate) (observability.StageStats, error) {
	return p.execute(ctx, StageMerge, date, func(ctx context.Context, stats *observability.StageStats) error {
		ops, err := store.ReadRows[types.OperationalRecord](ctx, p.store, p.OperationalTable())
		if perrors.IsNotFound(err) {
			p.logger.Info("operational log missing, merging an empty batch")
			ops, err = nil, nil
		}
		if err != nil {
			return err
		}
		batch := hub.FilterBatch(ops, date.BatchID())
		stats.RowsIn = int64(len(batch))

		existing, err := store.ReadRows[types.HubRecord](ctx, p.store, p.HubTable())
		hubExists := err == nil
		if perrors.IsNotFound(err) {
			p.logger.Info("hub missing, starting from an empty hub")
			err = nil
		}
		if err != nil {
			return err
		}

		merged, added := hub.Merge(existing, batch)
		if hubExists && len(added) == 0 {
			stats.Table = p.HubTable().String()
			stats.TableRowsBefore = int64(len(existing))
			stats.TableRowsAfter = int64(len(existing))
			return nil
		}

		res, err := store.WriteRowsVerified(ctx, p.store, p.HubTable(), merged, store.Overwrite)
		recordWrite(stats, res)
		if err != nil {
			return err
		}
		if res.After < int64(len(existing)) {
			return perrors.NewVerifyError(p.HubTable().String(), int64(len(merged)), res.After)
		}
		stats.RowsOut = int64(len(added))
		return nil
	})
}
