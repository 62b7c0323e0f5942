// Package ledger records every snapshot produced for a logical dataset and
// locates the current and previous snapshot of a dataset.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/teamhub/teamhub/internal/codec"
	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/internal/store"
	"github.com/teamhub/teamhub/pkg/types"
)

// Table is where ledger entries are stored.
var Table = store.Table(store.LayerSource, "metadata_table")

// Ledger is an append-only record of snapshots, kept as a store table.
type Ledger struct {
	store store.Store
}

// New creates a ledger over s.
func New(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Entries returns every entry in insertion order. A missing ledger table
// reads as empty. Rows that do not decode to a complete entry fail with
// LEDGER_CORRUPT.
func (l *Ledger) Entries(ctx context.Context) ([]types.LedgerEntry, error) {
	payloads, err := l.store.Read(ctx, Table)
	if perrors.IsNotFound(err) {
		return []types.LedgerEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	entries := make([]types.LedgerEntry, len(payloads))
	for i, p := range payloads {
		if err := codec.DecodeRow(p, &entries[i]); err != nil {
			return nil, perrors.NewLedgerCorruptError(fmt.Sprintf("%s row %d", Table, i), err)
		}
		if entries[i].TableName == "" || entries[i].RunDate.IsZero() {
			return nil, perrors.NewLedgerCorruptError(fmt.Sprintf("%s row %d is incomplete", Table, i), nil)
		}
	}
	return entries, nil
}

// history returns the entries of one dataset ordered by UpdatedAt. Entries
// with equal timestamps keep insertion order.
func (l *Ledger) history(ctx context.Context, dataset string) ([]types.LedgerEntry, error) {
	all, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var out []types.LedgerEntry
	for _, e := range all {
		if e.TableName == dataset {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

// HasRunDate reports whether an entry for dataset and date exists.
func (l *Ledger) HasRunDate(ctx context.Context, dataset string, date types.RunDate) (bool, error) {
	entries, err := l.history(ctx, dataset)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.RunDate == date {
			return true, nil
		}
	}
	return false, nil
}

// RecordSnapshot appends an entry for dataset. If an entry for the same run
// date already exists nothing is appended and recorded is false.
func (l *Ledger) RecordSnapshot(ctx context.Context, dataset string, updatedAt time.Time, date types.RunDate) (recorded bool, err error) {
	if dataset == "" || date.IsZero() {
		return false, perrors.NewInvalidRecordError("ledger entry needs a dataset and a run date", nil)
	}

	exists, err := l.HasRunDate(ctx, dataset, date)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	entry := types.LedgerEntry{
		TableName: dataset,
		UpdatedAt: updatedAt.UTC(),
		RunDate:   date,
	}
	if err := store.WriteRows(ctx, l.store, Table, []types.LedgerEntry{entry}, store.Append); err != nil {
		return false, err
	}
	return true, nil
}

// FindLatest returns the most recent entry for dataset. ok is false when the
// dataset has no entries.
func (l *Ledger) FindLatest(ctx context.Context, dataset string) (entry types.LedgerEntry, ok bool, err error) {
	entries, err := l.history(ctx, dataset)
	if err != nil || len(entries) == 0 {
		return types.LedgerEntry{}, false, err
	}
	return entries[len(entries)-1], true, nil
}

// FindPenultimate returns the second most recent entry for dataset. ok is
// false when fewer than two entries exist, which is the first-run case.
func (l *Ledger) FindPenultimate(ctx context.Context, dataset string) (entry types.LedgerEntry, ok bool, err error) {
	entries, err := l.history(ctx, dataset)
	if err != nil || len(entries) < 2 {
		return types.LedgerEntry{}, false, err
	}
	return entries[len(entries)-2], true, nil
}

// FindPrevious returns the most recent entry for dataset whose run date is
// before date.
func (l *Ledger) FindPrevious(ctx context.Context, dataset string, date types.RunDate) (entry types.LedgerEntry, ok bool, err error) {
	entries, err := l.history(ctx, dataset)
	if err != nil {
		return types.LedgerEntry{}, false, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].RunDate.Before(date) {
			return entries[i], true, nil
		}
	}
	return types.LedgerEntry{}, false, nil
}

// Find returns the entry for dataset and date.
func (l *Ledger) Find(ctx context.Context, dataset string, date types.RunDate) (entry types.LedgerEntry, ok bool, err error) {
	entries, err := l.history(ctx, dataset)
	if err != nil {
		return types.LedgerEntry{}, false, err
	}
	for _, e := range entries {
		if e.RunDate == date {
			return e, true, nil
		}
	}
	return types.LedgerEntry{}, false, nil
}
