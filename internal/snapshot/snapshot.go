// Package snapshot persists dated full extracts of a dataset.
package snapshot

import (
	"context"
	"fmt"
	"time"

	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/internal/ledger"
	"github.com/teamhub/teamhub/internal/store"
	"github.com/teamhub/teamhub/pkg/types"
)

// Store writes and reads snapshot tables and records them in the ledger.
type Store struct {
	store  store.Store
	ledger *ledger.Ledger
}

// New creates a snapshot store.
func New(s store.Store, l *ledger.Ledger) *Store {
	return &Store{store: s, ledger: l}
}

// TableFor returns the snapshot table of dataset on date.
func TableFor(dataset string, date types.RunDate) store.TableRef {
	return store.DatedTable(store.LayerSource, dataset, date)
}

// LedgerName is the logical name under which snapshots of dataset are
// recorded in the ledger.
func LedgerName(dataset string) string {
	return string(store.LayerSource) + "." + dataset
}

// Validate rejects empty and duplicate natural keys.
func Validate(rows []types.SnapshotRow) error {
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		if r.NaturalKey == "" {
			return perrors.NewInvalidRecordError(fmt.Sprintf("snapshot row %d", i), types.ErrMissingNaturalKey)
		}
		if _, dup := seen[r.NaturalKey]; dup {
			return perrors.NewInvalidRecordError(fmt.Sprintf("snapshot row %d: key %q", i, r.NaturalKey), types.ErrDuplicateNaturalKey)
		}
		seen[r.NaturalKey] = struct{}{}
	}
	return nil
}

// WriteResult describes a committed snapshot.
type WriteResult struct {
	store.WriteResult

	// Recorded is false when the ledger already held an entry for the date
	Recorded bool
}

// WriteSnapshot replaces the snapshot of dataset for date with rows and
// records it in the ledger. The ledger is only touched after the table write
// has been verified.
func (s *Store) WriteSnapshot(ctx context.Context, dataset string, date types.RunDate, rows []types.SnapshotRow, fetchedAt time.Time) (WriteResult, error) {
	if err := Validate(rows); err != nil {
		return WriteResult{}, err
	}

	res, err := store.WriteRowsVerified(ctx, s.store, TableFor(dataset, date), rows, store.Overwrite)
	if err != nil {
		return WriteResult{WriteResult: res}, err
	}

	recorded, err := s.ledger.RecordSnapshot(ctx, LedgerName(dataset), fetchedAt, date)
	if err != nil {
		return WriteResult{WriteResult: res}, err
	}
	return WriteResult{WriteResult: res, Recorded: recorded}, nil
}

// ReadSnapshot returns the snapshot of dataset for date, or a NotFound error.
func (s *Store) ReadSnapshot(ctx context.Context, dataset string, date types.RunDate) ([]types.SnapshotRow, error) {
	return store.ReadRows[types.SnapshotRow](ctx, s.store, TableFor(dataset, date))
}
