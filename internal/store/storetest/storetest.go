// Package storetest provides store helpers for tests.
package storetest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/internal/store"
)

// ErrInjected is the cause of every write failure produced by FailingStore.
var ErrInjected = errors.New("injected write failure")

// NewSQLite opens a SQLite store in a temporary directory and closes it when
// the test ends.
func NewSQLite(t testing.TB) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "warehouse.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// FailingStore wraps a Store and fails writes to selected tables.
type FailingStore struct {
	store.Store

	mu       sync.Mutex
	failing  map[store.TableRef]bool
	dropping map[store.TableRef]bool
}

// NewFailingStore wraps inner.
func NewFailingStore(inner store.Store) *FailingStore {
	return &FailingStore{
		Store:    inner,
		failing:  make(map[store.TableRef]bool),
		dropping: make(map[store.TableRef]bool),
	}
}

// FailWrites makes every later write to ref return a StoreWriteError.
func (f *FailingStore) FailWrites(ref store.TableRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[ref] = true
}

// DropLastRow makes later writes to ref report success while persisting one
// row fewer than requested.
func (f *FailingStore) DropLastRow(ref store.TableRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropping[ref] = true
}

// Heal clears every injected fault.
func (f *FailingStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = make(map[store.TableRef]bool)
	f.dropping = make(map[store.TableRef]bool)
}

func (f *FailingStore) Write(ctx context.Context, ref store.TableRef, rows [][]byte, mode store.WriteMode) error {
	f.mu.Lock()
	fail, drop := f.failing[ref], f.dropping[ref]
	f.mu.Unlock()

	if fail {
		return perrors.NewStoreWriteError(ref.String(), ErrInjected)
	}
	if drop && len(rows) > 0 {
		rows = rows[:len(rows)-1]
	}
	return f.Store.Write(ctx, ref, rows, mode)
}
