package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	perrors "github.com/teamhub/teamhub/internal/errors"
)

// SQLiteStore keeps every table in one SQLite database file. Layers become a
// name prefix: source.teams is the SQLite table "source.teams".
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // single writer
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("store: failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func (s *SQLiteStore) Read(ctx context.Context, ref TableRef) ([][]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	exists, err := s.Exists(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFound(ref)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM "+quoteSQLite(ref)+" ORDER BY seq")
	if err != nil {
		return nil, perrors.NewStoreReadError(ref.String(), err)
	}
	defer rows.Close()

	payloads := [][]byte{}
	for rows.Next() {
		var p []byte
		if err := rows.Scan(&p); err != nil {
			return nil, perrors.NewStoreReadError(ref.String(), err)
		}
		payloads = append(payloads, p)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.NewStoreReadError(ref.String(), err)
	}
	return payloads, nil
}

func (s *SQLiteStore) Write(ctx context.Context, ref TableRef, payloads [][]byte, mode WriteMode) error {
	if err := ref.Validate(); err != nil {
		return perrors.NewStoreWriteError(ref.String(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(ctx, ref, payloads, mode); err != nil {
		return perrors.NewStoreWriteError(ref.String(), err)
	}
	return nil
}

func (s *SQLiteStore) write(ctx context.Context, ref TableRef, payloads [][]byte, mode WriteMode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := quoteSQLite(ref)
	if mode == Overwrite {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	create := "CREATE TABLE IF NOT EXISTS " + table +
		" (seq INTEGER PRIMARY KEY AUTOINCREMENT, payload BLOB NOT NULL)"
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+table+" (payload) VALUES (?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range payloads {
		if _, err := stmt.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, ref TableRef) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", ref.String()).Scan(&n)
	if err != nil {
		return false, perrors.NewStoreReadError(ref.String(), err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Count(ctx context.Context, ref TableRef) (int64, error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	exists, err := s.Exists(ctx, ref)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, notFound(ref)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteSQLite(ref)).Scan(&n); err != nil {
		return 0, perrors.NewStoreReadError(ref.String(), err)
	}
	return n, nil
}

func (s *SQLiteStore) Tables(ctx context.Context, layer Layer) ([]TableRef, error) {
	if err := validLayer(layer); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND substr(name, 1, ?) = ? ORDER BY name",
		len(layer)+1, string(layer)+".")
	if err != nil {
		return nil, perrors.NewStoreReadError(string(layer), err)
	}
	defer rows.Close()

	var refs []TableRef
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, perrors.NewStoreReadError(string(layer), err)
		}
		ref, err := ParseTableRef(name)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.NewStoreReadError(string(layer), err)
	}
	return refs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// quoteSQLite quotes the full reference as one identifier. Validate has
// already restricted names to [a-z0-9_].
func quoteSQLite(ref TableRef) string {
	return `"` + strings.ReplaceAll(ref.String(), `"`, `""`) + `"`
}
