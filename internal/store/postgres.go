package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	perrors "github.com/teamhub/teamhub/internal/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore maps layers to Postgres schemas.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Migrate brings the layer schemas up to date. migrationURL is a postgres://
// URL.
func Migrate(migrationURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: failed to load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL)
	if err != nil {
		return fmt.Errorf("store: failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: failed to run migrations: %w", err)
	}
	return nil
}

// NewPostgresStore connects to Postgres with a pgx pool.
func NewPostgresStore(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("store: failed to parse database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Read(ctx context.Context, ref TableRef) ([][]byte, error) {
	exists, err := s.Exists(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFound(ref)
	}

	rows, err := s.pool.Query(ctx, "SELECT payload FROM "+quotePostgres(ref)+" ORDER BY seq")
	if err != nil {
		return nil, perrors.NewStoreReadError(ref.String(), err)
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, perrors.NewStoreReadError(ref.String(), err)
	}
	if payloads == nil {
		payloads = [][]byte{}
	}
	return payloads, nil
}

func (s *PostgresStore) Write(ctx context.Context, ref TableRef, payloads [][]byte, mode WriteMode) error {
	if err := ref.Validate(); err != nil {
		return perrors.NewStoreWriteError(ref.String(), err)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		table := quotePostgres(ref)
		if mode == Overwrite {
			if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return fmt.Errorf("failed to drop table: %w", err)
			}
		}
		create := "CREATE TABLE IF NOT EXISTS " + table +
			" (seq BIGSERIAL PRIMARY KEY, payload BYTEA NOT NULL)"
		if _, err := tx.Exec(ctx, create); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}

		// COPY assigns seq in slice order.
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{string(ref.Layer), ref.Name},
			[]string{"payload"},
			pgx.CopyFromSlice(len(payloads), func(i int) ([]any, error) {
				return []any{payloads[i]}, nil
			}))
		if err != nil {
			return fmt.Errorf("failed to copy rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return perrors.NewStoreWriteError(ref.String(), err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, ref TableRef) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		string(ref.Layer), ref.Name).Scan(&exists)
	if err != nil {
		return false, perrors.NewStoreReadError(ref.String(), err)
	}
	return exists, nil
}

func (s *PostgresStore) Count(ctx context.Context, ref TableRef) (int64, error) {
	exists, err := s.Exists(ctx, ref)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, notFound(ref)
	}

	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+quotePostgres(ref)).Scan(&n); err != nil {
		return 0, perrors.NewStoreReadError(ref.String(), err)
	}
	return n, nil
}

func (s *PostgresStore) Tables(ctx context.Context, layer Layer) ([]TableRef, error) {
	if err := validLayer(layer); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name`,
		string(layer))
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
		ref, err := ParseTableRef(string(layer) + "." + name)
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

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func quotePostgres(ref TableRef) string {
	return pgx.Identifier{string(ref.Layer), ref.Name}.Sanitize()
}
