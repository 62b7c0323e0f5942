package store

import (
	"context"
	"fmt"

	"github.com/teamhub/teamhub/internal/config"
	"github.com/teamhub/teamhub/internal/storage"
)

// Open creates the store backend selected by cfg.Store.Type.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Type {
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.Store.SQLite.Path)

	case config.StorePostgres:
		pg := cfg.Store.Postgres
		if err := Migrate(pg.MigrationURL()); err != nil {
			return nil, err
		}
		return NewPostgresStore(ctx, pg.DSN(), pg.MaxConns)

	case config.StoreObject:
		objects, err := openObjectStorage(ctx, cfg.Store.Object)
		if err != nil {
			return nil, err
		}
		return NewObjectStore(objects, cfg.Store.Object.WorkDir)

	default:
		return nil, fmt.Errorf("store: unsupported store type %q", cfg.Store.Type)
	}
}

func openObjectStorage(ctx context.Context, cfg config.ObjectConfig) (storage.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Path)
	case "s3":
		s3cfg := storage.DefaultS3Config()
		if cfg.S3.Region != "" {
			s3cfg.Region = cfg.S3.Region
		}
		s3cfg.Endpoint = cfg.S3.Endpoint
		s3cfg.UsePathStyle = cfg.S3.UsePathStyle
		return storage.NewS3Storage(ctx, cfg.S3.Bucket, s3cfg)
	default:
		return nil, fmt.Errorf("store: unsupported object storage type %q", cfg.Type)
	}
}
