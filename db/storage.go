package db

import (
	"github.com/valtbridge/bridge-service/db/pgstorage"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

type pgstorageConfig = pgstorage.Config

// NewStorage creates a new Storage
func NewStorage(cfg Config) (*pgstorage.PostgresStorage, error) {
	if cfg.Database == "postgres" {
		return pgstorage.NewPostgresStorage(cfg.pgConfig())
	}
	return nil, gerror.ErrStorageNotRegister
}

// RunMigrations will execute pending migrations if needed to keep
// the database updated with the latest changes
func RunMigrations(cfg Config) error {
	if cfg.Database != "postgres" {
		return gerror.ErrStorageNotRegister
	}
	return pgstorage.RunMigrations(cfg.pgConfig())
}
