package storage

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/randalmurphal/taskgraph/internal/config"
	"github.com/randalmurphal/taskgraph/internal/db"
	"github.com/randalmurphal/taskgraph/internal/db/driver"
	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
)

// NewBackend creates the backend selected by cfg.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileBackend(cfg.Path)
	case config.BackendMemory:
		return NewMemoryBackend(), nil
	case config.BackendSQLite:
		if cfg.DSN == "" {
			if err := os.MkdirAll(cfg.Path, 0755); err != nil {
				return nil, tgerrors.ErrStorageUnavailable(string(cfg.Backend), err)
			}
		}
		database, err := db.Open(cfg.DatabasePath())
		if err != nil {
			return nil, tgerrors.ErrStorageUnavailable(string(cfg.Backend), err)
		}
		return NewDatabaseBackend(database, logger), nil
	case config.BackendPostgres:
		database, err := db.OpenWithDialect(cfg.DSN, driver.DialectPostgres)
		if err != nil {
			return nil, tgerrors.ErrStorageUnavailable(string(cfg.Backend), err)
		}
		return NewDatabaseBackend(database, logger), nil
	default:
		return nil, tgerrors.ErrConfigInvalid("storage.backend", fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}
