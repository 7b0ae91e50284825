// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/molsim/dockenergy/internal/config"
	gormstorage "github.com/molsim/dockenergy/internal/storage/gorm"
	"github.com/molsim/dockenergy/internal/storage/memory"
	"github.com/molsim/dockenergy/internal/storage/postgres"
	sqlitestorage "github.com/molsim/dockenergy/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Compile-time interface checks
var (
	_ Backend  = (*memory.Backend)(nil)
	_ Exporter = (*memory.Backend)(nil)
	_ Backend  = (*gormstorage.Backend)(nil)
	_ Reader   = (*gormstorage.Backend)(nil)
	_ Backend  = (*sqlitestorage.Backend)(nil)
	_ Reader   = (*sqlitestorage.Backend)(nil)
	_ Backend  = (*postgres.Backend)(nil)
	_ Reader   = (*postgres.Backend)(nil)
)

// Options carries everything a backend may need besides its own section.
type Options struct {
	Storage       config.StorageConfig
	DB            config.DBConfig
	FlushInterval time.Duration
	Logger        *slog.Logger
	DBLogger      zerolog.Logger
}

// NewBackend creates a storage backend based on configuration
func NewBackend(opts Options) (Backend, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("storage", opts.Storage.Type)

	switch opts.Storage.Type {
	case "postgres":
		return postgres.New(postgres.Config{
			DB:            opts.DB,
			FlushInterval: opts.FlushInterval,
			FallbackPath:  opts.Storage.SQLite.Path,
		}, logger, opts.DBLogger), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpPath:      opts.Storage.SQLite.Path,
			DumpInterval:  opts.Storage.SQLite.DumpInterval,
			FlushInterval: opts.FlushInterval,
		}, logger)
	case "memory":
		return memory.New(opts.Storage.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", opts.Storage.Type)
	}
}
