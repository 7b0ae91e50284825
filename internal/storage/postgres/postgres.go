// Package postgres implements the storage backend on PostgreSQL. It wraps the
// GORM backend and owns the connection, falling back to an in-memory SQLite
// database when the server cannot be reached.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/molsim/dockenergy/internal/config"
	"github.com/molsim/dockenergy/internal/database"
	gormstorage "github.com/molsim/dockenergy/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// DefaultConnectTimeout bounds the initial ping of the server.
const DefaultConnectTimeout = 5 * time.Second

// Config holds configuration for the Postgres storage backend.
type Config struct {
	DB             config.DBConfig
	FlushInterval  time.Duration
	ConnectTimeout time.Duration
	// FallbackPath, when set, receives a SQLite dump of the fallback
	// database on Close.
	FallbackPath string
}

// Backend wraps the GORM backend with a managed Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg     Config
	log     *slog.Logger
	manager *database.Manager
}

// New creates a new Postgres storage backend. The connection is opened by Init.
func New(cfg Config, logger *slog.Logger, dbLog zerolog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	m := database.NewManager(cfg.DB, dbLog)
	m.DumpPath = cfg.FallbackPath
	return &Backend{
		cfg:     cfg,
		log:     logger,
		manager: m,
	}
}

// Init connects, migrates and starts the writer goroutine.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.ConnectTimeout)
	defer cancel()
	if err := b.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if b.manager.Local() {
		b.log.Warn("Postgres unavailable, recording to in-memory SQLite",
			"host", b.cfg.DB.Host, "fallback", b.cfg.FallbackPath)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:            b.manager.DB,
		Logger:        b.log,
		FlushInterval: b.cfg.FlushInterval,
	})
	return b.Backend.Init()
}

// Close stops the writer, dumps the SQLite fallback when configured and
// releases the connection.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	err := b.Backend.Close()
	if b.manager.DB == nil {
		return err
	}
	return errors.Join(err, b.manager.Dump(), b.manager.Close())
}

// IsLocal reports whether Init fell back to SQLite.
func (b *Backend) IsLocal() bool {
	return b.manager.Local()
}
