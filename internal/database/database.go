// Package database opens the GORM connections the storage backends and the
// session tools work on.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/molsim/dockenergy/internal/config"
	"github.com/molsim/dockenergy/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Engine names the database a Manager ended up on.
type Engine string

const (
	EngineNone     Engine = ""
	EnginePostgres Engine = "postgres"
	EngineSQLite   Engine = "sqlite"
)

// ErrNotConnected is returned by Manager methods called before Connect.
var ErrNotConnected = errors.New("database not connected")

// sampleBatch is the insert batch size. One session rarely exceeds a few
// thousand passes, so a whole flush goes out in one statement.
const sampleBatch = 1000

// Manager owns the connection of the postgres storage backend. When the
// server is unreachable it falls back to a private in-memory SQLite database
// which can be dumped to disk before the process exits.
type Manager struct {
	DB     *gorm.DB
	Engine Engine
	// DumpPath is where Dump writes the SQLite fallback.
	DumpPath string

	sqlDB *sql.DB
	cfg   config.DBConfig
	log   zerolog.Logger
}

// NewManager creates a manager for cfg. Nothing is opened until Connect.
func NewManager(cfg config.DBConfig, log zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, log: log}
}

// Local reports whether the manager fell back to SQLite.
func (m *Manager) Local() bool {
	return m.Engine == EngineSQLite
}

// Connect opens Postgres and pings it within ctx, then falls back to SQLite.
// It only fails when neither can be opened.
func (m *Manager) Connect(ctx context.Context) error {
	db, err := OpenPostgres(m.cfg)
	if err == nil {
		var sqlDB *sql.DB
		if sqlDB, err = db.DB(); err == nil {
			if err = sqlDB.PingContext(ctx); err == nil {
				sqlDB.SetMaxOpenConns(4)
				m.use(db, sqlDB, EnginePostgres)
				m.log.Info().Str("host", m.cfg.Host).Str("database", m.cfg.Database).Msg("Connected to Postgres")
				return nil
			}
			_ = sqlDB.Close()
		}
	}
	m.log.Warn().Err(err).Str("host", m.cfg.Host).Msg("Postgres unreachable, falling back to SQLite in memory")

	db, err = OpenSQLite("")
	if err != nil {
		return fmt.Errorf("opening SQLite fallback: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("opening SQLite fallback: %w", err)
	}
	m.use(db, sqlDB, EngineSQLite)
	return nil
}

func (m *Manager) use(db *gorm.DB, sqlDB *sql.DB, engine Engine) {
	m.DB, m.sqlDB, m.Engine = db, sqlDB, engine
}

// Setup migrates the session and energy sample tables.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return ErrNotConnected
	}
	if err := Migrate(m.DB); err != nil {
		return err
	}
	m.log.Debug().Str("engine", string(m.Engine)).Msg("Schema migrated")
	return nil
}

// Dump writes the SQLite fallback to DumpPath. It does nothing on Postgres or
// without a path.
func (m *Manager) Dump() error {
	if m.DB == nil {
		return ErrNotConnected
	}
	if !m.Local() || m.DumpPath == "" {
		return nil
	}
	start := time.Now()
	if err := VacuumInto(m.DB, m.DumpPath); err != nil {
		return err
	}
	m.log.Debug().Str("path", m.DumpPath).Dur("duration", time.Since(start)).Msg("Dumped SQLite fallback")
	return nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.sqlDB == nil {
		return nil
	}
	err := m.sqlDB.Close()
	m.sqlDB, m.DB, m.Engine = nil, nil, EngineNone
	return err
}

// Migrate creates or updates every table in model.DatabaseModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// PostgresDSN builds the connection string for cfg.
func PostgresDSN(cfg config.DBConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        sampleBatch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// OpenPostgres opens cfg's database. The driver connects lazily, so the
// first query is what reaches the server.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	return db, nil
}

// sqlitePragmas favour write speed: a dump or the source file is the durable copy.
var sqlitePragmas = []string{
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA temp_store = MEMORY;",
	"PRAGMA cache_size = -8000;",
}

// OpenSQLite opens the SQLite file at path. An empty path opens a private
// in-memory database that lives as long as the returned handle.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		// a unique name keeps concurrent in-memory databases apart
		dsn = fmt.Sprintf("file:dockenergy-%s?mode=memory&cache=shared", uuid.NewString())
	}

	cfg := gormConfig()
	cfg.PrepareStmt = true
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// single connection: the in-memory database dies with its last connection
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}
	return db, nil
}

// VacuumInto writes a consistent copy of db to path, replacing any file
// already there.
func VacuumInto(db *gorm.DB, path string) error {
	if path == "" {
		return errors.New("dump path not set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing previous dump: %w", err)
	}

	quoted := strings.ReplaceAll(path, "'", "''")
	if err := db.Exec("VACUUM INTO '" + quoted + "';").Error; err != nil {
		return fmt.Errorf("dumping database to %s: %w", path, err)
	}
	return nil
}

// ListDumps returns the .db files in dir, sorted by name.
func ListDumps(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".db" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
