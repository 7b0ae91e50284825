package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/molsim/dockenergy/internal/config"
	"github.com/molsim/dockenergy/internal/dispatcher"
	"github.com/molsim/dockenergy/internal/influx"
	"github.com/molsim/dockenergy/internal/recorder"
	"github.com/molsim/dockenergy/internal/storage"
)

type recordingOptions struct {
	Start     time.Time
	LogsDir   string
	Logger    *slog.Logger
	DBLogger  zerolog.Logger
	InfluxLog zerolog.Logger
}

// recording is the storage backend, the optional InfluxDB export and the
// recorder feeding both from session signals.
type recording struct {
	storageCfg config.StorageConfig
	backend    storage.Backend
	influx     *influx.Manager
	recorder   *recorder.Recorder
}

func startRecording(ctx context.Context, d *dispatcher.Dispatcher, opts recordingOptions) (*recording, error) {
	r := &recording{storageCfg: config.GetStorageConfig()}

	backend, err := storage.NewBackend(storage.Options{
		Storage:       r.storageCfg,
		DB:            config.GetDBConfig(),
		FlushInterval: config.GetRecorderConfig().FlushInterval,
		Logger:        opts.Logger,
		DBLogger:      opts.DBLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("initializing storage backend: %w", err)
	}
	r.backend = backend
	opts.Logger.Info("Storage backend initialized", "type", r.storageCfg.Type)

	var exporter recorder.Exporter
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backupPath := filepath.Join(opts.LogsDir,
			fmt.Sprintf("%s_influx_%s.lp.gz", AppName, opts.Start.Format("20060102_150405")))
		m := influx.NewManager(influxCfg, opts.InfluxLog, backupPath)

		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := m.Connect(cctx)
		cancel()
		if err != nil {
			opts.Logger.Warn("InfluxDB export unavailable", "error", err)
		} else {
			r.influx = m
			exporter = m
		}
	}

	r.recorder = recorder.New(backend, exporter, config.GetRecorderConfig().FlushInterval, opts.Logger)
	r.recorder.Subscribe(d)
	r.recorder.Start()
	return r, nil
}

// ExportPath returns where the recorded traces end up on disk, or "" when
// they only live in a database server or in memory.
func (r *recording) ExportPath() string {
	if exp, ok := r.backend.(storage.Exporter); ok {
		return exp.LastExportPath()
	}
	if r.storageCfg.Type == "sqlite" {
		return r.storageCfg.SQLite.Path
	}
	return ""
}

// Close stops the recorder and closes the backends. Every step runs even
// when an earlier one fails.
func (r *recording) Close() error {
	var errs []error
	if err := r.recorder.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping recorder: %w", err))
	}
	if err := r.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing storage: %w", err))
	}
	if r.influx != nil {
		if err := r.influx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing influx: %w", err))
		}
	}
	return errors.Join(errs...)
}
