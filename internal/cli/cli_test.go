package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molsim/dockenergy/internal/config"
	"github.com/molsim/dockenergy/internal/dispatcher"
	"github.com/molsim/dockenergy/internal/monitor"
	"github.com/molsim/dockenergy/internal/session"
	v1 "github.com/molsim/dockenergy/internal/storage/memory/export/v1"
	sqlitestorage "github.com/molsim/dockenergy/internal/storage/sqlite"
	"github.com/molsim/dockenergy/pkg/core"
)

// useConfig resets viper to the defaults plus overrides for one test.
func useConfig(t *testing.T, overrides map[string]any) {
	t.Helper()
	viper.Reset()
	config.SetDefaults()
	viper.Set("logsDir", filepath.Join(t.TempDir(), "logs"))
	for k, v := range overrides {
		viper.Set(k, v)
	}
	t.Cleanup(viper.Reset)
}

func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	code := run(cmd, append([]string{"--config-dir", t.TempDir()}, args...), &stderr)
	return stdout.String(), stderr.String(), code
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "dockenergy", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.True(t, cmd.SilenceUsage)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"run", "sessions", "export", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config-dir"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestVersionCmd(t *testing.T) {
	useConfig(t, nil)

	out, stderr, code := execute(t, "version")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "dockenergy "+Version)
	assert.Contains(t, out, "commit: "+GitCommit)
	// no config file in the directory: defaults are used
	assert.Contains(t, stderr, "using defaults")
}

func TestLogLevelFlagOverridesConfig(t *testing.T) {
	useConfig(t, nil)

	_, _, code := execute(t, "--log-level", "debug", "version")
	require.Equal(t, 0, code)
	assert.Equal(t, "debug", config.GetString("logLevel"))
}

func TestUnknownCommand(t *testing.T) {
	useConfig(t, nil)

	_, stderr, code := execute(t, "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
}

func TestRun_WritesReadoutRemarkAndTrace(t *testing.T) {
	outDir := t.TempDir()
	useConfig(t, map[string]any{
		"worker.idleTimeout":            "1ms",
		"storage.type":                  "memory",
		"storage.memory.outputDir":      outDir,
		"storage.memory.compressOutput": false,
	})
	remark := filepath.Join(t.TempDir(), "remark.txt")

	out, stderr, code := execute(t, "run",
		"--receptor", "8", "--ligand", "2",
		"--frames", "10", "--frame-interval", "1ms",
		"--remark", remark)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, out, "2 bodies")
	assert.Contains(t, out, "frame    0")
	assert.Contains(t, out, "REMARK      NON-BONDED ENERGY (kcal/mol): ")
	assert.Contains(t, out, "trace written to "+outDir)

	data, err := os.ReadFile(remark)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "REMARK      NON-BONDED ENERGY"))

	files, err := filepath.Glob(filepath.Join(outDir, "session_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var export v1.Export
	require.NoError(t, json.Unmarshal(raw, &export))
	assert.Equal(t, []string{"receptor:A", "ligand:L"}, export.Bodies)
	assert.Equal(t, 10, export.Atoms)
	assert.NotEmpty(t, export.Samples)
	assert.NotEmpty(t, export.EndedAt)

	// the monitor leaves a final snapshot taken after the session stopped
	raw, err = os.ReadFile(filepath.Join(config.GetString("logsDir"), StatusFileName))
	require.NoError(t, err)
	var status monitor.Status
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.Equal(t, "stopped", status.State)
}

func TestRun_RecorderDisabled(t *testing.T) {
	useConfig(t, map[string]any{
		"worker.idleTimeout": "1ms",
		"recorder.enabled":   false,
	})

	out, stderr, code := execute(t, "run", "--receptor", "8", "--ligand", "2", "--frames", "3", "--frame-interval", "1ms")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "REMARK")
	assert.NotContains(t, out, "trace written")
}

func TestRun_ExportsTelemetry(t *testing.T) {
	useConfig(t, map[string]any{
		"worker.idleTimeout":   "1ms",
		"recorder.enabled":     false,
		"otel.enabled":         true,
		"otel.metricsInterval": "1h",
	})

	_, stderr, code := execute(t, "run", "--receptor", "8", "--ligand", "2", "--frames", "20", "--frame-interval", "2ms")
	require.Equal(t, 0, code, stderr)

	logs, err := filepath.Glob(filepath.Join(config.GetString("logsDir"), "*.log"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	data, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "worker.passes")
}

func TestRun_GraylogUnavailable(t *testing.T) {
	useConfig(t, map[string]any{
		"worker.idleTimeout": "1ms",
		"recorder.enabled":   false,
		"graylog.enabled":    true,
		"graylog.address":    "no-port",
	})

	out, stderr, code := execute(t, "run", "--receptor", "8", "--ligand", "2", "--frames", "2", "--frame-interval", "1ms")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "REMARK")
}

func TestRun_RejectsBadFlags(t *testing.T) {
	useConfig(t, map[string]any{"recorder.enabled": false})

	_, stderr, code := execute(t, "run", "--frames", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "frames must be positive")

	_, stderr, code = execute(t, "run", "--ligand", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "scene needs atoms")
}

// recordDump writes a SQLite dump holding one finished session.
func recordDump(t *testing.T, path string) {
	t.Helper()
	b, err := sqlitestorage.New(sqlitestorage.Config{DumpPath: path, FlushInterval: time.Hour}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	s := &core.SessionRecord{
		UUID:      "0b8e6f0e-1111-2222-3333-444455556666",
		Kernel:    "portable",
		Bodies:    []string{"receptor:A", "ligand:L"},
		Atoms:     10,
		Pairs:     16,
		StartedAt: time.Now(),
	}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordEnergy(
		core.EnergySample{SessionUUID: s.UUID, Pass: 1, Time: time.Now(), Energy: core.Energy{Elec: -2, Vdw: -0.25}, Pairs: 16},
		core.EnergySample{SessionUUID: s.UUID, Pass: 2, Time: time.Now(), Energy: core.Energy{Elec: -3, Vdw: -0.5}, Pairs: 16},
	))
	s.EndedAt = time.Now()
	s.Passes = 2
	s.Final = core.Energy{Elec: -3, Vdw: -0.5}
	require.NoError(t, b.EndSession(s))
	require.NoError(t, b.Close())
}

func TestSessions_FromDump(t *testing.T) {
	useConfig(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "dockenergy_20260402_093000.db")
	recordDump(t, path)

	out, stderr, code := execute(t, "sessions", "--db", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "UUID")
	assert.Contains(t, out, "0b8e6f0e-1111-2222-3333-444455556666")
	assert.Contains(t, out, "receptor:A,ligand:L")
	assert.Contains(t, out, "-3.500")

	out, stderr, code = execute(t, "sessions", "--db", path, "--samples", "0b8e6f0e-1111-2222-3333-444455556666")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "-2.250")
	assert.Contains(t, out, "-3.500")

	out, stderr, code = execute(t, "sessions", "--dir", dir)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "== "+path)
	assert.Contains(t, out, "0b8e6f0e-1111-2222-3333-444455556666")
}

func TestSessions_Errors(t *testing.T) {
	useConfig(t, nil)

	out, stderr, code := execute(t, "sessions", "--dir", t.TempDir())
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "no session databases")

	_, stderr, code = execute(t, "sessions", "--db", filepath.Join(t.TempDir(), "missing.db"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "opening session database")

	path := filepath.Join(t.TempDir(), "one.db")
	recordDump(t, path)
	_, stderr, code = execute(t, "sessions", "--db", path, "--samples", "nobody")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, core.ErrUnknownSession.Error())
}

func TestExport_FromDump(t *testing.T) {
	useConfig(t, nil)
	path := filepath.Join(t.TempDir(), "one.db")
	recordDump(t, path)
	outDir := t.TempDir()

	out, stderr, code := execute(t, "export", "0b8e6f0e-1111-2222-3333-444455556666",
		"--db", path, "--out", outDir, "--gzip=false")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "2 samples written to "+outDir)

	files, err := filepath.Glob(filepath.Join(outDir, "session_*_0b8e6f0e.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var export v1.Export
	require.NoError(t, json.Unmarshal(raw, &export))
	assert.Equal(t, "0b8e6f0e-1111-2222-3333-444455556666", export.Session)
	assert.Equal(t, uint64(2), export.Passes)
	assert.Equal(t, 2, export.Summary.Count)
	assert.InDelta(t, -3.5, float64(export.Summary.Min), 1e-6)
}

func TestExport_Errors(t *testing.T) {
	useConfig(t, nil)
	path := filepath.Join(t.TempDir(), "one.db")
	recordDump(t, path)

	_, stderr, code := execute(t, "export", "nobody", "--db", path, "--out", t.TempDir())
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, core.ErrUnknownSession.Error())

	_, stderr, code = execute(t, "export", "nobody")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "use --db or --postgres")

	_, _, code = execute(t, "export", "--db", path)
	assert.Equal(t, 1, code)
}

func TestCurrentSession(t *testing.T) {
	c := &currentSession{}
	assert.Nil(t, c.attrs())

	require.NoError(t, c.Handle(dispatcher.Event{Topic: session.TopicStarted, Payload: session.Started{Session: "s1", Kernel: "portable"}}))
	attrs := c.attrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "s1", attrs[0].Value.String())
	assert.Equal(t, "portable", attrs[1].Value.String())

	require.NoError(t, c.Handle(dispatcher.Event{Topic: session.TopicStopped, Payload: session.Stopped{Session: "s1"}}))
	assert.Nil(t, c.attrs())
}

func TestApproach(t *testing.T) {
	assert.Equal(t, 1.0, approach(0, 1))
	assert.Equal(t, 0.0, approach(0, 5))
	assert.Equal(t, 0.5, approach(2, 5))
	assert.Equal(t, 1.0, approach(4, 5))
}

func TestSessionConfigFromViper(t *testing.T) {
	useConfig(t, map[string]any{
		"kernel.cutoff":      12.0,
		"kernel.accelerated": false,
		"kernel.workers":     3,
		"worker.idleTimeout": "2ms",
	})

	cfg := sessionConfig()
	assert.Equal(t, 12.0, cfg.Cutoff)
	assert.False(t, cfg.Accelerated)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2*time.Millisecond, cfg.IdleTimeout)
	assert.InDelta(t, 332.0522, cfg.ElecScaling, 1e-9)
}
