package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/molsim/dockenergy/internal/config"
	"github.com/molsim/dockenergy/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() core.EnergySample {
	return core.EnergySample{
		SessionUUID: "s1",
		Kernel:      "portable",
		Pass:        3,
		Time:        time.Unix(1700000000, 0),
		Energy:      core.Energy{Elec: -2, Vdw: -0.5},
		Pairs:       12,
		Duration:    2 * time.Millisecond,
	}
}

func TestEnergyPoint(t *testing.T) {
	line := influxdb2_write.PointToLineProtocol(EnergyPoint(sample()), time.Second)

	assert.True(t, strings.HasPrefix(line, "nb_energy,kernel=portable,session=s1 "), line)
	assert.Contains(t, line, "elec=-2")
	assert.Contains(t, line, "vdw=-0.5")
	assert.Contains(t, line, "total=-2.5")
	assert.Contains(t, line, "pass=3i")
	assert.Contains(t, line, "pairs=12i")
	assert.True(t, strings.HasSuffix(line, " 1700000000"), line)
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{Enabled: false}, zerolog.Nop(), "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
	assert.NoError(t, m.Close())
}

func TestWritePoint_NotConnected(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.Error(t, m.WriteSamples(sample()))
}

func unreachable() config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "dockenergy",
		Bucket:   "docking",
	}
}

func TestConnect_UnreachableUsesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx", "backup.lp.gz")
	m := NewManager(unreachable(), zerolog.Nop(), path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	second := sample()
	second.Pass = 4
	require.NoError(t, m.WriteSamples(sample(), second))
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var lines []string
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "pass=3i")
	assert.Contains(t, lines[1], "pass=4i")
}

func TestConnect_UnreachableWithoutBackupPath(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, m.Connect(ctx))
	assert.NoError(t, m.Close())
}
