package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		binary  string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "docklogs",
			binary:  "dockenergy",
			want:    filepath.Join("docklogs", "dockenergy.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./docklogs",
			binary:  "dockenergy",
			want:    filepath.Join(".", "docklogs", "dockenergy.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "dockenergy"),
			binary:  "dockenergy",
			want:    filepath.Join("/var", "log", "dockenergy", "dockenergy.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.binary, start)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	f, err := OpenLogFile(dir, "dockenergy", start)
	require.NoError(t, err)
	_, err = f.WriteString("hello\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(LogFilePath(dir, "dockenergy", start))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
