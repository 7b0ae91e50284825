package logging

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func TestSetup_FileKeepsStdoutClean(t *testing.T) {
	restore := captureStdout(t)

	var file bytes.Buffer
	m := NewSlogManager("dockenergy")
	m.Setup(Sinks{File: &file, Level: "info"})
	m.Logger().Info("pass complete", "pass", 1)

	assert.Empty(t, restore())
	assert.Contains(t, file.String(), "pass complete")
}

func TestSetup_StdoutWithoutFile(t *testing.T) {
	restore := captureStdout(t)

	m := NewSlogManager("dockenergy")
	m.Setup(Sinks{Level: "info"})
	m.Logger().Info("kernel selected")

	assert.Contains(t, restore(), "kernel selected")
}

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager("dockenergy")
			m.Setup(Sinks{File: &buf, Level: tt.level})
			m.Logger().Debug("undefined atom")
			m.Logger().Info("session started")

			assert.Equal(t, tt.wantDebug, strings.Contains(buf.String(), "undefined atom"))
			assert.Equal(t, tt.wantInfo, strings.Contains(buf.String(), "session started"))
		})
	}
}

func TestSetup_MillisecondUTCTime(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager("dockenergy")
	m.Setup(Sinks{File: &buf, Level: "info"})

	assert.Regexp(t, regexp.MustCompile(`^time=\d{4}-\d\d-\d\dT\d\d:\d\d:\d\d\.\d{3}Z `), lines(&buf)[0])
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var first, second bytes.Buffer
	m := NewSlogManager("dockenergy")

	m.Setup(Sinks{File: &first, Level: "info"})
	old := m.Logger()
	m.Setup(Sinks{File: &second, Level: "info"})
	m.Logger().Info("second run")
	old.Info("first run")

	assert.NotContains(t, first.String(), "second run")
	assert.Contains(t, first.String(), "first run")
	assert.Contains(t, second.String(), "second run")
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	assert.Equal(t, slog.Default(), NewSlogManager("dockenergy").Logger())
}

func TestSetup_ContextProvider(t *testing.T) {
	var buf bytes.Buffer
	session := ""
	m := NewSlogManager("dockenergy")
	m.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.String("session", session), slog.String("kernel", "portable")}
	})
	m.Setup(Sinks{File: &buf, Level: "info"})

	m.Logger().Info("idle")
	session = "s-1"
	m.Logger().Info("running")

	got := lines(&buf)
	require.Len(t, got, 3)
	assert.NotContains(t, got[1], "session=")
	assert.Contains(t, got[1], "kernel=portable")
	assert.Contains(t, got[2], "session=s-1")
}

func TestFlush(t *testing.T) {
	m := NewSlogManager("dockenergy")
	assert.NoError(t, m.Flush(context.Background()))

	var buf bytes.Buffer
	m.Setup(Sinks{File: &buf, Level: "info", OTel: sdklog.NewLoggerProvider()})
	m.Logger().Info("bridged")

	assert.Contains(t, buf.String(), "bridged")
	assert.NoError(t, m.Flush(context.Background()))
}

// captureStdout points osStdout at a pipe; the returned func restores it and
// returns what was written.
func captureStdout(t *testing.T) func() string {
	t.Helper()

	r, w, err := osPipe()
	require.NoError(t, err)

	orig := osStdout
	osStdout = w

	return func() string {
		w.Close()
		osStdout = orig
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		r.Close()
		return buf.String()
	}
}
