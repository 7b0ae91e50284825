package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// TimeFormat stamps records to the millisecond; several passes complete
// within one second.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Overridable in tests.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// Sinks selects where the records of a run go.
type Sinks struct {
	// File receives text records. When nil they go to stdout instead.
	File  io.Writer
	Level string
	// OTel, when set, also receives every record through the otelslog bridge.
	OTel *sdklog.LoggerProvider
}

// SlogManager builds the slog logger of a run and owns its OTel bridge.
type SlogManager struct {
	name     string
	logger   *slog.Logger
	provider ContextProvider
	otel     *sdklog.LoggerProvider
}

// NewSlogManager creates a manager. name is the instrumentation scope of the
// OTel bridge.
func NewSlogManager(name string) *SlogManager {
	return &SlogManager{name: name}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetContextProvider installs a provider whose attributes are added to every
// record. It takes effect on the next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.provider = p
}

// Setup replaces the logger with one writing to s. Earlier loggers keep
// their sinks.
func (m *SlogManager) Setup(s Sinks) {
	m.otel = s.OTel

	out := s.File
	if out == nil {
		out = osStdout
	}
	text := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:       parseLevel(s.Level),
		ReplaceAttr: utcMillis,
	})

	var bridge slog.Handler
	if s.OTel != nil {
		bridge = otelslog.NewHandler(m.name, otelslog.WithLoggerProvider(s.OTel))
	}

	var h slog.Handler = NewMultiHandler(text, bridge)
	if m.provider != nil {
		h = NewContextHandler(h, m.provider)
	}

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", parseLevel(s.Level).String())
}

func utcMillis(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(TimeFormat))
	}
	return a
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush exports the records still buffered in the OTel bridge.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.otel == nil {
		return nil
	}
	return m.otel.ForceFlush(ctx)
}
