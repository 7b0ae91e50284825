package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/molsim/dockenergy/internal/config"
	"github.com/molsim/dockenergy/internal/demo"
	"github.com/molsim/dockenergy/internal/dispatcher"
	"github.com/molsim/dockenergy/internal/feedback"
	"github.com/molsim/dockenergy/internal/logging"
	"github.com/molsim/dockenergy/internal/monitor"
	"github.com/molsim/dockenergy/internal/otel"
	"github.com/molsim/dockenergy/internal/session"
	"github.com/molsim/dockenergy/pkg/core"
)

// AppName names the log files and the OTel instrumentation scope.
const AppName = "dockenergy"

// StatusFileName is the monitor's status file in the logs directory.
const StatusFileName = "status.json"

type runOptions struct {
	Receptor      int
	Ligand        int
	Frames        int
	FrameInterval time.Duration
	StartGap      float64
	EndGap        float64
	RemarkFile    string
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dock a synthetic ligand into a receptor and report the energy",
		Long: "run moves a ligand towards a receptor grid frame by frame, printing the\n" +
			"energy readout as passes complete. The final energy is printed as a\n" +
			"PDB REMARK line and the trace is recorded to the configured storage.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Receptor, "receptor", 64, "receptor atom count (rounded up to a cube)")
	f.IntVar(&opts.Ligand, "ligand", 6, "ligand atom count")
	f.IntVar(&opts.Frames, "frames", 120, "number of frames to simulate")
	f.DurationVar(&opts.FrameInterval, "frame-interval", 16*time.Millisecond, "time between frames")
	f.Float64Var(&opts.StartGap, "start-gap", demo.StartGap, "ligand gap from the receptor at the first frame (Angstrom)")
	f.Float64Var(&opts.EndGap, "end-gap", 1.5, "ligand gap from the receptor at the last frame (Angstrom)")
	f.StringVar(&opts.RemarkFile, "remark", "", "also write the energy REMARK line to this file")
	return cmd
}

// currentSession tracks the running session for log context. It is fed by
// session signals so that log calls never need the controller's lock.
type currentSession struct {
	started atomic.Pointer[session.Started]
}

func (c *currentSession) Handle(e dispatcher.Event) error {
	switch p := e.Payload.(type) {
	case session.Started:
		c.started.Store(&p)
	case session.Stopped:
		c.started.Store(nil)
	}
	return nil
}

func (c *currentSession) attrs() []slog.Attr {
	s := c.started.Load()
	if s == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("session", s.Session),
		slog.String("kernel", s.Kernel),
	}
}

func (c *currentSession) hook(e *zerolog.Event) {
	if s := c.started.Load(); s != nil {
		e.Str("session", s.Session)
	}
}

func sessionConfig() session.Config {
	kc := config.GetKernelConfig()
	return session.Config{
		Cutoff:      kc.Cutoff,
		ElecScaling: kc.ElecScaling,
		Accelerated: kc.Accelerated,
		Workers:     kc.Workers,
		IdleTimeout: config.GetWorkerConfig().IdleTimeout,
	}
}

// statusOf reports the controller and recorder state to the monitor.
func statusOf(ctrl *session.Controller, rec *recording) func(*monitor.Status) {
	return func(st *monitor.Status) {
		if info, ok := ctrl.Info(); ok {
			st.Session = info.ID
			st.Kernel = info.Kernel
		}
		st.State = ctrl.State().String()
		st.Last = ctrl.Result().Total()
		if rec != nil {
			st.Pending = rec.recorder.Pending()
			st.Dropped = rec.recorder.Dropped()
		}
	}
}

// approach returns the fraction of the approach covered at frame i of n.
func approach(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	return float64(i) / float64(n-1)
}

func runSession(ctx context.Context, out io.Writer, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", opts.Frames)
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Millisecond
	}

	start := time.Now()
	logsDir := config.GetString("logsDir")
	level := config.GetString("logLevel")

	logFile, err := logging.OpenLogFile(logsDir, AppName, start)
	if err != nil {
		return err
	}
	defer logFile.Close()

	otelProvider, err := otel.New(config.GetOTelConfig(), logFile)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProvider.Shutdown(sctx)
	}()
	otelProvider.Install()

	current := &currentSession{}
	slogManager := logging.NewSlogManager(AppName)
	slogManager.SetContextProvider(current.attrs)
	slogManager.Setup(logging.Sinks{File: logFile, Level: level, OTel: otelProvider.LoggerProvider()})
	logger := slogManager.Logger()
	defer func() { _ = slogManager.Flush(context.Background()) }()

	d, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	defer d.Close()
	d.Subscribe(session.TopicStarted, current.Handle)
	d.Subscribe(session.TopicStopped, current.Handle)

	var zw io.Writer = logFile
	if gcfg := config.GetGraylogConfig(); gcfg.Enabled {
		gw, err := logging.NewGraylogWriter(gcfg.Address)
		if err != nil {
			logger.Warn("Graylog unavailable, manager logs stay local", "error", err)
		} else {
			defer gw.Close()
			zw = zerolog.MultiLevelWriter(logFile, gw)
		}
	}

	var rec *recording
	if config.GetRecorderConfig().Enabled {
		rec, err = startRecording(ctx, d, recordingOptions{
			Start:     start,
			LogsDir:   logsDir,
			Logger:    logger,
			DBLogger:  logging.NewZerolog(zw, level, "database", current.hook),
			InfluxLog: logging.NewZerolog(zw, level, "influx", current.hook),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("Failed to close recording", "error", err)
			}
		}()
	}

	scene, err := demo.NewScene(opts.Receptor, opts.Ligand)
	if err != nil {
		return err
	}
	scene.Place(opts.StartGap)

	fb := config.GetFeedbackConfig()
	tempo := feedback.NewTempo(fb.Window, fb.MinEnergy, fb.MaxEnergy)
	readout := feedback.NewReadout(fb.ElecScale, fb.VdwScale)
	// started resets the window before the first pass is published; energy
	// signals are queued so the tempo never runs inside Update
	d.Subscribe(session.TopicStarted, tempo.Handle)
	d.Subscribe(session.TopicEnergy, tempo.Handle, dispatcher.Buffered(fb.Buffer), dispatcher.Blocking())
	d.Subscribe(session.TopicDegraded, func(e dispatcher.Event) error {
		p, ok := e.Payload.(session.Degraded)
		if !ok {
			return nil
		}
		_, err := fmt.Fprintf(out, "warning: %d of %d atoms have no force field parameters (%.0f%%); energies are approximate\n",
			p.Undefined, p.Total, p.Fraction*100)
		return err
	}, dispatcher.Logged())

	ctrl := session.New(scene.ForceField(), d, sessionConfig(), logger)
	if err := ctrl.Start(scene.Molecules()); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	if mc := config.GetMonitorConfig(); mc.Enabled {
		mon := monitor.NewService(monitor.Dependencies{
			Status:   statusOf(ctrl, rec),
			Logger:   logger,
			Path:     filepath.Join(logsDir, StatusFileName),
			Interval: mc.Interval,
		})
		mon.Start()
		defer mon.Stop()
	}

	info, _ := ctrl.Info()
	fmt.Fprintf(out, "session %s: %d atoms in %d bodies, %d pairs, %s kernel\n",
		info.ID, info.Atoms, len(info.Bodies), info.Pairs, info.Kernel)

	loopErr := frameLoop(ctx, out, ctrl, scene, readout, tempo, opts)

	final := ctrl.Result()
	ctrl.Stop()

	if err := feedback.WriteRemark(out, final); err != nil {
		return err
	}
	if opts.RemarkFile != "" {
		if err := writeRemarkFile(opts.RemarkFile, final); err != nil {
			return err
		}
	}
	if rec != nil {
		if path := rec.ExportPath(); path != "" {
			fmt.Fprintf(out, "trace written to %s\n", path)
		}
	}
	return loopErr
}

// frameLoop moves the ligand once per frame and prints every fresh energy.
func frameLoop(ctx context.Context, out io.Writer, ctrl *session.Controller, scene *demo.Scene,
	readout feedback.Readout, tempo *feedback.Tempo, opts runOptions) error {
	ticker := time.NewTicker(opts.FrameInterval)
	defer ticker.Stop()

	provider := ctrl.Provider()
	for i := 0; i < opts.Frames; i++ {
		scene.Place(demo.Gap(opts.StartGap, opts.EndGap, approach(i, opts.Frames)))

		e, fresh, err := ctrl.UpdateFrom(provider)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if fresh {
			disp := readout.Format(e)
			fmt.Fprintf(out, "frame %4d  elec %9s  vdw %9s  total %9s  tempo %v  trend %+.2f\n",
				i, disp.Elec.Text, disp.Vdw.Text, disp.Total.Text, tempo.Interval().Round(time.Millisecond), tempo.Trend())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func writeRemarkFile(path string, e core.Energy) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating remark file: %w", err)
	}
	if err := feedback.WriteRemark(f, e); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
