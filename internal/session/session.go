// Package session drives one docking session: parameter resolution, body
// partitioning, kernel selection and the background worker.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/molsim/dockenergy/internal/dispatcher"
	"github.com/molsim/dockenergy/internal/forcefield"
	"github.com/molsim/dockenergy/internal/kernel"
	"github.com/molsim/dockenergy/internal/ljtable"
	"github.com/molsim/dockenergy/internal/partition"
	"github.com/molsim/dockenergy/internal/worker"
	"github.com/molsim/dockenergy/pkg/core"
)

var (
	// ErrNoStructures is returned by Start when no molecule takes part in docking.
	ErrNoStructures = errors.New("no structures to dock")
	// ErrLiveProcessAttached is returned by Start when a molecule is already
	// driven by a trajectory or another live simulation.
	ErrLiveProcessAttached = errors.New("structure has a live process attached")
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("docking session already running")
	// ErrNotRunning is returned by per-session operations without a session.
	ErrNotRunning = errors.New("no docking session running")
)

// Publisher receives lifecycle and energy signals.
type Publisher interface {
	Publish(e dispatcher.Event) error
}

// Config holds the per-session tunables.
type Config struct {
	Cutoff      float64
	ElecScaling float64
	Accelerated bool
	Workers     int
	IdleTimeout time.Duration
	// Accelerator overrides the accelerated kernel constructor.
	Accelerator func(kernel.Inputs) (kernel.Kernel, error)
}

// DefaultConfig returns the exact-energy configuration.
func DefaultConfig() Config {
	return Config{
		Cutoff:      kernel.DefaultCutoff,
		ElecScaling: kernel.CoulombScaling,
		Accelerated: true,
		IdleTimeout: worker.DefaultIdleTimeout,
	}
}

// Info describes the running session.
type Info struct {
	ID        string
	Kernel    string
	Bodies    []string
	Atoms     int
	Pairs     int
	Undefined int
	Fraction  float64
	Degraded  bool
	StartedAt time.Time
}

// Controller owns at most one docking session at a time. It is safe for
// concurrent use, though hosts normally call it from their frame loop.
type Controller struct {
	ff     core.ForceField
	pub    Publisher
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	worker    *worker.Worker
	molecules []*core.Molecule
	info      Info
	last      core.Energy
	passes    uint64
}

// New creates a controller. pub may be nil.
func New(ff core.ForceField, pub Publisher, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cutoff <= 0 {
		cfg.Cutoff = kernel.DefaultCutoff
	}
	if cfg.ElecScaling == 0 {
		cfg.ElecScaling = kernel.CoulombScaling
	}
	return &Controller{ff: ff, pub: pub, cfg: cfg, logger: logger}
}

// Start sets up and launches a session over the given molecules. Molecules
// flagged IgnoreDocking are skipped. On error no session state is kept.
func (c *Controller) Start(molecules []*core.Molecule) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker != nil {
		return ErrAlreadyRunning
	}

	var docked []*core.Molecule
	for _, m := range molecules {
		if m == nil {
			continue
		}
		if m.LiveProcess != "" {
			return fmt.Errorf("%w: %s is driven by %s", ErrLiveProcessAttached, m.Name, m.LiveProcess)
		}
		if m.IgnoreDocking {
			c.logger.Debug("skipping structure", "molecule", m.Name)
			continue
		}
		docked = append(docked, m)
	}
	atoms := 0
	for _, m := range docked {
		atoms += m.Count()
	}
	if atoms == 0 {
		return ErrNoStructures
	}

	id := uuid.NewString()
	log := c.logger.With("session", id)

	res, err := forcefield.Resolve(docked, c.ff, log)
	if err != nil {
		return fmt.Errorf("resolving parameters: %w", err)
	}

	part := partition.Build(docked)
	table, err := ljtable.Build(res.Params)
	if err != nil {
		return fmt.Errorf("building LJ table: %w", err)
	}
	table.Assign(res.Params)

	in := kernel.NewInputs(part, table, res.Charges())
	in.CutoffSq = c.cfg.Cutoff * c.cfg.Cutoff
	in.ElecScaling = c.cfg.ElecScaling

	k, err := kernel.Select(in, kernel.Options{
		Accelerated: c.cfg.Accelerated,
		Workers:     c.cfg.Workers,
		Accelerator: c.cfg.Accelerator,
	}, log)
	if err != nil {
		return fmt.Errorf("selecting kernel: %w", err)
	}
	log = log.With("kernel", k.Name())

	initial := core.Snapshot(core.Positions(make([]core.Vec3, 0, part.NumAtoms()), docked))
	start := time.Now()
	warm, err := k.Compute(initial)
	if err != nil {
		return fmt.Errorf("warm-up pass: %w", err)
	}
	log.Info("Initial NBEnergy", "elec", warm.Energy.Elec, "vdw", warm.Energy.Vdw, "total", warm.Energy.Total())

	w, err := worker.New(k, c.cfg.IdleTimeout, log)
	if err != nil {
		return fmt.Errorf("creating worker: %w", err)
	}
	w.Prime(worker.Output{Result: warm, Duration: time.Since(start)})
	w.SetSnapshot(initial)
	if err := w.Start(); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	c.worker = w
	c.molecules = docked
	c.last = warm.Energy
	c.passes = 0
	c.info = Info{
		ID:        id,
		Kernel:    k.Name(),
		Bodies:    part.Names,
		Atoms:     part.NumAtoms(),
		Pairs:     part.CrossPairs(),
		Undefined: res.Undefined,
		Fraction:  res.Fraction(),
		Degraded:  res.Degraded(),
		StartedAt: start,
	}

	log.Info("docking session started", "bodies", part.NumBodies(), "atoms", part.NumAtoms())
	c.publish(TopicStarted, Started{
		Session:   id,
		Kernel:    k.Name(),
		Bodies:    part.Names,
		Atoms:     part.NumAtoms(),
		Pairs:     part.CrossPairs(),
		Warmup:    warm.Energy,
		Undefined: res.Undefined,
		Fraction:  res.Fraction(),
	})
	if res.Degraded() {
		c.publish(TopicDegraded, Degraded{
			Session:   id,
			Fraction:  res.Fraction(),
			Undefined: res.Undefined,
			Total:     res.Total(),
		})
	}
	return nil
}

// Update hands the current world positions to the worker and, when a pass
// has completed since the last call, returns its energy with fresh == true.
// Otherwise the last published energy is returned.
func (c *Controller) Update(positions []core.Vec3) (e core.Energy, fresh bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker == nil {
		return c.last, false, ErrNotRunning
	}
	if len(positions) != c.info.Atoms {
		return c.last, false, fmt.Errorf("%w: got %d positions, want %d",
			kernel.ErrSnapshotSize, len(positions), c.info.Atoms)
	}

	s := make(core.Snapshot, len(positions))
	copy(s, positions)
	c.worker.SetSnapshot(s)

	out, ok := c.worker.Consume()
	if !ok {
		return c.last, false, nil
	}
	c.last = out.Energy
	c.passes++
	c.publish(TopicEnergy, Sample{
		Session:  c.info.ID,
		Pass:     out.Pass,
		Energy:   out.Energy,
		Pairs:    out.Pairs,
		Duration: out.Duration,
		Time:     time.Now(),
	})
	return out.Energy, true, nil
}

// UpdateFrom reads the positions from p and calls Update.
func (c *Controller) UpdateFrom(p core.PositionProvider) (core.Energy, bool, error) {
	c.mu.Lock()
	n := c.info.Atoms
	c.mu.Unlock()

	return c.Update(p.WorldPositions(make([]core.Vec3, 0, n)))
}

// Provider returns a PositionProvider over the atom positions of the docked
// molecules, for hosts that move atoms in place.
func (c *Controller) Provider() core.PositionProvider {
	c.mu.Lock()
	molecules := c.molecules
	c.mu.Unlock()

	return core.PositionProviderFunc(func(dst []core.Vec3) []core.Vec3 {
		return core.Positions(dst[:0], molecules)
	})
}

// Pause suspends energy passes.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker == nil {
		return ErrNotRunning
	}
	return c.worker.Pause()
}

// Resume restarts energy passes after Pause.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker == nil {
		return ErrNotRunning
	}
	return c.worker.Resume()
}

// Stop joins the worker and releases the session. It blocks while a pass is
// in flight. Stopping without a session is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker == nil {
		return
	}
	c.worker.Stop()

	c.logger.Info("docking session stopped", "session", c.info.ID, "passes", c.passes)
	c.publish(TopicStopped, Stopped{Session: c.info.ID, Passes: c.passes, Last: c.last})

	c.worker = nil
	c.molecules = nil
	c.info = Info{}
}

// Result returns the last published energy. Right after Start it is the
// warm-up pass; after Stop it keeps the final value until the next Start.
func (c *Controller) Result() core.Energy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// State returns the worker state.
func (c *Controller) State() worker.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.worker == nil {
		return worker.Stopped
	}
	return c.worker.State()
}

// Info describes the running session; ok is false without one.
func (c *Controller) Info() (info Info, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info, c.worker != nil
}

func (c *Controller) publish(topic string, payload any) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(dispatcher.Event{Topic: topic, Payload: payload, Timestamp: time.Now()}); err != nil {
		c.logger.Warn("signal not delivered", "topic", topic, "error", err)
	}
}
