// Package worker runs energy passes on a background goroutine against the
// most recent coordinate snapshot.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/molsim/dockenergy/internal/kernel"
	"github.com/molsim/dockenergy/pkg/core"
)

// DefaultIdleTimeout bounds how long an idle worker sleeps between checks.
const DefaultIdleTimeout = 250 * time.Millisecond

var (
	// ErrNotStopped is returned by Start on a running worker.
	ErrNotStopped = errors.New("worker already running")
	// ErrNotRunning is returned by Pause and Resume on a stopped worker.
	ErrNotRunning = errors.New("worker not running")
)

// State is the lifecycle state of a worker.
type State int32

const (
	Stopped State = iota
	Paused
	Active
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Active:
		return "active"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Output is one complete pass.
type Output struct {
	kernel.Result
	// Pass counts completed passes, the warm-up being pass 0.
	Pass     uint64
	Duration time.Duration
}

// Worker owns one kernel and evaluates it whenever the previous output has
// been consumed. Snapshots are swapped in atomically and only the latest one
// is ever evaluated.
type Worker struct {
	kernel kernel.Kernel
	logger *slog.Logger
	idle   time.Duration

	state    atomic.Int32
	snapshot atomic.Pointer[core.Snapshot]
	output   atomic.Pointer[Output]
	// done is set when output holds a pass the consumer has not taken yet.
	done   atomic.Bool
	passes atomic.Uint64

	wake chan struct{}

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup

	passCount   metric.Int64Counter
	failures    metric.Int64Counter
	passSeconds metric.Float64Histogram
	kernelAttr  attribute.KeyValue
}

// New creates a stopped worker for k. A zero idle timeout selects DefaultIdleTimeout.
func New(k kernel.Kernel, idle time.Duration, logger *slog.Logger) (*Worker, error) {
	if k == nil {
		return nil, errors.New("worker: nil kernel")
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Worker{
		kernel:     k,
		logger:     logger,
		idle:       idle,
		wake:       make(chan struct{}, 1),
		kernelAttr: attribute.String("kernel", k.Name()),
	}

	m := meter()
	var err error

	w.passCount, err = m.Int64Counter(
		"worker.passes",
		metric.WithDescription("Total energy passes completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating passes counter: %w", err)
	}

	w.failures, err = m.Int64Counter(
		"worker.failures",
		metric.WithDescription("Total energy passes that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	w.passSeconds, err = m.Float64Histogram(
		"worker.pass.duration",
		metric.WithDescription("Duration of one energy pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pass duration histogram: %w", err)
	}

	return w, nil
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// SetSnapshot publishes the latest coordinates. The slice must not be
// modified afterwards.
func (w *Worker) SetSnapshot(s core.Snapshot) {
	w.snapshot.Store(&s)
	w.signal()
}

// Prime stores out as an unconsumed pass without running the kernel. It is
// used for the synchronous warm-up pass.
func (w *Worker) Prime(out Output) {
	w.output.Store(&out)
	w.done.Store(true)
}

// Consume returns the pending output, if any, and lets the worker start the
// next pass.
func (w *Worker) Consume() (Output, bool) {
	if !w.done.Load() {
		return Output{}, false
	}
	out := w.output.Load()
	w.done.Store(false)
	w.signal()
	if out == nil {
		return Output{}, false
	}
	return *out, true
}

// Start launches the worker goroutine in the Active state.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.state.CompareAndSwap(int32(Stopped), int32(Paused)) {
		return ErrNotStopped
	}
	w.stop = make(chan struct{})
	w.wg.Add(1)
	go w.loop(w.stop)

	w.state.Store(int32(Active))
	w.signal()
	return nil
}

// Pause stops scheduling new passes. A pass already running completes.
func (w *Worker) Pause() error {
	if !w.state.CompareAndSwap(int32(Active), int32(Paused)) && w.State() != Paused {
		return ErrNotRunning
	}
	return nil
}

// Resume re-enables passes after Pause.
func (w *Worker) Resume() error {
	if !w.state.CompareAndSwap(int32(Paused), int32(Active)) && w.State() != Active {
		return ErrNotRunning
	}
	w.signal()
	return nil
}

// Stop signals the goroutine and waits for it to exit. It is the only
// blocking call and may wait for one in-flight pass.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == Stopped {
		return
	}
	close(w.stop)
	w.wg.Wait()
	w.state.Store(int32(Stopped))
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) loop(stop <-chan struct{}) {
	defer w.wg.Done()

	timer := time.NewTimer(w.idle)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if p := w.next(); p != nil {
			w.pass(p)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.idle)

		select {
		case <-stop:
			return
		case <-w.wake:
		case <-timer.C:
		}
	}
}

// next returns the snapshot to evaluate, or nil when the worker should idle.
func (w *Worker) next() *core.Snapshot {
	if w.State() != Active || w.done.Load() {
		return nil
	}
	return w.snapshot.Load()
}

func (w *Worker) pass(p *core.Snapshot) {
	ctx := context.Background()
	attrs := metric.WithAttributes(w.kernelAttr)

	start := time.Now()
	res, err := w.kernel.Compute(*p)
	elapsed := time.Since(start)

	if err != nil {
		w.failures.Add(ctx, 1, attrs)
		w.logger.Error("energy pass failed", "kernel", w.kernel.Name(), "error", err)
		// Wait for a new snapshot instead of retrying the same one.
		w.snapshot.CompareAndSwap(p, nil)
		return
	}

	n := w.passes.Add(1)
	w.output.Store(&Output{Result: res, Pass: n, Duration: elapsed})
	w.done.Store(true)

	w.passCount.Add(ctx, 1, attrs)
	w.passSeconds.Record(ctx, elapsed.Seconds(), attrs)
}
