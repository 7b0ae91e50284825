// Package recorder persists the energy trace of docking sessions. It listens
// to session signals on the dispatcher, batches samples in a queue and hands
// them to a storage backend and an optional time-series exporter on a fixed
// interval.
package recorder

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/molsim/dockenergy/internal/dispatcher"
	"github.com/molsim/dockenergy/internal/queue"
	"github.com/molsim/dockenergy/internal/session"
	"github.com/molsim/dockenergy/pkg/core"
)

// DefaultFlushInterval is used when the configured interval is not positive.
const DefaultFlushInterval = time.Second

// DefaultQueueLimit bounds the pending samples between flushes.
const DefaultQueueLimit = 50000

// Store is the part of storage.Backend the recorder writes to.
type Store interface {
	StartSession(s *core.SessionRecord) error
	EndSession(s *core.SessionRecord) error
	RecordEnergy(samples ...core.EnergySample) error
}

// Exporter receives a copy of every flushed batch.
type Exporter interface {
	WriteSamples(samples ...core.EnergySample) error
}

// Recorder turns session signals into stored session records and traces.
type Recorder struct {
	store    Store
	exporter Exporter
	logger   *slog.Logger
	interval time.Duration

	pending *queue.Queue[core.EnergySample]

	mu       sync.Mutex
	sessions map[string]*core.SessionRecord
	flushMu  sync.Mutex

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a recorder. exporter may be nil.
func New(store Store, exporter Exporter, interval time.Duration, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Recorder{
		store:    store,
		exporter: exporter,
		logger:   logger.With("component", "recorder"),
		interval: interval,
		pending:  queue.New[core.EnergySample](DefaultQueueLimit),
		sessions: make(map[string]*core.SessionRecord),
	}
}

// Subscribe registers the recorder for the session topics. The handlers run
// synchronously so that a session row always exists before its samples.
func (r *Recorder) Subscribe(d *dispatcher.Dispatcher) {
	d.Subscribe(session.TopicStarted, r.Handle, dispatcher.Logged())
	d.Subscribe(session.TopicEnergy, r.Handle)
	d.Subscribe(session.TopicStopped, r.Handle, dispatcher.Logged())
}

// Handle consumes one session signal.
func (r *Recorder) Handle(e dispatcher.Event) error {
	switch p := e.Payload.(type) {
	case session.Started:
		return r.started(p, e.Timestamp)
	case session.Sample:
		return r.sample(p)
	case session.Stopped:
		return r.stopped(p, e.Timestamp)
	}
	return nil
}

func (r *Recorder) started(p session.Started, at time.Time) error {
	rec := &core.SessionRecord{
		UUID:      p.Session,
		Kernel:    p.Kernel,
		Bodies:    append([]string(nil), p.Bodies...),
		Atoms:     p.Atoms,
		Pairs:     p.Pairs,
		Undefined: p.Undefined,
		Fraction:  p.Fraction,
		Warmup:    p.Warmup,
		StartedAt: at,
	}
	if err := r.store.StartSession(rec); err != nil {
		return err
	}

	r.mu.Lock()
	r.sessions[p.Session] = rec
	r.mu.Unlock()

	r.logger.Debug("recording session", "session", p.Session, "id", rec.ID)
	return nil
}

func (r *Recorder) sample(p session.Sample) error {
	r.mu.Lock()
	rec, ok := r.sessions[p.Session]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	r.pending.Push(core.EnergySample{
		SessionUUID: p.Session,
		Kernel:      rec.Kernel,
		Pass:        p.Pass,
		Time:        p.Time,
		Energy:      p.Energy,
		Pairs:       p.Pairs,
		Duration:    p.Duration,
	})
	return nil
}

func (r *Recorder) stopped(p session.Stopped, at time.Time) error {
	r.mu.Lock()
	rec, ok := r.sessions[p.Session]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	flushErr := r.Flush()

	r.mu.Lock()
	rec.EndedAt = at
	rec.Passes = p.Passes
	rec.Final = p.Last
	end := *rec
	delete(r.sessions, p.Session)
	r.mu.Unlock()

	return errors.Join(flushErr, r.store.EndSession(&end))
}

// Flush hands every pending sample to the store and then to the exporter.
// Samples the store rejects for a transient reason are put back for the next
// flush and reach the exporter only once that flush stores them.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	items := r.pending.GetAndEmpty()
	if len(items) == 0 {
		return nil
	}

	var errs []error
	if err := r.store.RecordEnergy(items...); err != nil {
		if !errors.Is(err, core.ErrUnknownSession) {
			r.pending.Requeue(items...)
			return err
		}
		r.logger.Warn("dropping samples of unknown session", "count", len(items), "error", err)
		errs = append(errs, err)
	}
	if r.exporter != nil {
		if err := r.exporter.WriteSamples(items...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending returns the number of samples waiting for the next flush.
func (r *Recorder) Pending() int {
	return r.pending.Len()
}

// Dropped returns how many samples were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.pending.Dropped()
}

// Start launches the periodic flush loop.
func (r *Recorder) Start() {
	r.stopChan = make(chan struct{})
	r.wg.Add(1)
	go r.flushLoop(r.stopChan)
}

// Stop ends the flush loop and writes whatever is still pending.
func (r *Recorder) Stop() error {
	if r.stopChan != nil {
		close(r.stopChan)
		r.wg.Wait()
		r.stopChan = nil
	}
	return r.Flush()
}

func (r *Recorder) flushLoop(stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Error("flush failed", "error", err, "pending", r.pending.Len())
			}
		}
	}
}
