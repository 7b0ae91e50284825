package recorder

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molsim/dockenergy/internal/database"
	"github.com/molsim/dockenergy/internal/dispatcher"
	"github.com/molsim/dockenergy/internal/forcefield"
	"github.com/molsim/dockenergy/internal/logging"
	"github.com/molsim/dockenergy/internal/session"
	gormstorage "github.com/molsim/dockenergy/internal/storage/gorm"
	"github.com/molsim/dockenergy/pkg/core"
)

type fakeStore struct {
	mu       sync.Mutex
	started  []core.SessionRecord
	ended    []core.SessionRecord
	samples  []core.EnergySample
	failNext error
}

func (s *fakeStore) StartSession(rec *core.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = uint(len(s.started) + 1)
	s.started = append(s.started, *rec)
	return nil
}

func (s *fakeStore) EndSession(rec *core.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, *rec)
	return nil
}

func (s *fakeStore) RecordEnergy(samples ...core.EnergySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *fakeStore) recorded() []core.EnergySample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.EnergySample(nil), s.samples...)
}

type fakeExporter struct {
	mu      sync.Mutex
	samples []core.EnergySample
}

func (e *fakeExporter) WriteSamples(samples ...core.EnergySample) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = append(e.samples, samples...)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func event(topic string, payload any) dispatcher.Event {
	return dispatcher.Event{Topic: topic, Payload: payload, Timestamp: time.Now()}
}

func startedEvent(id string) dispatcher.Event {
	return event(session.TopicStarted, session.Started{
		Session: id,
		Kernel:  "portable",
		Bodies:  []string{"cation:A", "anion:A"},
		Atoms:   2,
		Pairs:   1,
		Warmup:  core.Energy{Elec: -110, Vdw: -0.1},
	})
}

func sampleEvent(id string, pass uint64) dispatcher.Event {
	return event(session.TopicEnergy, session.Sample{
		Session: id,
		Pass:    pass,
		Energy:  core.Energy{Elec: -float32(pass)},
		Pairs:   1,
		Time:    time.Now(),
	})
}

func TestHandle_StartedCreatesSession(t *testing.T) {
	store := &fakeStore{}
	r := New(store, nil, time.Hour, quietLogger())

	require.NoError(t, r.Handle(startedEvent("s1")))

	require.Len(t, store.started, 1)
	rec := store.started[0]
	assert.Equal(t, "s1", rec.UUID)
	assert.Equal(t, "portable", rec.Kernel)
	assert.Equal(t, []string{"cation:A", "anion:A"}, rec.Bodies)
	assert.Equal(t, core.Energy{Elec: -110, Vdw: -0.1}, rec.Warmup)
	assert.False(t, rec.StartedAt.IsZero())
}

func TestHandle_SamplesBatchUntilFlush(t *testing.T) {
	store := &fakeStore{}
	exporter := &fakeExporter{}
	r := New(store, exporter, time.Hour, quietLogger())
	require.NoError(t, r.Handle(startedEvent("s1")))

	require.NoError(t, r.Handle(sampleEvent("s1", 1)))
	require.NoError(t, r.Handle(sampleEvent("s1", 2)))
	assert.Equal(t, 2, r.Pending())
	assert.Empty(t, store.recorded())

	require.NoError(t, r.Flush())

	got := store.recorded()
	require.Len(t, got, 2)
	assert.Equal(t, "portable", got[0].Kernel)
	assert.Equal(t, uint64(2), got[1].Pass)
	assert.Len(t, exporter.samples, 2)
	assert.Equal(t, 0, r.Pending())
}

func TestHandle_SampleOfUnknownSessionIgnored(t *testing.T) {
	store := &fakeStore{}
	r := New(store, nil, time.Hour, quietLogger())

	require.NoError(t, r.Handle(sampleEvent("nobody", 1)))
	assert.Equal(t, 0, r.Pending())
}

func TestHandle_StoppedFlushesAndEnds(t *testing.T) {
	store := &fakeStore{}
	r := New(store, nil, time.Hour, quietLogger())
	require.NoError(t, r.Handle(startedEvent("s1")))
	require.NoError(t, r.Handle(sampleEvent("s1", 1)))

	require.NoError(t, r.Handle(event(session.TopicStopped, session.Stopped{
		Session: "s1",
		Passes:  4,
		Last:    core.Energy{Elec: -3},
	})))

	assert.Len(t, store.recorded(), 1)
	require.Len(t, store.ended, 1)
	assert.Equal(t, uint64(4), store.ended[0].Passes)
	assert.Equal(t, core.Energy{Elec: -3}, store.ended[0].Final)
	assert.False(t, store.ended[0].EndedAt.IsZero())

	// later samples of the ended session are ignored
	require.NoError(t, r.Handle(sampleEvent("s1", 5)))
	assert.Equal(t, 0, r.Pending())
}

func TestFlush_RequeuesOnStoreFailure(t *testing.T) {
	store := &fakeStore{failNext: errors.New("db down")}
	r := New(store, nil, time.Hour, quietLogger())
	require.NoError(t, r.Handle(startedEvent("s1")))
	require.NoError(t, r.Handle(sampleEvent("s1", 1)))

	assert.Error(t, r.Flush())
	assert.Equal(t, 1, r.Pending())

	require.NoError(t, r.Flush())
	assert.Len(t, store.recorded(), 1)
}

func TestFlush_RetryExportsOnce(t *testing.T) {
	store := &fakeStore{failNext: errors.New("db down")}
	exporter := &fakeExporter{}
	r := New(store, exporter, time.Hour, quietLogger())
	require.NoError(t, r.Handle(startedEvent("s1")))
	require.NoError(t, r.Handle(sampleEvent("s1", 1)))

	assert.Error(t, r.Flush())
	assert.Empty(t, exporter.samples, "rejected batch must wait for the store")

	require.NoError(t, r.Flush())
	require.NoError(t, r.Flush())
	assert.Len(t, store.recorded(), 1)
	require.Len(t, exporter.samples, 1)
	assert.Equal(t, uint64(1), exporter.samples[0].Pass)
}

func TestFlush_UnknownSessionStillExported(t *testing.T) {
	store := &fakeStore{failNext: core.ErrUnknownSession}
	exporter := &fakeExporter{}
	r := New(store, exporter, time.Hour, quietLogger())
	require.NoError(t, r.Handle(startedEvent("s1")))
	require.NoError(t, r.Handle(sampleEvent("s1", 1)))

	assert.ErrorIs(t, r.Flush(), core.ErrUnknownSession)
	require.NoError(t, r.Flush())
	assert.Len(t, exporter.samples, 1)
}

func TestFlush_DropsUnknownSession(t *testing.T) {
	store := &fakeStore{failNext: core.ErrUnknownSession}
	r := New(store, nil, time.Hour, quietLogger())
	require.NoError(t, r.Handle(startedEvent("s1")))
	require.NoError(t, r.Handle(sampleEvent("s1", 1)))

	assert.ErrorIs(t, r.Flush(), core.ErrUnknownSession)
	assert.Equal(t, 0, r.Pending())
}

func TestStartStop_FlushLoop(t *testing.T) {
	store := &fakeStore{}
	r := New(store, nil, 10*time.Millisecond, quietLogger())
	r.Start()
	require.NoError(t, r.Handle(startedEvent("s1")))
	require.NoError(t, r.Handle(sampleEvent("s1", 1)))

	assert.Eventually(t, func() bool {
		return len(store.recorded()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, r.Handle(sampleEvent("s1", 2)))
	require.NoError(t, r.Stop())
	assert.Len(t, store.recorded(), 2)
	// Stop without Start is safe
	require.NoError(t, r.Stop())
}

func ionForceField() *forcefield.Table {
	ff := forcefield.NewTable()
	ff.AddResidue("POS", map[string]forcefield.AtomEntry{"X": {Type: "X", Charge: 1}})
	ff.AddResidue("NEG", map[string]forcefield.AtomEntry{"X": {Type: "X", Charge: -1}})
	ff.AddType("X", 0.1, 1.5)
	return ff
}

func ion(name, residue string, pos core.Vec3) *core.Molecule {
	return &core.Molecule{
		Name: name,
		Chains: []core.Chain{{
			Name: "A",
			Residues: []core.Residue{{
				Name:  residue,
				ID:    1,
				Atoms: []core.Atom{{Name: "X", Element: "X", Position: pos}},
			}},
		}},
	}
}

func TestSessionTraceRecordedToDatabase(t *testing.T) {
	db, err := database.OpenSQLite("")
	require.NoError(t, err)
	store := gormstorage.New(gormstorage.Dependencies{DB: db, FlushInterval: time.Hour, Logger: quietLogger()})
	require.NoError(t, store.Init())
	defer store.Close()

	d, err := dispatcher.New(logging.NewDispatcherLogger(quietLogger()))
	require.NoError(t, err)
	defer d.Close()

	r := New(store, nil, time.Hour, quietLogger())
	r.Subscribe(d)

	cfg := session.DefaultConfig()
	cfg.IdleTimeout = 5 * time.Millisecond
	c := session.New(ionForceField(), d, cfg, quietLogger())
	require.NoError(t, c.Start([]*core.Molecule{
		ion("cation", "POS", core.Vec3{}),
		ion("anion", "NEG", core.Vec3{X: 3}),
	}))
	info, ok := c.Info()
	require.True(t, ok)

	// the warm-up pass is consumed by the first update
	_, fresh, err := c.Update([]core.Vec3{{}, {X: 3}})
	require.NoError(t, err)
	require.True(t, fresh)
	c.Stop()

	sessions, err := store.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, info.ID, sessions[0].UUID)
	assert.Equal(t, []string{"cation:A", "anion:A"}, sessions[0].Bodies)
	assert.False(t, sessions[0].EndedAt.IsZero())
	assert.InDelta(t, -110.784, sessions[0].Final.Total(), 1e-2)

	samples, err := store.Samples(info.ID)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.InDelta(t, -110.684, samples[0].Energy.Elec, 1e-2)
}
