// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sync"

	"github.com/molsim/dockenergy/internal/config"
	"github.com/molsim/dockenergy/pkg/core"
)

// SessionRecord groups a session with its energy trace
type SessionRecord struct {
	Session core.SessionRecord
	Samples []core.EnergySample
}

// Backend stores session traces in memory and exports each one to JSON when
// it ends
type Backend struct {
	cfg      config.MemoryConfig
	sessions map[string]*SessionRecord // keyed by session UUID

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		sessions: make(map[string]*SessionRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports every session that was never ended.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for id, rec := range b.sessions {
		if err := b.exportJSON(rec); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.sessions, id)
	}
	return firstErr
}

// StartSession begins recording a new session and assigns its ID
func (b *Backend) StartSession(s *core.SessionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[s.UUID]; ok {
		return fmt.Errorf("session %s already started", s.UUID)
	}
	b.idCounter++
	s.ID = b.idCounter
	b.sessions[s.UUID] = &SessionRecord{Session: *s}
	return nil
}

// RecordEnergy appends samples to their sessions' traces
func (b *Backend) RecordEnergy(samples ...core.EnergySample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range samples {
		rec, ok := b.sessions[e.SessionUUID]
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrUnknownSession, e.SessionUUID)
		}
		rec.Samples = append(rec.Samples, e)
	}
	return nil
}

// EndSession finalizes the session and writes its export file
func (b *Backend) EndSession(s *core.SessionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.sessions[s.UUID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownSession, s.UUID)
	}
	rec.Session.EndedAt = s.EndedAt
	rec.Session.Passes = s.Passes
	rec.Session.Final = s.Final
	delete(b.sessions, s.UUID)

	return b.exportJSON(rec)
}

// GetSession returns a copy of an active session's record and trace
func (b *Backend) GetSession(uuid string) (*SessionRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.sessions[uuid]
	if !ok {
		return nil, false
	}
	cp := &SessionRecord{
		Session: rec.Session,
		Samples: append([]core.EnergySample(nil), rec.Samples...),
	}
	return cp, true
}

// LastExportPath returns the file written by the most recent export
func (b *Backend) LastExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
