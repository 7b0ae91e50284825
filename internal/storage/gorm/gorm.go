// Package gormstorage implements the storage backend on GORM with an internal
// sample queue drained by a background writer goroutine. The SQLite and
// Postgres backends wrap it and only supply the connection.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/molsim/dockenergy/internal/database"
	"github.com/molsim/dockenergy/internal/model"
	"github.com/molsim/dockenergy/internal/model/convert"
	"github.com/molsim/dockenergy/internal/queue"
	"github.com/molsim/dockenergy/pkg/core"

	"gorm.io/gorm"
)

const (
	// DefaultFlushInterval is used when Dependencies.FlushInterval is zero.
	DefaultFlushInterval = time.Second
	// DefaultQueueLimit bounds the pending sample queue when the database stalls.
	DefaultQueueLimit = 100000
)

// ErrNoDatabase is returned by Init when no connection was injected.
var ErrNoDatabase = errors.New("no database connection")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	QueueLimit    int
}

// Backend implements the storage backend on GORM with queue-based batch writes.
type Backend struct {
	deps    Dependencies
	samples *queue.Queue[core.EnergySample]

	mu       sync.Mutex
	sessions map[string]uint // session UUID -> row ID
	writeMu  sync.Mutex

	lastWrite atomic.Int64
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.QueueLimit <= 0 {
		deps.QueueLimit = DefaultQueueLimit
	}
	return &Backend{
		deps:     deps,
		samples:  queue.New[core.EnergySample](deps.QueueLimit),
		sessions: make(map[string]uint),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	b.deps.Logger.Info("Migrating schema")
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.wg.Add(1)
	go b.writerLoop()
	return nil
}

// Close stops the writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			b.wg.Wait()
		}
		if b.deps.DB != nil {
			err = b.Flush()
		}
	})
	return err
}

// StartSession inserts the session row and assigns its ID.
func (b *Backend) StartSession(s *core.SessionRecord) error {
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.ID = row.ID

	b.mu.Lock()
	b.sessions[s.UUID] = row.ID
	b.mu.Unlock()
	return nil
}

// RecordEnergy queues samples for the writer goroutine.
func (b *Backend) RecordEnergy(samples ...core.EnergySample) error {
	b.mu.Lock()
	for _, e := range samples {
		if _, ok := b.sessions[e.SessionUUID]; !ok {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s", core.ErrUnknownSession, e.SessionUUID)
		}
	}
	b.mu.Unlock()

	b.samples.Push(samples...)
	return nil
}

// EndSession writes pending samples and stores the session's final state.
func (b *Backend) EndSession(s *core.SessionRecord) error {
	b.mu.Lock()
	id, ok := b.sessions[s.UUID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownSession, s.UUID)
	}

	if err := b.Flush(); err != nil {
		return err
	}

	row := convert.CoreToSession(*s)
	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Updates(map[string]any{
		"ended_at":   row.EndedAt,
		"passes":     row.Passes,
		"final_elec": row.FinalElec,
		"final_vdw":  row.FinalVdw,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	b.mu.Lock()
	delete(b.sessions, s.UUID)
	b.mu.Unlock()
	return nil
}

// Flush drains the sample queue into the database in one transaction.
// On failure the samples of still open sessions are put back at the head of
// the queue; those of ended sessions are discarded.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if b.samples.Empty() {
		return nil
	}

	start := time.Now()
	items := b.samples.GetAndEmpty()

	b.mu.Lock()
	kept := items[:0]
	rows := make([]model.EnergySample, 0, len(items))
	for _, e := range items {
		// samples are checked on entry; a miss here means the session
		// ended while they were queued
		id, ok := b.sessions[e.SessionUUID]
		if !ok {
			continue
		}
		kept = append(kept, e)
		rows = append(rows, convert.CoreToEnergySample(e, id))
	}
	b.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	tx := b.deps.DB.Begin()
	if err := tx.Error; err != nil {
		b.samples.Requeue(kept...)
		return fmt.Errorf("error starting transaction: %w", err)
	}
	if err := tx.Create(&rows).Error; err != nil {
		tx.Rollback()
		b.samples.Requeue(kept...)
		return fmt.Errorf("error creating energy samples: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		b.samples.Requeue(kept...)
		return fmt.Errorf("error committing energy samples: %w", err)
	}

	b.lastWrite.Store(int64(time.Since(start)))
	return nil
}

// Pending returns the number of queued samples.
func (b *Backend) Pending() int {
	return b.samples.Len()
}

// Dropped returns how many samples were discarded because the queue was full.
func (b *Backend) Dropped() uint64 {
	return b.samples.Dropped()
}

// LastWriteDuration returns how long the most recent successful flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Sessions returns every stored session, oldest first.
func (b *Backend) Sessions() ([]core.SessionRecord, error) {
	return ListSessions(b.deps.DB)
}

// Samples returns the stored trace of one session in pass order.
func (b *Backend) Samples(uuid string) ([]core.EnergySample, error) {
	return ListSamples(b.deps.DB, uuid)
}

// writerLoop periodically drains the queue into the DB.
func (b *Backend) writerLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("Error writing energy samples",
					"error", err,
					"pending", b.samples.Len())
			}
		}
	}
}

// ListSessions reads every session row from db, oldest first.
func ListSessions(db *gorm.DB) ([]core.SessionRecord, error) {
	var rows []model.Session
	if err := db.Order("started_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]core.SessionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.SessionToCore(r))
	}
	return out, nil
}

// ListSamples reads the trace of one session from db in pass order.
func ListSamples(db *gorm.DB, uuid string) ([]core.EnergySample, error) {
	var session model.Session
	if err := db.Where("uuid = ?", uuid).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownSession, uuid)
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rows []model.EnergySample
	if err := db.Where("session_id = ?", session.ID).Order("pass asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	out := make([]core.EnergySample, 0, len(rows))
	for _, r := range rows {
		e := convert.EnergySampleToCore(r, uuid)
		e.Kernel = session.Kernel
		out = append(out, e)
	}
	return out, nil
}
