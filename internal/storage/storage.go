// internal/storage/storage.go
package storage

import "github.com/molsim/dockenergy/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (StartSession assigns ID to the passed pointer)
	StartSession(s *core.SessionRecord) error
	EndSession(s *core.SessionRecord) error

	// Trace recording
	RecordEnergy(samples ...core.EnergySample) error
}

// Exporter is an optional interface for backends that write one file per
// finished session.
type Exporter interface {
	LastExportPath() string
}

// Reader is an optional interface for backends that can read back what they
// stored.
type Reader interface {
	Sessions() ([]core.SessionRecord, error)
	Samples(uuid string) ([]core.EnergySample, error)
}
