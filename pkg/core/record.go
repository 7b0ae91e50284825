// pkg/core/record.go
package core

import (
	"errors"
	"time"
)

// ErrUnknownSession is returned by storage backends for a session UUID that
// was never started or has already ended.
var ErrUnknownSession = errors.New("unknown session")

// SessionRecord describes one docking session as persisted by a storage
// backend. ID is assigned by database backends.
type SessionRecord struct {
	ID        uint
	UUID      string
	Kernel    string
	Bodies    []string
	Atoms     int
	Pairs     int
	Undefined int
	Fraction  float64
	Warmup    Energy
	StartedAt time.Time
	EndedAt   time.Time
	Passes    uint64
	Final     Energy
}

// EnergySample is one consumed energy pass of a session.
type EnergySample struct {
	SessionUUID string
	Kernel      string
	Pass        uint64
	Time        time.Time
	Energy      Energy
	Pairs       int
	Duration    time.Duration
}
