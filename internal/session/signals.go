package session

import (
	"time"

	"github.com/molsim/dockenergy/pkg/core"
)

// Topics published by a Controller.
const (
	TopicStarted  = "started"
	TopicStopped  = "stopped"
	TopicDegraded = "degraded"
	TopicEnergy   = "energy"
)

// Started is the payload of TopicStarted.
type Started struct {
	Session string
	Kernel  string
	Bodies  []string
	Atoms   int
	Pairs   int
	Warmup  core.Energy

	// Undefined atoms contribute nothing; Fraction is Undefined/Atoms.
	Undefined int
	Fraction  float64
}

// Stopped is the payload of TopicStopped.
type Stopped struct {
	Session string
	Passes  uint64
	Last    core.Energy
}

// Degraded is the payload of TopicDegraded.
type Degraded struct {
	Session   string
	Fraction  float64
	Undefined int
	Total     int
}

// Sample is the payload of TopicEnergy: one consumed pass.
type Sample struct {
	Session  string
	Pass     uint64
	Energy   core.Energy
	Pairs    int
	Duration time.Duration
	Time     time.Time
}
