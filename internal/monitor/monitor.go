// Package monitor periodically writes the status of the running docking
// session to a file and the log.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"
)

// DefaultInterval is the status refresh period.
const DefaultInterval = time.Second

// Status is one snapshot of the program state.
type Status struct {
	Time       time.Time `json:"time"`
	Session    string    `json:"session,omitempty"`
	Kernel     string    `json:"kernel,omitempty"`
	State      string    `json:"state"`
	Last       float32   `json:"lastTotal"`
	Pending    int       `json:"pendingSamples"`
	Dropped    uint64    `json:"droppedSamples"`
	Goroutines int       `json:"goroutines"`
}

// Dependencies configures a Service. Only Status is session specific.
type Dependencies struct {
	// Status fills in the session fields of a snapshot.
	Status   func(*Status)
	Logger   *slog.Logger
	Path     string
	Interval time.Duration
}

// Service refreshes the status file on a ticker until stopped.
type Service struct {
	deps    Dependencies
	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

// NewService applies the defaults for a nil logger and a zero interval.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning reports whether the refresh loop is active.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Snapshot returns the current program status.
func (s *Service) Snapshot() Status {
	st := Status{
		Time:       time.Now(),
		State:      "stopped",
		Goroutines: runtime.NumGoroutine(),
	}
	if s.deps.Status != nil {
		s.deps.Status(&st)
	}
	return st
}

// Write stores one snapshot in the status file, replacing its content.
func (s *Service) Write() error {
	st := s.Snapshot()
	s.deps.Logger.Debug("status",
		"state", st.State,
		"pending", st.Pending,
		"dropped", st.Dropped,
		"goroutines", st.Goroutines,
	)
	if s.deps.Path == "" {
		return nil
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.WriteFile(s.deps.Path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// Start launches the refresh loop. Calling it twice is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.quit = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.quit, s.done)
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	s.deps.Logger.Debug("Starting status monitor", "path", s.deps.Path, "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.Write(); err != nil {
				s.deps.Logger.Error("Error writing status", "error", err)
			}
		}
	}
}

// Stop stops the status monitor and writes a last snapshot.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.quit)
	done := s.done
	s.mu.Unlock()

	<-done
	if err := s.Write(); err != nil {
		s.deps.Logger.Error("Error writing status", "error", err)
	}
}
