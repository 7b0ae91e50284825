package feedback

import (
	"sync"
	"time"

	"github.com/molsim/dockenergy/internal/dispatcher"
	"github.com/molsim/dockenergy/internal/session"
)

// Tempo defaults.
const (
	DefaultWindow    = 10
	DefaultMinEnergy = -999.0
	DefaultMaxEnergy = 999.0
)

// Tempo maps total energy to the interval between feedback sounds: the
// lower the energy, the longer the pause. It also keeps a moving window of
// recent totals whose mean drift tells whether docking is improving.
type Tempo struct {
	min, max float64

	mu       sync.Mutex
	window   []float64
	next     int
	interval float64
	trend    float64
}

// NewTempo creates a tempo mapper. Energies are clamped to [min, max].
func NewTempo(window int, min, max float64) *Tempo {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= min {
		min, max = DefaultMinEnergy, DefaultMaxEnergy
	}
	t := &Tempo{min: min, max: max, window: make([]float64, window)}
	t.interval = t.intervalFor(0)
	return t
}

// intervalFor returns the seconds between sounds for total.
func (t *Tempo) intervalFor(total float64) float64 {
	c := clamp(total, t.min, t.max)
	return 1 - lerp(0, 0.9, (c-t.min)/(t.max+t.max))
}

func lerp(a, b, f float64) float64 {
	f = clamp(f, 0, 1)
	return a + (b-a)*f
}

// Reset fills the window with total, as done when a session starts.
func (t *Tempo) Reset(total float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.window {
		t.window[i] = total
	}
	t.next = 0
	t.trend = 0
	t.interval = t.intervalFor(total)
}

// Observe pushes total into the window, replacing the oldest value, and
// updates the interval.
func (t *Tempo) Observe(total float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	before := t.mean()
	t.window[t.next] = total
	t.next = (t.next + 1) % len(t.window)
	t.trend = t.mean() - before
	t.interval = t.intervalFor(total)
}

func (t *Tempo) mean() float64 {
	sum := 0.0
	for _, v := range t.window {
		sum += v
	}
	return sum / float64(len(t.window))
}

// Interval returns the current pause between sounds.
func (t *Tempo) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.interval * float64(time.Second))
}

// Trend returns the change of the window mean caused by the last Observe.
func (t *Tempo) Trend() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trend
}

// Handle consumes session signals: started resets the window with the
// warm-up total, energy observes the new total.
func (t *Tempo) Handle(e dispatcher.Event) error {
	switch p := e.Payload.(type) {
	case session.Started:
		t.Reset(float64(p.Warmup.Total()))
	case session.Sample:
		t.Observe(float64(p.Energy.Total()))
	}
	return nil
}
