package v1

import (
	"time"

	"github.com/molsim/dockenergy/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session core.SessionRecord
	Samples []core.EnergySample
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	s := data.Session
	export := Export{
		Version:   Version,
		Session:   s.UUID,
		Kernel:    s.Kernel,
		Bodies:    s.Bodies,
		Atoms:     s.Atoms,
		Pairs:     s.Pairs,
		Undefined: s.Undefined,
		StartedAt: s.StartedAt.UTC().Format(time.RFC3339Nano),
		Passes:    s.Passes,
		Warmup:    energy(s.Warmup),
		Final:     energy(s.Final),
		Samples:   make([][]any, 0, len(data.Samples)),
	}
	if export.Bodies == nil {
		export.Bodies = []string{}
	}
	if !s.EndedAt.IsZero() {
		export.EndedAt = s.EndedAt.UTC().Format(time.RFC3339Nano)
	}

	var sum, durSum float64
	for i, e := range data.Samples {
		total := e.Energy.Total()
		ms := e.Duration.Seconds() * 1000
		export.Samples = append(export.Samples, []any{
			e.Pass,
			e.Time.UnixMilli(),
			e.Energy.Elec,
			e.Energy.Vdw,
			e.Pairs,
			ms,
		})

		if i == 0 || total < export.Summary.Min {
			export.Summary.Min = total
			export.Summary.MinAt = e.Pass
		}
		if i == 0 || total > export.Summary.Max {
			export.Summary.Max = total
		}
		sum += float64(total)
		durSum += ms
	}

	if n := len(data.Samples); n > 0 {
		export.Summary.Count = n
		export.Summary.Mean = sum / float64(n)
		export.Summary.MeanMs = durSum / float64(n)
	}

	return export
}

func energy(e core.Energy) Energy {
	return Energy{Elec: e.Elec, Vdw: e.Vdw, Total: e.Total()}
}
