// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/molsim/dockenergy/internal/model"
	"github.com/molsim/dockenergy/pkg/core"
	"gorm.io/datatypes"
)

// bodiesToJSON converts body names to datatypes.JSON for DB storage.
func bodiesToJSON(bodies []string) datatypes.JSON {
	if len(bodies) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(bodies)
	return datatypes.JSON(data)
}

func jsonToBodies(data datatypes.JSON) []string {
	var bodies []string
	if len(data) == 0 {
		return bodies
	}
	_ = json.Unmarshal(data, &bodies)
	return bodies
}

// CoreToSession converts a core.SessionRecord to a GORM Session.
func CoreToSession(s core.SessionRecord) model.Session {
	m := model.Session{
		UUID:              s.UUID,
		Kernel:            s.Kernel,
		Bodies:            bodiesToJSON(s.Bodies),
		Atoms:             s.Atoms,
		Pairs:             s.Pairs,
		Undefined:         s.Undefined,
		UndefinedFraction: s.Fraction,
		WarmupElec:        s.Warmup.Elec,
		WarmupVdw:         s.Warmup.Vdw,
		StartedAt:         s.StartedAt,
		Passes:            s.Passes,
		FinalElec:         s.Final.Elec,
		FinalVdw:          s.Final.Vdw,
	}
	m.ID = s.ID
	if !s.EndedAt.IsZero() {
		m.EndedAt = sql.NullTime{Time: s.EndedAt, Valid: true}
	}
	return m
}

// SessionToCore converts a GORM Session back to a core.SessionRecord.
func SessionToCore(m model.Session) core.SessionRecord {
	s := core.SessionRecord{
		ID:        m.ID,
		UUID:      m.UUID,
		Kernel:    m.Kernel,
		Bodies:    jsonToBodies(m.Bodies),
		Atoms:     m.Atoms,
		Pairs:     m.Pairs,
		Undefined: m.Undefined,
		Fraction:  m.UndefinedFraction,
		Warmup:    core.Energy{Elec: m.WarmupElec, Vdw: m.WarmupVdw},
		StartedAt: m.StartedAt,
		Passes:    m.Passes,
		Final:     core.Energy{Elec: m.FinalElec, Vdw: m.FinalVdw},
	}
	if m.EndedAt.Valid {
		s.EndedAt = m.EndedAt.Time
	}
	return s
}

// CoreToEnergySample converts a core.EnergySample to a GORM EnergySample
// belonging to the session row sessionID.
func CoreToEnergySample(e core.EnergySample, sessionID uint) model.EnergySample {
	return model.EnergySample{
		Time:       e.Time,
		SessionID:  sessionID,
		Pass:       e.Pass,
		Elec:       e.Energy.Elec,
		Vdw:        e.Energy.Vdw,
		Total:      e.Energy.Total(),
		Pairs:      e.Pairs,
		DurationMs: float32(e.Duration.Seconds() * 1000),
	}
}

// EnergySampleToCore converts a GORM EnergySample back to a core.EnergySample.
func EnergySampleToCore(m model.EnergySample, sessionUUID string) core.EnergySample {
	return core.EnergySample{
		SessionUUID: sessionUUID,
		Pass:        m.Pass,
		Time:        m.Time,
		Energy:      core.Energy{Elec: m.Elec, Vdw: m.Vdw},
		Pairs:       m.Pairs,
		Duration:    time.Duration(float64(m.DurationMs) * float64(time.Millisecond)),
	}
}
