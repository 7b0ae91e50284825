package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/////////////////////////
// DATABASE STRUCTURES //
/////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&EnergySample{},
}

// Session is one docking session: the structures it covered, the kernel
// that evaluated it and its final energy once stopped.
type Session struct {
	gorm.Model
	UUID              string         `json:"uuid" gorm:"size:36;uniqueIndex:idx_session_uuid"`
	Kernel            string         `json:"kernel" gorm:"size:32"`
	Bodies            datatypes.JSON `json:"bodies"` // body names, molecule:chain
	Atoms             int            `json:"atoms"`
	Pairs             int            `json:"pairs"`
	Undefined         int            `json:"undefined"`
	UndefinedFraction float64        `json:"undefinedFraction"`
	WarmupElec        float32        `json:"warmupElec"`
	WarmupVdw         float32        `json:"warmupVdw"`
	StartedAt         time.Time      `json:"startedAt" gorm:"index:idx_session_started_at"`
	EndedAt           sql.NullTime   `json:"endedAt"`
	Passes            uint64         `json:"passes"`
	FinalElec         float32        `json:"finalElec"`
	FinalVdw          float32        `json:"finalVdw"`

	EnergySamples []EnergySample `json:"-"`
}

func (*Session) TableName() string {
	return "sessions"
}

// EnergySample is one consumed energy pass, kcal/mol.
type EnergySample struct {
	Time       time.Time `json:"time" gorm:"index:idx_energysample_time"`
	SessionID  uint      `json:"sessionId" gorm:"index:idx_energysample_session_id"`
	Session    Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Pass       uint64    `json:"pass"`
	Elec       float32   `json:"elec"`
	Vdw        float32   `json:"vdw"`
	Total      float32   `json:"total"`
	Pairs      int       `json:"pairs"`      // pairs inside the cutoff
	DurationMs float32   `json:"durationMs"` // kernel time of the pass
}

func (*EnergySample) TableName() string {
	return "energy_samples"
}
