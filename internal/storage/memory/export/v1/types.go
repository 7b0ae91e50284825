// Package v1 contains the v1 JSON export format for a recorded docking session.
package v1

// Version is written into every export.
const Version = "1"

// Export is the root JSON structure for v1 format
type Export struct {
	Version   string   `json:"version"`
	Session   string   `json:"session"`
	Kernel    string   `json:"kernel"`
	Bodies    []string `json:"bodies"`
	Atoms     int      `json:"atoms"`
	Pairs     int      `json:"pairs"`
	Undefined int      `json:"undefined"`
	StartedAt string   `json:"startedAt"`
	EndedAt   string   `json:"endedAt,omitempty"`
	Passes    uint64   `json:"passes"`
	Warmup    Energy   `json:"warmup"`
	Final     Energy   `json:"final"`
	Summary   Summary  `json:"summary"`
	// Samples are [pass, unixMillis, elec, vdw, pairs, durationMs]
	Samples [][]any `json:"samples"`
}

// Energy is an (elec, vdw, total) triple in kcal/mol.
type Energy struct {
	Elec  float32 `json:"elec"`
	Vdw   float32 `json:"vdw"`
	Total float32 `json:"total"`
}

// Summary holds statistics over the recorded total energy.
type Summary struct {
	Count  int     `json:"count"`
	Min    float32 `json:"min"`
	Max    float32 `json:"max"`
	Mean   float64 `json:"mean"`
	MinAt  uint64  `json:"minAtPass"`
	MeanMs float64 `json:"meanDurationMs"`
}
