// Package feedback maps published energies to the values shown, played and
// exported by the host: scaled readouts, audio tempo and PDB remarks.
package feedback

import (
	"strconv"

	"github.com/molsim/dockenergy/pkg/core"
)

const (
	// DisplayLimit caps the magnitude of displayed values.
	DisplayLimit = 9999.9
	// ReasonableEnergy is the magnitude at which the tint saturates.
	ReasonableEnergy = 500.0
)

// Readout scales raw energies for on-screen display.
type Readout struct {
	ElecScale float64
	VdwScale  float64
}

// NewReadout returns a readout with the given per-term scaling.
func NewReadout(elecScale, vdwScale float64) Readout {
	return Readout{ElecScale: elecScale, VdwScale: vdwScale}
}

// Value is one displayed energy term.
type Value struct {
	Energy float64
	Text   string
	// Tint is in [-1, 1]: negative is favourable, positive unfavourable.
	Tint float64
}

// Display is the scaled readout of one energy.
type Display struct {
	Elec  Value
	Vdw   Value
	Total Value
}

// Format scales e and renders each term with two decimals.
func (r Readout) Format(e core.Energy) Display {
	elec := float64(e.Elec) * r.ElecScale
	vdw := float64(e.Vdw) * r.VdwScale
	return Display{
		Elec:  value(elec),
		Vdw:   value(vdw),
		Total: value(elec + vdw),
	}
}

func value(e float64) Value {
	return Value{Energy: e, Text: truncate(e), Tint: tint(e)}
}

func truncate(e float64) string {
	switch {
	case e > DisplayLimit:
		e = DisplayLimit
	case e < -DisplayLimit:
		e = -DisplayLimit
	}
	return strconv.FormatFloat(e, 'f', 2, 64)
}

func tint(e float64) float64 {
	return clamp(e/ReasonableEnergy, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
