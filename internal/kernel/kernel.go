// Package kernel computes the inter-body Coulomb and Lennard-Jones energy of a
// docking session for one coordinate snapshot.
package kernel

import (
	"errors"
	"fmt"
	"math"

	"github.com/molsim/dockenergy/internal/ljtable"
	"github.com/molsim/dockenergy/internal/partition"
	"github.com/molsim/dockenergy/pkg/core"
)

const (
	// DefaultCutoff is effectively infinite: every cross-body pair is evaluated.
	DefaultCutoff = 999.0
	// CoulombScaling converts e^2/Angstrom to kcal/mol.
	CoulombScaling = 332.0522
)

var (
	// ErrSnapshotSize is returned when a snapshot does not cover every atom.
	ErrSnapshotSize = errors.New("snapshot size does not match atom count")
	// ErrInputs is wrapped by every Inputs.Validate failure.
	ErrInputs = errors.New("invalid kernel inputs")
)

// Result is the output of one complete pass.
type Result struct {
	Energy core.Energy
	// Pairs is the number of cross-body pairs inside the cutoff.
	Pairs int
}

// Kernel evaluates one snapshot. Implementations must agree numerically.
type Kernel interface {
	Name() string
	Compute(s core.Snapshot) (Result, error)
}

// Inputs are the per-session parameters shared by every pass.
type Inputs struct {
	Partition   partition.Partition
	Table       *ljtable.Table
	Charges     []float64
	CutoffSq    float64
	ElecScaling float64
}

// NewInputs returns inputs with the default cutoff and Coulomb scaling.
func NewInputs(p partition.Partition, t *ljtable.Table, charges []float64) Inputs {
	return Inputs{
		Partition:   p,
		Table:       t,
		Charges:     charges,
		CutoffSq:    DefaultCutoff * DefaultCutoff,
		ElecScaling: CoulombScaling,
	}
}

// Validate checks that the inputs describe the same atoms.
func (in Inputs) Validate() error {
	if err := in.Partition.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInputs, err)
	}
	if in.Table == nil {
		return fmt.Errorf("%w: nil parameter table", ErrInputs)
	}
	n := in.Partition.NumAtoms()
	if len(in.Charges) != n {
		return fmt.Errorf("%w: %d charges for %d atoms", ErrInputs, len(in.Charges), n)
	}
	if len(in.Table.TypeIDs) != n {
		return fmt.Errorf("%w: %d type ids for %d atoms", ErrInputs, len(in.Table.TypeIDs), n)
	}
	if in.CutoffSq <= 0 || math.IsNaN(in.CutoffSq) {
		return fmt.Errorf("%w: cutoff must be positive", ErrInputs)
	}
	return nil
}

func (in *Inputs) checkSnapshot(s core.Snapshot) error {
	if len(s) != in.Partition.NumAtoms() {
		return fmt.Errorf("%w: got %d positions, want %d", ErrSnapshotSize, len(s), in.Partition.NumAtoms())
	}
	return nil
}

// rows sums the contribution of atoms [from, to) of body bi against every atom
// of body bj. Offsets index Partition.Atoms, which maps to snapshot positions.
func (in *Inputs) rows(s core.Snapshot, from, to, bj int) (elec, vdw float64, pairs int) {
	part := &in.Partition
	tab := in.Table
	nt := tab.NumTypes()
	jStart, jEnd := part.Range(bj)

	for ai := from; ai < to; ai++ {
		i := part.Atoms[ai]
		pi := s[i]
		qi := in.Charges[i]
		row := tab.TypeIDs[i] * nt

		for aj := jStart; aj < jEnd; aj++ {
			j := part.Atoms[aj]
			d2 := pi.Sub(s[j]).SqrLen()
			if d2 > in.CutoffSq {
				continue
			}
			c := tab.Pairs[row+tab.TypeIDs[j]]
			d6 := d2 * d2 * d2

			elec += in.ElecScaling * qi * in.Charges[j] / math.Sqrt(d2)
			vdw += c.A/(d6*d6) - c.B/d6
			pairs++
		}
	}
	return elec, vdw, pairs
}

func toResult(elec, vdw float64, pairs int) Result {
	return Result{
		Energy: core.Energy{Elec: float32(elec), Vdw: float32(vdw)},
		Pairs:  pairs,
	}
}
