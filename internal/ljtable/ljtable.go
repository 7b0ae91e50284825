// Package ljtable precomputes the Lennard-Jones 12-6 pair coefficients for
// every combination of atom types in a docking session.
package ljtable

import (
	"errors"
	"fmt"
	"math"

	"github.com/molsim/dockenergy/pkg/core"
)

// ErrInconsistentType is returned when atoms sharing a type name disagree on
// epsilon or Rmin.
var ErrInconsistentType = errors.New("inconsistent parameters for atom type")

// Pair holds the A and B coefficients of E = A/r^12 - B/r^6.
type Pair struct {
	A float64
	B float64
}

// Table is a T×T row-major matrix of pair coefficients indexed by dense type
// id, plus the dense type id of every atom.
type Table struct {
	Types   []string
	Pairs   []Pair
	TypeIDs []int
}

// Mix applies the Lorentz-Berthelot style combination rule used by CHARMM and
// AMBER parameter sets: eps_ij = sqrt(eps_i*eps_j), Rmin_ij = Rmin_i + Rmin_j.
func Mix(epsI, rminI, epsJ, rminJ float64) (eps, rmin float64) {
	return math.Sqrt(epsI * epsJ), rminI + rminJ
}

// Coefficients returns A = eps*Rmin^12 and B = 2*eps*Rmin^6.
func Coefficients(eps, rmin float64) Pair {
	r2 := rmin * rmin
	r6 := r2 * r2 * r2
	return Pair{A: eps * r6 * r6, B: 2 * eps * r6}
}

// Build deduplicates the atom types of params and fills the combination
// matrix. It depends on parameters only and is built once per session.
func Build(params []core.AtomParam) (*Table, error) {
	ids := make(map[string]int)
	var uniq []core.AtomParam
	t := &Table{TypeIDs: make([]int, len(params))}

	for i, p := range params {
		id, ok := ids[p.Type]
		if !ok {
			id = len(uniq)
			ids[p.Type] = id
			uniq = append(uniq, p)
			t.Types = append(t.Types, p.Type)
		} else if u := uniq[id]; u.Eps != p.Eps || u.Rmin != p.Rmin {
			return nil, fmt.Errorf("%w %q: atom %d has (%g, %g), expected (%g, %g)",
				ErrInconsistentType, p.Type, i, p.Eps, p.Rmin, u.Eps, u.Rmin)
		}
		t.TypeIDs[i] = id
	}

	n := len(uniq)
	t.Pairs = make([]Pair, n*n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			eps, rmin := Mix(uniq[i].Eps, uniq[i].Rmin, uniq[j].Eps, uniq[j].Rmin)
			c := Coefficients(eps, rmin)
			t.Pairs[i*n+j] = c
			t.Pairs[j*n+i] = c
		}
	}
	return t, nil
}

// NumTypes returns the row size of the matrix.
func (t *Table) NumTypes() int {
	return len(t.Types)
}

// At returns the coefficients for a pair of dense type ids.
func (t *Table) At(i, j int) Pair {
	return t.Pairs[i*len(t.Types)+j]
}

// ForAtoms returns the coefficients for a pair of flat atom positions.
func (t *Table) ForAtoms(a, b int) Pair {
	return t.At(t.TypeIDs[a], t.TypeIDs[b])
}

// Assign writes the dense type ids into params.
func (t *Table) Assign(params []core.AtomParam) {
	for i := range params {
		if i < len(t.TypeIDs) {
			params[i].TypeID = t.TypeIDs[i]
		}
	}
}
