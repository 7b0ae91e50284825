// Package forcefield resolves per-atom non-bonded parameters from the active
// force field of the host application.
package forcefield

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/molsim/dockenergy/pkg/core"
)

// DegradedThreshold is the undefined-atom fraction above which accuracy is degraded.
const DegradedThreshold = 0.5

// ErrNoForceField is returned when no force field is supplied.
var ErrNoForceField = errors.New("no active force field")

// Resolution is the per-atom parameter set of a docking session,
// index-aligned with the flat atom ordering.
type Resolution struct {
	Params    []core.AtomParam
	Undefined int
}

// Total returns the number of resolved atoms.
func (r Resolution) Total() int {
	return len(r.Params)
}

// Fraction returns the fraction of atoms missing from the force field.
func (r Resolution) Fraction() float64 {
	if len(r.Params) == 0 {
		return 0
	}
	return float64(r.Undefined) / float64(len(r.Params))
}

// Degraded reports whether more than half of the atoms are undefined.
func (r Resolution) Degraded() bool {
	return r.Fraction() > DegradedThreshold
}

// Charges returns the per-atom charges.
func (r Resolution) Charges() []float64 {
	out := make([]float64, len(r.Params))
	for i, p := range r.Params {
		out[i] = p.Charge
	}
	return out
}

// Resolve maps every atom of the molecules, in molecule/chain/residue/atom
// order, to its force field parameters. Atoms that cannot be matched get the
// undefined sentinel and are counted; they never make Resolve fail.
func Resolve(molecules []*core.Molecule, ff core.ForceField, logger *slog.Logger) (Resolution, error) {
	if ff == nil {
		return Resolution{}, ErrNoForceField
	}
	if logger == nil {
		logger = slog.Default()
	}

	var res Resolution
	for _, m := range molecules {
		res.Params = growParams(res.Params, m.Count())
		for _, c := range m.Chains {
			for _, r := range c.Residues {
				if !ff.HasResidue(r.Name) {
					logger.Debug("Residue not recognized in the force field",
						"molecule", m.Name, "residue", fmt.Sprintf("%s_%d", r.Name, r.ID))
					for range r.Atoms {
						res.Params = append(res.Params, core.UndefinedParam())
						res.Undefined++
					}
					continue
				}
				for _, a := range r.Atoms {
					p, ok := resolveAtom(ff, r.Name, a.Name)
					if !ok {
						logger.Debug("Atom not recognized in the force field",
							"molecule", m.Name, "residue", r.Name, "atom", a.Name)
						res.Undefined++
					}
					res.Params = append(res.Params, p)
				}
			}
		}
	}

	if res.Undefined > 0 {
		logger.Warn("Atoms not defined in the force field are ignored during docking",
			"undefined", res.Undefined, "total", res.Total())
	}
	if res.Degraded() {
		logger.Warn("More than half the atoms of the system are undefined",
			"fraction", res.Fraction())
	}
	return res, nil
}

func resolveAtom(ff core.ForceField, residue, atom string) (core.AtomParam, bool) {
	typ, charge, ok := ff.ResidueAtom(residue, atom)
	if !ok {
		return core.UndefinedParam(), false
	}
	eps, rmin, ok := ff.TypeParams(typ)
	if !ok {
		return core.UndefinedParam(), false
	}
	return core.AtomParam{Type: typ, TypeID: -1, Charge: charge, Eps: eps, Rmin: rmin}, true
}

func growParams(p []core.AtomParam, n int) []core.AtomParam {
	if cap(p)-len(p) >= n {
		return p
	}
	out := make([]core.AtomParam, len(p), len(p)+n)
	copy(out, p)
	return out
}
