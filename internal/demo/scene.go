// Package demo builds a synthetic receptor/ligand scene for exercising a
// docking session without a structure loader.
package demo

import (
	"fmt"
	"math"

	"github.com/molsim/dockenergy/internal/forcefield"
	"github.com/molsim/dockenergy/pkg/core"
)

// Spacing is the distance between neighbouring receptor atoms in Angstrom.
const Spacing = 3.8

// StartGap is where NewScene leaves the ligand.
const StartGap = 12.0

// receptor residues cycle through a cation, an anion and a neutral carbon
var receptorResidues = []struct {
	residue, atom, typ string
	charge             float64
}{
	{"LYS", "NZ", "NH3", 1},
	{"ASP", "OD1", "OC", -1},
	{"ALA", "CA", "CT1", 0},
}

// Scene is a receptor grid, a ligand chain and a solvent molecule that is
// excluded from docking.
type Scene struct {
	Receptor *core.Molecule
	Ligand   *core.Molecule
	Solvent  *core.Molecule

	base   []core.Vec3
	extent float64
	ligand map[string]forcefield.AtomEntry
}

// NewScene builds a cubic receptor of at least receptorAtoms atoms centred
// on the origin and a linear ligand of ligandAtoms alternating charges.
func NewScene(receptorAtoms, ligandAtoms int) (*Scene, error) {
	if receptorAtoms <= 0 || ligandAtoms <= 0 {
		return nil, fmt.Errorf("scene needs atoms: receptor=%d ligand=%d", receptorAtoms, ligandAtoms)
	}

	side := int(math.Ceil(math.Cbrt(float64(receptorAtoms))))
	half := float64(side-1) * Spacing / 2
	chain := core.Chain{Name: "A"}
	for i := 0; i < side*side*side; i++ {
		x, y, z := i%side, (i/side)%side, i/(side*side)
		r := receptorResidues[i%len(receptorResidues)]
		chain.Residues = append(chain.Residues, core.Residue{
			Name: r.residue,
			ID:   i + 1,
			Atoms: []core.Atom{{
				Name:    r.atom,
				Element: r.atom[:1],
				Position: core.Vec3{
					X: float64(x)*Spacing - half,
					Y: float64(y)*Spacing - half,
					Z: float64(z)*Spacing - half,
				},
			}},
		})
	}

	lig := core.Residue{Name: "LIG", ID: 1}
	atoms := make(map[string]forcefield.AtomEntry, ligandAtoms)
	base := make([]core.Vec3, ligandAtoms)
	for i := 0; i < ligandAtoms; i++ {
		name := fmt.Sprintf("C%d", i+1)
		charge := 0.5
		if i%2 == 1 {
			charge = -0.5
		}
		atoms[name] = forcefield.AtomEntry{Type: "CT1", Charge: charge}
		base[i] = core.Vec3{X: float64(i) * 1.5}
		lig.Atoms = append(lig.Atoms, core.Atom{Name: name, Element: "C", Position: base[i]})
	}

	s := &Scene{
		Receptor: &core.Molecule{Name: "receptor", Chains: []core.Chain{chain}},
		Ligand:   &core.Molecule{Name: "ligand", Chains: []core.Chain{{Name: "L", Residues: []core.Residue{lig}}}},
		Solvent: &core.Molecule{
			Name:          "solvent",
			IgnoreDocking: true,
			Chains: []core.Chain{{Name: "W", Residues: []core.Residue{{
				Name:  "HOH",
				ID:    1,
				Atoms: []core.Atom{{Name: "OH2", Element: "O"}},
			}}}},
		},
		base:   base,
		extent: half,
		ligand: atoms,
	}
	s.Place(StartGap)
	return s, nil
}

// ForceField returns a table covering every residue and type of the scene.
// The solvent has no entry.
func (s *Scene) ForceField() *forcefield.Table {
	ff := forcefield.NewTable()
	for _, r := range receptorResidues {
		ff.AddResidue(r.residue, map[string]forcefield.AtomEntry{
			r.atom: {Type: r.typ, Charge: r.charge},
		})
	}
	ff.AddResidue("LIG", s.ligand)
	ff.AddType("NH3", 0.2, 1.85)
	ff.AddType("OC", 0.12, 1.7)
	ff.AddType("CT1", 0.032, 2.0)
	return ff
}

// Molecules returns the scene in the order a host would hand it to Start.
func (s *Scene) Molecules() []*core.Molecule {
	return []*core.Molecule{s.Receptor, s.Ligand, s.Solvent}
}

// Place moves the ligand so that its first atom sits gap Angstrom beyond the
// receptor's +x face. Atoms are moved in place.
func (s *Scene) Place(gap float64) {
	offset := s.extent + gap
	atoms := s.Ligand.Chains[0].Residues[0].Atoms
	for i := range atoms {
		atoms[i].Position = core.Vec3{X: s.base[i].X + offset, Y: s.base[i].Y, Z: s.base[i].Z}
	}
}

// Gap returns the ligand gap at fraction t of an approach from start to end.
func Gap(start, end, t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	return start + (end-start)*t
}
