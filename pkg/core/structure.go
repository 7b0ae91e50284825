// pkg/core/structure.go
package core

// Atom is a single atom of a loaded structure.
type Atom struct {
	Name     string
	Element  string
	Position Vec3
}

// Residue groups the atoms of one residue.
type Residue struct {
	Name  string
	ID    int
	Atoms []Atom
}

// Chain is a rigid body during docking.
type Chain struct {
	Name     string
	Residues []Residue
}

// Count returns the number of atoms in the chain.
func (c Chain) Count() int {
	n := 0
	for _, r := range c.Residues {
		n += len(r.Atoms)
	}
	return n
}

// Molecule is a loaded structure.
// LiveProcess names a real-time process already driving the molecule
// (trajectory playback, interactive simulation); empty means none.
type Molecule struct {
	Name          string
	Chains        []Chain
	LiveProcess   string
	IgnoreDocking bool
}

// Count returns the number of atoms in the molecule.
func (m Molecule) Count() int {
	n := 0
	for _, c := range m.Chains {
		n += c.Count()
	}
	return n
}

// Positions appends the atom positions of the molecules in flat order to dst.
func Positions(dst []Vec3, molecules []*Molecule) []Vec3 {
	for _, m := range molecules {
		for _, c := range m.Chains {
			for _, r := range c.Residues {
				for _, a := range r.Atoms {
					dst = append(dst, a.Position)
				}
			}
		}
	}
	return dst
}
