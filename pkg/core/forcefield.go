// pkg/core/forcefield.go
package core

// UndefinedType is the type name given to atoms missing from the force field.
const UndefinedType = "undefined"

// AtomParam holds the non-bonded parameters of one atom.
// TypeID is -1 until a parameter table assigns a dense type id.
type AtomParam struct {
	Type   string
	TypeID int
	Charge float64
	Eps    float64
	Rmin   float64
}

// UndefinedParam returns the sentinel parameter set for unknown atoms.
func UndefinedParam() AtomParam {
	return AtomParam{Type: UndefinedType, TypeID: -1}
}

// ForceField is the active force field of the host application.
type ForceField interface {
	// HasResidue reports whether the residue is known.
	HasResidue(residue string) bool
	// ResidueAtom returns the atom type and partial charge of an atom within a residue.
	ResidueAtom(residue, atom string) (typ string, charge float64, ok bool)
	// TypeParams returns epsilon and Rmin/2 for an atom type.
	TypeParams(typ string) (eps, rmin float64, ok bool)
}
