package forcefield

import (
	"sync"
)

// TypeParams are the Lennard-Jones parameters of one atom type.
type TypeParams struct {
	Eps  float64
	Rmin float64
}

// AtomEntry is the type and partial charge of an atom within a residue.
type AtomEntry struct {
	Type   string
	Charge float64
}

// Table is an in-memory force field populated by the host application.
type Table struct {
	mu       sync.RWMutex
	residues map[string]map[string]AtomEntry
	types    map[string]TypeParams
}

// NewTable creates an empty force field table.
func NewTable() *Table {
	return &Table{
		residues: make(map[string]map[string]AtomEntry),
		types:    make(map[string]TypeParams),
	}
}

// AddResidue registers (or replaces) the atoms of a residue.
func (t *Table) AddResidue(name string, atoms map[string]AtomEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res := make(map[string]AtomEntry, len(atoms))
	for k, v := range atoms {
		res[k] = v
	}
	t.residues[name] = res
}

// AddType registers (or replaces) the parameters of an atom type.
func (t *Table) AddType(name string, eps, rmin float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.types[name] = TypeParams{Eps: eps, Rmin: rmin}
}

// HasResidue implements core.ForceField.
func (t *Table) HasResidue(residue string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.residues[residue]
	return ok
}

// ResidueAtom implements core.ForceField.
func (t *Table) ResidueAtom(residue, atom string) (string, float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res, ok := t.residues[residue]
	if !ok {
		return "", 0, false
	}
	a, ok := res[atom]
	if !ok {
		return "", 0, false
	}
	return a.Type, a.Charge, true
}

// TypeParams implements core.ForceField.
func (t *Table) TypeParams(typ string) (float64, float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.types[typ]
	return p.Eps, p.Rmin, ok
}
