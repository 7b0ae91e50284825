// pkg/core/energy.go
package core

// Energy is the result of one complete non-bonded pass, in kcal/mol.
type Energy struct {
	Elec float32
	Vdw  float32
}

// Total returns Elec + Vdw.
func (e Energy) Total() float32 {
	return e.Elec + e.Vdw
}
