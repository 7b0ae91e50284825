package forcefield

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molsim/dockenergy/pkg/core"
)

func newTestTable() *Table {
	ff := NewTable()
	ff.AddResidue("ALA", map[string]AtomEntry{
		"N":  {Type: "NH1", Charge: -0.47},
		"CA": {Type: "CT1", Charge: 0.07},
	})
	ff.AddType("NH1", 0.2, 1.85)
	ff.AddType("CT1", 0.02, 2.275)
	return ff
}

func molecule(name string, residues ...core.Residue) *core.Molecule {
	return &core.Molecule{
		Name:   name,
		Chains: []core.Chain{{Name: "A", Residues: residues}},
	}
}

func residue(name string, atoms ...string) core.Residue {
	r := core.Residue{Name: name, ID: 1}
	for _, a := range atoms {
		r.Atoms = append(r.Atoms, core.Atom{Name: a})
	}
	return r
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestResolve_AllKnown(t *testing.T) {
	mols := []*core.Molecule{molecule("m1", residue("ALA", "N", "CA"))}

	res, err := Resolve(mols, newTestTable(), quietLogger())
	require.NoError(t, err)

	require.Len(t, res.Params, 2)
	assert.Equal(t, 0, res.Undefined)
	assert.False(t, res.Degraded())

	assert.Equal(t, "NH1", res.Params[0].Type)
	assert.Equal(t, -0.47, res.Params[0].Charge)
	assert.Equal(t, 0.2, res.Params[0].Eps)
	assert.Equal(t, 1.85, res.Params[0].Rmin)
	assert.Equal(t, -1, res.Params[0].TypeID)
	assert.Equal(t, "CT1", res.Params[1].Type)
}

func TestResolve_UnknownAtomInKnownResidue(t *testing.T) {
	mols := []*core.Molecule{molecule("m1", residue("ALA", "N", "XX"))}

	res, err := Resolve(mols, newTestTable(), quietLogger())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Undefined)
	assert.Equal(t, core.UndefinedParam(), res.Params[1])
	assert.Equal(t, 0.5, res.Fraction())
	assert.False(t, res.Degraded(), "exactly half is not degraded")
}

func TestResolve_UnknownResidue(t *testing.T) {
	mols := []*core.Molecule{molecule("m1", residue("HOH", "O", "H1", "H2"), residue("ALA", "N"))}

	res, err := Resolve(mols, newTestTable(), quietLogger())
	require.NoError(t, err)

	require.Len(t, res.Params, 4)
	assert.Equal(t, 3, res.Undefined)
	assert.True(t, res.Degraded())
	for i := 0; i < 3; i++ {
		assert.Equal(t, core.UndefinedType, res.Params[i].Type)
		assert.Zero(t, res.Params[i].Charge)
		assert.Zero(t, res.Params[i].Eps)
		assert.Zero(t, res.Params[i].Rmin)
	}
	assert.Equal(t, "NH1", res.Params[3].Type)
}

func TestResolve_TypeWithoutParameters(t *testing.T) {
	ff := newTestTable()
	ff.AddResidue("GLY", map[string]AtomEntry{"CA": {Type: "CT2", Charge: 0.1}})
	mols := []*core.Molecule{molecule("m1", residue("GLY", "CA"))}

	res, err := Resolve(mols, ff, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Undefined)
	assert.Equal(t, core.UndefinedParam(), res.Params[0])
}

func TestResolve_NoMatchesIsDegraded(t *testing.T) {
	mols := []*core.Molecule{
		molecule("m1", residue("UNK", "C1", "C2")),
		molecule("m2", residue("UNK", "C1")),
	}

	res, err := Resolve(mols, NewTable(), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Undefined)
	assert.Equal(t, 1.0, res.Fraction())
	assert.True(t, res.Degraded())
	assert.Equal(t, []float64{0, 0, 0}, res.Charges())
}

func TestResolve_PreservesFlatOrder(t *testing.T) {
	mols := []*core.Molecule{
		molecule("m1", residue("ALA", "CA")),
		molecule("m2", residue("ALA", "N")),
	}

	res, err := Resolve(mols, newTestTable(), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.07, -0.47}, res.Charges())
}

func TestResolve_NilForceField(t *testing.T) {
	_, err := Resolve(nil, nil, quietLogger())
	assert.ErrorIs(t, err, ErrNoForceField)
}

func TestResolve_EmptyInput(t *testing.T) {
	res, err := Resolve(nil, newTestTable(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total())
	assert.Equal(t, 0.0, res.Fraction())
	assert.False(t, res.Degraded())
}

func TestTable_Lookups(t *testing.T) {
	ff := newTestTable()

	assert.True(t, ff.HasResidue("ALA"))
	assert.False(t, ff.HasResidue("GLY"))

	typ, charge, ok := ff.ResidueAtom("ALA", "CA")
	require.True(t, ok)
	assert.Equal(t, "CT1", typ)
	assert.Equal(t, 0.07, charge)

	_, _, ok = ff.ResidueAtom("GLY", "CA")
	assert.False(t, ok)

	eps, rmin, ok := ff.TypeParams("NH1")
	require.True(t, ok)
	assert.Equal(t, 0.2, eps)
	assert.Equal(t, 1.85, rmin)

	_, _, ok = ff.TypeParams("missing")
	assert.False(t, ok)
}

func TestTable_AddResidueCopiesInput(t *testing.T) {
	ff := NewTable()
	atoms := map[string]AtomEntry{"O": {Type: "OT", Charge: -0.8}}
	ff.AddResidue("HOH", atoms)
	delete(atoms, "O")

	_, _, ok := ff.ResidueAtom("HOH", "O")
	assert.True(t, ok)
}

var _ core.ForceField = (*Table)(nil)
