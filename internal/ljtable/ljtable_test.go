package ljtable

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molsim/dockenergy/pkg/core"
)

func param(typ string, eps, rmin float64) core.AtomParam {
	return core.AtomParam{Type: typ, TypeID: -1, Eps: eps, Rmin: rmin}
}

func TestMixAndCoefficients(t *testing.T) {
	eps, rmin := Mix(4.0, 2.0, 1.0, 1.0)
	assert.Equal(t, 2.0, eps)
	assert.Equal(t, 3.0, rmin)

	c := Coefficients(eps, rmin)
	assert.InDelta(t, 2.0*math.Pow(3.0, 12), c.A, 1e-6)
	assert.InDelta(t, 4.0*math.Pow(3.0, 6), c.B, 1e-9)
}

func TestBuild_Deduplicates(t *testing.T) {
	params := []core.AtomParam{
		param("CT1", 0.02, 2.275),
		param("NH1", 0.2, 1.85),
		param("CT1", 0.02, 2.275),
		param(core.UndefinedType, 0, 0),
	}

	tab, err := Build(params)
	require.NoError(t, err)

	assert.Equal(t, []string{"CT1", "NH1", core.UndefinedType}, tab.Types)
	assert.Equal(t, []int{0, 1, 0, 2}, tab.TypeIDs)
	assert.Equal(t, 3, tab.NumTypes())
	assert.Len(t, tab.Pairs, 9)
}

func TestBuild_Symmetric(t *testing.T) {
	params := []core.AtomParam{
		param("a", 0.1, 1.0),
		param("b", 0.3, 1.7),
		param("c", 0.05, 2.2),
		param("d", 0.9, 0.4),
	}

	tab, err := Build(params)
	require.NoError(t, err)

	for i := 0; i < tab.NumTypes(); i++ {
		for j := 0; j < tab.NumTypes(); j++ {
			assert.Equal(t, tab.At(i, j), tab.At(j, i), "pair (%d,%d)", i, j)
		}
	}
}

func TestBuild_MatchesCombinationRule(t *testing.T) {
	tab, err := Build([]core.AtomParam{param("i", 4.0, 2.0), param("j", 1.0, 1.0)})
	require.NoError(t, err)

	got := tab.ForAtoms(0, 1)
	assert.InDelta(t, 2.0*math.Pow(3.0, 12), got.A, 1e-6)
	assert.InDelta(t, 4.0*math.Pow(3.0, 6), got.B, 1e-9)

	self := tab.At(0, 0)
	want := Coefficients(4.0, 4.0)
	assert.InDelta(t, want.A, self.A, 1e-3)
	assert.InDelta(t, want.B, self.B, 1e-9)
}

func TestBuild_UndefinedTypeHasZeroCoefficients(t *testing.T) {
	tab, err := Build([]core.AtomParam{core.UndefinedParam(), param("a", 0.1, 1.0)})
	require.NoError(t, err)

	assert.Equal(t, Pair{}, tab.At(0, 0))
	assert.Equal(t, Pair{}, tab.At(0, 1))
}

func TestBuild_InconsistentType(t *testing.T) {
	_, err := Build([]core.AtomParam{param("a", 0.1, 1.0), param("a", 0.2, 1.0)})
	assert.ErrorIs(t, err, ErrInconsistentType)
}

func TestBuild_Empty(t *testing.T) {
	tab, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tab.NumTypes())
	assert.Empty(t, tab.Pairs)
}

func TestAssign(t *testing.T) {
	params := []core.AtomParam{param("a", 0.1, 1.0), param("b", 0.1, 1.0), param("a", 0.1, 1.0)}
	tab, err := Build(params)
	require.NoError(t, err)

	tab.Assign(params)
	assert.Equal(t, 0, params[0].TypeID)
	assert.Equal(t, 1, params[1].TypeID)
	assert.Equal(t, 0, params[2].TypeID)
}
