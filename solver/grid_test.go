package solver

import (
	"testing"

	"github.com/bcdannyboy/cnpricer/models"
	"github.com/stretchr/testify/require"
)

func newInstrument(t *testing.T, typ models.OptionType, p models.Params) models.Instrument {
	t.Helper()
	inst, err := models.NewInstrument(typ, p)
	require.NoError(t, err)
	return inst
}

func Test_BuildGrid_ShapesAndTerminalRow(t *testing.T) {
	inst := newInstrument(t, models.EuropeanPutType, models.Params{K: 10, T: 0.5, R: 0.01, Sigma: 0.3})

	g, err := BuildGrid(inst, 20, 4, 8, 0)
	require.NoError(t, err)
	require.Len(t, g.S, 9)
	require.Len(t, g.T, 5)
	require.Len(t, g.V, 5*9)

	require.Equal(t, 0.0, g.S[0])
	require.Equal(t, 20.0, g.S[8])
	require.InDelta(t, 2.5, g.S[1], 1e-12)
	require.Equal(t, 0.0, g.T[0])
	require.Equal(t, 0.5, g.T[4])

	for j, s := range g.S {
		require.Equal(t, inst.Payoff(s), g.At(4, j))
	}
	for n := 0; n < 4; n++ {
		for _, v := range g.Row(n) {
			require.Zero(t, v)
		}
	}
}

func Test_BuildGrid_RowAliasesSurface(t *testing.T) {
	inst := newInstrument(t, models.EuropeanCallType, models.Params{K: 1, T: 1, Sigma: 0.2})
	g, err := BuildGrid(inst, 4, 2, 4, 0)
	require.NoError(t, err)

	g.Row(1)[2] = 42
	require.Equal(t, 42.0, g.At(1, 2))
	require.Len(t, g.Row(1), 5)
}

func Test_BuildGrid_Rejects(t *testing.T) {
	inst := newInstrument(t, models.EuropeanCallType, models.Params{K: 1, T: 1, Sigma: 0.2})

	cases := []struct {
		name     string
		sMax     float64
		n, j     int
		maxNodes int
	}{
		{"J=1", 4, 10, 1, 0},
		{"J=0", 4, 10, 0, 0},
		{"N=0", 4, 0, 10, 0},
		{"zero S_max", 0, 10, 10, 0},
		{"over budget", 4, 10, 10, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildGrid(inst, tc.sMax, tc.n, tc.j, tc.maxNodes)
			require.ErrorIs(t, err, ErrInvalidGrid)
		})
	}
}

func Test_Grid_ValueAt(t *testing.T) {
	g := &Grid{N: 1, J: 4, SMax: 4, S: []float64{0, 1, 2, 3, 4}, V: []float64{0, 10, 20, 30, 40, 0, 0, 0, 0, 0}}

	require.Equal(t, 10.0, g.ValueAt(1.6, LookupNearest))
	require.InDelta(t, 16.0, g.ValueAt(1.6, LookupLinear), 1e-12)
	require.Equal(t, 40.0, g.ValueAt(9, LookupNearest))
	require.Equal(t, 40.0, g.ValueAt(9, LookupLinear))
	require.Equal(t, 0.0, g.ValueAt(-1, LookupLinear))
}

func Test_ParseLookup(t *testing.T) {
	l, err := ParseLookup("linear")
	require.NoError(t, err)
	require.Equal(t, LookupLinear, l)

	l, err = ParseLookup("")
	require.NoError(t, err)
	require.Equal(t, LookupNearest, l)

	_, err = ParseLookup("cubic")
	require.Error(t, err)
}
