package solver

import (
	"errors"
	"fmt"

	"github.com/bcdannyboy/cnpricer/models"
	"gonum.org/v1/gonum/floats"
)

var (
	ErrInvalidGrid          = errors.New("invalid grid")
	ErrArithmeticDegeneracy = errors.New("arithmetic degeneracy")
)

// Grid is the discretized price/time domain of one solve. V is row-major by time
// then space, so row n holds the option values for every price node at t[n].
type Grid struct {
	N    int
	J    int
	SMax float64
	S    []float64
	T    []float64
	V    []float64
}

// BuildGrid allocates the axes and value surface and seeds the terminal row with
// the payoff. maxNodes bounds (N+1)*(J+1); zero disables the check.
func BuildGrid(inst models.Instrument, sMax float64, n, j, maxNodes int) (*Grid, error) {
	if j < 2 || n < 1 {
		return nil, fmt.Errorf("%w: need J >= 2 and N >= 1, got J=%d N=%d", ErrInvalidGrid, j, n)
	}
	if !(sMax > 0) {
		return nil, fmt.Errorf("%w: S_max must be positive, got %g", ErrInvalidGrid, sMax)
	}
	nodes := (n + 1) * (j + 1)
	if maxNodes > 0 && nodes > maxNodes {
		return nil, fmt.Errorf("%w: %d nodes exceeds budget of %d", ErrInvalidGrid, nodes, maxNodes)
	}

	g := &Grid{
		N:    n,
		J:    j,
		SMax: sMax,
		S:    floats.Span(make([]float64, j+1), 0, sMax),
		T:    floats.Span(make([]float64, n+1), 0, inst.Params().T),
		V:    make([]float64, nodes),
	}

	terminal := g.Row(n)
	for k, s := range g.S {
		terminal[k] = inst.Payoff(s)
	}
	return g, nil
}

// Row returns the value slice at time index n. It aliases V.
func (g *Grid) Row(n int) []float64 {
	w := g.J + 1
	return g.V[n*w : (n+1)*w : (n+1)*w]
}

func (g *Grid) At(n, j int) float64 {
	return g.V[n*(g.J+1)+j]
}

func (g *Grid) DS() float64 {
	return g.SMax / float64(g.J)
}
