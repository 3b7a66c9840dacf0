package solver

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/cnpricer/models"
)

// SolveCrankNicolson fills g.V backward in time from the terminal payoff row.
//
// Each step averages the implicit and explicit discretizations of the
// Black-Scholes operator, M_L V[n] = M_R V[n+1], over the J-1 interior nodes.
// The two boundary nodes of slice n are set by the instrument first and folded
// into the right-hand side. American variants are projected onto their intrinsic
// value after every step; this is a single projection, not an iterated LCP solve.
func SolveCrankNicolson(inst models.Instrument, g *Grid) error {
	if g == nil || g.J < 2 || g.N < 1 {
		return fmt.Errorf("%w: grid must have J >= 2 and N >= 1", ErrInvalidGrid)
	}

	p := inst.Params()
	m := g.J - 1
	dt := p.T / float64(g.N)
	sq := p.Sigma * p.Sigma

	mlLower := make([]float64, m)
	mlMain := make([]float64, m)
	mlUpper := make([]float64, m)
	mrLower := make([]float64, m)
	mrMain := make([]float64, m)
	mrUpper := make([]float64, m)
	rhs := make([]float64, m)
	scratch := make([]float64, m)

	// sigma^2 (j dS)^2 dt / dS^2 collapses to sigma^2 j^2 dt
	for j := 1; j < g.J; j++ {
		fj := float64(j)
		diffusion := 0.5 * sq * fj * fj * dt
		drift := 0.5 * (p.R - p.Q) * fj * dt
		a := diffusion - drift
		b := -sq*fj*fj*dt - p.R*dt
		c := diffusion + drift

		k := j - 1
		mlLower[k], mlMain[k], mlUpper[k] = -0.5*a, 1-0.5*b, -0.5*c
		mrLower[k], mrMain[k], mrUpper[k] = 0.5*a, 1+0.5*b, 0.5*c
	}

	for n := g.N - 1; n >= 0; n-- {
		cur := g.Row(n)
		next := g.Row(n + 1)
		t := g.T[n]

		inst.ApplyBoundary(cur, g.S, t)

		for k := 0; k < m; k++ {
			rhs[k] = mrLower[k]*next[k] + mrMain[k]*next[k+1] + mrUpper[k]*next[k+2]
		}
		rhs[0] -= mlLower[0] * cur[0]
		rhs[m-1] -= mlUpper[m-1] * cur[g.J]

		if err := thomas(mlLower, mlMain, mlUpper, rhs, cur[1:g.J], scratch); err != nil {
			return fmt.Errorf("time step %d: %w", n, err)
		}

		inst.ApplyEarlyExercise(cur, g.S, t)
	}

	first := g.Row(0)
	inst.ApplyBoundary(first, g.S, g.T[0])
	inst.ApplyEarlyExercise(first, g.S, g.T[0])

	for _, v := range first {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in t=0 row", ErrArithmeticDegeneracy)
		}
	}
	return nil
}

type Lookup int

const (
	// LookupNearest reads the node at floor(S0/dS), clamped to J.
	LookupNearest Lookup = iota
	// LookupLinear interpolates between the two nodes bracketing S0.
	LookupLinear
)

func (l Lookup) String() string {
	if l == LookupLinear {
		return "linear"
	}
	return "nearest"
}

func ParseLookup(s string) (Lookup, error) {
	switch s {
	case "", "nearest":
		return LookupNearest, nil
	case "linear":
		return LookupLinear, nil
	}
	return LookupNearest, fmt.Errorf("unknown lookup mode %q", s)
}

// ValueAt reads the t=0 value at spot.
func (g *Grid) ValueAt(spot float64, lookup Lookup) float64 {
	ds := g.DS()
	row := g.Row(0)
	if spot <= 0 {
		return row[0]
	}
	idx := int(math.Floor(spot / ds))
	if idx >= g.J {
		return row[g.J]
	}
	if lookup == LookupLinear {
		w := (spot - g.S[idx]) / ds
		return (1-w)*row[idx] + w*row[idx+1]
	}
	return row[idx]
}

// Price builds a grid, solves it, and returns the t=0 value at spot.
func Price(inst models.Instrument, sMax float64, n, j int, spot float64, lookup Lookup) (float64, error) {
	g, err := BuildGrid(inst, sMax, n, j, 0)
	if err != nil {
		return 0, err
	}
	if err := SolveCrankNicolson(inst, g); err != nil {
		return 0, err
	}
	return g.ValueAt(spot, lookup), nil
}
