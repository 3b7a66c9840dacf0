package jobs

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/cnpricer/models"
	"github.com/bcdannyboy/cnpricer/solver"
)

// ComputeOptions tunes a single job solve.
type ComputeOptions struct {
	Lookup       solver.Lookup
	MaxGridNodes int
}

// ComputeJob builds the job's grid, runs the Crank-Nicolson solver over it and reads
// the fair value at spot from the t=0 row. The grid is dropped on return.
func ComputeJob(job Job, opts ComputeOptions) JobResult {
	res := newResult(job)

	if math.IsNaN(job.Spot) || math.IsInf(job.Spot, 0) || job.Spot <= 0 {
		res.Err = fmt.Errorf("%w: spot must be positive and finite, got %g", models.ErrInvalidInstrument, job.Spot)
		return res
	}

	typ, err := models.ParseOptionType(job.OptionType)
	if err != nil {
		res.Err = err
		return res
	}
	inst, err := models.NewInstrument(typ, job.Params())
	if err != nil {
		res.Err = err
		return res
	}

	g, err := solver.BuildGrid(inst, job.SMax(), job.TimeSteps(), job.SpaceSteps(), opts.MaxGridNodes)
	if err != nil {
		res.Err = fmt.Errorf("%s %s: %w", job.Ticker, typ, err)
		return res
	}
	if err := solver.SolveCrankNicolson(inst, g); err != nil {
		res.Err = fmt.Errorf("%s %s: %w", job.Ticker, typ, err)
		return res
	}

	res.FairValue = g.ValueAt(job.Spot, opts.Lookup)
	return res
}
