package jobs

import (
	"math"
	"testing"

	"github.com/bcdannyboy/cnpricer/models"
	"github.com/bcdannyboy/cnpricer/solver"
	"github.com/stretchr/testify/require"
)

func Test_NewJob_CallSizing(t *testing.T) {
	job := NewJob(JobRequest{Ticker: "AAPL", OptionType: "american_call", Strike: 100, Days: 30, Spot: 110, Rate: 0.04, Sigma: 0.25})

	wantSMax := 4*110.0 + 3*110*0.25*math.Sqrt(30.0/365.0)
	require.InDelta(t, wantSMax, job.SMax(), 1e-9)
	require.Equal(t, int(math.Floor(wantSMax*100)), job.SpaceSteps())
	require.Equal(t, 300, job.TimeSteps())
	require.InDelta(t, 30.0/365.0, job.Years(), 1e-15)
}

func Test_NewJob_PutSizingAndStepFloor(t *testing.T) {
	job := NewJob(JobRequest{Ticker: "MSFT", OptionType: "european_put", Strike: 40, Days: 7, Spot: 38, Sigma: 0.3})

	require.Equal(t, 60.0, job.SMax())
	require.Equal(t, 6000, job.SpaceSteps())
	require.Equal(t, 200, job.TimeSteps(), "short maturities keep the 200-step floor")
}

func Test_Job_KeyIgnoresSpotAndVol(t *testing.T) {
	a := NewJob(JobRequest{Ticker: "SPY", OptionType: "american_put", Strike: 500, Days: 14, Spot: 510, Sigma: 0.15})
	b := NewJob(JobRequest{Ticker: "SPY", OptionType: "american_put", Strike: 500, Days: 14, Spot: 480, Sigma: 0.3, MarketPrice: 9})
	c := NewJob(JobRequest{Ticker: "SPY", OptionType: "american_put", Strike: 500, Days: 15, Spot: 510, Sigma: 0.15})

	require.Equal(t, a.Key(), b.Key())
	require.NotEqual(t, a.Key(), c.Key())
}

func Test_ComputeJob_EuropeanPutNearClosedForm(t *testing.T) {
	job := NewJob(JobRequest{Ticker: "XYZ", OptionType: "european_put", Strike: 20, Days: 90, Spot: 20, Rate: 0.03, Sigma: 0.3, MarketPrice: 1.1})
	res := ComputeJob(job, ComputeOptions{})
	require.NoError(t, res.Err)

	// closed form for K=S=20, T=90/365, r=3%, sigma=30%
	require.InDelta(t, 1.1109, res.FairValue, 0.02)
	require.Equal(t, "XYZ", res.Ticker)
	require.Equal(t, 1.1, res.MarketPrice)
}

func Test_ComputeJob_ErrorKinds(t *testing.T) {
	res := ComputeJob(NewJob(JobRequest{Ticker: "BAD", OptionType: "straddle", Strike: 10, Days: 10, Spot: 10, Sigma: 0.2}), ComputeOptions{})
	require.True(t, res.Failed())
	require.ErrorIs(t, res.Err, models.ErrInvalidInstrument)

	res = ComputeJob(NewJob(JobRequest{Ticker: "ZERO", OptionType: "european_put", Strike: 10, Days: 0, Spot: 10, Sigma: 0.2}), ComputeOptions{})
	require.ErrorIs(t, res.Err, models.ErrInvalidInstrument)

	// a strike of a cent gives S_max=0.015 and J=1
	res = ComputeJob(NewJob(JobRequest{Ticker: "PENNY", OptionType: "american_put", Strike: 0.01, Days: 10, Spot: 0.01, Sigma: 0.2}), ComputeOptions{})
	require.ErrorIs(t, res.Err, solver.ErrInvalidGrid)

	res = ComputeJob(NewJob(JobRequest{Ticker: "BIG", OptionType: "european_put", Strike: 10, Days: 10, Spot: 10, Sigma: 0.2}), ComputeOptions{MaxGridNodes: 1000})
	require.ErrorIs(t, res.Err, solver.ErrInvalidGrid)
}

func Test_ComputeJob_RejectsBadSpot(t *testing.T) {
	for _, spot := range []float64{math.NaN(), math.Inf(1), -5, 0} {
		for _, typ := range []string{"european_call", "american_put"} {
			res := ComputeJob(NewJob(JobRequest{Ticker: "SPOT", OptionType: typ, Strike: 10, Days: 10, Spot: spot, Sigma: 0.2}), ComputeOptions{})
			require.True(t, res.Failed(), "spot=%g type=%s", spot, typ)
			require.ErrorIs(t, res.Err, models.ErrInvalidInstrument, "spot=%g type=%s", spot, typ)
		}
	}
}
