package jobs

import (
	"math"
	"strings"

	"github.com/bcdannyboy/cnpricer/models"
)

const (
	daysPerYear     = 365.0
	stepsPerDay     = 10
	minTimeSteps    = 200
	nodesPerDollar  = 100
	callSpotFactor  = 4.0
	callSigmaBuffer = 3.0
	putStrikeFactor = 1.5
)

// JobKey is the deduplication identity of a job. Spot and volatility are
// deliberately absent: a re-quote of the same contract is the same job.
type JobKey struct {
	Ticker     string  `json:"ticker"`
	OptionType string  `json:"option_type"`
	Strike     float64 `json:"K"`
	Days       int     `json:"T"`
}

// Job is one pricing request. Grid sizing is derived once in NewJob.
type Job struct {
	Ticker        string
	OptionType    string
	Strike        float64
	Days          int
	Spot          float64
	MarketPrice   float64
	Rate          float64
	Sigma         float64
	DividendYield float64

	sMax float64
	j    int
	n    int
}

// JobRequest mirrors the arguments of a submission. Days is calendar days to expiry.
type JobRequest struct {
	Ticker        string  `json:"ticker"`
	OptionType    string  `json:"option_type"`
	Strike        float64 `json:"K"`
	Days          int     `json:"T"`
	Spot          float64 `json:"current_price"`
	MarketPrice   float64 `json:"current_option_price"`
	Rate          float64 `json:"r"`
	Sigma         float64 `json:"sigma"`
	DividendYield float64 `json:"q"`
}

func NewJob(req JobRequest) Job {
	job := Job{
		Ticker:        req.Ticker,
		OptionType:    req.OptionType,
		Strike:        req.Strike,
		Days:          req.Days,
		Spot:          req.Spot,
		MarketPrice:   req.MarketPrice,
		Rate:          req.Rate,
		Sigma:         req.Sigma,
		DividendYield: req.DividendYield,
	}
	job.sMax = job.calculateSMax()
	job.j = int(math.Floor(job.sMax * nodesPerDollar))
	job.n = max(job.Days*stepsPerDay, minTimeSteps)
	return job
}

func (j Job) Key() JobKey {
	return JobKey{Ticker: j.Ticker, OptionType: j.OptionType, Strike: j.Strike, Days: j.Days}
}

func (j Job) SMax() float64 { return j.sMax }
func (j Job) SpaceSteps() int { return j.j }
func (j Job) TimeSteps() int { return j.n }

func (j Job) Years() float64 {
	return float64(j.Days) / daysPerYear
}

func (j Job) Params() models.Params {
	return models.Params{K: j.Strike, T: j.Years(), R: j.Rate, Sigma: j.Sigma, Q: j.DividendYield}
}

func (j Job) isCall() bool {
	return strings.HasSuffix(strings.ToLower(j.OptionType), "call")
}

// calculateSMax caps the price axis. Calls get four times the larger of spot and
// strike plus a three standard deviation lognormal move; puts are worthless well
// above the strike.
func (j Job) calculateSMax() float64 {
	if j.isCall() {
		base := math.Max(j.Spot, j.Strike) * callSpotFactor
		buffer := j.Spot * j.Sigma * math.Sqrt(j.Years()) * callSigmaBuffer
		return base + buffer
	}
	return j.Strike * putStrikeFactor
}
