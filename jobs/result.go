package jobs

import (
	"github.com/shopspring/decimal"
	"github.com/xhhuango/json"
)

// JobResult is produced exactly once per drained job. A failed job keeps its
// identifying fields and carries the cause in Err.
type JobResult struct {
	Ticker      string
	OptionType  string
	Strike      float64
	Days        int
	Spot        float64
	MarketPrice float64
	FairValue   float64
	Err         error
}

func newResult(job Job) JobResult {
	return JobResult{
		Ticker:      job.Ticker,
		OptionType:  job.OptionType,
		Strike:      job.Strike,
		Days:        job.Days,
		Spot:        job.Spot,
		MarketPrice: job.MarketPrice,
	}
}

func (r JobResult) Failed() bool {
	return r.Err != nil
}

func (r JobResult) Key() JobKey {
	return JobKey{Ticker: r.Ticker, OptionType: r.OptionType, Strike: r.Strike, Days: r.Days}
}

// Edge is fair value minus the market quote, rounded to 4 decimal places.
func (r JobResult) Edge() decimal.Decimal {
	return decimal.NewFromFloat(r.FairValue).Sub(decimal.NewFromFloat(r.MarketPrice)).Round(4)
}

type resultJSON struct {
	Ticker      string   `json:"ticker"`
	OptionType  string   `json:"option_type"`
	Strike      float64  `json:"K"`
	Days        int      `json:"T"`
	Spot        float64  `json:"current_price"`
	MarketPrice float64  `json:"current_option_price"`
	FairValue   *float64 `json:"fair_value,omitempty"`
	Edge        string   `json:"edge,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func (r JobResult) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Ticker:      r.Ticker,
		OptionType:  r.OptionType,
		Strike:      r.Strike,
		Days:        r.Days,
		Spot:        r.Spot,
		MarketPrice: r.MarketPrice,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	} else {
		fv := r.FairValue
		out.FairValue = &fv
		out.Edge = r.Edge().String()
	}
	return json.Marshal(out)
}
