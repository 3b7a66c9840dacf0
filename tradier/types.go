package tradier

type QuoteHistory struct {
	History struct {
		Day []Day `json:"day"`
	} `json:"history"`
}

type Day struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int     `json:"volume"`
}

// Closes returns the closing prices in date order.
func (q *QuoteHistory) Closes() []float64 {
	closes := make([]float64, len(q.History.Day))
	for i, d := range q.History.Day {
		closes[i] = d.Close
	}
	return closes
}

// OHLC splits the history into open, high, low and close series.
func (q *QuoteHistory) OHLC() (open, high, low, close []float64) {
	n := len(q.History.Day)
	open, high, low, close = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, d := range q.History.Day {
		open[i], high[i], low[i], close[i] = d.Open, d.High, d.Low, d.Close
	}
	return open, high, low, close
}

// LastClose is the most recent close, or false when the history is empty.
func (q *QuoteHistory) LastClose() (float64, bool) {
	days := q.History.Day
	if len(days) == 0 {
		return 0, false
	}
	return days[len(days)-1].Close, true
}

type OptionExpirations struct {
	Expirations struct {
		Expiration []struct {
			Date           string `json:"date"`
			ContractSize   int    `json:"contract_size"`
			ExpirationType string `json:"expiration_type"`
		} `json:"expiration"`
	} `json:"expirations"`
}

type Option struct {
	Symbol         string   `json:"symbol"`
	Description    string   `json:"description"`
	Type           string   `json:"type"`
	Last           *float64 `json:"last"`
	Volume         int      `json:"volume"`
	Bid            float64  `json:"bid"`
	Ask            float64  `json:"ask"`
	Underlying     string   `json:"underlying"`
	Strike         float64  `json:"strike"`
	OpenInterest   int      `json:"open_interest"`
	ContractSize   int      `json:"contract_size"`
	ExpirationDate string   `json:"expiration_date"`
	ExpirationType string   `json:"expiration_type"`
	OptionType     string   `json:"option_type"`
	RootSymbol     string   `json:"root_symbol"`
	Greeks         *struct {
		Delta  float64 `json:"delta"`
		Gamma  float64 `json:"gamma"`
		Theta  float64 `json:"theta"`
		Vega   float64 `json:"vega"`
		MidIv  float64 `json:"mid_iv"`
		SmvVol float64 `json:"smv_vol"`
	} `json:"greeks"`
}

// MarketPrice is the bid/ask mid when both sides are quoted, otherwise the last
// trade. ok is false when neither is available.
func (o Option) MarketPrice() (price float64, ok bool) {
	if o.Bid > 0 && o.Ask > 0 {
		return (o.Bid + o.Ask) / 2, true
	}
	if o.Last != nil && *o.Last > 0 {
		return *o.Last, true
	}
	return 0, false
}

type OptionChain struct {
	Options struct {
		Option []Option `json:"option"`
	} `json:"options"`
	ExpirationDate string `json:"expiration_date"`
	DTE            int    `json:"-"`
}
