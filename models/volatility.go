package models

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

var ErrInsufficientHistory = errors.New("insufficient price history")

// CloseToCloseVolatility annualizes the sample standard deviation of daily log returns.
func CloseToCloseVolatility(closes []float64) (float64, error) {
	if len(closes) < 3 {
		return 0, ErrInsufficientHistory
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	if len(returns) < 2 {
		return 0, ErrInsufficientHistory
	}

	return stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear), nil
}

// YangZhangVolatility combines overnight, open-to-close and Rogers-Satchell variances.
func YangZhangVolatility(opens, highs, lows, closes []float64) (float64, error) {
	n := len(opens)
	if n < 3 || n != len(highs) || n != len(lows) || n != len(closes) {
		return 0, ErrInsufficientHistory
	}

	overnight := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		overnight = append(overnight, math.Log(opens[i]/closes[i-1]))
	}
	openClose := make([]float64, n)
	for i := 0; i < n; i++ {
		openClose[i] = math.Log(closes[i] / opens[i])
	}
	rs := rogersSatchellVariance(opens, highs, lows, closes)

	k := 0.34 / (1.34 + (float64(n)+1)/(float64(n)-1))
	v := stat.Variance(overnight, nil) + k*stat.Variance(openClose, nil) + (1-k)*rs
	if v < 0 || math.IsNaN(v) {
		return 0, ErrInsufficientHistory
	}

	return math.Sqrt(v * tradingDaysPerYear), nil
}

// ParkinsonVolatility estimates volatility from the daily high-low range alone.
func ParkinsonVolatility(highs, lows []float64) (float64, error) {
	n := len(highs)
	if n < 2 || n != len(lows) {
		return 0, ErrInsufficientHistory
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		logRatio := math.Log(highs[i] / lows[i])
		sum += logRatio * logRatio
	}

	return math.Sqrt(sum / (4 * float64(n) * math.Ln2) * tradingDaysPerYear), nil
}

func GarmanKlassVolatility(opens, highs, lows, closes []float64) (float64, error) {
	n := len(opens)
	if n < 2 || n != len(highs) || n != len(lows) || n != len(closes) {
		return 0, ErrInsufficientHistory
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		hl := math.Log(highs[i] / lows[i])
		co := math.Log(closes[i] / opens[i])
		sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
	}
	if sum < 0 {
		return 0, ErrInsufficientHistory
	}

	return math.Sqrt(sum / float64(n) * tradingDaysPerYear), nil
}

// RogersSatchellVolatility is drift-independent, unlike Parkinson and Garman-Klass.
func RogersSatchellVolatility(opens, highs, lows, closes []float64) (float64, error) {
	n := len(opens)
	if n < 2 || n != len(highs) || n != len(lows) || n != len(closes) {
		return 0, ErrInsufficientHistory
	}
	return math.Sqrt(rogersSatchellVariance(opens, highs, lows, closes) * tradingDaysPerYear), nil
}

func rogersSatchellVariance(opens, highs, lows, closes []float64) float64 {
	sum := 0.0
	for i := range opens {
		sum += math.Log(highs[i]/closes[i])*math.Log(highs[i]/opens[i]) +
			math.Log(lows[i]/closes[i])*math.Log(lows[i]/opens[i])
	}
	return sum / float64(len(opens))
}
