package models

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

type BSMResult struct {
	Price float64
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// BlackScholes prices a European option in closed form with continuous dividend yield q.
// It is the reference the PDE solver converges to for the European variants.
func BlackScholes(s float64, p Params, isCall bool) BSMResult {
	if p.T <= 0 || p.Sigma <= 0 {
		intrinsic := math.Max(s-p.K, 0)
		if !isCall {
			intrinsic = math.Max(p.K-s, 0)
		}
		return BSMResult{Price: intrinsic}
	}

	sqrtT := math.Sqrt(p.T)
	d1 := (math.Log(s/p.K) + (p.R-p.Q+0.5*p.Sigma*p.Sigma)*p.T) / (p.Sigma * sqrtT)
	d2 := d1 - p.Sigma*sqrtT

	dr := math.Exp(-p.R * p.T)
	dq := math.Exp(-p.Q * p.T)
	n := distuv.UnitNormal

	var res BSMResult
	res.Gamma = dq * n.Prob(d1) / (s * p.Sigma * sqrtT)
	res.Vega = s * dq * n.Prob(d1) * sqrtT
	decay := -s * dq * n.Prob(d1) * p.Sigma / (2 * sqrtT)
	if isCall {
		res.Price = s*dq*n.CDF(d1) - p.K*dr*n.CDF(d2)
		res.Delta = dq * n.CDF(d1)
		res.Theta = decay - p.R*p.K*dr*n.CDF(d2) + p.Q*s*dq*n.CDF(d1)
		res.Rho = p.K * p.T * dr * n.CDF(d2)
	} else {
		res.Price = p.K*dr*n.CDF(-d2) - s*dq*n.CDF(-d1)
		res.Delta = dq * (n.CDF(d1) - 1)
		res.Theta = decay + p.R*p.K*dr*n.CDF(-d2) - p.Q*s*dq*n.CDF(-d1)
		res.Rho = -p.K * p.T * dr * n.CDF(-d2)
	}
	return res
}
