package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidInstrument = errors.New("invalid instrument")

type OptionType string

const (
	EuropeanCallType OptionType = "european_call"
	EuropeanPutType  OptionType = "european_put"
	AmericanCallType OptionType = "american_call"
	AmericanPutType  OptionType = "american_put"
)

func ParseOptionType(s string) (OptionType, error) {
	switch t := OptionType(strings.ToLower(strings.TrimSpace(s))); t {
	case EuropeanCallType, EuropeanPutType, AmericanCallType, AmericanPutType:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown option type %q", ErrInvalidInstrument, s)
}

func (t OptionType) IsCall() bool {
	return t == EuropeanCallType || t == AmericanCallType
}

func (t OptionType) IsAmerican() bool {
	return t == AmericanCallType || t == AmericanPutType
}

// Params are the contract and market inputs shared by every variant. T is in years.
type Params struct {
	K     float64
	T     float64
	R     float64
	Sigma float64
	Q     float64
}

func (p Params) validate() error {
	if !(p.K > 0) || !(p.T > 0) || !(p.Sigma > 0) {
		return fmt.Errorf("%w: K=%g T=%g sigma=%g must be positive", ErrInvalidInstrument, p.K, p.T, p.Sigma)
	}
	return nil
}

// Instrument is the payoff and boundary contract consumed by the PDE solver.
// ApplyBoundary writes v[0] and v[len(v)-1] for calendar time t; ApplyEarlyExercise
// floors every node at intrinsic value and is a no-op for European variants.
type Instrument interface {
	Type() OptionType
	Params() Params
	Payoff(s float64) float64
	ApplyBoundary(v, s []float64, t float64)
	ApplyEarlyExercise(v, s []float64, t float64)
}

func NewInstrument(t OptionType, p Params) (Instrument, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	switch t {
	case EuropeanCallType:
		return &EuropeanCall{option{p}}, nil
	case EuropeanPutType:
		return &EuropeanPut{option{p}}, nil
	case AmericanCallType:
		return &AmericanCall{option{p}}, nil
	case AmericanPutType:
		return &AmericanPut{option{p}}, nil
	}
	return nil, fmt.Errorf("%w: unknown option type %q", ErrInvalidInstrument, t)
}

type option struct {
	p Params
}

func (o option) Params() Params { return o.p }

// discounts returns e^{-rτ} and e^{-qτ} for the remaining life at time t.
func (o option) discounts(t float64) (float64, float64) {
	tau := o.p.T - t
	return math.Exp(-o.p.R * tau), math.Exp(-o.p.Q * tau)
}

func (o option) callPayoff(s float64) float64 { return math.Max(s-o.p.K, 0) }
func (o option) putPayoff(s float64) float64  { return math.Max(o.p.K-s, 0) }

type EuropeanCall struct{ option }

func (EuropeanCall) Type() OptionType { return EuropeanCallType }

func (c EuropeanCall) Payoff(s float64) float64 { return c.callPayoff(s) }

func (c EuropeanCall) ApplyBoundary(v, s []float64, t float64) {
	dr, dq := c.discounts(t)
	last := len(v) - 1
	v[0] = 0
	v[last] = s[last]*dq - c.p.K*dr
}

func (EuropeanCall) ApplyEarlyExercise(v, s []float64, t float64) {}

type EuropeanPut struct{ option }

func (EuropeanPut) Type() OptionType { return EuropeanPutType }

func (p EuropeanPut) Payoff(s float64) float64 { return p.putPayoff(s) }

func (p EuropeanPut) ApplyBoundary(v, s []float64, t float64) {
	dr, _ := p.discounts(t)
	v[0] = p.p.K * dr
	v[len(v)-1] = 0
}

func (EuropeanPut) ApplyEarlyExercise(v, s []float64, t float64) {}

type AmericanCall struct{ option }

func (AmericanCall) Type() OptionType { return AmericanCallType }

func (c AmericanCall) Payoff(s float64) float64 { return c.callPayoff(s) }

func (c AmericanCall) ApplyBoundary(v, s []float64, t float64) {
	dr, dq := c.discounts(t)
	last := len(v) - 1
	v[0] = 0
	// deep in the money the holder can always exercise immediately
	v[last] = math.Max(s[last]-c.p.K, s[last]*dq-c.p.K*dr)
}

func (c AmericanCall) ApplyEarlyExercise(v, s []float64, t float64) {
	for j := range v {
		if iv := c.callPayoff(s[j]); v[j] < iv {
			v[j] = iv
		}
	}
}

type AmericanPut struct{ option }

func (AmericanPut) Type() OptionType { return AmericanPutType }

func (p AmericanPut) Payoff(s float64) float64 { return p.putPayoff(s) }

func (p AmericanPut) ApplyBoundary(v, s []float64, t float64) {
	dr, _ := p.discounts(t)
	v[0] = math.Max(p.p.K-s[0], p.p.K*dr-s[0])
	v[len(v)-1] = 0
}

func (p AmericanPut) ApplyEarlyExercise(v, s []float64, t float64) {
	for j := range v {
		if iv := p.putPayoff(s[j]); v[j] < iv {
			v[j] = iv
		}
	}
}
