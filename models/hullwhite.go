package models

import (
	"math"

	"github.com/jsterling/ratecal/term"
)

// HullWhite is the one-factor Hull-White (extended Vasicek) model
// dr = (theta(t) - a r) dt + sigma dW, fitted to the discount curve.
type HullWhite struct {
	a     float64
	sigma float64
	curve term.YieldCurve
}

func NewHullWhite(curve term.YieldCurve, a, sigma float64) *HullWhite {
	return &HullWhite{a: a, sigma: sigma, curve: curve}
}

func (m *HullWhite) Params() []float64 { return []float64{m.a, m.sigma} }

func (m *HullWhite) SetParams(p []float64) error {
	if err := checkParamCount(len(p), 2, "Hull-White"); err != nil {
		return err
	}
	m.a, m.sigma = p[0], p[1]
	return nil
}

func (m *HullWhite) Constraint() Constraint { return PositiveConstraint{} }
func (m *HullWhite) Curve() term.YieldCurve { return m.curve }
func (m *HullWhite) MeanReversion() float64 { return m.a }
func (m *HullWhite) Volatility() float64 { return m.sigma }
func (m *HullWhite) ShortRateFromState(x float64) float64 { return x }

// B returns the deterministic bond exposure factor (1-exp(-a(T-t)))/a.
func (m *HullWhite) B(t, T float64) float64 {
	if m.a < 1e-10 {
		return T - t
	}
	return (1 - math.Exp(-m.a*(T-t))) / m.a
}

// A is the curve-fitting coefficient of the affine bond price
// P(t,T) = A(t,T) exp(-B(t,T) r).
func (m *HullWhite) A(t, T float64) float64 {
	c := m.curve
	b := m.B(t, T)
	f0 := term.InstantaneousForward(c, t)
	logA := math.Log(c.DiscountAt(T)/c.DiscountAt(t)) + b*f0
	logA -= m.sigma * m.sigma / (4 * m.a) * (1 - math.Exp(-2*m.a*t)) * b * b
	return math.Exp(logA)
}

// DiscountBond prices P(t,T) given the short rate at t.
func (m *HullWhite) DiscountBond(t, T, rate float64) float64 {
	return m.A(t, T) * math.Exp(-m.B(t, T)*rate)
}

// DiscountBondOption prices a European call or put with the given strike,
// expiring at maturity, on a zero-coupon bond maturing at bondMaturity.
func (m *HullWhite) DiscountBondOption(call bool, strike, maturity, bondMaturity float64) float64 {
	c := m.curve
	discT0 := c.DiscountAt(maturity)
	discT := c.DiscountAt(bondMaturity)
	v := m.sigma * math.Sqrt((1-math.Exp(-2*m.a*maturity))/(2*m.a)) * m.B(maturity, bondMaturity)
	if v < 1e-12 {
		// Deterministic limit: discounted intrinsic value.
		if call {
			return math.Max(discT-strike*discT0, 0)
		}
		return math.Max(strike*discT0-discT, 0)
	}
	h := math.Log(discT/(strike*discT0))/v + 0.5*v
	if call {
		return discT*stdNormalCDF(h) - strike*discT0*stdNormalCDF(h-v)
	}
	return strike*discT0*stdNormalCDF(v-h) - discT*stdNormalCDF(-h)
}

func stdNormalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
