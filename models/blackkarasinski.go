package models

import (
	"math"

	"github.com/jsterling/ratecal/term"
)

// BlackKarasinski is the lognormal short-rate model
// d ln(r) = (theta(t) - a ln(r)) dt + sigma dW. It has no affine bond
// price, so pricing goes through the lattice.
type BlackKarasinski struct {
	a     float64
	sigma float64
	curve term.YieldCurve
}

func NewBlackKarasinski(curve term.YieldCurve, a, sigma float64) *BlackKarasinski {
	return &BlackKarasinski{a: a, sigma: sigma, curve: curve}
}

func (m *BlackKarasinski) Params() []float64 { return []float64{m.a, m.sigma} }

func (m *BlackKarasinski) SetParams(p []float64) error {
	if err := checkParamCount(len(p), 2, "Black-Karasinski"); err != nil {
		return err
	}
	m.a, m.sigma = p[0], p[1]
	return nil
}

func (m *BlackKarasinski) Constraint() Constraint { return PositiveConstraint{} }
func (m *BlackKarasinski) Curve() term.YieldCurve { return m.curve }
func (m *BlackKarasinski) MeanReversion() float64 { return m.a }
func (m *BlackKarasinski) Volatility() float64 { return m.sigma }

func (m *BlackKarasinski) ShortRateFromState(x float64) float64 {
	return math.Exp(x)
}
