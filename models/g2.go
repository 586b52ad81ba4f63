package models

import (
	"math"

	"github.com/jsterling/ratecal/term"
)

// G2 is the two-additive-factor Gaussian model
// r = x + y + phi(t), dx = -a x dt + sigma dW1, dy = -b y dt + eta dW2,
// dW1 dW2 = rho dt, fitted to the discount curve through phi.
type G2 struct {
	a, sigma float64
	b, eta   float64
	rho      float64
	curve    term.YieldCurve
}

func NewG2(curve term.YieldCurve, a, sigma, b, eta, rho float64) *G2 {
	return &G2{a: a, sigma: sigma, b: b, eta: eta, rho: rho, curve: curve}
}

func (m *G2) Params() []float64 {
	return []float64{m.a, m.sigma, m.b, m.eta, m.rho}
}

func (m *G2) SetParams(p []float64) error {
	if err := checkParamCount(len(p), 5, "G2++"); err != nil {
		return err
	}
	m.a, m.sigma, m.b, m.eta, m.rho = p[0], p[1], p[2], p[3], p[4]
	return nil
}

func (m *G2) Constraint() Constraint {
	return BoundaryConstraint{
		Low:  []float64{1e-8, 1e-8, 1e-8, 1e-8, -1},
		High: []float64{math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1), 1},
	}
}

func (m *G2) Curve() term.YieldCurve { return m.curve }

func (m *G2) A1() float64 { return m.a }
func (m *G2) Sigma() float64 { return m.sigma }
func (m *G2) B2() float64 { return m.b }
func (m *G2) Eta() float64 { return m.eta }
func (m *G2) Rho() float64 { return m.rho }

// Beta returns (1-exp(-speed*span))/speed.
func Beta(speed, span float64) float64 {
	if speed < 1e-10 {
		return span
	}
	return (1 - math.Exp(-speed*span)) / speed
}

// v computes the integrated variance of ln P(t,T) contributions used by the
// bond price adjustment (Brigo-Mercurio V(t,T)).
func (m *G2) v(t, T float64) float64 {
	span := T - t
	expA := math.Exp(-m.a * span)
	expB := math.Exp(-m.b * span)

	first := m.sigma * m.sigma / (m.a * m.a) *
		(span + 2/m.a*expA - 1/(2*m.a)*expA*expA - 3/(2*m.a))
	second := m.eta * m.eta / (m.b * m.b) *
		(span + 2/m.b*expB - 1/(2*m.b)*expB*expB - 3/(2*m.b))
	third := 2 * m.rho * m.sigma * m.eta / (m.a * m.b) *
		(span + (expA-1)/m.a + (expB-1)/m.b - (math.Exp(-(m.a+m.b)*span)-1)/(m.a+m.b))
	return first + second + third
}

// A is the curve-fitting coefficient of
// P(t,T) = A(t,T) exp(-Beta(a,T-t) x - Beta(b,T-t) y).
func (m *G2) A(t, T float64) float64 {
	c := m.curve
	return c.DiscountAt(T) / c.DiscountAt(t) *
		math.Exp(0.5 * (m.v(t, T) - m.v(0, T) + m.v(0, t)))
}
