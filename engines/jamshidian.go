package engines

import (
	"fmt"
	"math"

	"github.com/jsterling/ratecal/models"
)

// JamshidianEngine prices European swaptions under Hull-White analytically
// by decomposing the swap into a portfolio of zero-coupon bond options
// struck at the critical rate r*.
type JamshidianEngine struct {
	model *models.HullWhite
}

func NewJamshidianEngine(model *models.HullWhite) *JamshidianEngine {
	return &JamshidianEngine{model: model}
}

func (e *JamshidianEngine) Price(s Swaption) (float64, error) {
	if e.model == nil {
		return 0, errModelMissing
	}
	if err := s.validate(); err != nil {
		return 0, err
	}

	amounts := s.fixedCashflows()
	rStar, err := e.criticalRate(s.Exercise, s.FixedTimes, amounts, s.Nominal)
	if err != nil {
		return 0, err
	}

	value := 0.0
	for i, T := range s.FixedTimes {
		strike := e.model.DiscountBond(s.Exercise, T, rStar)
		// Payer swaption = portfolio of puts on the fixed-leg bonds.
		value += amounts[i] * e.model.DiscountBondOption(!s.Payer, strike, s.Exercise, T)
	}
	return value, nil
}

// criticalRate solves sum c_i P(T0,t_i;r) = nominal for the short rate at
// exercise by Newton iteration.
func (e *JamshidianEngine) criticalRate(exercise float64, times, amounts []float64, nominal float64) (float64, error) {
	r := term0Guess(e.model, exercise)
	for iter := 0; iter < 100; iter++ {
		f := -nominal
		fPrime := 0.0
		for i, T := range times {
			p := e.model.DiscountBond(exercise, T, r)
			b := e.model.B(exercise, T)
			f += amounts[i] * p
			fPrime -= amounts[i] * b * p
		}
		if math.Abs(f) < 1e-12*nominal {
			return r, nil
		}
		if math.Abs(fPrime) < 1e-16 {
			break
		}
		step := f / fPrime
		// The bond portfolio value is monotone in r; damp wild steps so the
		// iteration cannot overshoot into exp overflow.
		if math.Abs(step) > 1.0 {
			step = math.Copysign(1.0, step)
		}
		r -= step
	}
	return 0, fmt.Errorf("engines: critical rate search did not converge at exercise %.4f", exercise)
}

func term0Guess(m *models.HullWhite, t float64) float64 {
	// Start from the forward short rate implied by the curve.
	c := m.Curve()
	h := 0.01
	return math.Log(c.DiscountAt(t)/c.DiscountAt(t+h)) / h
}
