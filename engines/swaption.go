// Package engines prices European swaptions under short-rate models.
// Instruments are expressed in curve time (year fractions from the curve
// reference date) so engines stay free of date arithmetic.
package engines

import "errors"

// Swaption is a European option, exercisable at Exercise, on a swap whose
// fixed and floating leg schedules are given as payment times and accrual
// fractions. A payer swaption grants the right to pay fixed.
type Swaption struct {
	Exercise float64
	Nominal  float64
	Strike   float64
	Payer    bool

	FixedTimes    []float64
	FixedAccruals []float64
	FloatTimes    []float64
}

// PricingEngine values a swaption under the model it was constructed with.
type PricingEngine interface {
	Price(s Swaption) (float64, error)
}

var (
	ErrNoRoot       = errors.New("engines: no implied volatility root within search bounds")
	errBadSwaption  = errors.New("engines: swaption needs a positive exercise time and a fixed schedule")
	errModelMissing = errors.New("engines: nil model")
)

func (s Swaption) validate() error {
	if s.Exercise <= 0 || len(s.FixedTimes) == 0 || len(s.FixedTimes) != len(s.FixedAccruals) {
		return errBadSwaption
	}
	return nil
}

// fixedCashflows returns the Jamshidian coupon vector: K*tau_i*N per fixed
// period with the nominal redeemed at maturity.
func (s Swaption) fixedCashflows() []float64 {
	amounts := make([]float64, len(s.FixedTimes))
	for i, tau := range s.FixedAccruals {
		amounts[i] = s.Strike * tau * s.Nominal
	}
	amounts[len(amounts)-1] += s.Nominal
	return amounts
}
