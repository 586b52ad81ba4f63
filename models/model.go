package models

import (
	"fmt"

	"github.com/jsterling/ratecal/term"
)

// ShortRateModel is a parametric short-rate process tied to the discount
// curve it must reprice. The parameter vector is mutated in place by
// calibration and read back afterwards.
type ShortRateModel interface {
	Params() []float64
	SetParams(p []float64) error
	Constraint() Constraint
	Curve() term.YieldCurve
}

// LatticeModel is implemented by one-factor models that can be discretized
// on a trinomial lattice: an Ornstein-Uhlenbeck core plus a displacement
// fitted to the curve slice by slice.
type LatticeModel interface {
	ShortRateModel
	MeanReversion() float64
	Volatility() float64
	// ShortRateFromState maps a lattice state (OU value plus fitted
	// displacement) to a short rate.
	ShortRateFromState(x float64) float64
}

// Constraint restricts the admissible parameter region during calibration.
type Constraint interface {
	Test(p []float64) bool
}

// PositiveConstraint requires every parameter to be strictly positive.
type PositiveConstraint struct{}

func (PositiveConstraint) Test(p []float64) bool {
	for _, v := range p {
		if v <= 0 {
			return false
		}
	}
	return true
}

// BoundaryConstraint is a per-parameter box constraint.
type BoundaryConstraint struct {
	Low  []float64
	High []float64
}

func (c BoundaryConstraint) Test(p []float64) bool {
	for i, v := range p {
		if i < len(c.Low) && v < c.Low[i] {
			return false
		}
		if i < len(c.High) && v > c.High[i] {
			return false
		}
	}
	return true
}

// NoConstraint accepts anything.
type NoConstraint struct{}

func (NoConstraint) Test([]float64) bool { return true }

func checkParamCount(got, want int, model string) error {
	if got != want {
		return fmt.Errorf("models: %s expects %d parameters, got %d", model, want, got)
	}
	return nil
}
