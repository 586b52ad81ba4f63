package calibration

import (
	"errors"
	"fmt"

	"github.com/jsterling/ratecal/models"
)

// Status reports how a calibration run ended. Non-convergence is a status,
// not an error: the best parameters found are still returned.
type Status int

const (
	StatusConverged Status = iota
	StatusMaxIterations
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max iterations reached"
	default:
		return "failed"
	}
}

// Result is the outcome of one calibration run.
type Result struct {
	Params     []float64
	Status     Status
	Iterations int
	Cost       float64 // sum of squared residuals at the final point
}

// EndCriteria bounds the optimizer: iteration caps and tolerances. Any
// criterion triggering ends the run.
type EndCriteria struct {
	MaxIterations           int
	MaxStationaryIterations int
	FunctionTolerance       float64
	StepTolerance           float64
	GradientTolerance       float64
}

func DefaultEndCriteria() EndCriteria {
	return EndCriteria{
		MaxIterations:           400,
		MaxStationaryIterations: 50,
		FunctionTolerance:       1e-10,
		StepTolerance:           1e-10,
		GradientTolerance:       1e-10,
	}
}

// Method minimizes the sum of squared residuals of f starting from x0,
// honoring the constraint and the end criteria.
type Method interface {
	Minimize(f ResidualFunc, x0 []float64, c models.Constraint, ec EndCriteria) (Result, error)
}

// ResidualFunc evaluates the residual vector at a parameter point.
type ResidualFunc func(x []float64) ([]float64, error)

// Options adjusts a calibration run.
type Options struct {
	// FixedParams marks parameters excluded from the optimizer's free
	// vector; they keep the model's current value throughout the run.
	FixedParams []bool
}

var errAllFixed = errors.New("calibration: every parameter is fixed")

// Calibrate adjusts the model's parameters so its prices match the
// helpers' market prices in the weighted least-squares sense. Residuals
// are relative price errors (model/market - 1). The model is mutated in
// place; the returned Result carries the full parameter vector including
// fixed entries.
func Calibrate(model models.ShortRateModel, helpers []*SwaptionHelper, method Method, ec EndCriteria, opts *Options) (Result, error) {
	if len(helpers) == 0 {
		return Result{Status: StatusFailed}, ErrNoQuotes
	}
	for i, h := range helpers {
		if h.engine == nil {
			return Result{Status: StatusFailed}, fmt.Errorf("calibration: helper %d: %w", i, ErrNoEngine)
		}
	}

	full := append([]float64(nil), model.Params()...)
	var fixed []bool
	if opts != nil && opts.FixedParams != nil {
		if len(opts.FixedParams) != len(full) {
			return Result{Status: StatusFailed},
				fmt.Errorf("calibration: mask has %d entries for %d parameters", len(opts.FixedParams), len(full))
		}
		fixed = opts.FixedParams
	} else {
		fixed = make([]bool, len(full))
	}
	mask := newMaskAdapter(full, fixed)
	if mask.freeCount() == 0 {
		return Result{Status: StatusFailed}, errAllFixed
	}

	residuals := func(free []float64) ([]float64, error) {
		if err := model.SetParams(mask.expand(free)); err != nil {
			return nil, err
		}
		out := make([]float64, len(helpers))
		for i, h := range helpers {
			price, err := h.ModelPrice()
			if err != nil {
				return nil, fmt.Errorf("calibration: helper %d: %w", i, err)
			}
			out[i] = price/h.market - 1
		}
		return out, nil
	}

	res, err := method.Minimize(residuals, mask.reduce(full), maskedConstraint{mask: mask, inner: model.Constraint()}, ec)
	if err != nil {
		return res, err
	}

	final := mask.expand(res.Params)
	if err := model.SetParams(final); err != nil {
		return res, err
	}
	res.Params = final
	return res, nil
}

// maskAdapter maps between the model's full parameter vector and the
// optimizer's reduced free-variable vector using a static boolean mask.
type maskAdapter struct {
	fixedValues []float64
	fixed       []bool
}

func newMaskAdapter(full []float64, fixed []bool) maskAdapter {
	return maskAdapter{fixedValues: append([]float64(nil), full...), fixed: fixed}
}

func (m maskAdapter) freeCount() int {
	n := 0
	for _, f := range m.fixed {
		if !f {
			n++
		}
	}
	return n
}

func (m maskAdapter) reduce(full []float64) []float64 {
	out := make([]float64, 0, m.freeCount())
	for i, f := range m.fixed {
		if !f {
			out = append(out, full[i])
		}
	}
	return out
}

func (m maskAdapter) expand(free []float64) []float64 {
	out := make([]float64, len(m.fixed))
	k := 0
	for i, f := range m.fixed {
		if f {
			out[i] = m.fixedValues[i]
		} else {
			out[i] = free[k]
			k++
		}
	}
	return out
}

// maskedConstraint applies the model constraint to the expanded vector.
type maskedConstraint struct {
	mask  maskAdapter
	inner models.Constraint
}

func (c maskedConstraint) Test(free []float64) bool {
	return c.inner.Test(c.mask.expand(free))
}
