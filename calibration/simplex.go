package calibration

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/jsterling/ratecal/models"
)

// Simplex is a derivative-free alternative to Levenberg-Marquardt,
// wrapping gonum's Nelder-Mead on the sum of squared residuals.
// Constraint violations and pricing failures are folded into the
// objective as +Inf so the simplex contracts away from them.
type Simplex struct{}

// simplexRestarts caps how many times a stalled simplex is rebuilt.
const simplexRestarts = 5

func (Simplex) Minimize(f ResidualFunc, x0 []float64, c models.Constraint, ec EndCriteria) (Result, error) {
	objective := func(x []float64) float64 {
		if c != nil && !c.Test(x) {
			return math.Inf(1)
		}
		r, err := f(x)
		if err != nil {
			return math.Inf(1)
		}
		return sumSquares(r)
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: ec.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   ec.FunctionTolerance,
			Relative:   ec.FunctionTolerance,
			Iterations: ec.MaxStationaryIterations,
		},
	}

	// A single Nelder-Mead run can stall once its simplex has collapsed
	// while still far from the least-squares floor. Restarting from the
	// returned point rebuilds a full-size simplex there and recovers the
	// remaining progress; the loop stops when a restart no longer improves
	// the cost beyond the function tolerance.
	start := append([]float64(nil), x0...)
	var best *optimize.Result
	iterations := 0
	for restart := 0; restart < simplexRestarts; restart++ {
		result, err := optimize.Minimize(problem, start, settings, &optimize.NelderMead{})
		if err != nil && result == nil {
			return Result{Params: append([]float64(nil), x0...), Status: StatusFailed}, err
		}
		iterations += result.MajorIterations
		improved := best == nil || best.F-result.F > ec.FunctionTolerance*(1+math.Abs(best.F))
		if best == nil || result.F < best.F {
			best = result
		}
		if !improved {
			break
		}
		start = append([]float64(nil), best.X...)
	}

	out := Result{
		Params:     append([]float64(nil), best.X...),
		Cost:       best.F,
		Iterations: iterations,
	}
	switch best.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit:
		out.Status = StatusMaxIterations
	default:
		out.Status = StatusConverged
	}
	if math.IsInf(out.Cost, 1) {
		out.Status = StatusFailed
	}
	return out, nil
}
