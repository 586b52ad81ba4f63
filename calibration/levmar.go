package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jsterling/ratecal/models"
)

// LevenbergMarquardt minimizes the sum of squared residuals with damped
// Gauss-Newton steps. Deterministic: identical inputs yield identical
// iterates.
type LevenbergMarquardt struct {
	// InitialDamping seeds the damping factor; zero means 1e-3.
	InitialDamping float64
}

func (lm LevenbergMarquardt) Minimize(f ResidualFunc, x0 []float64, c models.Constraint, ec EndCriteria) (Result, error) {
	n := len(x0)
	x := append([]float64(nil), x0...)
	r, err := f(x)
	if err != nil {
		return Result{Params: x, Status: StatusFailed}, err
	}
	cost := sumSquares(r)
	lambda := lm.InitialDamping
	if lambda <= 0 {
		lambda = 1e-3
	}

	best := Result{Params: append([]float64(nil), x...), Cost: cost, Status: StatusMaxIterations}
	stationary := 0

	for iter := 1; iter <= ec.MaxIterations; iter++ {
		best.Iterations = iter

		jac, err := numericJacobian(f, x, r)
		if err != nil {
			best.Status = StatusFailed
			return best, err
		}

		// g = J^T r, H = J^T J.
		g := make([]float64, n)
		h := mat.NewSymDense(n, nil)
		for a := 0; a < n; a++ {
			for i := range r {
				g[a] += jac[i][a] * r[i]
			}
			for b := a; b < n; b++ {
				s := 0.0
				for i := range r {
					s += jac[i][a] * jac[i][b]
				}
				h.SetSym(a, b, s)
			}
		}
		if normInf(g) < ec.GradientTolerance {
			best.Status = StatusConverged
			return best, nil
		}

		// Try damped steps, inflating lambda until one improves the cost.
		improved := false
		for attempt := 0; attempt < 30; attempt++ {
			step, ok := solveDamped(h, g, lambda)
			if !ok {
				lambda *= 10
				continue
			}
			trial := make([]float64, n)
			for i := range x {
				trial[i] = x[i] - step[i]
			}
			if c != nil && !c.Test(trial) {
				lambda *= 10
				continue
			}
			tr, err := f(trial)
			if err != nil {
				lambda *= 10
				continue
			}
			trialCost := sumSquares(tr)
			if trialCost < cost {
				delta := cost - trialCost
				stepNorm := norm2(step)
				x, r, cost = trial, tr, trialCost
				lambda = math.Max(lambda/10, 1e-12)
				improved = true

				best.Params = append([]float64(nil), x...)
				best.Cost = cost

				if delta < ec.FunctionTolerance {
					stationary++
				} else {
					stationary = 0
				}
				if stepNorm < ec.StepTolerance*(1+norm2(x)) {
					best.Status = StatusConverged
					return best, nil
				}
				break
			}
			lambda *= 10
		}

		if !improved {
			stationary++
		}
		if stationary >= ec.MaxStationaryIterations {
			best.Status = StatusConverged
			return best, nil
		}
	}
	return best, nil
}

func solveDamped(h *mat.SymDense, g []float64, lambda float64) ([]float64, bool) {
	n := len(g)
	damped := mat.NewSymDense(n, nil)
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			v := h.At(a, b)
			if a == b {
				d := v
				if d <= 0 {
					d = 1
				}
				v += lambda * d
			}
			damped.SetSym(a, b, v)
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(damped) {
		return nil, false
	}
	var step mat.VecDense
	if err := chol.SolveVecTo(&step, mat.NewVecDense(n, g)); err != nil {
		return nil, false
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = step.AtVec(i)
	}
	return out, true
}

// numericJacobian computes forward-difference sensitivities of the
// residual vector.
func numericJacobian(f ResidualFunc, x, r []float64) ([][]float64, error) {
	jac := make([][]float64, len(r))
	for i := range jac {
		jac[i] = make([]float64, len(x))
	}
	for a := range x {
		h := 1e-6 * (1 + math.Abs(x[a]))
		bumped := append([]float64(nil), x...)
		bumped[a] += h
		rb, err := f(bumped)
		if err != nil {
			return nil, fmt.Errorf("calibration: jacobian column %d: %w", a, err)
		}
		for i := range r {
			jac[i][a] = (rb[i] - r[i]) / h
		}
	}
	return jac, nil
}

func sumSquares(r []float64) float64 {
	s := 0.0
	for _, v := range r {
		s += v * v
	}
	return s
}

func norm2(v []float64) float64 {
	return math.Sqrt(sumSquares(v))
}

func normInf(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
