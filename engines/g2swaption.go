package engines

import (
	"fmt"
	"math"

	"github.com/jsterling/ratecal/models"
)

// G2SwaptionEngine prices European swaptions under the G2++ model with the
// Brigo-Mercurio semi-analytic formula: a one-dimensional Gaussian
// integral whose integrand needs a root-solve for the exercise boundary.
type G2SwaptionEngine struct {
	model *models.G2
	// Integration half-width in standard deviations of the first factor
	// and number of Simpson intervals.
	Range     float64
	Intervals int
}

func NewG2SwaptionEngine(model *models.G2) *G2SwaptionEngine {
	return &G2SwaptionEngine{model: model, Range: 8.0, Intervals: 400}
}

func (e *G2SwaptionEngine) Price(s Swaption) (float64, error) {
	if e.model == nil {
		return 0, errModelMissing
	}
	if err := s.validate(); err != nil {
		return 0, err
	}
	m := e.model
	a, sigma := m.A1(), m.Sigma()
	b, eta := m.B2(), m.Eta()
	rho := m.Rho()
	T := s.Exercise

	sigx := sigma * math.Sqrt(0.5*(1-math.Exp(-2*a*T))/a)
	sigy := eta * math.Sqrt(0.5*(1-math.Exp(-2*b*T))/b)
	rhoxy := rho * eta * sigma * (1 - math.Exp(-(a+b)*T)) / ((a + b) * sigx * sigy)
	if rhoxy > 1 {
		rhoxy = 1
	} else if rhoxy < -1 {
		rhoxy = -1
	}
	txy := math.Sqrt(1 - rhoxy*rhoxy)

	mux := -((sigma*sigma/a+rho*sigma*eta/b)*(1-math.Exp(-a*T))/a -
		sigma*sigma/(2*a)*(1-math.Exp(-2*a*T))/a -
		rho*sigma*eta/(b*(a+b))*(1-math.Exp(-(a+b)*T)))
	muy := -((eta*eta/b+rho*sigma*eta/a)*(1-math.Exp(-b*T))/b -
		eta*eta/(2*b)*(1-math.Exp(-2*b*T))/b -
		rho*sigma*eta/(a*(a+b))*(1-math.Exp(-(a+b)*T)))

	// Per-coupon constants.
	n := len(s.FixedTimes)
	amounts := s.fixedCashflows()
	cA := make([]float64, n)   // c_i * A(T,t_i), unit nominal
	ba := make([]float64, n)   // Beta(a, t_i-T)
	bb := make([]float64, n)   // Beta(b, t_i-T)
	for i, ti := range s.FixedTimes {
		cA[i] = amounts[i] / s.Nominal * m.A(T, ti)
		ba[i] = models.Beta(a, ti-T)
		bb[i] = models.Beta(b, ti-T)
	}

	w := 1.0
	if !s.Payer {
		w = -1.0
	}

	integrand := func(x float64) (float64, error) {
		lambda := make([]float64, n)
		for i := range lambda {
			lambda[i] = cA[i] * math.Exp(-ba[i]*x)
		}
		ybar, err := exerciseBoundary(lambda, bb)
		if err != nil {
			return 0, err
		}
		z := (x - mux) / sigx
		h1 := (ybar-muy)/(sigy*txy) - rhoxy*z/txy
		value := stdNormal.CDF(-w * h1)
		for i := range lambda {
			h2 := h1 + bb[i]*sigy*txy
			kappa := -bb[i] * (muy - 0.5*txy*txy*sigy*sigy*bb[i] + rhoxy*sigy*z)
			value -= lambda[i] * math.Exp(kappa) * stdNormal.CDF(-w*h2)
		}
		return math.Exp(-0.5*z*z) * value / (sigx * math.Sqrt(2*math.Pi)), nil
	}

	lo := mux - e.Range*sigx
	hi := mux + e.Range*sigx
	integral, err := simpson(integrand, lo, hi, e.Intervals)
	if err != nil {
		return 0, err
	}
	return s.Nominal * w * m.Curve().DiscountAt(T) * integral, nil
}

// exerciseBoundary solves sum lambda_i exp(-bb_i y) = 1 for y. The left
// side is strictly decreasing in y so Newton from zero with a bracketing
// fallback always lands.
func exerciseBoundary(lambda, bb []float64) (float64, error) {
	f := func(y float64) (float64, float64) {
		sum, slope := -1.0, 0.0
		for i := range lambda {
			e := lambda[i] * math.Exp(-bb[i]*y)
			sum += e
			slope -= bb[i] * e
		}
		return sum, slope
	}
	y := 0.0
	for iter := 0; iter < 100; iter++ {
		v, slope := f(y)
		if math.Abs(v) < 1e-12 {
			return y, nil
		}
		if slope > -1e-18 {
			break
		}
		step := v / slope
		if math.Abs(step) > 10 {
			step = math.Copysign(10, step)
		}
		y -= step
	}
	// Bisection fallback over an expanding bracket.
	lo, hi := -50.0, 50.0
	fLo, _ := f(lo)
	fHi, _ := f(hi)
	if fLo*fHi > 0 {
		return 0, fmt.Errorf("engines: exercise boundary not bracketed")
	}
	for i := 0; i < 200; i++ {
		mid := 0.5 * (lo + hi)
		v, _ := f(mid)
		if math.Abs(v) < 1e-12 {
			return mid, nil
		}
		if v*fLo > 0 {
			lo, fLo = mid, v
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi), nil
}

func simpson(f func(float64) (float64, error), lo, hi float64, intervals int) (float64, error) {
	if intervals%2 != 0 {
		intervals++
	}
	h := (hi - lo) / float64(intervals)
	sum := 0.0
	for i := 0; i <= intervals; i++ {
		v, err := f(lo + float64(i)*h)
		if err != nil {
			return 0, err
		}
		switch {
		case i == 0 || i == intervals:
			sum += v
		case i%2 == 1:
			sum += 4 * v
		default:
			sum += 2 * v
		}
	}
	return sum * h / 3, nil
}
