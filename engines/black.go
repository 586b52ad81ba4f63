package engines

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

const (
	ivMaxIterations = 100
	ivEpsilon       = 1e-10
	ivLowerBound    = 1e-7
	ivUpperBound    = 4.0
)

// BlackPrice values a payer or receiver swaption with the Black-76 formula.
// stdDev is vol*sqrt(expiry); annuity is the PV of the fixed leg basis
// points; forward is the forward swap rate.
func BlackPrice(payer bool, strike, forward, stdDev, annuity, nominal float64) float64 {
	if stdDev < 1e-12 {
		intrinsic := forward - strike
		if !payer {
			intrinsic = -intrinsic
		}
		return nominal * annuity * math.Max(intrinsic, 0)
	}
	d1 := math.Log(forward/strike)/stdDev + 0.5*stdDev
	d2 := d1 - stdDev
	if payer {
		return nominal * annuity * (forward*stdNormal.CDF(d1) - strike*stdNormal.CDF(d2))
	}
	return nominal * annuity * (strike*stdNormal.CDF(-d2) - forward*stdNormal.CDF(-d1))
}

// BlackVega is the sensitivity of the Black price to volatility.
func BlackVega(strike, forward, vol, expiry, annuity, nominal float64) float64 {
	stdDev := vol * math.Sqrt(expiry)
	if stdDev < 1e-12 {
		return 0
	}
	d1 := math.Log(forward/strike)/stdDev + 0.5*stdDev
	return nominal * annuity * forward * stdNormal.Prob(d1) * math.Sqrt(expiry)
}

// ImpliedVolatility inverts the Black formula for volatility given a price.
// Newton with vega, falling back to bisection when the iteration wanders.
// Returns ErrNoRoot when the target price is unattainable within the
// search bounds.
func ImpliedVolatility(target float64, payer bool, strike, forward, expiry, annuity, nominal float64) (float64, error) {
	price := func(vol float64) float64 {
		return BlackPrice(payer, strike, forward, vol*math.Sqrt(expiry), annuity, nominal)
	}
	lo, hi := ivLowerBound, ivUpperBound
	fLo := price(lo) - target
	fHi := price(hi) - target
	if fLo*fHi > 0 {
		return 0, ErrNoRoot
	}

	vol := 0.2
	for i := 0; i < ivMaxIterations; i++ {
		diff := price(vol) - target
		if math.Abs(diff) < ivEpsilon {
			return vol, nil
		}
		if diff > 0 {
			hi = vol
		} else {
			lo = vol
		}
		vega := BlackVega(strike, forward, vol, expiry, annuity, nominal)
		next := vol - diff/vega
		if vega < 1e-14 || next <= lo || next >= hi {
			next = 0.5 * (lo + hi) // bisection step
		}
		vol = next
	}
	return vol, nil
}
