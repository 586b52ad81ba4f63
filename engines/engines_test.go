package engines

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jsterling/ratecal/models"
	"github.com/jsterling/ratecal/term"
)

func testCurve(rate float64) term.YieldCurve {
	ref := time.Date(2002, 2, 15, 0, 0, 0, 0, time.UTC)
	return term.NewFlatForward(ref, rate, term.Act365F)
}

// atmSwaption builds a payer swaption on an annual-fixed/semiannual-float
// swap starting in startYears and running lengthYears, struck at the
// curve's forward swap rate.
func atmSwaption(c term.YieldCurve, startYears, lengthYears int) Swaption {
	ref := c.ReferenceDate()
	start := term.YearsOf(startYears).AddTo(ref)
	fixed, _ := term.BuildSchedule(c, start, term.YearsOf(lengthYears), 12, term.Thirty360)
	float, _ := term.BuildSchedule(c, start, term.YearsOf(lengthYears), 6, term.Act360)

	exercise := term.TimeFromReference(c, start)
	annuity := 0.0
	for i, ti := range fixed.Times {
		annuity += fixed.Accruals[i] * c.DiscountAt(ti)
	}
	last := fixed.Times[len(fixed.Times)-1]
	forward := (c.DiscountAt(exercise) - c.DiscountAt(last)) / annuity

	return Swaption{
		Exercise:      exercise,
		Nominal:       1.0,
		Strike:        forward,
		Payer:         true,
		FixedTimes:    fixed.Times,
		FixedAccruals: fixed.Accruals,
		FloatTimes:    float.Times,
	}
}

func TestJamshidianParity(t *testing.T) {
	c := testCurve(0.04875825)
	m := models.NewHullWhite(c, 0.0464, 0.0058)
	engine := NewJamshidianEngine(m)

	s := atmSwaption(c, 1, 5)
	payer, err := engine.Price(s)
	require.NoError(t, err)
	require.Greater(t, payer, 0.0)

	recv := s
	recv.Payer = false
	receiver, err := engine.Price(recv)
	require.NoError(t, err)

	// Payer minus receiver equals the forward swap value off the curve.
	fixedPV := 0.0
	for i, ti := range s.FixedTimes {
		fixedPV += s.Strike * s.FixedAccruals[i] * c.DiscountAt(ti)
	}
	last := s.FixedTimes[len(s.FixedTimes)-1]
	floatPV := c.DiscountAt(s.Exercise) - c.DiscountAt(last)
	require.InDelta(t, floatPV-fixedPV, payer-receiver, 1e-10)
	// ATM strike makes the forward swap worthless.
	require.InDelta(t, 0.0, payer-receiver, 1e-10)
}

func TestJamshidianValidation(t *testing.T) {
	c := testCurve(0.05)
	engine := NewJamshidianEngine(models.NewHullWhite(c, 0.1, 0.01))

	_, err := engine.Price(Swaption{})
	require.Error(t, err)

	var nilEngine JamshidianEngine
	_, err = nilEngine.Price(atmSwaption(c, 1, 2))
	require.Error(t, err)
}

func TestTreeConvergesToAnalytic(t *testing.T) {
	c := testCurve(0.04875825)
	m := models.NewHullWhite(c, 0.1, 0.01)
	s := atmSwaption(c, 2, 4)

	analytic, err := NewJamshidianEngine(m).Price(s)
	require.NoError(t, err)
	require.Greater(t, analytic, 0.0)

	coarse, err := NewTreeSwaptionEngine(m, 40).Price(s)
	require.NoError(t, err)
	fine, err := NewTreeSwaptionEngine(m, 320).Price(s)
	require.NoError(t, err)

	require.InDelta(t, analytic, coarse, 0.08*analytic)
	require.InDelta(t, analytic, fine, 0.02*analytic)
}

func TestTreePricesBlackKarasinski(t *testing.T) {
	c := testCurve(0.04875825)
	m := models.NewBlackKarasinski(c, 0.1, 0.1)
	s := atmSwaption(c, 1, 3)

	price, err := NewTreeSwaptionEngine(m, 80).Price(s)
	require.NoError(t, err)
	require.Greater(t, price, 0.0)
	// An ATM swaption is worth far less than the annuity.
	require.Less(t, price, 0.05)
}

func TestTreeRepricesCurve(t *testing.T) {
	c := testCurve(0.04875825)
	m := models.NewHullWhite(c, 0.1, 0.01)
	tree, err := NewShortRateTree(m, []float64{1, 2, 3}, 60)
	require.NoError(t, err)

	// A unit claim at maturity rolled back through the fitted lattice must
	// reproduce the curve discount factor.
	for _, T := range []float64{1.0, 3.0} {
		i, err := tree.SliceIndex(T)
		require.NoError(t, err)
		values := make([]float64, tree.SliceSize(i))
		for j := range values {
			values[j] = 1.0
		}
		for k := i - 1; k >= 0; k-- {
			values = tree.RollbackStep(values, k)
		}
		require.InDelta(t, c.DiscountAt(T), values[0], 1e-8, "T=%v", T)
	}
}

func TestG2MatchesHullWhiteLimit(t *testing.T) {
	c := testCurve(0.04875825)
	s := atmSwaption(c, 1, 4)

	hw := models.NewHullWhite(c, 0.1, 0.01)
	analytic, err := NewJamshidianEngine(hw).Price(s)
	require.NoError(t, err)

	// With the second factor switched off the G2++ price collapses to the
	// one-factor Gaussian price.
	g2 := models.NewG2(c, 0.1, 0.01, 0.5, 1e-7, 0.0)
	engine := NewG2SwaptionEngine(g2)
	engine.Intervals = 2000
	price, err := engine.Price(s)
	require.NoError(t, err)
	require.InDelta(t, analytic, price, 2e-3*math.Max(analytic, 1e-6)+1e-6)
}

func TestConvergenceStudy(t *testing.T) {
	c := testCurve(0.05)
	m := models.NewHullWhite(c, 0.1, 0.01)
	s := atmSwaption(c, 1, 2)

	points := ConvergenceStudy(func(steps int) PricingEngine {
		return NewTreeSwaptionEngine(m, steps)
	}, s, []int{20, 40, 80}, false)

	require.Len(t, points, 3)
	for _, p := range points {
		require.NoError(t, p.Err)
		require.Greater(t, p.Price, 0.0)
	}
}
