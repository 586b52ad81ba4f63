package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jsterling/ratecal/engines"
	"github.com/jsterling/ratecal/models"
	"github.com/jsterling/ratecal/term"
)

// The reference scenario: five ATM swaption quotes against a flat
// 4.875825% curve.
var referenceQuotes = []Quote{
	{Start: term.YearsOf(1), Length: term.YearsOf(5), Volatility: 0.1148},
	{Start: term.YearsOf(2), Length: term.YearsOf(4), Volatility: 0.1108},
	{Start: term.YearsOf(3), Length: term.YearsOf(3), Volatility: 0.1070},
	{Start: term.YearsOf(4), Length: term.YearsOf(2), Volatility: 0.1021},
	{Start: term.YearsOf(5), Length: term.YearsOf(1), Volatility: 0.1000},
}

func referenceCurve() term.YieldCurve {
	ref := time.Date(2002, 2, 15, 0, 0, 0, 0, time.UTC)
	return term.NewFlatForward(ref, 0.04875825, term.Act365F)
}

func referenceHelpers(t *testing.T, c term.YieldCurve) []*SwaptionHelper {
	t.Helper()
	helpers, err := BuildHelpers(c, referenceQuotes, EuriborConventions())
	require.NoError(t, err)
	return helpers
}

func TestBuildHelpers(t *testing.T) {
	c := referenceCurve()

	_, err := BuildHelpers(c, nil, EuriborConventions())
	require.ErrorIs(t, err, ErrNoQuotes)

	helpers := referenceHelpers(t, c)
	require.Len(t, helpers, len(referenceQuotes))
	for i, h := range helpers {
		require.Equal(t, referenceQuotes[i], h.Quote(), "order must be preserved")
		require.Greater(t, h.MarketPrice(), 0.0)
		require.InDelta(t, h.ForwardRate(), h.Swaption().Strike, 1e-15, "helpers are struck ATM")
	}

	// Exercise times step out one year at a time.
	require.InDelta(t, 1.0, helpers[0].Swaption().Exercise, 5e-3)
	require.InDelta(t, 5.0, helpers[4].Swaption().Exercise, 5e-3)

	_, err = BuildHelpers(c, []Quote{{Start: term.YearsOf(1), Length: term.YearsOf(1), Volatility: -0.2}}, EuriborConventions())
	require.ErrorIs(t, err, ErrBadMarket)
}

func attachEngine(helpers []*SwaptionHelper, e engines.PricingEngine) {
	for _, h := range helpers {
		h.SetEngine(e)
	}
}

func TestCalibrateHullWhiteReferenceScenario(t *testing.T) {
	c := referenceCurve()
	model := models.NewHullWhite(c, 0.1, 0.01)
	helpers := referenceHelpers(t, c)
	attachEngine(helpers, engines.NewJamshidianEngine(model))

	res, err := Calibrate(model, helpers, LevenbergMarquardt{}, DefaultEndCriteria(), nil)
	require.NoError(t, err)
	require.NotEqual(t, StatusFailed, res.Status)

	a, sigma := res.Params[0], res.Params[1]
	require.InDelta(t, 0.0464, a, 0.015, "mean reversion")
	require.InDelta(t, 0.0058, sigma, 0.0015, "volatility")

	rep, err := NewReport(helpers)
	require.NoError(t, err)
	require.InDelta(t, 0.116, rep.CumulativeError, 0.06)
	for _, row := range rep.Rows {
		require.NoError(t, row.Err)
	}
}

func TestCalibrateDeterminism(t *testing.T) {
	c := referenceCurve()

	run := func() Result {
		model := models.NewHullWhite(c, 0.1, 0.01)
		helpers := referenceHelpers(t, c)
		attachEngine(helpers, engines.NewJamshidianEngine(model))
		res, err := Calibrate(model, helpers, LevenbergMarquardt{}, DefaultEndCriteria(), nil)
		require.NoError(t, err)
		return res
	}

	first := run()
	second := run()
	require.Equal(t, first.Params, second.Params)
	require.Equal(t, first.Iterations, second.Iterations)
	require.Equal(t, first.Cost, second.Cost)
}

func TestFixedParameterMask(t *testing.T) {
	c := referenceCurve()
	model := models.NewHullWhite(c, 0.05, 0.01)
	helpers := referenceHelpers(t, c)
	attachEngine(helpers, engines.NewJamshidianEngine(model))

	res, err := Calibrate(model, helpers, LevenbergMarquardt{}, DefaultEndCriteria(),
		&Options{FixedParams: []bool{true, false}})
	require.NoError(t, err)

	require.Equal(t, 0.05, res.Params[0], "fixed mean reversion must not move")
	require.Equal(t, 0.05, model.Params()[0])
	require.NotEqual(t, 0.01, res.Params[1], "free volatility should move")

	// Mask of the wrong length is rejected outright.
	_, err = Calibrate(model, helpers, LevenbergMarquardt{}, DefaultEndCriteria(),
		&Options{FixedParams: []bool{true}})
	require.Error(t, err)

	// Fixing everything leaves nothing to optimize.
	_, err = Calibrate(model, helpers, LevenbergMarquardt{}, DefaultEndCriteria(),
		&Options{FixedParams: []bool{true, true}})
	require.ErrorIs(t, err, errAllFixed)
}

func TestCalibrateRequiresEngines(t *testing.T) {
	c := referenceCurve()
	model := models.NewHullWhite(c, 0.1, 0.01)
	helpers := referenceHelpers(t, c)

	_, err := Calibrate(model, helpers, LevenbergMarquardt{}, DefaultEndCriteria(), nil)
	require.ErrorIs(t, err, ErrNoEngine)
}

func TestSimplexCalibration(t *testing.T) {
	c := referenceCurve()
	helpers := referenceHelpers(t, c)

	lmModel := models.NewHullWhite(c, 0.1, 0.01)
	attachEngine(helpers, engines.NewJamshidianEngine(lmModel))
	lm, err := Calibrate(lmModel, helpers, LevenbergMarquardt{}, DefaultEndCriteria(), nil)
	require.NoError(t, err)

	model := models.NewHullWhite(c, 0.1, 0.01)
	attachEngine(helpers, engines.NewJamshidianEngine(model))
	res, err := Calibrate(model, helpers, Simplex{}, DefaultEndCriteria(), nil)
	require.NoError(t, err)
	require.NotEqual(t, StatusFailed, res.Status)

	// Derivative-free search must reach the same least-squares floor as
	// Levenberg-Marquardt, not stall on the way there.
	require.Less(t, res.Cost, lm.Cost*1.1+1e-12)
	require.InDelta(t, lm.Params[0], res.Params[0], 0.01)
	require.InDelta(t, lm.Params[1], res.Params[1], 0.002)
}

func TestMultiStartDeterminism(t *testing.T) {
	c := referenceCurve()
	box := models.BoundaryConstraint{Low: []float64{0.005, 0.0005}, High: []float64{0.5, 0.05}}

	run := func() Result {
		model := models.NewHullWhite(c, 0.1, 0.01)
		helpers := referenceHelpers(t, c)
		attachEngine(helpers, engines.NewJamshidianEngine(model))
		res, err := CalibrateMultiStart(model, helpers, LevenbergMarquardt{}, DefaultEndCriteria(), nil, box, 4, 42)
		require.NoError(t, err)
		return res
	}

	first := run()
	second := run()
	require.Equal(t, first.Params, second.Params)
	require.Equal(t, first.Cost, second.Cost)
}

func TestCalibrateG2(t *testing.T) {
	c := referenceCurve()
	model := models.NewG2(c, 0.1, 0.01, 0.3, 0.005, -0.5)
	helpers := referenceHelpers(t, c)
	attachEngine(helpers, engines.NewG2SwaptionEngine(model))

	ec := DefaultEndCriteria()
	ec.MaxIterations = 60
	res, err := Calibrate(model, helpers, LevenbergMarquardt{}, ec, nil)
	require.NoError(t, err)
	require.NotEqual(t, StatusFailed, res.Status)
	require.Len(t, res.Params, 5)
	require.True(t, model.Constraint().Test(res.Params))

	rep, err := NewReport(helpers)
	require.NoError(t, err)
	require.Less(t, rep.CumulativeError, 0.25)
}

func TestCalibrateBlackKarasinskiOnTree(t *testing.T) {
	if testing.Short() {
		t.Skip("lattice calibration is slow")
	}
	c := referenceCurve()
	model := models.NewBlackKarasinski(c, 0.1, 0.1)
	helpers := referenceHelpers(t, c)
	attachEngine(helpers, engines.NewTreeSwaptionEngine(model, 50))

	ec := DefaultEndCriteria()
	ec.MaxIterations = 40
	res, err := Calibrate(model, helpers, LevenbergMarquardt{}, ec, nil)
	require.NoError(t, err)
	require.NotEqual(t, StatusFailed, res.Status)
	require.Greater(t, res.Params[1], 0.0)

	rep, err := NewReport(helpers)
	require.NoError(t, err)
	require.Less(t, rep.CumulativeError, 0.3)
}
