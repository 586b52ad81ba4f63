package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/jsterling/ratecal/engines"
	"github.com/jsterling/ratecal/term"
)

var (
	ErrNoQuotes  = errors.New("calibration: empty quote list")
	ErrNoEngine  = errors.New("calibration: helper has no pricing engine")
	ErrBadMarket = errors.New("calibration: non-positive market volatility")
)

// LegConventions carries the fixed and floating leg conventions the
// calibration instruments are built with.
type LegConventions struct {
	FixedFreqMonths int
	FixedDayCount   term.DayCount
	FloatFreqMonths int
	FloatDayCount   term.DayCount
}

// EuriborConventions are annual 30/360 fixed against semiannual ACT/360
// floating, the usual EUR swaption helper setup.
func EuriborConventions() LegConventions {
	return LegConventions{
		FixedFreqMonths: 12,
		FixedDayCount:   term.Thirty360,
		FloatFreqMonths: 6,
		FloatDayCount:   term.Act360,
	}
}

// SwaptionHelper wires one Quote to an ATM payer swaption on the shared
// discount curve. Its market price is the Black price at the quoted
// volatility; its model price comes from whatever engine is attached.
type SwaptionHelper struct {
	quote    Quote
	swaption engines.Swaption
	annuity  float64
	forward  float64
	market   float64
	engine   engines.PricingEngine
}

// BuildHelpers converts quotes into helpers in order, one per quote, all
// against the same curve snapshot. The curve is not mutated. Horizon
// checks are left to the curve itself (extrapolation is the curve's
// policy, not this layer's).
func BuildHelpers(curve term.YieldCurve, quotes []Quote, legs LegConventions) ([]*SwaptionHelper, error) {
	if len(quotes) == 0 {
		return nil, ErrNoQuotes
	}
	helpers := make([]*SwaptionHelper, 0, len(quotes))
	for _, q := range quotes {
		h, err := NewSwaptionHelper(curve, q, legs)
		if err != nil {
			return nil, fmt.Errorf("calibration: quote %s: %w", q, err)
		}
		helpers = append(helpers, h)
	}
	return helpers, nil
}

// NewSwaptionHelper builds a single ATM helper for a quote.
func NewSwaptionHelper(curve term.YieldCurve, q Quote, legs LegConventions) (*SwaptionHelper, error) {
	if q.Volatility <= 0 {
		return nil, ErrBadMarket
	}
	start := q.Start.AddTo(curve.ReferenceDate())
	fixed, err := term.BuildSchedule(curve, start, q.Length, legs.FixedFreqMonths, legs.FixedDayCount)
	if err != nil {
		return nil, err
	}
	floating, err := term.BuildSchedule(curve, start, q.Length, legs.FloatFreqMonths, legs.FloatDayCount)
	if err != nil {
		return nil, err
	}

	exercise := term.TimeFromReference(curve, start)
	annuity := 0.0
	for i, ti := range fixed.Times {
		annuity += fixed.Accruals[i] * curve.DiscountAt(ti)
	}
	last := fixed.Times[len(fixed.Times)-1]
	forward := (curve.DiscountAt(exercise) - curve.DiscountAt(last)) / annuity

	h := &SwaptionHelper{
		quote: q,
		swaption: engines.Swaption{
			Exercise:      exercise,
			Nominal:       1.0,
			Strike:        forward,
			Payer:         true,
			FixedTimes:    fixed.Times,
			FixedAccruals: fixed.Accruals,
			FloatTimes:    floating.Times,
		},
		annuity: annuity,
		forward: forward,
	}
	h.market = engines.BlackPrice(true, forward, forward, q.Volatility*math.Sqrt(exercise), annuity, 1.0)
	return h, nil
}

// SetEngine attaches the pricing engine used for model prices.
func (h *SwaptionHelper) SetEngine(e engines.PricingEngine) { h.engine = e }

func (h *SwaptionHelper) Quote() Quote { return h.quote }
func (h *SwaptionHelper) Swaption() engines.Swaption { return h.swaption }
func (h *SwaptionHelper) MarketPrice() float64 { return h.market }
func (h *SwaptionHelper) ForwardRate() float64 { return h.forward }

// ModelPrice values the helper's swaption under the attached engine.
func (h *SwaptionHelper) ModelPrice() (float64, error) {
	if h.engine == nil {
		return 0, ErrNoEngine
	}
	return h.engine.Price(h.swaption)
}

// ImpliedVolatility inverts the Black formula for the volatility that
// reproduces the given price for this instrument.
func (h *SwaptionHelper) ImpliedVolatility(price float64) (float64, error) {
	return engines.ImpliedVolatility(price, true, h.swaption.Strike, h.forward,
		h.swaption.Exercise, h.annuity, h.swaption.Nominal)
}
