package calibration

import (
	"fmt"
	"math"
	"strings"
)

// ReportRow compares one instrument's model and market views. Err marks an
// implied-volatility inversion failure for that row alone; the rest of the
// report is unaffected.
type ReportRow struct {
	Quote       Quote
	ModelPrice  float64
	MarketPrice float64
	ImpliedVol  float64
	MarketVol   float64
	RelError    float64 // model/market price ratio minus one
	Err         error
}

// Report is a pure summary of the fit: one row per helper plus the
// root-sum-of-squares of relative implied-volatility errors.
type Report struct {
	Rows            []ReportRow
	CumulativeError float64
}

// NewReport prices every helper under its attached engine and inverts the
// model prices for implied volatilities. Inputs are not mutated.
func NewReport(helpers []*SwaptionHelper) (Report, error) {
	if len(helpers) == 0 {
		return Report{}, ErrNoQuotes
	}
	rep := Report{Rows: make([]ReportRow, len(helpers))}
	sumSq := 0.0
	for i, h := range helpers {
		row := ReportRow{
			Quote:       h.Quote(),
			MarketPrice: h.MarketPrice(),
			MarketVol:   h.Quote().Volatility,
		}
		model, err := h.ModelPrice()
		if err != nil {
			row.Err = err
			rep.Rows[i] = row
			continue
		}
		row.ModelPrice = model
		row.RelError = model/row.MarketPrice - 1

		implied, err := h.ImpliedVolatility(model)
		if err != nil {
			row.Err = fmt.Errorf("implied volatility: %w", err)
			rep.Rows[i] = row
			continue
		}
		row.ImpliedVol = implied
		diff := implied/row.MarketVol - 1
		sumSq += diff * diff
		rep.Rows[i] = row
	}
	rep.CumulativeError = math.Sqrt(sumSq)
	return rep, nil
}

// String renders the fixed-width report table.
func (r Report) String() string {
	var b strings.Builder
	b.WriteString("Model Price | Market Price | Implied Vol | Market Vol | Rel Error\n")
	for _, row := range r.Rows {
		if row.Err != nil {
			fmt.Fprintf(&b, "%11.5f | %12.5f |  <error: %v>\n", row.ModelPrice, row.MarketPrice, row.Err)
			continue
		}
		fmt.Fprintf(&b, "%11.5f | %12.5f | %11.5f | %10.5f | %9.5f\n",
			row.ModelPrice, row.MarketPrice, row.ImpliedVol, row.MarketVol, row.RelError)
	}
	fmt.Fprintf(&b, "Cumulative Error: %.5f\n", r.CumulativeError)
	return b.String()
}
