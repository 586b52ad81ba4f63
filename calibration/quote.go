// Package calibration fits short-rate model parameters to swaption market
// quotes by nonlinear least squares and reports the quality of the fit.
package calibration

import (
	"fmt"

	"github.com/jsterling/ratecal/term"
)

// Quote is one market observation: a swaption identified by its start
// offset and underlying swap tenor, quoted as a Black volatility.
type Quote struct {
	Start      term.Period
	Length     term.Period
	Volatility float64
}

func (q Quote) String() string {
	return fmt.Sprintf("%sx%s @ %.4f", q.Start, q.Length, q.Volatility)
}
