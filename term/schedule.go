package term

import (
	"fmt"
	"time"
)

// Schedule is a coupon payment schedule resolved against a curve's
// reference date: payment dates, their curve times and accrual fractions.
type Schedule struct {
	Start    time.Time
	Dates    []time.Time
	Times    []float64
	Accruals []float64
}

// BuildSchedule rolls a schedule forward from start to start+tenor with the
// given payment frequency. Accrual fractions use accrualDC; payment times
// are measured from the curve reference date in its own day count.
func BuildSchedule(curve YieldCurve, start time.Time, tenor Period, freqMonths int, accrualDC DayCount) (Schedule, error) {
	if freqMonths <= 0 {
		return Schedule{}, fmt.Errorf("term: invalid payment frequency %dM", freqMonths)
	}
	months := tenor.InMonths()
	if months <= 0 {
		return Schedule{}, fmt.Errorf("term: invalid tenor %s", tenor)
	}
	if months%freqMonths != 0 {
		return Schedule{}, fmt.Errorf("term: tenor %s not a multiple of frequency %dM", tenor, freqMonths)
	}
	s := Schedule{Start: start}
	prev := start
	for m := freqMonths; m <= months; m += freqMonths {
		d := start.AddDate(0, m, 0)
		s.Dates = append(s.Dates, d)
		s.Times = append(s.Times, TimeFromReference(curve, d))
		s.Accruals = append(s.Accruals, accrualDC.YearFraction(prev, d))
		prev = d
	}
	return s, nil
}

// Maturity returns the final payment date.
func (s Schedule) Maturity() time.Time {
	return s.Dates[len(s.Dates)-1]
}
