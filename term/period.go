package term

import (
	"fmt"
	"time"
)

// Unit is the calendar unit of a Period.
type Unit int

const (
	Months Unit = iota
	Years
)

// Period is a calendar tenor such as 6M or 5Y.
type Period struct {
	Length int
	Unit   Unit
}

func NewPeriod(length int, unit Unit) Period {
	return Period{Length: length, Unit: unit}
}

// YearsOf returns a whole-year period.
func YearsOf(n int) Period { return Period{Length: n, Unit: Years} }

// MonthsOf returns a whole-month period.
func MonthsOf(n int) Period { return Period{Length: n, Unit: Months} }

// AddTo advances a date by the period.
func (p Period) AddTo(t time.Time) time.Time {
	switch p.Unit {
	case Years:
		return t.AddDate(p.Length, 0, 0)
	default:
		return t.AddDate(0, p.Length, 0)
	}
}

// InMonths returns the period length expressed in months.
func (p Period) InMonths() int {
	if p.Unit == Years {
		return 12 * p.Length
	}
	return p.Length
}

func (p Period) String() string {
	if p.Unit == Years {
		return fmt.Sprintf("%dY", p.Length)
	}
	return fmt.Sprintf("%dM", p.Length)
}
