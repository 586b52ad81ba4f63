package term

import "time"

// DayCount identifies a day-count convention used to convert a pair of
// dates into a year fraction.
type DayCount int

const (
	Act365F DayCount = iota
	Act360
	Thirty360
)

func (dc DayCount) String() string {
	switch dc {
	case Act360:
		return "ACT/360"
	case Thirty360:
		return "30/360"
	default:
		return "ACT/365F"
	}
}

// YearFraction computes the accrual fraction between two dates under the
// convention. 30/360 follows the Eurobond basis with day-of-month capped
// at 30.
func (dc DayCount) YearFraction(start, end time.Time) float64 {
	switch dc {
	case Act360:
		return days(start, end) / 360.0
	case Thirty360:
		d1 := start.Day()
		if d1 > 30 {
			d1 = 30
		}
		d2 := end.Day()
		if d2 > 30 {
			d2 = 30
		}
		y1, m1 := start.Year(), int(start.Month())
		y2, m2 := end.Year(), int(end.Month())
		return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
	default:
		return days(start, end) / 365.0
	}
}

func days(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}
