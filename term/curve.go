package term

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// YieldCurve is a discount term structure anchored at an explicit reference
// date. Constructors take the reference date as an argument so a curve
// snapshot is immutable and self-describing; there is no process-wide
// evaluation date.
type YieldCurve interface {
	ReferenceDate() time.Time
	DayCount() DayCount

	// DiscountAt returns the discount factor for a time measured in year
	// fractions (DayCount) from the reference date.
	DiscountAt(t float64) float64

	// Discount returns the discount factor for a calendar date.
	Discount(d time.Time) float64
}

// TimeFromReference converts a date to curve time.
func TimeFromReference(c YieldCurve, d time.Time) float64 {
	return c.DayCount().YearFraction(c.ReferenceDate(), d)
}

// ForwardRate returns the continuously compounded forward between two curve
// times.
func ForwardRate(c YieldCurve, t1, t2 float64) float64 {
	if t2 <= t1 {
		return InstantaneousForward(c, t1)
	}
	return math.Log(c.DiscountAt(t1)/c.DiscountAt(t2)) / (t2 - t1)
}

// InstantaneousForward returns f(0,t) by central difference on -ln D.
func InstantaneousForward(c YieldCurve, t float64) float64 {
	h := 1e-4
	lo := t - h
	if lo < 0 {
		lo = 0
	}
	hi := t + h
	return math.Log(c.DiscountAt(lo)/c.DiscountAt(hi)) / (hi - lo)
}

// FlatForward is a flat continuously compounded curve.
type FlatForward struct {
	reference time.Time
	rate      float64
	dc        DayCount
}

func NewFlatForward(reference time.Time, rate float64, dc DayCount) *FlatForward {
	return &FlatForward{reference: reference, rate: rate, dc: dc}
}

func (c *FlatForward) ReferenceDate() time.Time { return c.reference }
func (c *FlatForward) DayCount() DayCount { return c.dc }
func (c *FlatForward) Rate() float64 { return c.rate }

func (c *FlatForward) DiscountAt(t float64) float64 {
	if t <= 0 {
		return 1.0
	}
	return math.Exp(-c.rate * t)
}

func (c *FlatForward) Discount(d time.Time) float64 {
	return c.DiscountAt(TimeFromReference(c, d))
}

// ZeroCurve interpolates discount factors log-linearly between pillar
// dates, with flat forward extrapolation past the last pillar.
type ZeroCurve struct {
	reference time.Time
	dc        DayCount
	times     []float64
	dfs       []float64
}

var errNoPillars = errors.New("term: zero curve needs at least one pillar")

// NewZeroCurve builds a curve from pillar dates and their discount factors.
// Pillars need not be sorted; a pillar at the reference date is implied.
func NewZeroCurve(reference time.Time, dc DayCount, dates []time.Time, dfs []float64) (*ZeroCurve, error) {
	if len(dates) == 0 {
		return nil, errNoPillars
	}
	if len(dates) != len(dfs) {
		return nil, fmt.Errorf("term: %d pillar dates but %d discount factors", len(dates), len(dfs))
	}
	type pillar struct {
		t  float64
		df float64
	}
	pillars := []pillar{{0, 1.0}}
	for i, d := range dates {
		t := dc.YearFraction(reference, d)
		if t <= 0 {
			continue
		}
		if dfs[i] <= 0 {
			return nil, fmt.Errorf("term: non-positive discount factor %g at %s", dfs[i], d.Format("2006-01-02"))
		}
		pillars = append(pillars, pillar{t, dfs[i]})
	}
	sort.Slice(pillars, func(i, j int) bool { return pillars[i].t < pillars[j].t })
	c := &ZeroCurve{reference: reference, dc: dc}
	for _, p := range pillars {
		c.times = append(c.times, p.t)
		c.dfs = append(c.dfs, p.df)
	}
	return c, nil
}

func (c *ZeroCurve) ReferenceDate() time.Time { return c.reference }
func (c *ZeroCurve) DayCount() DayCount { return c.dc }

func (c *ZeroCurve) DiscountAt(t float64) float64 {
	if t <= 0 {
		return 1.0
	}
	n := len(c.times)
	i := sort.SearchFloat64s(c.times, t)
	if i < n && c.times[i] == t {
		return c.dfs[i]
	}
	if i >= n {
		// Flat forward extrapolation from the last segment.
		if n == 1 {
			return 1.0
		}
		fwd := math.Log(c.dfs[n-2]/c.dfs[n-1]) / (c.times[n-1] - c.times[n-2])
		return c.dfs[n-1] * math.Exp(-fwd*(t-c.times[n-1]))
	}
	t1, t2 := c.times[i-1], c.times[i]
	fwd := math.Log(c.dfs[i-1]/c.dfs[i]) / (t2 - t1)
	return c.dfs[i-1] * math.Exp(-fwd*(t-t1))
}

func (c *ZeroCurve) Discount(d time.Time) float64 {
	return c.DiscountAt(TimeFromReference(c, d))
}

// ZeroRateAt returns the continuously compounded zero rate at curve time t.
func (c *ZeroCurve) ZeroRateAt(t float64) float64 {
	if t <= 0 {
		t = 1e-8
	}
	return -math.Log(c.DiscountAt(t)) / t
}
