package term

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestYearFraction(t *testing.T) {
	start := date(2024, 1, 15)

	require.InDelta(t, 1.0, Act365F.YearFraction(start, date(2025, 1, 14)), 1e-12)
	require.InDelta(t, 365.0/360.0, Act360.YearFraction(start, date(2025, 1, 14)), 1e-12)
	require.InDelta(t, 0.5, Thirty360.YearFraction(date(2024, 1, 31), date(2024, 7, 31)), 1e-12)
	require.InDelta(t, 1.0, Thirty360.YearFraction(start, date(2025, 1, 15)), 1e-12)
}

func TestPeriod(t *testing.T) {
	require.Equal(t, "5Y", YearsOf(5).String())
	require.Equal(t, "6M", MonthsOf(6).String())
	require.Equal(t, 60, YearsOf(5).InMonths())
	require.Equal(t, date(2027, 8, 15), YearsOf(2).AddTo(date(2025, 8, 15)))
	require.Equal(t, date(2026, 2, 15), MonthsOf(6).AddTo(date(2025, 8, 15)))
}

func TestFlatForwardDiscount(t *testing.T) {
	ref := date(2002, 2, 15)
	c := NewFlatForward(ref, 0.05, Act365F)

	require.InDelta(t, 1.0, c.DiscountAt(0), 1e-15)
	require.InDelta(t, math.Exp(-0.05*2), c.DiscountAt(2), 1e-15)
	require.InDelta(t, 0.05, InstantaneousForward(c, 3.2), 1e-6)
	require.InDelta(t, 0.05, ForwardRate(c, 1, 4), 1e-12)

	d := date(2003, 2, 15)
	require.InDelta(t, c.DiscountAt(Act365F.YearFraction(ref, d)), c.Discount(d), 1e-15)
}

func TestZeroCurveInterpolation(t *testing.T) {
	ref := date(2024, 6, 3)
	dates := []time.Time{date(2025, 6, 3), date(2026, 6, 3), date(2029, 6, 3)}
	dfs := []float64{0.97, 0.93, 0.80}

	c, err := NewZeroCurve(ref, Act365F, dates, dfs)
	require.NoError(t, err)

	// Exact pillars reproduce inputs.
	for i, d := range dates {
		require.InDelta(t, dfs[i], c.Discount(d), 1e-12)
	}

	// Interpolated DF sits between bracketing pillars and matches the
	// log-linear forward between them.
	t1 := Act365F.YearFraction(ref, dates[1])
	t2 := Act365F.YearFraction(ref, dates[2])
	mid := 0.5 * (t1 + t2)
	fwd := math.Log(dfs[1]/dfs[2]) / (t2 - t1)
	require.InDelta(t, dfs[1]*math.Exp(-fwd*(mid-t1)), c.DiscountAt(mid), 1e-12)

	// Flat forward extrapolation beyond the last pillar.
	require.InDelta(t, dfs[2]*math.Exp(-fwd*2.0), c.DiscountAt(t2+2.0), 1e-12)

	// Degenerate inputs.
	_, err = NewZeroCurve(ref, Act365F, nil, nil)
	require.Error(t, err)
	_, err = NewZeroCurve(ref, Act365F, dates[:1], []float64{-0.5})
	require.Error(t, err)
}

func TestBuildSchedule(t *testing.T) {
	ref := date(2002, 2, 15)
	c := NewFlatForward(ref, 0.04875825, Act365F)
	start := YearsOf(1).AddTo(ref)

	s, err := BuildSchedule(c, start, YearsOf(5), 12, Thirty360)
	require.NoError(t, err)
	require.Len(t, s.Dates, 5)
	require.Equal(t, date(2008, 2, 15), s.Maturity())
	for _, a := range s.Accruals {
		require.InDelta(t, 1.0, a, 1e-12)
	}
	for i, d := range s.Dates {
		require.InDelta(t, Act365F.YearFraction(ref, d), s.Times[i], 1e-12)
	}

	semi, err := BuildSchedule(c, start, YearsOf(2), 6, Act360)
	require.NoError(t, err)
	require.Len(t, semi.Dates, 4)

	_, err = BuildSchedule(c, start, YearsOf(5), 0, Thirty360)
	require.Error(t, err)
	_, err = BuildSchedule(c, start, MonthsOf(7), 6, Thirty360)
	require.Error(t, err)
}
