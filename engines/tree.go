package engines

import (
	"fmt"
	"math"
	"sort"

	"github.com/jsterling/ratecal/models"
)

// timeGrid is a non-uniform grid containing every mandatory time exactly,
// refined so no step exceeds the target resolution.
type timeGrid struct {
	times []float64
}

func newTimeGrid(mandatory []float64, steps int) timeGrid {
	uniq := []float64{0}
	sorted := append([]float64(nil), mandatory...)
	sort.Float64s(sorted)
	for _, t := range sorted {
		if t > uniq[len(uniq)-1]+1e-10 {
			uniq = append(uniq, t)
		}
	}
	last := uniq[len(uniq)-1]
	if steps < 1 {
		steps = 1
	}
	dtMax := last / float64(steps)

	grid := []float64{0}
	for i := 1; i < len(uniq); i++ {
		span := uniq[i] - uniq[i-1]
		n := int(math.Ceil(span/dtMax - 1e-9))
		if n < 1 {
			n = 1
		}
		for k := 1; k <= n; k++ {
			grid = append(grid, uniq[i-1]+span*float64(k)/float64(n))
		}
	}
	return timeGrid{times: grid}
}

func (g timeGrid) size() int { return len(g.times) }
func (g timeGrid) at(i int) float64 { return g.times[i] }
func (g timeGrid) dt(i int) float64 { return g.times[i+1] - g.times[i] }

func (g timeGrid) index(t float64) (int, bool) {
	i := sort.SearchFloat64s(g.times, t-1e-9)
	if i < len(g.times) && math.Abs(g.times[i]-t) < 1e-8 {
		return i, true
	}
	return 0, false
}

// ShortRateTree is a recombining trinomial lattice for a mean-reverting
// state variable, displaced slice by slice so the lattice reprices the
// model's discount curve exactly (Hull's two-stage procedure with
// Arrow-Debreu state prices).
type ShortRateTree struct {
	model models.LatticeModel
	grid  timeGrid

	jMin  []int
	dx    []float64
	disc  [][]float64 // per-node one-step discount exp(-r dt)
	k     [][]int     // central branch index in the next slice
	pu    [][]float64
	pm    [][]float64
	pd    [][]float64
	q     [][]float64 // Arrow-Debreu state prices
	alpha []float64
}

// NewShortRateTree builds the lattice over the mandatory times with at
// least the given number of steps overall.
func NewShortRateTree(model models.LatticeModel, mandatory []float64, steps int) (*ShortRateTree, error) {
	a := model.MeanReversion()
	sigma := model.Volatility()
	if a <= 0 || sigma <= 0 {
		return nil, fmt.Errorf("engines: lattice needs positive mean reversion and volatility, got a=%g sigma=%g", a, sigma)
	}
	grid := newTimeGrid(mandatory, steps)
	n := grid.size()
	tr := &ShortRateTree{
		model: model,
		grid:  grid,
		jMin:  make([]int, n),
		dx:    make([]float64, n),
		disc:  make([][]float64, n-1),
		k:     make([][]int, n-1),
		pu:    make([][]float64, n-1),
		pm:    make([][]float64, n-1),
		pd:    make([][]float64, n-1),
		q:     make([][]float64, n),
		alpha: make([]float64, n-1),
	}

	// Stage one: tree geometry and branching for the OU core.
	tr.jMin[0] = 0
	tr.dx[0] = 0
	sizes := make([]int, n)
	sizes[0] = 1
	for i := 0; i < n-1; i++ {
		dt := grid.dt(i)
		v2 := sigma * sigma * (1 - math.Exp(-2*a*dt)) / (2 * a)
		v := math.Sqrt(v2)
		tr.dx[i+1] = v * math.Sqrt(3)

		size := sizes[i]
		tr.k[i] = make([]int, size)
		tr.pu[i] = make([]float64, size)
		tr.pm[i] = make([]float64, size)
		tr.pd[i] = make([]float64, size)

		kMin, kMax := math.MaxInt32, math.MinInt32
		for j := 0; j < size; j++ {
			x := float64(tr.jMin[i]+j) * tr.dx[i]
			m := x * math.Exp(-a*dt)
			k := int(math.Round(m / tr.dx[i+1]))
			e := (m - float64(k)*tr.dx[i+1]) / v
			tr.k[i][j] = k
			tr.pu[i][j] = (1 + e*e + e*math.Sqrt(3)) / 6
			tr.pm[i][j] = (2 - e*e) / 3
			tr.pd[i][j] = (1 + e*e - e*math.Sqrt(3)) / 6
			if k < kMin {
				kMin = k
			}
			if k > kMax {
				kMax = k
			}
		}
		tr.jMin[i+1] = kMin - 1
		sizes[i+1] = kMax + 1 - (kMin - 1) + 1
	}

	// Stage two: fit the displacement to the curve by forward induction.
	curve := model.Curve()
	tr.q[0] = []float64{1}
	for i := 0; i < n-1; i++ {
		dt := grid.dt(i)
		target := curve.DiscountAt(grid.at(i + 1))
		alpha, err := tr.fitSlice(i, dt, target)
		if err != nil {
			return nil, err
		}
		tr.alpha[i] = alpha

		size := sizes[i]
		tr.disc[i] = make([]float64, size)
		next := make([]float64, sizes[i+1])
		for j := 0; j < size; j++ {
			x := float64(tr.jMin[i]+j) * tr.dx[i]
			r := model.ShortRateFromState(x + alpha)
			d := math.Exp(-r * dt)
			tr.disc[i][j] = d
			base := tr.k[i][j] - tr.jMin[i+1]
			flow := tr.q[i][j] * d
			next[base+1] += flow * tr.pu[i][j]
			next[base] += flow * tr.pm[i][j]
			next[base-1] += flow * tr.pd[i][j]
		}
		tr.q[i+1] = next
	}
	return tr, nil
}

// fitSlice solves sum_j Q_j exp(-rate(x_j+alpha) dt) = target for alpha.
// The sum is strictly decreasing in alpha, so Newton with a bisection
// fallback is safe for both additive and lognormal rate maps.
func (tr *ShortRateTree) fitSlice(i int, dt, target float64) (float64, error) {
	value := func(alpha float64) float64 {
		sum := 0.0
		for j, qj := range tr.q[i] {
			x := float64(tr.jMin[i]+j) * tr.dx[i]
			sum += qj * math.Exp(-tr.model.ShortRateFromState(x+alpha)*dt)
		}
		return sum - target
	}

	alpha := tr.initialAlphaGuess(i)
	h := 1e-7
	for iter := 0; iter < 50; iter++ {
		v := value(alpha)
		if math.Abs(v) < 1e-14 {
			return alpha, nil
		}
		slope := (value(alpha+h) - value(alpha-h)) / (2 * h)
		if slope >= -1e-18 {
			break
		}
		step := v / slope
		if math.Abs(step) > 5 {
			step = math.Copysign(5, step)
		}
		alpha -= step
	}

	lo, hi := -40.0, 40.0
	vLo := value(lo)
	vHi := value(hi)
	if vLo*vHi > 0 {
		return 0, fmt.Errorf("engines: displacement fit not bracketed at slice %d", i)
	}
	for iter := 0; iter < 200; iter++ {
		mid := 0.5 * (lo + hi)
		v := value(mid)
		if math.Abs(v) < 1e-14 {
			return mid, nil
		}
		if v*vLo > 0 {
			lo, vLo = mid, v
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi), nil
}

func (tr *ShortRateTree) initialAlphaGuess(i int) float64 {
	f := term0ForwardGuess(tr.model, tr.grid.at(i))
	if _, ok := tr.model.(*models.BlackKarasinski); ok {
		return math.Log(f)
	}
	return f
}

func term0ForwardGuess(m models.LatticeModel, t float64) float64 {
	c := m.Curve()
	h := 0.01
	f := math.Log(c.DiscountAt(t)/c.DiscountAt(t+h)) / h
	if f < 1e-6 {
		f = 1e-6
	}
	return f
}

// SliceIndex maps a mandatory time to its grid index.
func (tr *ShortRateTree) SliceIndex(t float64) (int, error) {
	i, ok := tr.grid.index(t)
	if !ok {
		return 0, fmt.Errorf("engines: time %.8f not on the lattice grid", t)
	}
	return i, nil
}

// SliceSize returns the number of nodes on a slice.
func (tr *ShortRateTree) SliceSize(i int) int { return len(tr.q[i]) }

// RollbackStep discounts claim values one step, from slice i+1 to slice i.
func (tr *ShortRateTree) RollbackStep(values []float64, i int) []float64 {
	out := make([]float64, tr.SliceSize(i))
	for j := range out {
		base := tr.k[i][j] - tr.jMin[i+1]
		cont := tr.pu[i][j]*values[base+1] + tr.pm[i][j]*values[base] + tr.pd[i][j]*values[base-1]
		out[j] = tr.disc[i][j] * cont
	}
	return out
}

// TreeSwaptionEngine prices European swaptions on a trinomial short-rate
// lattice: the underlying swap is rolled back to exercise, the payoff
// taken, and the option rolled back to the valuation date. The floating
// leg is replicated by a notional exchange, so its value at an exercise
// node is Nominal*(1 - P(t_end)) with P taken on the lattice.
type TreeSwaptionEngine struct {
	model models.LatticeModel
	steps int
}

func NewTreeSwaptionEngine(model models.LatticeModel, steps int) *TreeSwaptionEngine {
	return &TreeSwaptionEngine{model: model, steps: steps}
}

func (e *TreeSwaptionEngine) Price(s Swaption) (float64, error) {
	if e.model == nil {
		return 0, errModelMissing
	}
	if err := s.validate(); err != nil {
		return 0, err
	}

	mandatory := []float64{s.Exercise}
	mandatory = append(mandatory, s.FixedTimes...)
	mandatory = append(mandatory, s.FloatTimes...)
	tree, err := NewShortRateTree(e.model, mandatory, e.steps)
	if err != nil {
		return 0, err
	}

	// Cashflow amounts by slice index; positive flows to the fixed-rate
	// payer. The floating leg collapses to a notional exchange: receive
	// the nominal at the swap start, pay it back at the final floating
	// payment. Discounted node by node this keeps the swap value state
	// dependent, which is where the option value lives.
	flows := map[int]float64{}
	for idx, T := range s.FixedTimes {
		i, err := tree.SliceIndex(T)
		if err != nil {
			return 0, err
		}
		flows[i] -= s.Nominal * s.Strike * s.FixedAccruals[idx]
	}
	exerciseIdx, err := tree.SliceIndex(s.Exercise)
	if err != nil {
		return 0, err
	}
	floatEnd := s.FixedTimes[len(s.FixedTimes)-1]
	if len(s.FloatTimes) > 0 {
		floatEnd = s.FloatTimes[len(s.FloatTimes)-1]
	}
	endIdx, err := tree.SliceIndex(floatEnd)
	if err != nil {
		return 0, err
	}
	flows[exerciseIdx] += s.Nominal
	flows[endIdx] -= s.Nominal
	lastIdx := exerciseIdx
	for i := range flows {
		if i > lastIdx {
			lastIdx = i
		}
	}

	// Roll the swap value back to exercise, picking up cashflows as their
	// payment slices are crossed.
	swap := make([]float64, tree.SliceSize(lastIdx))
	if amt, ok := flows[lastIdx]; ok {
		for j := range swap {
			swap[j] += amt
		}
	}
	for i := lastIdx - 1; i >= exerciseIdx; i-- {
		swap = tree.RollbackStep(swap, i)
		if amt, ok := flows[i]; ok {
			for j := range swap {
				swap[j] += amt
			}
		}
	}

	option := make([]float64, len(swap))
	for j, v := range swap {
		if !s.Payer {
			v = -v
		}
		if v > 0 {
			option[j] = v
		}
	}
	for i := exerciseIdx - 1; i >= 0; i-- {
		option = tree.RollbackStep(option, i)
	}
	return option[0], nil
}
