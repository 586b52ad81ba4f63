package calibration

import (
	"golang.org/x/exp/rand"

	"github.com/jsterling/ratecal/models"
)

// CalibrateMultiStart reruns Calibrate from random starting points drawn
// inside the given box, keeping the best result. Fixed parameters stay at
// the model's current value and are never resampled. The seed makes the
// sequence of starting points, and therefore the outcome, deterministic.
func CalibrateMultiStart(model models.ShortRateModel, helpers []*SwaptionHelper, method Method,
	ec EndCriteria, opts *Options, box models.BoundaryConstraint, attempts int, seed uint64) (Result, error) {

	rng := rand.New(rand.NewSource(seed))
	base := append([]float64(nil), model.Params()...)

	best, err := Calibrate(model, helpers, method, ec, opts)
	if err != nil {
		return best, err
	}

	for k := 0; k < attempts; k++ {
		start := make([]float64, len(base))
		for i := range start {
			if opts != nil && i < len(opts.FixedParams) && opts.FixedParams[i] {
				start[i] = base[i]
				continue
			}
			lo, hi := box.Low[i], box.High[i]
			start[i] = lo + rng.Float64()*(hi-lo)
		}
		if err := model.SetParams(start); err != nil {
			return best, err
		}
		res, err := Calibrate(model, helpers, method, ec, opts)
		if err != nil {
			continue
		}
		if res.Status != StatusFailed && res.Cost < best.Cost {
			best = res
		}
	}

	// Leave the model at the winning parameters.
	if err := model.SetParams(best.Params); err != nil {
		return best, err
	}
	return best, nil
}
