package engines

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/cpu"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

// StudyPoint is one row of a lattice refinement study.
type StudyPoint struct {
	Steps int
	Price float64
	Err   error
}

// ConvergenceStudy prices the same swaption with engines of increasing
// step counts, fanning the independent valuations out over a worker pool.
// Each valuation is itself single-threaded; only the sweep is parallel.
func ConvergenceStudy(factory func(steps int) PricingEngine, s Swaption, stepCounts []int, showProgress bool) []StudyPoint {
	numWorkers := runtime.NumCPU()
	if counts, err := cpu.Counts(true); err == nil && counts > 0 {
		numWorkers = counts
	}
	if numWorkers > len(stepCounts) {
		numWorkers = len(stepCounts)
	}

	var bar *mpb.Bar
	var progress *mpb.Progress
	if showProgress {
		progress = mpb.New(mpb.WithWidth(64))
		bar = progress.AddBar(int64(len(stepCounts)),
			mpb.PrependDecorators(
				decor.Name("Lattice sweep"),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
			),
		)
	}

	points := make([]StudyPoint, len(stepCounts))
	jobs := make(chan int, len(stepCounts))
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				steps := stepCounts[i]
				price, err := factory(steps).Price(s)
				points[i] = StudyPoint{Steps: steps, Price: price, Err: err}
				if bar != nil {
					bar.Increment()
				}
			}
		}()
	}
	for i := range stepCounts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if progress != nil {
		progress.Wait()
	}
	return points
}
