package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/jsterling/ratecal/calibration"
	"github.com/jsterling/ratecal/engines"
	"github.com/jsterling/ratecal/models"
	"github.com/jsterling/ratecal/term"
)

type modelRun struct {
	name        string
	result      calibration.Result
	report      calibration.Report
	impliedVols []float64
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env overrides")
	}

	scenarioPath := flag.String("scenario", envOr("RATECAL_SCENARIO", "testdata/scenario.yaml"), "calibration scenario YAML")
	quotesPath := flag.String("quotes", os.Getenv("RATECAL_QUOTES"), "optional JSON quote table overriding the scenario quotes")
	plotPath := flag.String("plot", os.Getenv("RATECAL_PLOT"), "optional PNG path for a market vs model implied-vol chart")
	study := flag.Bool("study", false, "run a lattice refinement study after a Hull-White calibration")
	flag.Parse()

	scenario, err := LoadScenario(*scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading scenario")
	}
	if *quotesPath != "" {
		if err := scenario.LoadQuotesJSON(*quotesPath); err != nil {
			log.Fatal().Err(err).Msg("loading quotes")
		}
	}
	if *plotPath != "" {
		scenario.Plot = *plotPath
	}

	curve, err := scenario.BuildCurve()
	if err != nil {
		log.Fatal().Err(err).Msg("building curve")
	}
	method, err := scenario.Method()
	if err != nil {
		log.Fatal().Err(err).Msg("selecting optimizer")
	}
	quotes := scenario.CalibrationQuotes()
	log.Info().
		Str("evaluation_date", scenario.EvaluationDate).
		Int("quotes", len(quotes)).
		Strs("models", scenario.Models).
		Msg("starting calibration")

	progress := mpb.New(mpb.WithWidth(64))
	bar := progress.AddBar(int64(len(scenario.Models)),
		mpb.PrependDecorators(
			decor.Name("Calibrating"),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)

	var runs []modelRun
	for _, name := range scenario.Models {
		run, err := calibrateOne(name, curve, quotes, method, scenario)
		bar.Increment()
		if err != nil {
			log.Error().Err(err).Str("model", name).Msg("calibration failed")
			continue
		}
		runs = append(runs, run)
	}
	progress.Wait()

	for _, run := range runs {
		fmt.Printf("\n=== %s ===\n", run.name)
		fmt.Printf("Status: %s after %d iterations, cost %.6g\n", run.result.Status, run.result.Iterations, run.result.Cost)
		fmt.Printf("Fitted parameters: %s\n", formatParams(run.name, run.result.Params))
		fmt.Print(run.report)
	}

	if scenario.Plot != "" && len(runs) > 0 {
		if err := renderFitChart(scenario.Plot, quotes, runs); err != nil {
			log.Error().Err(err).Msg("rendering chart")
		} else {
			log.Info().Str("path", scenario.Plot).Msg("wrote implied-vol chart")
		}
	}

	if *study {
		runStudy(curve, quotes, scenario)
	}
}

func calibrateOne(name string, curve term.YieldCurve, quotes []calibration.Quote,
	method calibration.Method, scenario *Scenario) (modelRun, error) {

	helpers, err := calibration.BuildHelpers(curve, quotes, calibration.EuriborConventions())
	if err != nil {
		return modelRun{}, err
	}

	var model models.ShortRateModel
	var engine engines.PricingEngine
	switch name {
	case "hull-white":
		hw := models.NewHullWhite(curve, 0.1, 0.01)
		model, engine = hw, engines.NewJamshidianEngine(hw)
	case "hull-white-tree":
		hw := models.NewHullWhite(curve, 0.1, 0.01)
		model, engine = hw, engines.NewTreeSwaptionEngine(hw, scenario.TreeSteps)
	case "black-karasinski":
		bk := models.NewBlackKarasinski(curve, 0.1, 0.1)
		model, engine = bk, engines.NewTreeSwaptionEngine(bk, scenario.TreeSteps)
	case "g2":
		g2 := models.NewG2(curve, 0.1, 0.01, 0.1, 0.01, -0.75)
		model, engine = g2, engines.NewG2SwaptionEngine(g2)
	default:
		return modelRun{}, fmt.Errorf("unknown model %q", name)
	}
	for _, h := range helpers {
		h.SetEngine(engine)
	}

	var opts *calibration.Options
	if len(scenario.FixedParams) > 0 {
		opts = &calibration.Options{FixedParams: scenario.FixedParams}
	}
	result, err := calibration.Calibrate(model, helpers, method, scenario.EndCriteria(), opts)
	if err != nil {
		return modelRun{}, err
	}

	report, err := calibration.NewReport(helpers)
	if err != nil {
		return modelRun{}, err
	}
	run := modelRun{name: name, result: result, report: report}
	for _, row := range report.Rows {
		run.impliedVols = append(run.impliedVols, row.ImpliedVol)
	}
	return run, nil
}

func formatParams(name string, p []float64) string {
	switch name {
	case "g2":
		return fmt.Sprintf("a=%.6f sigma=%.6f b=%.6f eta=%.6f rho=%.6f", p[0], p[1], p[2], p[3], p[4])
	default:
		return fmt.Sprintf("a=%.6f sigma=%.6f", p[0], p[1])
	}
}

func renderFitChart(path string, quotes []calibration.Quote, runs []modelRun) error {
	xs := make([]float64, len(quotes))
	market := make([]float64, len(quotes))
	for i, q := range quotes {
		xs[i] = float64(i + 1)
		market[i] = q.Volatility
	}

	series := []chart.Series{
		chart.ContinuousSeries{Name: "Market", XValues: xs, YValues: market},
	}
	for _, run := range runs {
		series = append(series, chart.ContinuousSeries{
			Name:    run.name,
			XValues: xs,
			YValues: run.impliedVols,
		})
	}

	graph := chart.Chart{
		Title:  "Swaption implied volatility fit",
		XAxis:  chart.XAxis{Name: "Instrument"},
		YAxis:  chart.YAxis{Name: "Volatility"},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return graph.Render(chart.PNG, f)
}

// runStudy reprices the first calibration instrument on lattices of
// increasing resolution against the analytic Hull-White price.
func runStudy(curve term.YieldCurve, quotes []calibration.Quote, scenario *Scenario) {
	helpers, err := calibration.BuildHelpers(curve, quotes, calibration.EuriborConventions())
	if err != nil {
		log.Error().Err(err).Msg("study setup")
		return
	}
	hw := models.NewHullWhite(curve, 0.1, 0.01)
	for _, h := range helpers {
		h.SetEngine(engines.NewJamshidianEngine(hw))
	}
	if _, err := calibration.Calibrate(hw, helpers, calibration.LevenbergMarquardt{}, scenario.EndCriteria(), nil); err != nil {
		log.Error().Err(err).Msg("study calibration")
		return
	}

	s := helpers[0].Swaption()
	analytic, err := engines.NewJamshidianEngine(hw).Price(s)
	if err != nil {
		log.Error().Err(err).Msg("study analytic price")
		return
	}

	stepCounts := []int{25, 50, 100, 200, 400, 800}
	points := engines.ConvergenceStudy(func(steps int) engines.PricingEngine {
		return engines.NewTreeSwaptionEngine(hw, steps)
	}, s, stepCounts, true)

	fmt.Printf("\n=== Lattice refinement: %s swaption ===\n", helpers[0].Quote())
	fmt.Printf("Analytic price: %.8f\n", analytic)
	fmt.Printf("%8s | %12s | %12s\n", "Steps", "Tree Price", "Abs Error")
	for _, p := range points {
		if p.Err != nil {
			fmt.Printf("%8d | <error: %v>\n", p.Steps, p.Err)
			continue
		}
		fmt.Printf("%8d | %12.8f | %12.8f\n", p.Steps, p.Price, p.Price-analytic)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
