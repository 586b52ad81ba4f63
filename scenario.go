package main

import (
	"fmt"
	"os"
	"time"

	"github.com/xhhuango/json"
	"gopkg.in/yaml.v3"

	"github.com/jsterling/ratecal/calibration"
	"github.com/jsterling/ratecal/term"
)

// Scenario is the on-disk calibration setup (YAML).
type Scenario struct {
	EvaluationDate string        `yaml:"evaluation_date"`
	Curve          CurveConfig   `yaml:"curve"`
	Quotes         []QuoteConfig `yaml:"quotes"`
	Models         []string      `yaml:"models"`
	TreeSteps      int           `yaml:"tree_steps"`
	Optimizer      OptimConfig   `yaml:"optimizer"`
	FixedParams    []bool        `yaml:"fixed_params"`
	Plot           string        `yaml:"plot"`
}

type CurveConfig struct {
	FlatRate float64 `yaml:"flat_rate"`
	// Optional explicit pillars; when present they override flat_rate.
	Pillars []PillarConfig `yaml:"pillars"`
}

type PillarConfig struct {
	Date     string  `yaml:"date" json:"date"`
	Discount float64 `yaml:"discount" json:"discount"`
}

type QuoteConfig struct {
	StartYears  int     `yaml:"start_years" json:"start_years"`
	LengthYears int     `yaml:"length_years" json:"length_years"`
	Volatility  float64 `yaml:"volatility" json:"volatility"`
}

type OptimConfig struct {
	Method                  string  `yaml:"method"` // levenberg-marquardt (default) or simplex
	MaxIterations           int     `yaml:"max_iterations"`
	MaxStationaryIterations int     `yaml:"max_stationary_iterations"`
	FunctionTolerance       float64 `yaml:"function_tolerance"`
	StepTolerance           float64 `yaml:"step_tolerance"`
	GradientTolerance       float64 `yaml:"gradient_tolerance"`
}

// LoadScenario reads and validates a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if _, err := s.evaluationDate(); err != nil {
		return err
	}
	if len(s.Quotes) == 0 {
		return fmt.Errorf("no quotes")
	}
	if s.Curve.FlatRate <= 0 && len(s.Curve.Pillars) == 0 {
		return fmt.Errorf("curve needs a flat_rate or pillars")
	}
	if len(s.Models) == 0 {
		s.Models = []string{"hull-white"}
	}
	if s.TreeSteps <= 0 {
		s.TreeSteps = 100
	}
	return nil
}

func (s *Scenario) evaluationDate() (time.Time, error) {
	d, err := time.Parse("2006-01-02", s.EvaluationDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("evaluation_date %q: %w", s.EvaluationDate, err)
	}
	return d, nil
}

// BuildCurve constructs the curve snapshot for the scenario's evaluation
// date.
func (s *Scenario) BuildCurve() (term.YieldCurve, error) {
	ref, err := s.evaluationDate()
	if err != nil {
		return nil, err
	}
	if len(s.Curve.Pillars) > 0 {
		dates := make([]time.Time, len(s.Curve.Pillars))
		dfs := make([]float64, len(s.Curve.Pillars))
		for i, p := range s.Curve.Pillars {
			d, err := time.Parse("2006-01-02", p.Date)
			if err != nil {
				return nil, fmt.Errorf("pillar date %q: %w", p.Date, err)
			}
			dates[i] = d
			dfs[i] = p.Discount
		}
		return term.NewZeroCurve(ref, term.Act365F, dates, dfs)
	}
	return term.NewFlatForward(ref, s.Curve.FlatRate, term.Act365F), nil
}

// CalibrationQuotes converts the scenario rows into calibration quotes.
func (s *Scenario) CalibrationQuotes() []calibration.Quote {
	quotes := make([]calibration.Quote, len(s.Quotes))
	for i, q := range s.Quotes {
		quotes[i] = calibration.Quote{
			Start:      term.YearsOf(q.StartYears),
			Length:     term.YearsOf(q.LengthYears),
			Volatility: q.Volatility,
		}
	}
	return quotes
}

// EndCriteria maps the optimizer section onto the driver's criteria,
// falling back to defaults for unset fields.
func (s *Scenario) EndCriteria() calibration.EndCriteria {
	ec := calibration.DefaultEndCriteria()
	if s.Optimizer.MaxIterations > 0 {
		ec.MaxIterations = s.Optimizer.MaxIterations
	}
	if s.Optimizer.MaxStationaryIterations > 0 {
		ec.MaxStationaryIterations = s.Optimizer.MaxStationaryIterations
	}
	if s.Optimizer.FunctionTolerance > 0 {
		ec.FunctionTolerance = s.Optimizer.FunctionTolerance
	}
	if s.Optimizer.StepTolerance > 0 {
		ec.StepTolerance = s.Optimizer.StepTolerance
	}
	if s.Optimizer.GradientTolerance > 0 {
		ec.GradientTolerance = s.Optimizer.GradientTolerance
	}
	return ec
}

// Method picks the optimization method named in the scenario.
func (s *Scenario) Method() (calibration.Method, error) {
	switch s.Optimizer.Method {
	case "", "levenberg-marquardt", "lm":
		return calibration.LevenbergMarquardt{}, nil
	case "simplex", "nelder-mead":
		return calibration.Simplex{}, nil
	default:
		return nil, fmt.Errorf("unknown optimizer method %q", s.Optimizer.Method)
	}
}

// LoadQuotesJSON reads a JSON quote table and merges it into the scenario,
// replacing any YAML quotes.
func (s *Scenario) LoadQuotesJSON(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read quotes: %w", err)
	}
	var quotes []QuoteConfig
	if err := json.Unmarshal(raw, &quotes); err != nil {
		return fmt.Errorf("parse quotes %s: %w", path, err)
	}
	if len(quotes) == 0 {
		return fmt.Errorf("quotes %s: empty table", path)
	}
	s.Quotes = quotes
	return nil
}
