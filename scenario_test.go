package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jsterling/ratecal/calibration"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenario.yaml")
	require.NoError(t, err)

	require.Len(t, s.Quotes, 5)
	require.Equal(t, []string{"hull-white", "hull-white-tree", "black-karasinski", "g2"}, s.Models)
	require.Equal(t, 100, s.TreeSteps)

	curve, err := s.BuildCurve()
	require.NoError(t, err)
	require.Equal(t, "2002-02-15", curve.ReferenceDate().Format("2006-01-02"))
	require.InDelta(t, 1.0, curve.DiscountAt(0), 1e-15)

	quotes := s.CalibrationQuotes()
	require.Len(t, quotes, 5)
	require.Equal(t, "1Y", quotes[0].Start.String())
	require.Equal(t, "5Y", quotes[0].Length.String())
	require.InDelta(t, 0.1148, quotes[0].Volatility, 1e-12)

	method, err := s.Method()
	require.NoError(t, err)
	require.IsType(t, calibration.LevenbergMarquardt{}, method)

	ec := s.EndCriteria()
	require.Equal(t, 400, ec.MaxIterations)
}

func TestLoadQuotesJSON(t *testing.T) {
	s, err := LoadScenario("testdata/scenario.yaml")
	require.NoError(t, err)

	s.Quotes = nil
	require.NoError(t, s.LoadQuotesJSON("testdata/quotes.json"))
	require.Len(t, s.Quotes, 5)
	require.Equal(t, 1, s.Quotes[0].StartYears)

	require.Error(t, s.LoadQuotesJSON("testdata/missing.json"))
}

func TestScenarioValidation(t *testing.T) {
	_, err := LoadScenario("testdata/missing.yaml")
	require.Error(t, err)

	s := &Scenario{EvaluationDate: "not-a-date"}
	require.Error(t, s.validate())

	s = &Scenario{EvaluationDate: "2002-02-15"}
	require.Error(t, s.validate(), "no quotes")

	s = &Scenario{
		EvaluationDate: "2002-02-15",
		Quotes:         []QuoteConfig{{StartYears: 1, LengthYears: 1, Volatility: 0.1}},
	}
	require.Error(t, s.validate(), "no curve")

	s.Curve.FlatRate = 0.05
	require.NoError(t, s.validate())
	require.Equal(t, []string{"hull-white"}, s.Models)
	require.Equal(t, 100, s.TreeSteps)

	_, err = (&Scenario{Optimizer: OptimConfig{Method: "genetic"}}).Method()
	require.Error(t, err)
}
