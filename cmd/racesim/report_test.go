package main

import (
	"strings"
	"testing"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/strategy"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

func TestRenderBatch(t *testing.T) {
	req := models.BatchRequest{Season: 2019, Location: "Monza", Simulations: 10}
	result := &models.BatchResult{
		Trials: 10,
		Drivers: []models.DriverSummary{
			{Name: "Charles Leclerc", Team: "Ferrari", MeanPosition: 1.4, MedianPosition: 1, BestPosition: 1, WorstPosition: 3, MeanTime: 4726.5, PredictedRank: 1, ActualPosition: 1},
			{Name: "Carlos Sainz", Team: "McLaren", MeanPosition: 18, DNFRate: 1, PredictedRank: 2},
		},
		SafetyCarRate: 0.2,
		Comparison:    &models.Comparison{Spearman: 0.9, Drivers: 2},
	}

	out := renderBatch(req, result)
	for _, want := range []string{"Monza 2019", "10 simulations", "Charles Leclerc", "4726.500", "100.0", "Safety car in 20.0%", "spearman 0.900"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderBatchWithoutComparison(t *testing.T) {
	out := renderBatch(models.BatchRequest{Season: 2019, Location: "Sochi"}, &models.BatchResult{Trials: 1})
	if strings.Contains(out, "Against the real result") {
		t.Errorf("Expected no comparison line, got:\n%s", out)
	}
}

func TestRenderStrategy(t *testing.T) {
	s := models.Strategy{
		StartingCompound: "A3",
		Stops:            []models.PitStopPlan{{Compound: "A2", PitLap: 20, Window: [2]int{18, 22}}},
	}
	out := renderStrategy(s)
	if !strings.Contains(out, "(0)") || !strings.Contains(out, "@20 [18-22]") {
		t.Errorf("Unexpected strategy rendering: %q", out)
	}
	if got := renderStrategy(models.Strategy{}); got != "-(0)" {
		t.Errorf("Expected -(0) for an empty strategy, got %q", got)
	}
}

func TestRenderOptimization(t *testing.T) {
	r := &strategy.Result{
		Best:       models.Strategy{StartingCompound: "A4"},
		BestScore:  2.5,
		Iterations: 2,
		History: []strategy.Step{
			{Iteration: 0, Score: 3},
			{Iteration: 1, Score: 2.5},
		},
		Converged: true,
		Reason:    "local optimum",
	}
	out := renderOptimization("Lewis Hamilton", "mean_position", r)
	for _, want := range []string{"Lewis Hamilton", "mean_position = 2.500", "after 2 iterations", "local optimum"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}
