package strategy

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// distanceScore prefers a single stop on lap 14 onto A4
func distanceScore(_ context.Context, s models.Strategy) (float64, error) {
	if len(s.Stops) == 0 {
		return 0, errors.New("no stop")
	}
	score := math.Abs(float64(s.Stops[0].PitLap - 14))
	if s.Stops[0].Compound != "A4" {
		score += 3
	}
	return score, nil
}

func TestOptimizerFindsLocalOptimum(t *testing.T) {
	opt := NewOptimizer(10).WithLogger(logger.Discard()).WithParallelism(3)

	result, err := opt.Optimize(context.Background(), oneStop(10), 30, distanceScore)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if result.BestScore != 0 {
		t.Errorf("Expected best score 0, got %f", result.BestScore)
	}
	best := result.Best.Stops[0]
	if best.PitLap != 14 || best.Compound != "A4" {
		t.Errorf("Expected stop on lap 14 onto A4, got %+v", best)
	}
	if !result.Converged || result.Reason != "local optimum" {
		t.Errorf("Expected convergence at a local optimum, got %v %q", result.Converged, result.Reason)
	}
	if len(result.History) != 4 {
		t.Fatalf("Expected 4 history steps, got %d", len(result.History))
	}
	wantScores := []float64{7, 4, 2, 0}
	for i, step := range result.History {
		if step.Score != wantScores[i] || step.Iteration != i {
			t.Errorf("Step %d: expected score %f, got %+v", i, wantScores[i], step)
		}
	}
	if result.Iterations != 4 {
		t.Errorf("Expected 4 iterations, got %d", result.Iterations)
	}
}

func TestOptimizerStopsAtMaxIterations(t *testing.T) {
	result, err := NewOptimizer(1).WithLogger(logger.Discard()).Optimize(context.Background(), oneStop(10), 30, distanceScore)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if result.Converged || result.Reason != "max iterations reached" {
		t.Errorf("Expected max iterations, got %v %q", result.Converged, result.Reason)
	}
	if result.BestScore != 4 {
		t.Errorf("Expected best score 4, got %f", result.BestScore)
	}
}

func TestOptimizerErrors(t *testing.T) {
	opt := NewOptimizer(5).WithLogger(logger.Discard())

	if _, err := opt.Optimize(context.Background(), oneStop(10), 30, nil); err == nil {
		t.Error("Expected error without evaluation function")
	}

	if _, err := opt.Optimize(context.Background(), models.Strategy{}, 30, distanceScore); err == nil {
		t.Error("Expected error when the initial strategy cannot be evaluated")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := opt.Optimize(ctx, oneStop(10), 30, distanceScore); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestOptimizerRank(t *testing.T) {
	candidates := []Candidate{
		{Name: "late", Strategy: oneStop(20)},
		{Name: "none", Strategy: models.Strategy{StartingCompound: "A3"}},
		{Name: "close", Strategy: oneStop(13)},
	}

	ranked, err := NewOptimizer(1).WithLogger(logger.Discard()).Rank(context.Background(), candidates, distanceScore)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	order := []string{"close", "late", "none"}
	for i, name := range order {
		if ranked[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, ranked[i].Name)
		}
	}
	if ranked[2].Error == "" {
		t.Error("Expected the failed candidate to carry its error")
	}
	if ranked[0].Score != 4 {
		t.Errorf("Expected score 4, got %f", ranked[0].Score)
	}
}
