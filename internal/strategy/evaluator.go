package strategy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/montecarlo"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// ErrDriverNotFound is returned when the driver is absent from a batch result
var ErrDriverNotFound = errors.New("driver not found in batch result")

// Evaluator scores one driver's strategy by simulating a batch with the
// strategy substituted into the request. Every evaluation reuses the same
// seed so candidates are compared on the same random draws.
type Evaluator struct {
	runner    *montecarlo.Runner
	request   models.BatchRequest
	driver    string
	objective Objective
}

// NewEvaluator creates an evaluator for driver. A zero request seed is
// replaced by a fixed one for the lifetime of the evaluator.
func NewEvaluator(runner *montecarlo.Runner, req models.BatchRequest, driver string, objective Objective) *Evaluator {
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if objective == nil {
		objective = MeanPositionObjective{}
	}
	return &Evaluator{runner: runner, request: req, driver: driver, objective: objective}
}

// Evaluate implements EvaluateFunc
func (e *Evaluator) Evaluate(ctx context.Context, s models.Strategy) (float64, error) {
	req := e.request
	req.Strategies = maps.Clone(e.request.Strategies)
	if req.Strategies == nil {
		req.Strategies = make(map[string]models.Strategy, 1)
	}
	req.Strategies[e.driver] = s

	result, err := e.runner.Run(ctx, req, nil)
	if err != nil {
		return 0, fmt.Errorf("simulate strategy for %s: %w", e.driver, err)
	}
	for _, d := range result.Drivers {
		if d.Name == e.driver {
			return e.objective.Evaluate(d)
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrDriverNotFound, e.driver)
}
