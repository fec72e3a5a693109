package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// EvaluateFunc scores one strategy. Lower is better.
type EvaluateFunc func(ctx context.Context, s models.Strategy) (float64, error)

// Step records the strategy held after one iteration
type Step struct {
	Iteration int             `json:"iteration"`
	Score     float64         `json:"score"`
	Strategy  models.Strategy `json:"strategy"`
}

// Result is the outcome of an optimization
type Result struct {
	Best       models.Strategy `json:"best"`
	BestScore  float64         `json:"best_score"`
	Iterations int             `json:"iterations"`
	History    []Step          `json:"history"`
	Converged  bool            `json:"converged"`
	Reason     string          `json:"reason"`
}

// Optimizer hill-climbs over strategies: every iteration it evaluates all
// neighbors of the current strategy and moves to the best one if it scores
// lower. It stops at a local optimum or after maxIterations.
type Optimizer struct {
	maxIterations int
	parallelism   int
	explorer      Explorer
	logger        *slog.Logger
}

// NewOptimizer creates an optimizer using the default explorer
func NewOptimizer(maxIterations int) *Optimizer {
	if maxIterations <= 0 {
		maxIterations = 10
	}
	return &Optimizer{
		maxIterations: maxIterations,
		parallelism:   2,
		explorer:      NewDefaultExplorer(),
		logger:        logger.Default,
	}
}

// WithExplorer sets the neighbor generator
func (o *Optimizer) WithExplorer(e Explorer) *Optimizer {
	o.explorer = e
	return o
}

// WithParallelism bounds how many neighbors are evaluated at once
func (o *Optimizer) WithParallelism(n int) *Optimizer {
	if n > 0 {
		o.parallelism = n
	}
	return o
}

// WithLogger sets the logger
func (o *Optimizer) WithLogger(l *slog.Logger) *Optimizer {
	if l != nil {
		o.logger = l
	}
	return o
}

// Optimize searches from initial for a lower-scoring strategy over a race
// of the given length
func (o *Optimizer) Optimize(ctx context.Context, initial models.Strategy, laps int, evaluate EvaluateFunc) (*Result, error) {
	if evaluate == nil {
		return nil, errors.New("evaluation function is required")
	}

	score, err := evaluate(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate initial strategy: %w", err)
	}

	current := cloneStrategy(initial)
	result := &Result{
		History: []Step{{Iteration: 0, Score: score, Strategy: current}},
	}

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		result.Iterations = iteration

		neighbors := o.explorer.GenerateNeighbors(current, laps)
		if len(neighbors) == 0 {
			return o.finish(result, current, score, true, "no valid neighbors"), nil
		}

		scores, errs, err := o.evaluateAll(ctx, neighbors, evaluate)
		if err != nil {
			return nil, err
		}

		best := -1
		for i, s := range scores {
			if errs[i] == nil && s < score && (best < 0 || s < scores[best]) {
				best = i
			}
		}
		if best < 0 {
			return o.finish(result, current, score, true, "local optimum"), nil
		}

		current, score = neighbors[best], scores[best]
		result.History = append(result.History, Step{Iteration: iteration, Score: score, Strategy: current})
		o.logger.Debug("Strategy improved", "iteration", iteration, "score", score)
	}

	return o.finish(result, current, score, false, "max iterations reached"), nil
}

func (o *Optimizer) finish(r *Result, best models.Strategy, score float64, converged bool, reason string) *Result {
	r.Best = best
	r.BestScore = score
	r.Converged = converged
	r.Reason = reason
	return r
}

// evaluateAll scores candidates in parallel. A failed evaluation is
// reported in its slot of errs; only cancellation aborts.
func (o *Optimizer) evaluateAll(ctx context.Context, candidates []models.Strategy, evaluate EvaluateFunc) (scores []float64, errs []error, err error) {
	scores = make([]float64, len(candidates))
	errs = make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for i, c := range candidates {
		g.Go(func() error {
			scores[i], errs[i] = evaluate(ctx, c)
			if errs[i] != nil {
				o.logger.Debug("Strategy failed to evaluate", "error", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return scores, errs, nil
}

// Candidate is a named strategy to rank
type Candidate struct {
	Name     string          `json:"name"`
	Strategy models.Strategy `json:"strategy"`
}

// Ranked is a scored candidate
type Ranked struct {
	Candidate
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

// Rank evaluates every candidate and orders them by ascending score.
// Candidates that fail to evaluate are placed last with their error.
func (o *Optimizer) Rank(ctx context.Context, candidates []Candidate, evaluate EvaluateFunc) ([]Ranked, error) {
	strategies := make([]models.Strategy, len(candidates))
	for i, c := range candidates {
		strategies[i] = c.Strategy
	}

	scores, errs, err := o.evaluateAll(ctx, strategies, evaluate)
	if err != nil {
		return nil, err
	}

	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		ranked[i] = Ranked{Candidate: c, Score: scores[i]}
		if errs[i] != nil {
			ranked[i].Score = 0
			ranked[i].Error = errs[i].Error()
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if (ranked[i].Error == "") != (ranked[j].Error == "") {
			return ranked[i].Error == ""
		}
		return ranked[i].Score < ranked[j].Score
	})
	return ranked, nil
}
