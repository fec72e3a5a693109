// Package montecarlo runs many independent simulations of one race and
// aggregates their classifications.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/model"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/race"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
)

// ErrInvalidRequest is returned for batches that cannot be run
var ErrInvalidRequest = errors.New("invalid batch request")

// ProgressFunc is called after each completed trial
type ProgressFunc func(done, total int)

// Option configures a Runner
type Option func(*Runner)

// WithWorkers bounds the number of trials simulated at once
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithModels sets the provider shared by all trials
func WithModels(p model.Provider) Option {
	return func(r *Runner) {
		r.provider = p
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics manager
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTestFixtures replaces the race test-mode fixtures
func WithTestFixtures(f race.TestFixtures) Option {
	return func(r *Runner) {
		r.fixtures = &f
	}
}

// Runner simulates batches of races over shared read-only tables
type Runner struct {
	tables   *data.Tables
	provider model.Provider
	workers  int
	logger   *slog.Logger
	metrics  *metrics.Manager
	fixtures *race.TestFixtures
}

// NewRunner creates a runner. Without WithModels every trial shares one
// table-backed provider so fitted models are reused across trials.
func NewRunner(tables *data.Tables, opts ...Option) *Runner {
	r := &Runner{
		tables:  tables,
		workers: runtime.NumCPU(),
		logger:  logger.Default,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.provider == nil {
		r.provider = model.NewTableProvider(tables, model.WithLogger(r.logger), model.WithMetrics(r.metrics))
	}
	return r
}

// Provider returns the model provider shared by the trials
func (r *Runner) Provider() model.Provider {
	return r.provider
}

type trial struct {
	outcomes  []models.Outcome
	safetyCar bool
}

// Run simulates req.Simulations trials in parallel and aggregates them.
// Trial i draws from a source seeded with req.Seed+i+1, so a non-zero seed
// makes the batch reproducible. Test-mode trials use the race's fixed seed.
func (r *Runner) Run(ctx context.Context, req models.BatchRequest, progress ProgressFunc) (*models.BatchResult, error) {
	if req.Simulations <= 0 {
		return nil, fmt.Errorf("%w: simulations must be positive, got %d", ErrInvalidRequest, req.Simulations)
	}
	if req.Location == "" {
		return nil, fmt.Errorf("%w: location is required", ErrInvalidRequest)
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log := r.logger.With("season", req.Season, "location", req.Location)
	log.Info("Starting batch", "simulations", req.Simulations, "workers", r.workers, "test_mode", req.TestMode)
	start := time.Now()

	trials := make([]trial, req.Simulations)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := 0; i < req.Simulations; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sim, err := r.newSimulation(req, seed+int64(i)+1, log)
			if err != nil {
				return err
			}
			sim.Run()
			trials[i] = trial{outcomes: sim.Outcomes(), safetyCar: len(sim.SafetyCarLaps()) > 0}

			r.metrics.RecordTrial()
			n := int(done.Add(1))
			if progress != nil {
				progress(n, req.Simulations)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := r.aggregate(trials)
	raceRow, _ := r.tables.FindRace(req.Season, req.Location)
	result.Comparison = r.compare(raceRow.ID, result.Drivers, log)

	log.Info("Batch completed", "trials", result.Trials, "elapsed", time.Since(start))
	return result, nil
}

func (r *Runner) newSimulation(req models.BatchRequest, seed int64, log *slog.Logger) (*race.Simulation, error) {
	opts := []race.Option{
		race.WithModels(r.provider),
		race.WithLogger(log),
		race.WithMetrics(r.metrics),
	}
	if !req.TestMode {
		opts = append(opts, race.WithRandSource(utils.NewRandSource(seed)))
	}
	if r.fixtures != nil {
		opts = append(opts, race.WithTestFixtures(*r.fixtures))
	}
	params := race.Params{
		Season:     req.Season,
		Location:   req.Location,
		Strategies: req.Strategies,
		TestMode:   req.TestMode,
	}
	return race.New(r.tables, params, opts...)
}
