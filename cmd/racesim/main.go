package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/model"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/montecarlo"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/race"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/strategy"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/config"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

func main() {
	var (
		configPath string
		serve      bool
		optimize   string
		objective  string
		iterations int
	)
	flag.StringVar(&configPath, "config", "", "YAML config file (defaults to $RACESIM_CONFIG)")
	flag.BoolVar(&serve, "serve", false, "run the HTTP and gRPC batch service")
	flag.StringVar(&optimize, "optimize", "", "optimize the strategy of the named driver")
	flag.StringVar(&objective, "objective", string(strategy.ObjectiveMeanPosition), "optimization objective (mean_position, median_position, mean_time)")
	flag.IntVar(&iterations, "iterations", 10, "maximum optimization iterations")
	flag.Parse()

	// A missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, serve, optimize, objective, iterations); err != nil {
		log.Error("racesim failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, serve bool, optimize, objective string, iterations int) error {
	tables, err := data.LoadSQLite(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	log.Info("Historical tables loaded", "db_path", cfg.DBPath, "races", len(tables.Races), "laps", len(tables.Laps))

	m := metrics.NewManager()
	provider := model.NewTableProvider(tables,
		model.WithLogger(log),
		model.WithMetrics(m),
		model.WithExcludedLocations(cfg.ExcludedLocations...),
	)
	runner := montecarlo.NewRunner(tables,
		montecarlo.WithWorkers(cfg.Workers),
		montecarlo.WithModels(provider),
		montecarlo.WithLogger(log),
		montecarlo.WithMetrics(m),
	)

	if serve {
		return runServer(ctx, cfg, runner, m, log)
	}

	if cfg.Location == "" || cfg.Season == 0 {
		return fmt.Errorf("%w: season and location are required outside -serve", config.ErrInvalidConfig)
	}
	strategies, err := loadStrategies(cfg, tables)
	if err != nil {
		return err
	}
	req := models.BatchRequest{
		Season:      cfg.Season,
		Location:    cfg.Location,
		Simulations: cfg.Simulations,
		Seed:        cfg.Seed,
		TestMode:    cfg.TestMode,
		Strategies:  strategies,
	}

	if optimize != "" {
		return runOptimization(ctx, tables, runner, req, optimize, objective, iterations, log)
	}

	result, err := runner.Run(ctx, req, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, renderBatch(req, result))
	return nil
}

// loadStrategies prefers the configured YAML file and falls back to the
// strategies actually driven in the historical race
func loadStrategies(cfg *config.Config, tables *data.Tables) (map[string]models.Strategy, error) {
	if cfg.StrategiesPath != "" {
		return config.LoadStrategies(cfg.StrategiesPath)
	}
	strategies, err := strategy.FromHistory(tables, cfg.Season, cfg.Location)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateStrategies(strategies); err != nil {
		return nil, err
	}
	return strategies, nil
}

func runOptimization(ctx context.Context, tables *data.Tables, runner *montecarlo.Runner, req models.BatchRequest, driver, objectiveName string, iterations int, log *slog.Logger) error {
	objective, err := strategy.NewObjective(objectiveName)
	if err != nil {
		return err
	}
	raceRow, ok := tables.FindRace(req.Season, req.Location)
	if !ok {
		return &race.ConfigurationError{Season: req.Season, Location: req.Location, Reason: "no race found"}
	}
	if _, ok := tables.DriverByName(driver); !ok {
		return fmt.Errorf("%w: %s", strategy.ErrDriverNotFound, driver)
	}

	evaluator := strategy.NewEvaluator(runner, req, driver, objective)
	optimizer := strategy.NewOptimizer(iterations).WithLogger(log)

	result, err := optimizer.Optimize(ctx, req.Strategies[driver], raceRow.NoLapsPlanned, evaluator.Evaluate)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Optimization cancelled")
		}
		return err
	}
	fmt.Fprintln(os.Stdout, renderOptimization(driver, objective.Name(), result))
	return nil
}
