package server

import (
	"context"
	"testing"
	"time"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/model"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/montecarlo"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/race"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

func serverTables() *data.Tables {
	return &data.Tables{
		Races: []models.Race{{ID: 10, Season: 2019, Location: "Testville", NoLapsPlanned: 5}},
		Drivers: []models.Driver{
			{ID: 1, Name: "Ann Able"},
			{ID: 2, Name: "Ben Baker"},
		},
		Qualifyings: []models.Qualifying{
			{RaceID: 10, DriverID: 1, Position: 1, Q1LapTime: 80},
			{RaceID: 10, DriverID: 2, Position: 2, Q1LapTime: 81},
		},
		StarterFields: []models.StarterField{
			{RaceID: 10, DriverID: 1, Team: "Ferrari", Status: "F"},
			{RaceID: 10, DriverID: 2, Team: "Mercedes", Status: "F"},
		},
	}
}

func newTestRunner(m *metrics.Manager) *montecarlo.Runner {
	return montecarlo.NewRunner(serverTables(),
		montecarlo.WithLogger(logger.Discard()),
		montecarlo.WithWorkers(2),
		montecarlo.WithMetrics(m),
		montecarlo.WithModels(model.StaticProvider{Pit: model.StaticPitDuration{Duration: 20}}),
		montecarlo.WithTestFixtures(race.TestFixtures{}),
	)
}

func testBatchRequest() models.BatchRequest {
	return models.BatchRequest{Season: 2019, Location: "Testville", Simulations: 3, TestMode: true}
}

// blockingRunner holds every batch until its context is cancelled
type blockingRunner struct {
	started chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 8)}
}

func (r *blockingRunner) Run(ctx context.Context, _ models.BatchRequest, _ montecarlo.ProgressFunc) (*models.BatchResult, error) {
	r.started <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

func waitForBatch(t *testing.T, e *BatchExecutor, id string) models.Batch {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b, _ := e.Wait(ctx, id)
	if ctx.Err() != nil {
		t.Fatalf("batch %s did not finish in time", id)
	}
	return b
}
