package montecarlo

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/model"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/race"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

func batchTables() *data.Tables {
	return &data.Tables{
		Races: []models.Race{{ID: 10, Season: 2019, Location: "Testville", NoLapsPlanned: 5}},
		Drivers: []models.Driver{
			{ID: 1, Name: "Ann Able"},
			{ID: 2, Name: "Ben Baker"},
			{ID: 3, Name: "Cara Cole"},
		},
		Qualifyings: []models.Qualifying{
			{RaceID: 10, DriverID: 1, Position: 1, Q1LapTime: 80},
			{RaceID: 10, DriverID: 2, Position: 2, Q1LapTime: 81},
			{RaceID: 10, DriverID: 3, Position: 3, Q1LapTime: 82},
		},
		StarterFields: []models.StarterField{
			{RaceID: 10, DriverID: 1, Team: "Ferrari", Status: "F", ResultPosition: 2},
			{RaceID: 10, DriverID: 2, Team: "Mercedes", Status: "F", ResultPosition: 1},
			{RaceID: 10, DriverID: 3, Team: "Williams", Status: "F", ResultPosition: 3},
		},
		Laps: []models.Lap{
			{RaceID: 10, DriverID: 1, LapNo: 5, RaceTime: 402},
			{RaceID: 10, DriverID: 2, LapNo: 5, RaceTime: 401},
			{RaceID: 10, DriverID: 3, LapNo: 5, RaceTime: 170},
		},
	}
}

func newTestRunner(opts ...Option) *Runner {
	base := []Option{
		WithLogger(logger.Discard()),
		WithWorkers(4),
		WithModels(model.StaticProvider{Pit: model.StaticPitDuration{Duration: 20}}),
		WithTestFixtures(race.TestFixtures{DNFLaps: map[string]map[string]int{"Testville": {"Cara Cole": 3}}}),
	}
	return NewRunner(batchTables(), append(base, opts...)...)
}

func TestRunnerRejectsInvalidRequests(t *testing.T) {
	Convey("Given a runner", t, func() {
		r := newTestRunner()

		Convey("When no simulations are requested", func() {
			_, err := r.Run(context.Background(), models.BatchRequest{Season: 2019, Location: "Testville"}, nil)
			So(err, ShouldWrap, ErrInvalidRequest)
		})

		Convey("When the race does not exist", func() {
			_, err := r.Run(context.Background(), models.BatchRequest{Season: 2019, Location: "Atlantis", Simulations: 3}, nil)
			So(errors.Is(err, race.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := r.Run(ctx, models.BatchRequest{Season: 2019, Location: "Testville", Simulations: 3}, nil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestRunnerTestModeBatch(t *testing.T) {
	Convey("Given a test-mode batch of five trials", t, func() {
		m := metrics.NewManager()
		r := newTestRunner(WithMetrics(m))

		var mu sync.Mutex
		calls, last := 0, 0
		progress := func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			last = max(last, done)
		}

		result, err := r.Run(context.Background(), models.BatchRequest{
			Season: 2019, Location: "Testville", Simulations: 5, TestMode: true,
		}, progress)

		So(err, ShouldBeNil)
		So(result.Trials, ShouldEqual, 5)
		So(calls, ShouldEqual, 5)
		So(last, ShouldEqual, 5)

		Convey("Then every trial gives the same classification", func() {
			So(result.Drivers, ShouldHaveLength, 3)
			ann, ben, cara := result.Drivers[0], result.Drivers[1], result.Drivers[2]

			So(ann.Name, ShouldEqual, "Ann Able")
			So(ann.MeanPosition, ShouldEqual, 1)
			So(ann.BestPosition, ShouldEqual, 1)
			So(ann.WorstPosition, ShouldEqual, 1)
			So(ann.MeanTime, ShouldAlmostEqual, 400, 1e-9)
			So(ann.PredictedRank, ShouldEqual, 1)

			So(ben.Name, ShouldEqual, "Ben Baker")
			So(ben.DNFRate, ShouldEqual, 0)

			So(cara.Name, ShouldEqual, "Cara Cole")
			So(cara.DNFRate, ShouldEqual, 1)
			So(cara.MedianPosition, ShouldEqual, 3)
			So(cara.P95Time, ShouldAlmostEqual, 164, 1e-9)
			So(result.SafetyCarRate, ShouldEqual, 0)
		})

		Convey("Then historical results are attached and scored", func() {
			So(result.Drivers[0].ActualPosition, ShouldEqual, 2)
			So(result.Drivers[1].ActualRaceTime, ShouldEqual, 401)

			c := result.Comparison
			So(c, ShouldNotBeNil)
			So(c.Drivers, ShouldEqual, 3)
			So(c.Spearman, ShouldAlmostEqual, 0.5, 1e-9)
			So(c.RMSE, ShouldAlmostEqual, math.Sqrt(56.0/3), 1e-9)
			So(c.MAE, ShouldAlmostEqual, 4, 1e-9)
			So(c.WilcoxonW, ShouldEqual, 2)
		})
	})
}

func TestRunnerSeedReproducibility(t *testing.T) {
	Convey("Given a stochastic provider", t, func() {
		provider := model.StaticProvider{
			Performance: model.LinearPerformance{Base: 1, PerFuel: 0.02, Residual: 0.5},
			Retirement:  model.StaticRetirement{Accident: 0.2, Failure: 0.2},
			Pit:         model.StaticPitDuration{Duration: 20},
		}
		req := models.BatchRequest{Season: 2019, Location: "Testville", Simulations: 25, Seed: 42}

		Convey("When the same seeded batch runs twice", func() {
			first, err1 := newTestRunner(WithModels(provider)).Run(context.Background(), req, nil)
			second, err2 := newTestRunner(WithModels(provider), WithWorkers(1)).Run(context.Background(), req, nil)

			Convey("Then the aggregates match regardless of worker count", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})

			Convey("Then positions stay within the field", func() {
				for _, d := range first.Drivers {
					So(d.BestPosition, ShouldBeBetweenOrEqual, 1, 3)
					So(d.WorstPosition, ShouldBeBetweenOrEqual, d.BestPosition, 3)
					So(d.DNFRate, ShouldBeBetweenOrEqual, 0, 1)
				}
			})
		})
	})
}

func TestRunnerWithoutRetirementHistory(t *testing.T) {
	Convey("Given fitted models over tables without retirements rows", t, func() {
		provider := model.NewTableProvider(batchTables(), model.WithLogger(logger.Discard()))
		r := NewRunner(batchTables(), WithLogger(logger.Discard()), WithWorkers(4), WithModels(provider))

		Convey("When a 64-trial batch runs", func() {
			res, err := r.Run(context.Background(), models.BatchRequest{Season: 2019, Location: "Testville", Simulations: 64, Seed: 7}, nil)

			Convey("Then no driver should retire", func() {
				So(err, ShouldBeNil)
				So(res.Trials, ShouldEqual, 64)
				for _, d := range res.Drivers {
					So(d.DNFRate, ShouldEqual, 0)
				}
			})
		})
	})
}
