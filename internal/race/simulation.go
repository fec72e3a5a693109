package race

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/model"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
)

const (
	// SafetyCarProbability is the chance that a retirement brings out the safety car
	SafetyCarProbability = 0.2
	// SafetyCarDuration is the number of laps a safety car stays out
	SafetyCarDuration = 5
	// SafetyCarSlowdown multiplies lap times under the safety car
	SafetyCarSlowdown = 1.2
)

// Params select the race to simulate
type Params struct {
	Season   int
	Location string
	// Strategies is keyed by driver name. Drivers without an entry start on
	// an empty compound with new tires and never stop.
	Strategies map[string]models.Strategy
	// StartingGrid overrides the qualifying grid when non-empty
	StartingGrid []models.GridSlot
	TestMode     bool
}

// Option configures a Simulation
type Option func(*Simulation)

// WithModels sets the fitted-model provider
func WithModels(p model.Provider) Option {
	return func(s *Simulation) {
		s.provider = p
	}
}

// WithRandSource sets the random source for every draw of the race
func WithRandSource(rng *utils.RandSource) Option {
	return func(s *Simulation) {
		s.rng = rng
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics manager
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Simulation) {
		s.metrics = m
	}
}

// WithTestFixtures replaces the built-in test-mode fixture tables
func WithTestFixtures(f TestFixtures) Option {
	return func(s *Simulation) {
		s.fixtures = f
	}
}

// Simulation runs one race lap by lap. It is not safe for concurrent use;
// independent simulations may share the same tables and provider.
type Simulation struct {
	season   int
	location string
	race     models.Race
	testMode bool

	tables   *data.Tables
	provider model.Provider
	rng      *utils.RandSource
	logger   *slog.Logger
	metrics  *metrics.Manager
	fixtures TestFixtures

	grid      []models.GridSlot
	drivers   []*Driver
	safetyCar map[int]bool
	summary   []models.LapRecord
	outcomes  []models.Outcome
	runs      int

	// per-lap scratch, indexed like drivers
	lapFlags  []lapFlags
	running   []*Driver
	samplePit func(*Driver) (float64, error)
}

// lapFlags records what happened to one driver on the current lap
type lapFlags struct {
	retired bool
	pitted  bool
}

// New resolves the race, builds the grid and fits one Driver per slot.
// It returns a ConfigurationError when the race or its qualifying is missing.
func New(tables *data.Tables, params Params, opts ...Option) (*Simulation, error) {
	s := &Simulation{
		season:    params.Season,
		location:  params.Location,
		testMode:  params.TestMode,
		tables:    tables,
		logger:    logger.Default,
		fixtures:  DefaultTestFixtures(),
		safetyCar: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("season", s.season, "location", s.location)
	s.samplePit = s.samplePitDuration

	race, ok := tables.FindRace(params.Season, params.Location)
	if !ok {
		return nil, &ConfigurationError{Season: params.Season, Location: params.Location, Reason: "no race found"}
	}
	if race.NoLapsPlanned <= 0 {
		return nil, &ConfigurationError{Season: params.Season, Location: params.Location, Reason: "race has no planned laps"}
	}
	quals := tables.QualifyingsForRace(race.ID)
	if len(quals) == 0 {
		return nil, &ConfigurationError{Season: params.Season, Location: params.Location, Reason: "no qualifying data"}
	}
	s.race = race

	if s.provider == nil {
		s.provider = model.NewTableProvider(tables, model.WithLogger(s.logger), model.WithMetrics(s.metrics))
	}
	if s.rng == nil {
		if s.testMode {
			s.rng = utils.NewRandSource(testModeSeed)
		} else {
			s.rng = utils.NewRandSource(0)
		}
	}

	if len(params.StartingGrid) > 0 {
		s.grid = append([]models.GridSlot(nil), params.StartingGrid...)
		sort.SliceStable(s.grid, func(i, j int) bool {
			return s.grid[i].Position < s.grid[j].Position
		})
	} else {
		s.grid = BuildGrid(tables, race.ID)
	}

	for _, slot := range s.grid {
		row, ok := tables.Driver(slot.DriverID)
		if !ok {
			s.logger.Debug("Dropping grid entrant without driver row", "driver_id", slot.DriverID)
			s.metrics.RecordDriverDropped()
			continue
		}
		team := tables.TeamFor(row.ID, race.ID)
		d := newDriver(row, team, params.Strategies[row.Name])
		d.GridPosition = slot.Position
		d.BestQualifyingTime = bestQualifyingTime(quals, row.ID)
		if d.BestQualifyingTime == 0 {
			s.logger.Warn("No qualifying time available", "driver", row.Name)
		}

		perf := s.provider.PerformanceFor(row.ID, race.ID, race.Season)
		d.Performance = perf
		d.Variability = sanitize(perf.Variability(), math.MaxFloat64)
		accident, failure := s.provider.RetirementFor(row.ID, team, race.Season).Probabilities()
		d.AccidentProbability = sanitize(accident, 1)
		d.FailureProbability = sanitize(failure, 1)
		s.drivers = append(s.drivers, d)
	}
	if len(s.drivers) == 0 {
		return nil, &ConfigurationError{Season: params.Season, Location: params.Location, Reason: "no grid entrant has a driver row"}
	}

	s.logger.Debug("Race initialized", "race_id", race.ID, "laps", race.NoLapsPlanned, "drivers", len(s.drivers))
	return s, nil
}

// sanitize maps NaN and infinities to 0 and clamps v to [0, upper]
func sanitize(v, upper float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return utils.ClampFloat64(v, 0, upper)
}

// RaceID returns the simulated race's id
func (s *Simulation) RaceID() int64 {
	return s.race.ID
}

// NumberOfLaps returns the planned race distance
func (s *Simulation) NumberOfLaps() int {
	return s.race.NoLapsPlanned
}

// Drivers returns the per-driver state in grid order
func (s *Simulation) Drivers() []*Driver {
	return s.drivers
}

// StartingGrid returns the grid the race starts from
func (s *Simulation) StartingGrid() []models.GridSlot {
	return append([]models.GridSlot(nil), s.grid...)
}

// Run simulates every lap and computes the final classification. Calling
// Run again continues from the state left by the previous run.
func (s *Simulation) Run() {
	if s.runs > 0 {
		s.logger.Warn("Re-running a finished simulation on its mutated state", "runs", s.runs)
		s.summary = s.summary[:0]
		s.outcomes = nil
	}
	s.runs++
	start := time.Now()
	if s.summary == nil {
		s.summary = make([]models.LapRecord, 0, len(s.drivers)*s.race.NoLapsPlanned)
	}

	s.initializeRetirements()
	for lap := 1; lap <= s.race.NoLapsPlanned; lap++ {
		s.simulateLap(lap)
	}
	s.classify()

	s.metrics.RecordRace(time.Since(start))
	s.logger.Debug("Race simulated", "elapsed", time.Since(start), "safety_car_laps", len(s.safetyCar))
}

func (s *Simulation) initializeRetirements() {
	laps := s.race.NoLapsPlanned
	if s.testMode {
		for _, d := range s.drivers {
			if lap := s.fixtures.dnfLap(s.location, d.Name); lap > 0 && d.Alive {
				d.EarliestDNFLap = lap
				s.metrics.RecordDNF(metrics.CauseFixture)
			}
		}
		for _, lap := range s.fixtures.safetyCarLaps(s.location) {
			if lap >= 1 && lap <= laps {
				s.safetyCar[lap] = true
			}
		}
		return
	}

	for _, d := range s.drivers {
		if !d.Alive {
			continue
		}
		accidentLap, failureLap := 0, 0
		if s.rng.BernoulliBool(d.AccidentProbability) {
			accidentLap = s.rng.IntRange(1, laps)
		}
		if s.rng.BernoulliBool(d.FailureProbability) {
			failureLap = s.rng.IntRange(1, laps)
		}

		dnfLap, cause := accidentLap, metrics.CauseAccident
		if failureLap > 0 && (dnfLap == 0 || failureLap < dnfLap) {
			dnfLap, cause = failureLap, metrics.CauseFailure
		}
		if dnfLap == 0 {
			continue
		}
		d.EarliestDNFLap = dnfLap
		s.metrics.RecordDNF(cause)
		if s.rng.BernoulliBool(SafetyCarProbability) {
			s.deploySafetyCar(dnfLap)
		}
	}
}

// deploySafetyCar marks SafetyCarDuration laps from start, capped at the race distance
func (s *Simulation) deploySafetyCar(start int) {
	end := min(start+SafetyCarDuration-1, s.race.NoLapsPlanned)
	for lap := start; lap <= end; lap++ {
		s.safetyCar[lap] = true
	}
	s.metrics.RecordSafetyCar()
}

func (s *Simulation) simulateLap(lap int) {
	safetyCar := s.safetyCar[lap]
	if len(s.lapFlags) != len(s.drivers) {
		s.lapFlags = make([]lapFlags, len(s.drivers))
	}
	clear(s.lapFlags)

	for i, d := range s.drivers {
		if d.UpdateStatus(lap) {
			s.lapFlags[i].retired = true
		}
		if !d.Alive {
			d.CurrentLapTime = 0
			continue
		}

		d.UpdateInfo(lap, s.race.NoLapsPlanned)
		lapTime := d.BestQualifyingTime + d.Performance.Predict(d.Features()) + s.rng.NormFloat64(0, d.Variability)
		if safetyCar {
			lapTime *= SafetyCarSlowdown
		}

		pit, trigger, err := d.ResolvePitStop(lap, safetyCar, s.samplePit)
		if err != nil {
			s.logger.Warn("Pit stop skipped", "driver", d.Name, "lap", lap, "error", err)
			s.metrics.RecordPitLookupFailure()
		}
		if trigger != NoStop {
			s.lapFlags[i].pitted = true
			s.metrics.RecordPitStop(trigger.String())
		}

		lapTime += pit
		d.CurrentLapTime = lapTime
		d.CumulativeTime += lapTime
	}

	s.rankRunning()

	for i, d := range s.drivers {
		if !d.Alive && !s.lapFlags[i].retired {
			continue
		}
		s.summary = append(s.summary, models.LapRecord{
			Lap:            lap,
			DriverID:       d.ID,
			Name:           d.Name,
			Position:       d.Position,
			LapTime:        d.CurrentLapTime,
			CumulativeTime: d.CumulativeTime,
			Status:         d.Status(),
			Compound:       d.Compound,
			TireAge:        d.TireAge,
			Fuel:           d.Fuel,
			PitStop:        s.lapFlags[i].pitted,
			SafetyCar:      safetyCar,
		})
	}
}

// samplePitDuration draws the stationary time of a stop by d
func (s *Simulation) samplePitDuration(d *Driver) (float64, error) {
	return s.provider.PitDuration().SamplePitDuration(s.rng, d.Team, s.location, s.season, s.race.ID)
}

// rankRunning assigns positions to running drivers by cumulative time
func (s *Simulation) rankRunning() {
	s.running = s.running[:0]
	for _, d := range s.drivers {
		if d.Alive {
			s.running = append(s.running, d)
		}
	}
	slices.SortStableFunc(s.running, func(a, b *Driver) int {
		return cmp.Compare(a.CumulativeTime, b.CumulativeTime)
	})
	for i, d := range s.running {
		d.Position = i + 1
	}
}

// LapsSummary returns one record per running driver per lap plus the
// terminal record of each retirement
func (s *Simulation) LapsSummary() []models.LapRecord {
	return append([]models.LapRecord(nil), s.summary...)
}

// Outcomes returns the final classification sorted by position
func (s *Simulation) Outcomes() []models.Outcome {
	return append([]models.Outcome(nil), s.outcomes...)
}

// SafetyCarLaps returns the laps run behind the safety car in ascending order
func (s *Simulation) SafetyCarLaps() []int {
	laps := make([]int, 0, len(s.safetyCar))
	for lap := range s.safetyCar {
		laps = append(laps, lap)
	}
	sort.Ints(laps)
	return laps
}
