package race

import (
	"errors"
	"math"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/model"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testLocation = "Testville"

// raceTables builds a three-driver race of the given length
func raceTables(laps int) *data.Tables {
	return &data.Tables{
		Races: []models.Race{
			{ID: 10, Season: 2019, Location: testLocation, NoLapsPlanned: laps},
			{ID: 11, Season: 2019, Location: "Nowhere", NoLapsPlanned: 50},
		},
		Drivers: []models.Driver{
			{ID: 1, Name: "Ann Able", Initials: "ABL"},
			{ID: 2, Name: "Ben Baker", Initials: "BAK"},
			{ID: 3, Name: "Cara Cole", Initials: "COL"},
		},
		Qualifyings: []models.Qualifying{
			{RaceID: 10, DriverID: 1, Position: 1, Q1LapTime: 81, Q2LapTime: 80.5, Q3LapTime: 80},
			{RaceID: 10, DriverID: 2, Position: 2, Q1LapTime: 81.5, Q2LapTime: 81},
			{RaceID: 10, DriverID: 3, Position: 3, Q1LapTime: 82},
		},
		StarterFields: []models.StarterField{
			{RaceID: 10, DriverID: 1, Team: "Ferrari"},
			{RaceID: 10, DriverID: 2, Team: "Mercedes"},
			{RaceID: 10, DriverID: 3, Team: "Williams"},
		},
	}
}

func staticModels() model.StaticProvider {
	return model.StaticProvider{Pit: model.StaticPitDuration{Duration: 20}}
}

func newTestSimulation(t *testing.T, tables *data.Tables, params Params, opts ...Option) *Simulation {
	t.Helper()
	if params.Location == "" {
		params.Season, params.Location = 2019, testLocation
	}
	opts = append([]Option{WithLogger(logger.Discard()), WithModels(staticModels())}, opts...)
	sim, err := New(tables, params, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return sim
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewConfigurationErrors(t *testing.T) {
	noQualifying := raceTables(5)
	noQualifying.Qualifyings = nil
	noLaps := raceTables(0)

	tests := []struct {
		name     string
		tables   *data.Tables
		location string
	}{
		{"unknown race", raceTables(5), "Atlantis"},
		{"no qualifying", noQualifying, testLocation},
		{"no planned laps", noLaps, testLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tables, Params{Season: 2019, Location: tt.location},
				WithLogger(logger.Discard()), WithModels(staticModels()))
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Expected configuration error, got %v", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Location != tt.location {
				t.Errorf("Expected ConfigurationError for %s, got %v", tt.location, err)
			}
		})
	}
}

func TestBuildGridAppendsEntrantsWithoutQualifying(t *testing.T) {
	tables := raceTables(5)
	tables.Drivers = append(tables.Drivers,
		models.Driver{ID: 4, Name: "Zoe Zeller"},
		models.Driver{ID: 5, Name: "Dan Dower"},
	)
	tables.StarterFields = append(tables.StarterFields,
		models.StarterField{RaceID: 10, DriverID: 4, Team: "Haas"},
		models.StarterField{RaceID: 10, DriverID: 5, Team: "Haas"},
	)

	grid := BuildGrid(tables, 10)

	want := []models.GridSlot{
		{DriverID: 1, Position: 1},
		{DriverID: 2, Position: 2},
		{DriverID: 3, Position: 3},
		{DriverID: 5, Position: 4},
		{DriverID: 4, Position: 5},
	}
	if !reflect.DeepEqual(grid, want) {
		t.Errorf("Expected grid %v, got %v", want, grid)
	}
}

func TestNewDropsEntrantsWithoutDriverRow(t *testing.T) {
	tables := raceTables(5)
	tables.Qualifyings = append(tables.Qualifyings, models.Qualifying{RaceID: 10, DriverID: 99, Position: 4, Q1LapTime: 83})
	m := metrics.NewManager()

	sim := newTestSimulation(t, tables, Params{}, WithMetrics(m))

	if len(sim.Drivers()) != 3 {
		t.Fatalf("Expected 3 drivers, got %d", len(sim.Drivers()))
	}
	if len(sim.StartingGrid()) != 4 {
		t.Errorf("Expected the grid to keep 4 slots, got %d", len(sim.StartingGrid()))
	}
	expected := `
# HELP racesim_drivers_dropped_total Grid entrants dropped because the driver row is missing
# TYPE racesim_drivers_dropped_total counter
racesim_drivers_dropped_total 1
`
	if err := testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected), "racesim_drivers_dropped_total"); err != nil {
		t.Errorf("Unexpected dropped driver metric: %v", err)
	}
}

func TestNewUsesStartingGridOverride(t *testing.T) {
	grid := []models.GridSlot{
		{DriverID: 2, Position: 2},
		{DriverID: 3, Position: 1},
		{DriverID: 1, Position: 3},
	}
	sim := newTestSimulation(t, raceTables(5), Params{StartingGrid: grid})

	var names []string
	for _, d := range sim.Drivers() {
		names = append(names, d.Name)
	}
	want := []string{"Cara Cole", "Ben Baker", "Ann Able"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Expected driver order %v, got %v", want, names)
	}
}

func TestBestQualifyingTimeFallback(t *testing.T) {
	tables := raceTables(5)
	tables.Qualifyings[2] = models.Qualifying{RaceID: 10, DriverID: 3, Position: 3}

	sim := newTestSimulation(t, tables, Params{})

	d := sim.Drivers()[2]
	// session minima: Q1 81, Q2 80.5, Q3 80
	if !approxEqual(d.BestQualifyingTime, (81+80.5+80)/3) {
		t.Errorf("Expected mean of session minima, got %f", d.BestQualifyingTime)
	}
	if sim.Drivers()[0].BestQualifyingTime != 80 {
		t.Errorf("Expected best time 80, got %f", sim.Drivers()[0].BestQualifyingTime)
	}
}

func TestNewClampsRetirementProbabilities(t *testing.T) {
	provider := staticModels()
	provider.Retirement = model.StaticRetirement{Accident: 1.5, Failure: math.NaN()}

	sim := newTestSimulation(t, raceTables(5), Params{}, WithModels(provider))

	d := sim.Drivers()[0]
	if d.AccidentProbability != 1 || d.FailureProbability != 0 {
		t.Errorf("Expected probabilities clamped to 1 and 0, got %f and %f", d.AccidentProbability, d.FailureProbability)
	}
}

func TestRunThreeDriversWithRetirement(t *testing.T) {
	fixtures := TestFixtures{DNFLaps: map[string]map[string]int{testLocation: {"Cara Cole": 3}}}
	sim := newTestSimulation(t, raceTables(5), Params{TestMode: true}, WithTestFixtures(fixtures))

	sim.Run()

	summary := sim.LapsSummary()
	if len(summary) != 13 {
		t.Fatalf("Expected 13 summary rows, got %d", len(summary))
	}

	var cara []models.LapRecord
	for _, r := range summary {
		if r.Name == "Cara Cole" {
			cara = append(cara, r)
		}
	}
	if len(cara) != 3 {
		t.Fatalf("Expected 3 rows for the retiree, got %d", len(cara))
	}
	last := cara[2]
	if last.Lap != 3 || last.Status != models.StatusDNF || last.LapTime != 0 {
		t.Errorf("Unexpected terminal row: %+v", last)
	}
	if !approxEqual(last.CumulativeTime, 164) || !approxEqual(cara[1].CumulativeTime, 164) {
		t.Errorf("Expected cumulative time frozen at 164, got %f", last.CumulativeTime)
	}

	outcomes := sim.Outcomes()
	want := []struct {
		name string
		time float64
	}{
		{"Ann Able", 400},
		{"Ben Baker", 405},
		{"Cara Cole", 164},
	}
	for i, w := range want {
		o := outcomes[i]
		if o.Name != w.name || o.FinalPosition != i+1 || !approxEqual(o.CumulativeTime, w.time) {
			t.Errorf("Position %d: expected %s with %f, got %+v", i+1, w.name, w.time, o)
		}
	}
	if outcomes[2].Status != models.StatusDNF || outcomes[2].DNFLap != 3 {
		t.Errorf("Expected retiree with DNF lap 3, got %+v", outcomes[2])
	}
}

func TestRunPropertiesAcrossSeeds(t *testing.T) {
	provider := model.StaticProvider{
		Performance: model.LinearPerformance{Base: 1, PerFuel: 0.03, PerLap: map[string]float64{"A3": 0.05, "A2": 0.03}, Residual: 0.4},
		Retirement:  model.StaticRetirement{Accident: 0.25, Failure: 0.25},
		Pit:         model.StaticPitDuration{Duration: 21},
	}
	strategies := map[string]models.Strategy{
		"Ann Able":  {StartingCompound: "A3", Stops: []models.PitStopPlan{{Compound: "A2", PitLap: 10, Window: [2]int{6, 14}}}},
		"Ben Baker": {StartingCompound: "A2", Stops: []models.PitStopPlan{{Compound: "A3", PitLap: 12, Window: [2]int{8, 16}}}},
	}
	const laps = 20

	for seed := int64(1); seed <= 40; seed++ {
		sim := newTestSimulation(t, raceTables(laps), Params{Strategies: strategies},
			WithModels(provider), WithRandSource(utils.NewRandSource(seed)))
		sim.Run()

		checkSummary(t, seed, laps, sim.LapsSummary())
		checkOutcomes(t, seed, sim.Outcomes())
		for _, lap := range sim.SafetyCarLaps() {
			if lap < 1 || lap > laps {
				t.Errorf("seed %d: safety car lap %d outside race", seed, lap)
			}
		}
	}
}

func checkSummary(t *testing.T, seed int64, laps int, summary []models.LapRecord) {
	t.Helper()
	retiredAt := make(map[int64]int)
	lastCumulative := make(map[int64]float64)
	positionsByLap := make(map[int][]int)

	for _, r := range summary {
		if lap, ok := retiredAt[r.DriverID]; ok {
			t.Errorf("seed %d: row for %s on lap %d after retiring on lap %d", seed, r.Name, r.Lap, lap)
		}
		if r.Fuel < 0 || r.Fuel > 100 {
			t.Errorf("seed %d: fuel %f out of range", seed, r.Fuel)
		}
		if r.Status == models.StatusDNF {
			retiredAt[r.DriverID] = r.Lap
			if r.LapTime != 0 || r.CumulativeTime != lastCumulative[r.DriverID] {
				t.Errorf("seed %d: retiree %s should not accrue time on its DNF lap", seed, r.Name)
			}
			continue
		}
		if r.Lap == laps && r.Fuel != 0 {
			t.Errorf("seed %d: expected empty tank on final lap, got %f", seed, r.Fuel)
		}
		lastCumulative[r.DriverID] = r.CumulativeTime
		positionsByLap[r.Lap] = append(positionsByLap[r.Lap], r.Position)
	}

	for lap, positions := range positionsByLap {
		sort.Ints(positions)
		for i, p := range positions {
			if p != i+1 {
				t.Errorf("seed %d: lap %d positions %v are not a permutation", seed, lap, positions)
				break
			}
		}
	}
}

func checkOutcomes(t *testing.T, seed int64, outcomes []models.Outcome) {
	t.Helper()
	if len(outcomes) != 3 {
		t.Fatalf("seed %d: expected 3 outcomes, got %d", seed, len(outcomes))
	}
	seenDNF := false
	for i, o := range outcomes {
		if o.FinalPosition != i+1 {
			t.Errorf("seed %d: expected position %d, got %d", seed, i+1, o.FinalPosition)
		}
		if o.Status == models.StatusDNF {
			seenDNF = true
			if i > 0 && outcomes[i-1].Status == models.StatusDNF && outcomes[i-1].DNFLap < o.DNFLap {
				t.Errorf("seed %d: retiree on lap %d ranked behind retiree on lap %d", seed, o.DNFLap, outcomes[i-1].DNFLap)
			}
			continue
		}
		if seenDNF {
			t.Errorf("seed %d: finisher %s ranked behind a retiree", seed, o.Name)
		}
		if i > 0 && outcomes[i-1].Status != models.StatusDNF && outcomes[i-1].CumulativeTime > o.CumulativeTime {
			t.Errorf("seed %d: finishers out of time order", seed)
		}
	}
}

func TestRunPitLapUnderSafetyCarStopsOnce(t *testing.T) {
	strategies := map[string]models.Strategy{
		"Ann Able": {StartingCompound: "A3", Stops: []models.PitStopPlan{
			{Compound: "A2", PitLap: 3, Window: [2]int{2, 4}, TireAgeAfterStop: 0},
		}},
	}
	fixtures := TestFixtures{SafetyCarLaps: map[string][]int{testLocation: {3, 4}}}
	sim := newTestSimulation(t, raceTables(5), Params{Strategies: strategies, TestMode: true}, WithTestFixtures(fixtures))

	sim.Run()

	stops := 0
	for _, r := range sim.LapsSummary() {
		if r.Name != "Ann Able" {
			continue
		}
		if r.PitStop {
			stops++
			if r.Lap != 3 {
				t.Errorf("Expected the stop on lap 3, got lap %d", r.Lap)
			}
			// 80 * 1.2 under safety car plus a 20s stop
			if !approxEqual(r.LapTime, 116) {
				t.Errorf("Expected lap time 116, got %f", r.LapTime)
			}
			if r.Compound != "A2" || r.TireAge != 0 {
				t.Errorf("Expected fresh A2 tires, got %s age %d", r.Compound, r.TireAge)
			}
		}
	}
	if stops != 1 {
		t.Errorf("Expected exactly 1 stop, got %d", stops)
	}
	if got := sim.SafetyCarLaps(); !reflect.DeepEqual(got, []int{3, 4}) {
		t.Errorf("Expected safety car laps [3 4], got %v", got)
	}
}

func TestRunSkipsStopWhenPitLookupFails(t *testing.T) {
	provider := model.StaticProvider{Pit: model.StaticPitDuration{Err: model.ErrDataLookup}}
	strategies := map[string]models.Strategy{
		"Ann Able": {StartingCompound: "A3", Stops: []models.PitStopPlan{{Compound: "A2", PitLap: 2, Window: [2]int{2, 2}}}},
	}
	m := metrics.NewManager()
	sim := newTestSimulation(t, raceTables(5), Params{Strategies: strategies, TestMode: true},
		WithModels(provider), WithMetrics(m), WithTestFixtures(TestFixtures{}))

	sim.Run()

	for _, r := range sim.LapsSummary() {
		if r.PitStop {
			t.Errorf("No stop should be taken, got one on lap %d for %s", r.Lap, r.Name)
		}
		if r.Name == "Ann Able" && r.Compound != "A3" {
			t.Errorf("Expected compound to stay A3, got %s", r.Compound)
		}
	}
	if !approxEqual(sim.Outcomes()[0].CumulativeTime, 400) {
		t.Errorf("Expected no pit time added, got %f", sim.Outcomes()[0].CumulativeTime)
	}
	expected := `
# HELP racesim_pit_lookup_failures_total Pit stops skipped because no pit duration could be sampled
# TYPE racesim_pit_lookup_failures_total counter
racesim_pit_lookup_failures_total 1
`
	if err := testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected), "racesim_pit_lookup_failures_total"); err != nil {
		t.Errorf("Unexpected pit lookup metric: %v", err)
	}
}

func TestDeploySafetyCarClipsToRaceDistance(t *testing.T) {
	sim := newTestSimulation(t, raceTables(12), Params{})

	sim.deploySafetyCar(10)

	if got := sim.SafetyCarLaps(); !reflect.DeepEqual(got, []int{10, 11, 12}) {
		t.Errorf("Expected safety car laps [10 11 12], got %v", got)
	}
}

func TestRunSafetyCarSlowsEveryDriver(t *testing.T) {
	fixtures := TestFixtures{SafetyCarLaps: map[string][]int{testLocation: {2, 40}}}
	sim := newTestSimulation(t, raceTables(3), Params{TestMode: true}, WithTestFixtures(fixtures))

	sim.Run()

	if got := sim.SafetyCarLaps(); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("Expected safety car laps [2], got %v", got)
	}
	for _, r := range sim.LapsSummary() {
		if r.Lap == 2 && !r.SafetyCar {
			t.Errorf("Lap 2 should be flagged as safety car for %s", r.Name)
		}
	}
	// Ann: 80 + 96 + 80
	if !approxEqual(sim.Outcomes()[0].CumulativeTime, 256) {
		t.Errorf("Expected 256, got %f", sim.Outcomes()[0].CumulativeTime)
	}
}

func TestTestModeIsReproducible(t *testing.T) {
	provider := model.StaticProvider{
		Performance: model.LinearPerformance{Base: 0.5, PerFuel: 0.02, Residual: 0.6},
		Pit:         model.StaticPitDuration{Duration: 22},
	}
	fixtures := TestFixtures{
		DNFLaps:       map[string]map[string]int{testLocation: {"Ben Baker": 7}},
		SafetyCarLaps: map[string][]int{testLocation: {7, 8, 9}},
	}
	run := func() *Simulation {
		sim := newTestSimulation(t, raceTables(15), Params{TestMode: true}, WithModels(provider), WithTestFixtures(fixtures))
		sim.Run()
		return sim
	}

	first, second := run(), run()

	if !reflect.DeepEqual(first.Outcomes(), second.Outcomes()) {
		t.Errorf("Outcomes differ between test-mode runs:\n%v\n%v", first.Outcomes(), second.Outcomes())
	}
	if !reflect.DeepEqual(first.LapsSummary(), second.LapsSummary()) {
		t.Error("Lap summaries differ between test-mode runs")
	}
}

func TestRunWithoutStrategy(t *testing.T) {
	sim := newTestSimulation(t, raceTables(4), Params{TestMode: true}, WithTestFixtures(TestFixtures{}))

	sim.Run()

	for _, r := range sim.LapsSummary() {
		if r.Compound != "" || r.PitStop {
			t.Errorf("Expected no compound and no stops, got %+v", r)
		}
		if r.TireAge != r.Lap {
			t.Errorf("Expected tire age %d, got %d", r.Lap, r.TireAge)
		}
	}
}

func TestRunTwiceKeepsOneClassification(t *testing.T) {
	sim := newTestSimulation(t, raceTables(5), Params{TestMode: true}, WithTestFixtures(TestFixtures{}))

	sim.Run()
	sim.Run()

	if len(sim.Outcomes()) != 3 {
		t.Errorf("Expected 3 outcomes, got %d", len(sim.Outcomes()))
	}
	if len(sim.LapsSummary()) != 15 {
		t.Errorf("Expected 15 summary rows, got %d", len(sim.LapsSummary()))
	}
	// the second run continues from the accrued state
	if !approxEqual(sim.Outcomes()[0].CumulativeTime, 800) {
		t.Errorf("Expected 800, got %f", sim.Outcomes()[0].CumulativeTime)
	}
}

func TestLapFlagsResetEveryLap(t *testing.T) {
	fixtures := TestFixtures{DNFLaps: map[string]map[string]int{testLocation: {"Cara Cole": 3}}}
	strategies := map[string]models.Strategy{
		"Ann Able": {StartingCompound: "A3", Stops: []models.PitStopPlan{{Compound: "A2", PitLap: 2, Window: [2]int{1, 3}}}},
	}
	sim := newTestSimulation(t, raceTables(5), Params{TestMode: true, Strategies: strategies}, WithTestFixtures(fixtures))

	sim.Run()

	for _, r := range sim.LapsSummary() {
		wantPit := r.Name == "Ann Able" && r.Lap == 2
		if r.PitStop != wantPit {
			t.Errorf("Lap %d %s: expected pit stop %v, got %v", r.Lap, r.Name, wantPit, r.PitStop)
		}
		if r.Name == "Cara Cole" && r.Lap > 3 {
			t.Errorf("Expected no rows for the retiree after lap 3, got lap %d", r.Lap)
		}
	}
	if len(sim.lapFlags) != 3 {
		t.Errorf("Expected one lap flag per driver, got %d", len(sim.lapFlags))
	}
	if len(sim.running) != 2 {
		t.Errorf("Expected the ranking buffer to hold 2 running drivers, got %d", len(sim.running))
	}
}
