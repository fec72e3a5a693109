package strategy

import (
	"errors"
	"reflect"
	"testing"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/race"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

func historyTables() *data.Tables {
	return &data.Tables{
		Races: []models.Race{{ID: 10, Season: 2019, Location: "Testville", NoLapsPlanned: 20}},
		Drivers: []models.Driver{
			{ID: 1, Name: "Ann Able"},
			{ID: 2, Name: "Ben Baker"},
		},
		Laps: []models.Lap{
			{RaceID: 10, DriverID: 1, LapNo: 0, Compound: "A3", TireAge: 2},
			{RaceID: 10, DriverID: 1, LapNo: 1, Compound: "A3", TireAge: 3},
			{RaceID: 10, DriverID: 1, LapNo: 9, Compound: "A3", TireAge: 11, PitIn: true},
			{RaceID: 10, DriverID: 1, LapNo: 10, Compound: "A2", TireAge: 1, PitStopDuration: 22.4},
			{RaceID: 10, DriverID: 1, LapNo: 15, Compound: "A4", TireAge: 1, PitStopDuration: 23},
			{RaceID: 10, DriverID: 2, LapNo: 1, Compound: "A4", TireAge: 1},
			{RaceID: 10, DriverID: 2, LapNo: 2, Compound: "A4", TireAge: 2},
			{RaceID: 10, DriverID: 99, LapNo: 1, Compound: "A4", TireAge: 1},
		},
	}
}

func TestFromHistory(t *testing.T) {
	strategies, err := FromHistory(historyTables(), 2019, "Testville")
	if err != nil {
		t.Fatalf("FromHistory failed: %v", err)
	}
	if len(strategies) != 2 {
		t.Fatalf("Expected 2 strategies, got %d", len(strategies))
	}

	ann := models.Strategy{
		StartingCompound: "A3",
		StartingTireAge:  2,
		Stops: []models.PitStopPlan{
			{Compound: "A2", PitLap: 10, Window: [2]int{10, 10}, TireAgeAfterStop: 1},
			{Compound: "A4", PitLap: 15, Window: [2]int{15, 15}, TireAgeAfterStop: 1},
		},
	}
	if !reflect.DeepEqual(strategies["Ann Able"], ann) {
		t.Errorf("Expected %+v, got %+v", ann, strategies["Ann Able"])
	}

	ben := strategies["Ben Baker"]
	if ben.StartingCompound != "A4" || ben.StartingTireAge != 0 || len(ben.Stops) != 0 {
		t.Errorf("Expected A4 from new without stops, got %+v", ben)
	}
}

func TestFromHistoryUnknownRace(t *testing.T) {
	_, err := FromHistory(historyTables(), 2020, "Testville")
	if !errors.Is(err, race.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestFromHistoryStrategiesAreValid(t *testing.T) {
	strategies, err := FromHistory(historyTables(), 2019, "Testville")
	if err != nil {
		t.Fatalf("FromHistory failed: %v", err)
	}
	for name, s := range strategies {
		if !validNeighbor(s, 20) {
			t.Errorf("Historical strategy for %s should be valid: %+v", name, s)
		}
	}
}
