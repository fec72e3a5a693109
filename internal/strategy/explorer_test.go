package strategy

import (
	"testing"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

func oneStop(pitLap int) models.Strategy {
	return models.Strategy{
		StartingCompound: "A3",
		Stops: []models.PitStopPlan{
			{Compound: "A2", PitLap: pitLap, Window: [2]int{pitLap - 2, pitLap + 2}},
		},
	}
}

func TestDefaultExplorerNeighbors(t *testing.T) {
	base := oneStop(10)
	neighbors := NewDefaultExplorer().GenerateNeighbors(base, 20)

	if len(neighbors) != 6 {
		t.Fatalf("Expected 6 neighbors, got %d: %+v", len(neighbors), neighbors)
	}

	earlier, later := neighbors[0].Stops[0], neighbors[1].Stops[0]
	if earlier.PitLap != 8 || earlier.Window != [2]int{6, 10} {
		t.Errorf("Expected stop moved to lap 8 with window [6 10], got %+v", earlier)
	}
	if later.PitLap != 12 || later.Window != [2]int{10, 14} {
		t.Errorf("Expected stop moved to lap 12 with window [10 14], got %+v", later)
	}

	for _, n := range neighbors {
		if equalStrategies(n, base) {
			t.Error("Neighbors should differ from the base strategy")
		}
	}
	if base.Stops[0].PitLap != 10 || base.Stops[0].Compound != "A2" {
		t.Errorf("Base strategy should not be mutated, got %+v", base)
	}
}

func TestDefaultExplorerDropsInvalidMoves(t *testing.T) {
	tests := []struct {
		name     string
		base     models.Strategy
		laps     int
		maxStops int
	}{
		{"stop near the flag", oneStop(19), 20, 1},
		{
			"stops that would cross",
			models.Strategy{StartingCompound: "A3", Stops: []models.PitStopPlan{
				{Compound: "A2", PitLap: 10},
				{Compound: "A4", PitLap: 11},
			}},
			30,
			2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, n := range NewDefaultExplorer().GenerateNeighbors(tt.base, tt.laps) {
				if !validNeighbor(n, tt.laps) {
					t.Errorf("Invalid neighbor generated: %+v", n)
				}
				if len(n.Stops) != tt.maxStops {
					t.Errorf("Expected %d stops, got %d", tt.maxStops, len(n.Stops))
				}
			}
		})
	}
}

func TestDefaultExplorerOptions(t *testing.T) {
	e := NewDefaultExplorer().WithLapStep(5).WithCompounds("A3")

	neighbors := e.GenerateNeighbors(oneStop(10), 20)

	// two shifts plus A3 on the second stint
	if len(neighbors) != 3 {
		t.Fatalf("Expected 3 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].Stops[0].PitLap != 5 || neighbors[1].Stops[0].PitLap != 15 {
		t.Errorf("Expected pit laps 5 and 15, got %d and %d", neighbors[0].Stops[0].PitLap, neighbors[1].Stops[0].PitLap)
	}
	if e.Name() != "default" {
		t.Errorf("Expected name default, got %s", e.Name())
	}
}
