package strategy

import (
	"slices"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/config"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// Explorer generates strategies next to a base strategy
type Explorer interface {
	// GenerateNeighbors returns valid strategies one move away from base
	GenerateNeighbors(base models.Strategy, laps int) []models.Strategy
	Name() string
}

// DefaultExplorer moves pit laps by a fixed step and swaps compounds
type DefaultExplorer struct {
	lapStep   int
	compounds []string
}

// NewDefaultExplorer creates an explorer over the usual dry compounds
func NewDefaultExplorer() *DefaultExplorer {
	return &DefaultExplorer{
		lapStep:   2,
		compounds: []string{"A2", "A3", "A4"},
	}
}

// WithLapStep sets how many laps a stop moves per neighbor
func (e *DefaultExplorer) WithLapStep(step int) *DefaultExplorer {
	if step > 0 {
		e.lapStep = step
	}
	return e
}

// WithCompounds sets the compounds tried on each stint
func (e *DefaultExplorer) WithCompounds(compounds ...string) *DefaultExplorer {
	e.compounds = compounds
	return e
}

func (e *DefaultExplorer) Name() string {
	return "default"
}

// GenerateNeighbors shifts each stop earlier and later, then tries every
// other compound on each stint. Duplicates and strategies that fail
// validation are dropped.
func (e *DefaultExplorer) GenerateNeighbors(base models.Strategy, laps int) []models.Strategy {
	var neighbors []models.Strategy
	add := func(s models.Strategy) {
		if !validNeighbor(s, laps) {
			return
		}
		for _, n := range neighbors {
			if equalStrategies(n, s) {
				return
			}
		}
		neighbors = append(neighbors, s)
	}

	for i := range base.Stops {
		for _, delta := range []int{-e.lapStep, e.lapStep} {
			s := cloneStrategy(base)
			stop := &s.Stops[i]
			stop.PitLap += delta
			if stop.Window != [2]int{} {
				stop.Window = [2]int{max(stop.Window[0]+delta, 1), min(stop.Window[1]+delta, laps)}
			}
			add(s)
		}
	}

	for _, c := range e.compounds {
		if c != base.StartingCompound {
			s := cloneStrategy(base)
			s.StartingCompound = c
			add(s)
		}
		for i := range base.Stops {
			if c == base.Stops[i].Compound {
				continue
			}
			s := cloneStrategy(base)
			s.Stops[i].Compound = c
			add(s)
		}
	}
	return neighbors
}

func validNeighbor(s models.Strategy, laps int) bool {
	for _, stop := range s.Stops {
		if stop.PitLap >= laps {
			return false
		}
	}
	return config.ValidateStrategies(map[string]models.Strategy{"candidate": s}) == nil
}

func cloneStrategy(s models.Strategy) models.Strategy {
	s.Stops = slices.Clone(s.Stops)
	return s
}

func equalStrategies(a, b models.Strategy) bool {
	return a.StartingCompound == b.StartingCompound &&
		a.StartingTireAge == b.StartingTireAge &&
		slices.Equal(a.Stops, b.Stops)
}
