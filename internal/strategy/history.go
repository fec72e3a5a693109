// Package strategy derives tire strategies from history and searches for
// better ones by simulation.
package strategy

import (
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/race"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// FromHistory returns the strategy each driver actually ran in the race,
// keyed by driver name. The starting tire comes from the lap 0 row, or from
// lap 1 when the grid row is missing. Every lap with a recorded pit stop
// duration becomes a stop with a window of that lap only.
func FromHistory(tables *data.Tables, season int, location string) (map[string]models.Strategy, error) {
	r, ok := tables.FindRace(season, location)
	if !ok {
		return nil, &race.ConfigurationError{Season: season, Location: location, Reason: "no race found"}
	}

	byDriver := make(map[int64][]models.Lap)
	var order []int64
	for _, l := range tables.LapsForRace(r.ID) {
		if _, seen := byDriver[l.DriverID]; !seen {
			order = append(order, l.DriverID)
		}
		byDriver[l.DriverID] = append(byDriver[l.DriverID], l)
	}

	strategies := make(map[string]models.Strategy, len(order))
	for _, id := range order {
		driver, ok := tables.Driver(id)
		if !ok {
			continue
		}
		if s, ok := strategyFromLaps(byDriver[id]); ok {
			strategies[driver.Name] = s
		}
	}
	return strategies, nil
}

// strategyFromLaps expects laps sorted by lap number
func strategyFromLaps(laps []models.Lap) (models.Strategy, bool) {
	if len(laps) == 0 {
		return models.Strategy{}, false
	}

	var s models.Strategy
	first := laps[0]
	switch {
	case first.LapNo == 0:
		s.StartingCompound = first.Compound
		s.StartingTireAge = first.TireAge
	case first.LapNo == 1:
		s.StartingCompound = first.Compound
		s.StartingTireAge = max(first.TireAge-1, 0)
	default:
		return models.Strategy{}, false
	}

	for _, l := range laps {
		if l.LapNo <= 0 || l.PitStopDuration <= 0 {
			continue
		}
		s.Stops = append(s.Stops, models.PitStopPlan{
			Compound:         l.Compound,
			PitLap:           l.LapNo,
			Window:           [2]int{l.LapNo, l.LapNo},
			TireAgeAfterStop: l.TireAge,
		})
	}
	return s, true
}
