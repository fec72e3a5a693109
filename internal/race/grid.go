package race

import (
	"sort"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// BuildGrid orders drivers by qualifying position. Starter-field entrants
// without a qualifying row are appended after the last qualifying position
// in alphabetical order of their names.
func BuildGrid(tables *data.Tables, raceID int64) []models.GridSlot {
	quals := append([]models.Qualifying(nil), tables.QualifyingsForRace(raceID)...)
	sort.SliceStable(quals, func(i, j int) bool {
		return quals[i].Position < quals[j].Position
	})

	seen := make(map[int64]bool, len(quals))
	grid := make([]models.GridSlot, 0, len(quals))
	maxPos := 0
	for _, q := range quals {
		if seen[q.DriverID] {
			continue
		}
		seen[q.DriverID] = true
		grid = append(grid, models.GridSlot{DriverID: q.DriverID, Position: q.Position})
		if q.Position > maxPos {
			maxPos = q.Position
		}
	}

	type entrant struct {
		id   int64
		name string
	}
	var missing []entrant
	for _, sf := range tables.StarterFieldsForRace(raceID) {
		if seen[sf.DriverID] {
			continue
		}
		seen[sf.DriverID] = true
		name := ""
		if d, ok := tables.Driver(sf.DriverID); ok {
			name = d.Name
		}
		missing = append(missing, entrant{id: sf.DriverID, name: name})
	}
	sort.SliceStable(missing, func(i, j int) bool {
		return missing[i].name < missing[j].name
	})
	for i, e := range missing {
		grid = append(grid, models.GridSlot{DriverID: e.id, Position: maxPos + i + 1})
	}
	return grid
}

// bestQualifyingTime returns the driver's fastest qualifying lap. A driver
// without any time gets the mean of the session minima of the race.
func bestQualifyingTime(quals []models.Qualifying, driverID int64) float64 {
	for _, q := range quals {
		if q.DriverID == driverID {
			if best := q.BestLapTime(); best > 0 {
				return best
			}
			break
		}
	}
	return sessionMinimaMean(quals)
}

func sessionMinimaMean(quals []models.Qualifying) float64 {
	var minima [3]float64
	for _, q := range quals {
		for i, t := range [...]float64{q.Q1LapTime, q.Q2LapTime, q.Q3LapTime} {
			if t > 0 && (minima[i] == 0 || t < minima[i]) {
				minima[i] = t
			}
		}
	}
	sum, n := 0.0, 0
	for _, m := range minima {
		if m > 0 {
			sum += m
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
