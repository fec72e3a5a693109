// Package data holds the read-only historical tables consumed by the
// simulator and the model-fitting layer.
package data

import (
	"sort"
	"sync"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// Tables is the set of historical source tables. Slices must not be
// mutated after the first lookup; indexes are built once and shared by
// concurrent readers.
type Tables struct {
	Races         []models.Race
	Qualifyings   []models.Qualifying
	Drivers       []models.Driver
	StarterFields []models.StarterField
	Laps          []models.Lap
	Retirements   []models.Retirement
	FCYPhases     []models.FCYPhase

	once sync.Once
	idx  *index
}

type raceKey struct {
	season   int
	location string
}

type index struct {
	raceByID      map[int64]models.Race
	raceByKey     map[raceKey]models.Race
	driverByID    map[int64]models.Driver
	driverByName  map[string]models.Driver
	qualsByRace   map[int64][]models.Qualifying
	fieldByRace   map[int64][]models.StarterField
	lapsByRace    map[int64][]models.Lap
	fcyByRace     map[int64][]models.FCYPhase
	racesBySeason map[int][]models.Race
}

func (t *Tables) indexes() *index {
	t.once.Do(func() {
		idx := &index{
			raceByID:      make(map[int64]models.Race, len(t.Races)),
			raceByKey:     make(map[raceKey]models.Race, len(t.Races)),
			driverByID:    make(map[int64]models.Driver, len(t.Drivers)),
			driverByName:  make(map[string]models.Driver, len(t.Drivers)),
			qualsByRace:   make(map[int64][]models.Qualifying),
			fieldByRace:   make(map[int64][]models.StarterField),
			lapsByRace:    make(map[int64][]models.Lap),
			fcyByRace:     make(map[int64][]models.FCYPhase),
			racesBySeason: make(map[int][]models.Race),
		}
		for _, r := range t.Races {
			idx.raceByID[r.ID] = r
			key := raceKey{r.Season, r.Location}
			// first matching row wins
			if _, ok := idx.raceByKey[key]; !ok {
				idx.raceByKey[key] = r
			}
			idx.racesBySeason[r.Season] = append(idx.racesBySeason[r.Season], r)
		}
		for _, races := range idx.racesBySeason {
			sort.Slice(races, func(i, j int) bool { return races[i].ID < races[j].ID })
		}
		for _, d := range t.Drivers {
			idx.driverByID[d.ID] = d
			if _, ok := idx.driverByName[d.Name]; !ok {
				idx.driverByName[d.Name] = d
			}
		}
		for _, q := range t.Qualifyings {
			idx.qualsByRace[q.RaceID] = append(idx.qualsByRace[q.RaceID], q)
		}
		for _, sf := range t.StarterFields {
			idx.fieldByRace[sf.RaceID] = append(idx.fieldByRace[sf.RaceID], sf)
		}
		for _, l := range t.Laps {
			idx.lapsByRace[l.RaceID] = append(idx.lapsByRace[l.RaceID], l)
		}
		for _, laps := range idx.lapsByRace {
			sort.SliceStable(laps, func(i, j int) bool {
				if laps[i].DriverID != laps[j].DriverID {
					return laps[i].DriverID < laps[j].DriverID
				}
				return laps[i].LapNo < laps[j].LapNo
			})
		}
		for _, p := range t.FCYPhases {
			idx.fcyByRace[p.RaceID] = append(idx.fcyByRace[p.RaceID], p)
		}
		t.idx = idx
	})
	return t.idx
}

// FindRace resolves the race held at location in season
func (t *Tables) FindRace(season int, location string) (models.Race, bool) {
	r, ok := t.indexes().raceByKey[raceKey{season, location}]
	return r, ok
}

// RaceByID returns the race with the given id
func (t *Tables) RaceByID(id int64) (models.Race, bool) {
	r, ok := t.indexes().raceByID[id]
	return r, ok
}

// RacesInSeason returns the season's races ordered by id
func (t *Tables) RacesInSeason(season int) []models.Race {
	return t.indexes().racesBySeason[season]
}

// RacesAt returns the races held at location in any of the given seasons, ordered by id
func (t *Tables) RacesAt(location string, seasons ...int) []models.Race {
	var out []models.Race
	for _, season := range seasons {
		if r, ok := t.FindRace(season, location); ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Driver returns the driver with the given id
func (t *Tables) Driver(id int64) (models.Driver, bool) {
	d, ok := t.indexes().driverByID[id]
	return d, ok
}

// DriverByName returns the first driver row with the given name
func (t *Tables) DriverByName(name string) (models.Driver, bool) {
	d, ok := t.indexes().driverByName[name]
	return d, ok
}

// QualifyingsForRace returns the qualifying rows of a race in table order
func (t *Tables) QualifyingsForRace(raceID int64) []models.Qualifying {
	return t.indexes().qualsByRace[raceID]
}

// StarterFieldsForRace returns the starter-field rows of a race in table order
func (t *Tables) StarterFieldsForRace(raceID int64) []models.StarterField {
	return t.indexes().fieldByRace[raceID]
}

// LapsForRace returns the laps of a race ordered by driver then lap number
func (t *Tables) LapsForRace(raceID int64) []models.Lap {
	return t.indexes().lapsByRace[raceID]
}

// FCYPhasesForRace returns the full-course-yellow phases of a race
func (t *Tables) FCYPhasesForRace(raceID int64) []models.FCYPhase {
	return t.indexes().fcyByRace[raceID]
}

// TeamFor returns the team a driver entered raceID with. When the driver has
// no starter-field row for that race, the first entry of the race's season is used.
func (t *Tables) TeamFor(driverID, raceID int64) string {
	for _, sf := range t.StarterFieldsForRace(raceID) {
		if sf.DriverID == driverID {
			return sf.Team
		}
	}
	race, ok := t.RaceByID(raceID)
	if !ok {
		return ""
	}
	for _, r := range t.RacesInSeason(race.Season) {
		for _, sf := range t.StarterFieldsForRace(r.ID) {
			if sf.DriverID == driverID {
				return sf.Team
			}
		}
	}
	return ""
}

// FinalRaceTimes returns each driver's race time after their last recorded lap
func (t *Tables) FinalRaceTimes(raceID int64) map[int64]float64 {
	out := make(map[int64]float64)
	last := make(map[int64]int)
	for _, l := range t.LapsForRace(raceID) {
		if l.LapNo >= last[l.DriverID] {
			last[l.DriverID] = l.LapNo
			out[l.DriverID] = l.RaceTime
		}
	}
	return out
}
