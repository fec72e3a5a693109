package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
)

const (
	// baselineSeasons is how many previous seasons feed the pit baseline
	baselineSeasons = 2
	// baselinePercentile is the per-race quantile taken as the fastest realistic stop
	baselinePercentile = 2.5
	// maxPitStopDuration drops red-flag and garage stops from the team fit
	maxPitStopDuration = 700
)

// FiskDistribution is a log-logistic distribution with a location shift.
// A zero Shape makes it a constant at Loc.
type FiskDistribution struct {
	Shape float64
	Loc   float64
	Scale float64
}

var _ Fitter[float64] = (*FiskDistribution)(nil)

// Fit calibrates the distribution by matching the moments of log(x - loc),
// which is logistic with mean log(scale) and standard deviation pi/(shape*sqrt(3)).
// loc is placed just below the smallest sample. Fewer than two samples or
// identical samples degenerate to a constant at the median.
func (f *FiskDistribution) Fit(samples []float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: no pit stop deltas", ErrInsufficientData)
	}
	lo, hi := samples[0], samples[0]
	for _, s := range samples {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if len(samples) < 2 || hi == lo {
		*f = FiskDistribution{Loc: utils.Median(samples)}
		return nil
	}

	loc := lo - math.Max(1e-3, 0.01*(hi-lo))
	logs := make([]float64, len(samples))
	for i, s := range samples {
		logs[i] = math.Log(s - loc)
	}
	mean, std := stat.PopMeanStdDev(logs, nil)
	if std == 0 || math.IsNaN(std) {
		*f = FiskDistribution{Loc: utils.Median(samples)}
		return nil
	}

	s := std * math.Sqrt(3) / math.Pi
	*f = FiskDistribution{Shape: 1 / s, Loc: loc, Scale: math.Exp(mean)}
	return nil
}

// Sample draws one value
func (f FiskDistribution) Sample(rng *utils.RandSource) float64 {
	return rng.FiskFloat64(f.Shape, f.Loc, f.Scale)
}

// PitStopModel samples pit durations as a circuit baseline plus a
// team-specific Fisk-distributed delta. Fits are cached per key.
type PitStopModel struct {
	tables *data.Tables
	cache  *Cache
}

var _ PitDurationModel = (*PitStopModel)(nil)

// NewPitStopModel creates a pit duration model over tables
func NewPitStopModel(tables *data.Tables, cache *Cache) *PitStopModel {
	return &PitStopModel{tables: tables, cache: cache}
}

// SamplePitDuration implements PitDurationModel. It fails with ErrDataLookup
// when the circuit has no pit stop history in the previous two seasons.
func (m *PitStopModel) SamplePitDuration(rng *utils.RandSource, team, location string, season int, raceID int64) (float64, error) {
	baseline, err := m.Baseline(location, season)
	if err != nil {
		return 0, err
	}
	delta, err := m.TeamDelta(team, season, raceID, baseline)
	if err != nil {
		return 0, err
	}
	return baseline + delta.Sample(rng), nil
}

// Baseline is the mean over the previous seasons' races at location of each
// race's 2.5th percentile pit stop duration.
func (m *PitStopModel) Baseline(location string, season int) (float64, error) {
	key := Key{Kind: KindPitBaseline, Subject: location, Season: season}
	return Load(m.cache, key, func() (float64, error) {
		seasons := make([]int, 0, baselineSeasons)
		for i := 1; i <= baselineSeasons; i++ {
			seasons = append(seasons, season-i)
		}

		var perRace []float64
		for _, race := range m.tables.RacesAt(location, seasons...) {
			var durations []float64
			for _, l := range m.tables.LapsForRace(race.ID) {
				if l.PitStopDuration > 0 {
					durations = append(durations, l.PitStopDuration)
				}
			}
			if len(durations) > 0 {
				perRace = append(perRace, utils.Percentile(durations, baselinePercentile))
			}
		}
		if len(perRace) == 0 {
			return 0, fmt.Errorf("%w: no pit stops at %s in seasons %v", ErrDataLookup, location, seasons)
		}
		return utils.Mean(perRace), nil
	})
}

// TeamDelta fits the distribution of a team's pit durations above baseline
// in the races of season before raceID. A team without history gets a
// constant zero delta.
func (m *PitStopModel) TeamDelta(team string, season int, raceID int64, baseline float64) (FiskDistribution, error) {
	key := Key{Kind: KindPitDelta, Subject: team, Season: season, RaceID: raceID}
	return Load(m.cache, key, func() (FiskDistribution, error) {
		var deltas []float64
		for _, race := range m.tables.RacesInSeason(season) {
			if race.ID >= raceID {
				break
			}
			teams := make(map[int64]string)
			for _, sf := range m.tables.StarterFieldsForRace(race.ID) {
				teams[sf.DriverID] = sf.Team
			}
			for _, l := range m.tables.LapsForRace(race.ID) {
				if l.PitStopDuration <= 0 || l.PitStopDuration >= maxPitStopDuration {
					continue
				}
				if teams[l.DriverID] == team {
					deltas = append(deltas, l.PitStopDuration-baseline)
				}
			}
		}

		var dist FiskDistribution
		if len(deltas) == 0 {
			return dist, nil
		}
		if err := dist.Fit(deltas); err != nil {
			return FiskDistribution{}, err
		}
		return dist, nil
	})
}
