package model

import (
	"log/slog"
	"strconv"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// TableProvider fits models from the historical tables and caches them
type TableProvider struct {
	tables   *data.Tables
	cache    *Cache
	logger   *slog.Logger
	metrics  *metrics.Manager
	excluded map[string]bool
	pit      *PitStopModel
}

var _ Provider = (*TableProvider)(nil)

// ProviderOption configures a TableProvider
type ProviderOption func(*TableProvider)

// WithCache shares a fitted-model cache between providers
func WithCache(c *Cache) ProviderOption {
	return func(p *TableProvider) {
		if c != nil {
			p.cache = c
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *TableProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics manager
func WithMetrics(m *metrics.Manager) ProviderOption {
	return func(p *TableProvider) {
		p.metrics = m
	}
}

// WithExcludedLocations leaves the given circuits out of lap-time training
func WithExcludedLocations(locations ...string) ProviderOption {
	return func(p *TableProvider) {
		for _, l := range locations {
			p.excluded[l] = true
		}
	}
}

// NewTableProvider creates a provider over tables
func NewTableProvider(tables *data.Tables, opts ...ProviderOption) *TableProvider {
	p := &TableProvider{
		tables:   tables,
		logger:   logger.Default,
		excluded: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = NewCache(p.metrics)
	}
	p.pit = NewPitStopModel(tables, p.cache)
	return p
}

// Cache returns the provider's fitted-model cache
func (p *TableProvider) Cache() *Cache {
	return p.cache
}

// PerformanceFor returns the driver's lap-time model trained on the season's
// races before raceID. A failed fit yields ZeroPerformance.
func (p *TableProvider) PerformanceFor(driverID, raceID int64, season int) PerformanceModel {
	key := Key{Kind: KindLapTime, Subject: strconv.FormatInt(driverID, 10), Season: season, RaceID: raceID}
	m, err := Load(p.cache, key, func() (PerformanceModel, error) {
		lm := &LapTimeModel{}
		if err := lm.Fit(p.LapSamples(driverID, raceID, season)); err != nil {
			return nil, err
		}
		return lm, nil
	})
	if err != nil {
		p.logger.Warn("lap time model unavailable, using zero model",
			"driver_id", driverID, "race_id", raceID, "season", season, "error", err)
		p.metrics.RecordModelFitFailure(KindLapTime)
		return ZeroPerformance{}
	}
	return m
}

// RetirementFor returns the driver's DNF probabilities for season
func (p *TableProvider) RetirementFor(driverID int64, team string, season int) RetirementModel {
	key := Key{Kind: KindRetirement, Subject: strconv.FormatInt(driverID, 10) + "/" + team, Season: season}
	r, _ := Load(p.cache, key, func() (RetirementModel, error) {
		return FitRetirement(p.tables, driverID, team, season), nil
	})
	return r
}

// PitDuration returns the pit stop duration model
func (p *TableProvider) PitDuration() PitDurationModel {
	return p.pit
}

// LapSamples extracts the cleaned training laps of a driver: finished races
// of season before raceID, outside excluded circuits, without
// full-course-yellow laps, pit-in laps and out-laps.
func (p *TableProvider) LapSamples(driverID, raceID int64, season int) []LapSample {
	var samples []LapSample
	for _, race := range p.tables.RacesInSeason(season) {
		if race.ID >= raceID {
			break
		}
		if p.excluded[race.Location] || !p.finished(driverID, race.ID) {
			continue
		}
		best := p.bestQualifying(driverID, race.ID)
		if best <= 0 {
			continue
		}

		var laps []models.Lap
		maxLap := 0
		skip := make(map[int]bool)
		for _, l := range p.tables.LapsForRace(race.ID) {
			if l.DriverID != driverID {
				continue
			}
			laps = append(laps, l)
			if l.LapNo > maxLap {
				maxLap = l.LapNo
			}
			if l.PitIn {
				skip[l.LapNo] = true
				skip[l.LapNo+1] = true
			}
		}
		for _, phase := range p.tables.FCYPhasesForRace(race.ID) {
			for lap := phase.StartLap; lap <= phase.EndLap; lap++ {
				skip[lap] = true
			}
		}

		for _, l := range laps {
			if skip[l.LapNo] || l.LapTime <= 0 || l.Compound == "" {
				continue
			}
			samples = append(samples, LapSample{
				Fuel:      100 - 100/float64(maxLap)*float64(l.LapNo),
				Compound:  l.Compound,
				TireAge:   l.TireAge,
				Corrected: l.LapTime - best,
			})
		}
	}
	return samples
}

func (p *TableProvider) finished(driverID, raceID int64) bool {
	for _, sf := range p.tables.StarterFieldsForRace(raceID) {
		if sf.DriverID == driverID {
			return sf.Status == models.StatusFinished
		}
	}
	return false
}

func (p *TableProvider) bestQualifying(driverID, raceID int64) float64 {
	for _, q := range p.tables.QualifyingsForRace(raceID) {
		if q.DriverID == driverID {
			return q.BestLapTime()
		}
	}
	return 0
}
