package model

import (
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
)

// ZeroPerformance predicts no delta over the qualifying lap and no noise
type ZeroPerformance struct{}

func (ZeroPerformance) Predict(Features) float64 { return 0 }
func (ZeroPerformance) Variability() float64     { return 0 }

// LinearPerformance is a hand-parameterised lap-time model
type LinearPerformance struct {
	Base     float64
	PerFuel  float64
	PerLap   map[string]float64
	Residual float64
}

// Predict implements PerformanceModel
func (m LinearPerformance) Predict(f Features) float64 {
	return m.Base + m.PerFuel*f.Fuel + m.PerLap[f.Compound]*float64(f.TireAge)
}

// Variability implements PerformanceModel
func (m LinearPerformance) Variability() float64 {
	return m.Residual
}

// StaticRetirement returns fixed probabilities
type StaticRetirement struct {
	Accident float64
	Failure  float64
}

// Probabilities implements RetirementModel
func (r StaticRetirement) Probabilities() (accident, failure float64) {
	return r.Accident, r.Failure
}

// StaticPitDuration returns a constant duration, or Err when set
type StaticPitDuration struct {
	Duration float64
	Err      error
}

// SamplePitDuration implements PitDurationModel
func (s StaticPitDuration) SamplePitDuration(*utils.RandSource, string, string, int, int64) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Duration, nil
}

// StaticProvider hands the same models to every driver
type StaticProvider struct {
	Performance PerformanceModel
	Retirement  RetirementModel
	Pit         PitDurationModel
}

var _ Provider = StaticProvider{}

// PerformanceFor implements Provider
func (p StaticProvider) PerformanceFor(int64, int64, int) PerformanceModel {
	if p.Performance == nil {
		return ZeroPerformance{}
	}
	return p.Performance
}

// RetirementFor implements Provider
func (p StaticProvider) RetirementFor(int64, string, int) RetirementModel {
	if p.Retirement == nil {
		return StaticRetirement{}
	}
	return p.Retirement
}

// PitDuration implements Provider
func (p StaticProvider) PitDuration() PitDurationModel {
	if p.Pit == nil {
		return StaticPitDuration{}
	}
	return p.Pit
}
