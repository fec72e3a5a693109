// Package model fits and serves the statistical models the race simulator
// consumes: lap-time regression, retirement probabilities and pit-stop
// durations.
package model

import (
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
)

// Features are the inputs of a lap-time prediction
type Features struct {
	Fuel     float64
	Compound string
	TireAge  int
}

// PerformanceModel predicts a driver's lap-time delta over their best
// qualifying lap.
type PerformanceModel interface {
	Predict(f Features) float64
	// Variability is the residual standard deviation of the fit.
	Variability() float64
}

// RetirementModel exposes a driver's accident and failure probabilities per race
type RetirementModel interface {
	Probabilities() (accident, failure float64)
}

// PitDurationModel samples the time lost in one pit stop
type PitDurationModel interface {
	SamplePitDuration(rng *utils.RandSource, team, location string, season int, raceID int64) (float64, error)
}

// Fitter is implemented by every estimator that is calibrated from samples
type Fitter[S any] interface {
	Fit(samples []S) error
}

// Provider hands the simulator fitted models for one race
type Provider interface {
	PerformanceFor(driverID, raceID int64, season int) PerformanceModel
	RetirementFor(driverID int64, team string, season int) RetirementModel
	PitDuration() PitDurationModel
}
