package strategy

import (
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// Objective scores a driver's batch summary. Lower scores are better.
type Objective interface {
	Evaluate(summary models.DriverSummary) (float64, error)
	Name() string
}

// ObjectiveType names a built-in objective
type ObjectiveType string

const (
	// ObjectiveMeanPosition minimizes the mean finishing position
	ObjectiveMeanPosition ObjectiveType = "mean_position"
	// ObjectiveMedianPosition minimizes the median finishing position
	ObjectiveMedianPosition ObjectiveType = "median_position"
	// ObjectiveMeanTime minimizes the mean race time
	ObjectiveMeanTime ObjectiveType = "mean_time"
)

// NewObjective creates an objective from its name
func NewObjective(name string) (Objective, error) {
	switch ObjectiveType(name) {
	case ObjectiveMeanPosition, "":
		return MeanPositionObjective{}, nil
	case ObjectiveMedianPosition:
		return MedianPositionObjective{}, nil
	case ObjectiveMeanTime:
		return MeanTimeObjective{}, nil
	default:
		return nil, &UnknownObjectiveError{Objective: name}
	}
}

// MeanPositionObjective minimizes the mean finishing position
type MeanPositionObjective struct{}

func (MeanPositionObjective) Name() string { return string(ObjectiveMeanPosition) }

func (MeanPositionObjective) Evaluate(s models.DriverSummary) (float64, error) {
	return s.MeanPosition, nil
}

// MedianPositionObjective minimizes the median finishing position
type MedianPositionObjective struct{}

func (MedianPositionObjective) Name() string { return string(ObjectiveMedianPosition) }

func (MedianPositionObjective) Evaluate(s models.DriverSummary) (float64, error) {
	return s.MedianPosition, nil
}

// MeanTimeObjective minimizes the mean race time. Batches in which the
// driver always retires cannot be scored.
type MeanTimeObjective struct{}

func (MeanTimeObjective) Name() string { return string(ObjectiveMeanTime) }

func (MeanTimeObjective) Evaluate(s models.DriverSummary) (float64, error) {
	if s.DNFRate >= 1 {
		return 0, &InvalidSummaryError{Reason: s.Name + " retired in every trial"}
	}
	return s.MeanTime, nil
}

// UnknownObjectiveError indicates an unknown objective name
type UnknownObjectiveError struct {
	Objective string
}

func (e *UnknownObjectiveError) Error() string {
	return "unknown objective: " + e.Objective
}

// InvalidSummaryError indicates a summary the objective cannot score
type InvalidSummaryError struct {
	Reason string
}

func (e *InvalidSummaryError) Error() string {
	return "invalid summary: " + e.Reason
}
