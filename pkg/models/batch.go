package models

import "time"

// BatchStatus represents the status of a Monte Carlo batch
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed || s == BatchStatusCancelled
}

// BatchRequest is the input of a Monte Carlo batch
type BatchRequest struct {
	Season      int                 `json:"season"`
	Location    string              `json:"location"`
	Simulations int                 `json:"simulations"`
	Seed        int64               `json:"seed,omitempty"`
	TestMode    bool                `json:"test_mode,omitempty"`
	Strategies  map[string]Strategy `json:"strategies,omitempty"`
}

// DriverSummary aggregates one driver's results over all trials of a batch
type DriverSummary struct {
	DriverID       int64   `json:"driver_id"`
	Name           string  `json:"name"`
	Team           string  `json:"team"`
	MeanPosition   float64 `json:"mean_position"`
	MedianPosition float64 `json:"median_position"`
	BestPosition   int     `json:"best_position"`
	WorstPosition  int     `json:"worst_position"`
	MeanTime       float64 `json:"mean_time"`
	P95Time        float64 `json:"p95_time"`
	DNFRate        float64 `json:"dnf_rate"`
	ActualPosition int     `json:"actual_position,omitempty"`
	ActualRaceTime float64 `json:"actual_race_time,omitempty"`
	PredictedRank  int     `json:"predicted_rank"`
}

// Comparison holds the agreement between simulated and historical results
type Comparison struct {
	Spearman       float64 `json:"spearman"`
	SpearmanPValue float64 `json:"spearman_p_value"`
	RMSE           float64 `json:"rmse"`
	MAE            float64 `json:"mae"`
	WilcoxonW      float64 `json:"wilcoxon_w"`
	WilcoxonPValue float64 `json:"wilcoxon_p_value"`
	Drivers        int     `json:"drivers"`
}

// BatchResult is the output of a finished batch
type BatchResult struct {
	Trials        int             `json:"trials"`
	Drivers       []DriverSummary `json:"drivers"`
	SafetyCarRate float64         `json:"safety_car_rate"`
	Comparison    *Comparison     `json:"comparison,omitempty"`
}

// Batch represents a Monte Carlo batch tracked by the service
type Batch struct {
	ID          string       `json:"id"`
	Status      BatchStatus  `json:"status"`
	Request     BatchRequest `json:"request"`
	CallbackURL string       `json:"callback_url,omitempty"`
	TrialsDone  int          `json:"trials_done"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   time.Time    `json:"started_at,omitempty"`
	EndedAt     time.Time    `json:"ended_at,omitempty"`
	Result      *BatchResult `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
}
