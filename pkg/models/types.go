package models

// Race is one row of the races table
type Race struct {
	ID            int64  `json:"id"`
	Season        int    `json:"season"`
	Location      string `json:"location"`
	NoLapsPlanned int    `json:"nolapsplanned"`
}

// Qualifying is one row of the qualifyings table. A zero lap time means
// the driver did not set a time in that session.
type Qualifying struct {
	RaceID    int64   `json:"race_id"`
	DriverID  int64   `json:"driver_id"`
	Position  int     `json:"position"`
	Q1LapTime float64 `json:"q1laptime"`
	Q2LapTime float64 `json:"q2laptime"`
	Q3LapTime float64 `json:"q3laptime"`
}

// BestLapTime returns the fastest of the three session times, or 0 when none was set
func (q Qualifying) BestLapTime() float64 {
	best := 0.0
	for _, t := range [...]float64{q.Q1LapTime, q.Q2LapTime, q.Q3LapTime} {
		if t > 0 && (best == 0 || t < best) {
			best = t
		}
	}
	return best
}

// Driver is one row of the drivers table
type Driver struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
}

// StarterField is one row of the starterfields table
type StarterField struct {
	RaceID         int64  `json:"race_id"`
	DriverID       int64  `json:"driver_id"`
	Team           string `json:"team"`
	Status         string `json:"status"`
	ResultPosition int    `json:"resultposition"`
}

// StatusFinished is the starter-field status of a classified finisher
const StatusFinished = "F"

// Lap is one row of the laps table
type Lap struct {
	RaceID          int64   `json:"race_id"`
	DriverID        int64   `json:"driver_id"`
	LapNo           int     `json:"lapno"`
	LapTime         float64 `json:"laptime"`
	RaceTime        float64 `json:"racetime"`
	Compound        string  `json:"compound"`
	TireAge         int     `json:"tireage"`
	PitIn           bool    `json:"pitin"`
	PitStopDuration float64 `json:"pitstopduration"`
}

// Retirement is one row of the retirements table (counts per driver and season)
type Retirement struct {
	Season    int     `json:"season"`
	DriverID  int64   `json:"driver_id"`
	Accidents float64 `json:"accidents"`
	Failures  float64 `json:"failures"`
}

// FCYPhase is a full-course-yellow phase (safety car or virtual safety car)
type FCYPhase struct {
	RaceID   int64 `json:"race_id"`
	StartLap int   `json:"startlap"`
	EndLap   int   `json:"endlap"`
}

// PitStopPlan describes one scheduled stop of a strategy
type PitStopPlan struct {
	Compound         string `json:"compound" yaml:"compound"`
	PitLap           int    `json:"pit_lap" yaml:"pit_lap"`
	Window           [2]int `json:"pit_window" yaml:"pit_window"`
	TireAgeAfterStop int    `json:"tire_age_after_stop" yaml:"tire_age_after_stop"`
}

// InWindow reports whether lap lies inside the stop window, bounds included
func (p PitStopPlan) InWindow(lap int) bool {
	return lap >= p.Window[0] && lap <= p.Window[1]
}

// Strategy is a driver's tire plan. Stop k (1-based) is Stops[k-1].
type Strategy struct {
	StartingCompound string        `json:"starting_compound" yaml:"starting_compound"`
	StartingTireAge  int           `json:"starting_tire_age" yaml:"starting_tire_age"`
	Stops            []PitStopPlan `json:"stops" yaml:"stops"`
}

// Stop returns the k-th scheduled stop (1-based)
func (s Strategy) Stop(k int) (PitStopPlan, bool) {
	if k < 1 || k > len(s.Stops) {
		return PitStopPlan{}, false
	}
	return s.Stops[k-1], true
}

// GridSlot is one entry of the starting grid
type GridSlot struct {
	DriverID int64 `json:"driver_id"`
	Position int   `json:"position"`
}

// DriverStatus is the race status of a driver
type DriverStatus string

const (
	StatusRunning DriverStatus = "running"
	StatusDNF     DriverStatus = "DNF"
)

// LapRecord is one row of a simulation's lap-by-lap summary
type LapRecord struct {
	Lap            int          `json:"lap"`
	DriverID       int64        `json:"driver_id"`
	Name           string       `json:"name"`
	Position       int          `json:"position"`
	LapTime        float64      `json:"lap_time"`
	CumulativeTime float64      `json:"cumulative_time"`
	Status         DriverStatus `json:"status"`
	Compound       string       `json:"compound"`
	TireAge        int          `json:"tire_age"`
	Fuel           float64      `json:"fuel"`
	PitStop        bool         `json:"pit_stop"`
	SafetyCar      bool         `json:"safety_car"`
}

// Outcome is one row of the final classification
type Outcome struct {
	DriverID       int64        `json:"driver_id"`
	Name           string       `json:"name"`
	Team           string       `json:"team"`
	FinalPosition  int          `json:"final_position"`
	CumulativeTime float64      `json:"cumulative_time"`
	Status         DriverStatus `json:"status"`
	DNFLap         int          `json:"dnf_lap,omitempty"`
}
