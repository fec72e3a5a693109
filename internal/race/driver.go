package race

import (
	"fmt"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/model"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
)

// StopTrigger says why a pit stop was taken
type StopTrigger int

const (
	NoStop StopTrigger = iota
	ScheduledStop
	SafetyCarStop
)

func (t StopTrigger) String() string {
	switch t {
	case ScheduledStop:
		return "scheduled"
	case SafetyCarStop:
		return "safety_car"
	default:
		return "none"
	}
}

// Driver is the per-race state of one grid entrant. It is owned by a single
// Simulation and never shared.
type Driver struct {
	ID           int64
	Name         string
	Initials     string
	Team         string
	GridPosition int

	BestQualifyingTime  float64
	AccidentProbability float64
	FailureProbability  float64
	Performance         model.PerformanceModel
	Variability         float64
	Strategy            models.Strategy

	Fuel           float64
	TireAge        int
	Compound       string
	CumulativeTime float64
	CurrentLapTime float64
	// Position is 0 until the first lap has been ranked.
	Position int
	Alive    bool
	// EarliestDNFLap is 0 when the driver is not scheduled to retire.
	EarliestDNFLap int
	// NextPitStop is the 1-based index of the next strategy stop.
	NextPitStop int
}

func newDriver(row models.Driver, team string, strategy models.Strategy) *Driver {
	return &Driver{
		ID:          row.ID,
		Name:        row.Name,
		Initials:    row.Initials,
		Team:        team,
		Strategy:    strategy,
		Fuel:        100,
		TireAge:     strategy.StartingTireAge,
		Compound:    strategy.StartingCompound,
		Alive:       true,
		NextPitStop: 1,
	}
}

// Status returns the driver's race status
func (d *Driver) Status() models.DriverStatus {
	if d.Alive {
		return models.StatusRunning
	}
	return models.StatusDNF
}

// UpdateStatus retires the driver once lap reaches the scheduled DNF lap.
// It reports whether the driver retired on this call.
func (d *Driver) UpdateStatus(lap int) bool {
	if d.Alive && d.EarliestDNFLap > 0 && lap >= d.EarliestDNFLap {
		d.Alive = false
		d.CurrentLapTime = 0
		return true
	}
	return false
}

// UpdateInfo ages the tires by one lap and burns fuel linearly so that the
// tank is empty at the end of the final lap.
func (d *Driver) UpdateInfo(lap, totalLaps int) {
	d.TireAge++
	if totalLaps <= 0 {
		d.Fuel = 0
		return
	}
	d.Fuel = utils.ClampFloat64(100*float64(totalLaps-lap)/float64(totalLaps), 0, 100)
}

// Features returns the current lap-time model inputs
func (d *Driver) Features() model.Features {
	return model.Features{Fuel: d.Fuel, Compound: d.Compound, TireAge: d.TireAge}
}

// ResolvePitStop takes the next scheduled stop when lap is its pit lap, or
// when a safety car is out and lap lies in its window. At most one stop is
// taken per call. The duration is sampled before any state changes; when
// sampling fails the stop is skipped and the error returned.
func (d *Driver) ResolvePitStop(lap int, safetyCar bool, sample func(*Driver) (float64, error)) (float64, StopTrigger, error) {
	plan, ok := d.Strategy.Stop(d.NextPitStop)
	if !ok {
		return 0, NoStop, nil
	}

	trigger := NoStop
	switch {
	case lap == plan.PitLap:
		trigger = ScheduledStop
	case safetyCar && plan.InWindow(lap):
		trigger = SafetyCarStop
	default:
		return 0, NoStop, nil
	}

	duration, err := sample(d)
	if err != nil {
		return 0, NoStop, fmt.Errorf("pit stop %d of %s on lap %d: %w", d.NextPitStop, d.Name, lap, err)
	}

	d.TireAge = plan.TireAgeAfterStop
	d.Compound = plan.Compound
	d.NextPitStop++
	return duration, trigger, nil
}
