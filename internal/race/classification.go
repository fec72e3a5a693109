package race

import (
	"sort"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// classify ranks finishers by cumulative time, then retirees from the
// latest DNF lap to the earliest. Ties keep grid order.
func (s *Simulation) classify() {
	var finishers, retirees []*Driver
	for _, d := range s.drivers {
		if d.Alive {
			finishers = append(finishers, d)
		} else {
			retirees = append(retirees, d)
		}
	}
	sort.SliceStable(finishers, func(i, j int) bool {
		return finishers[i].CumulativeTime < finishers[j].CumulativeTime
	})
	sort.SliceStable(retirees, func(i, j int) bool {
		return retirees[i].EarliestDNFLap > retirees[j].EarliestDNFLap
	})

	s.outcomes = make([]models.Outcome, 0, len(s.drivers))
	for i, d := range append(finishers, retirees...) {
		d.Position = i + 1
		out := models.Outcome{
			DriverID:       d.ID,
			Name:           d.Name,
			Team:           d.Team,
			FinalPosition:  d.Position,
			CumulativeTime: d.CumulativeTime,
			Status:         d.Status(),
		}
		if !d.Alive {
			out.DNFLap = d.EarliestDNFLap
		}
		s.outcomes = append(s.outcomes, out)
	}
}
