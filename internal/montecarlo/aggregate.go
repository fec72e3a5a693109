package montecarlo

import (
	"log/slog"
	"sort"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/evaluation"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
)

type driverSamples struct {
	summary   models.DriverSummary
	positions []float64
	times     []float64
	dnfs      int
}

// aggregate summarizes every driver over all trials. Drivers are returned
// by predicted rank: ascending mean position, then mean time.
func (r *Runner) aggregate(trials []trial) *models.BatchResult {
	byDriver := make(map[int64]*driverSamples)
	var order []int64
	safetyCars := 0

	for _, t := range trials {
		if t.safetyCar {
			safetyCars++
		}
		for _, o := range t.outcomes {
			s, ok := byDriver[o.DriverID]
			if !ok {
				s = &driverSamples{summary: models.DriverSummary{
					DriverID:      o.DriverID,
					Name:          o.Name,
					Team:          o.Team,
					BestPosition:  o.FinalPosition,
					WorstPosition: o.FinalPosition,
				}}
				byDriver[o.DriverID] = s
				order = append(order, o.DriverID)
			}
			s.positions = append(s.positions, float64(o.FinalPosition))
			s.times = append(s.times, o.CumulativeTime)
			s.summary.BestPosition = min(s.summary.BestPosition, o.FinalPosition)
			s.summary.WorstPosition = max(s.summary.WorstPosition, o.FinalPosition)
			if o.Status == models.StatusDNF {
				s.dnfs++
			}
		}
	}

	summaries := make([]models.DriverSummary, 0, len(order))
	for _, id := range order {
		s := byDriver[id]
		sum := s.summary
		sum.MeanPosition = utils.Mean(s.positions)
		sum.MedianPosition = utils.Median(s.positions)
		sum.MeanTime = utils.Mean(s.times)
		sum.P95Time = utils.Percentile(s.times, 95)
		sum.DNFRate = float64(s.dnfs) / float64(len(s.positions))
		summaries = append(summaries, sum)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].MeanPosition != summaries[j].MeanPosition {
			return summaries[i].MeanPosition < summaries[j].MeanPosition
		}
		return summaries[i].MeanTime < summaries[j].MeanTime
	})
	for i := range summaries {
		summaries[i].PredictedRank = i + 1
	}

	result := &models.BatchResult{
		Trials:  len(trials),
		Drivers: summaries,
	}
	if len(trials) > 0 {
		result.SafetyCarRate = float64(safetyCars) / float64(len(trials))
	}
	return result
}

// compare attaches the historical result position and final race time to
// each summary and scores the simulated means against them. Only drivers
// with both historical values take part. It returns nil when the race has
// too little history to score.
func (r *Runner) compare(raceID int64, summaries []models.DriverSummary, log *slog.Logger) *models.Comparison {
	actualPositions := make(map[int64]int)
	for _, sf := range r.tables.StarterFieldsForRace(raceID) {
		if sf.ResultPosition > 0 {
			actualPositions[sf.DriverID] = sf.ResultPosition
		}
	}
	actualTimes := r.tables.FinalRaceTimes(raceID)

	var posActual, posSim, timeActual, timeSim []float64
	for i := range summaries {
		s := &summaries[i]
		pos, hasPos := actualPositions[s.DriverID]
		t, hasTime := actualTimes[s.DriverID]
		if hasPos {
			s.ActualPosition = pos
		}
		if hasTime {
			s.ActualRaceTime = t
		}
		if !hasPos || !hasTime || t <= 0 {
			continue
		}
		posActual = append(posActual, float64(pos))
		posSim = append(posSim, s.MeanPosition)
		timeActual = append(timeActual, t)
		timeSim = append(timeSim, s.MeanTime)
	}

	rho, rhoP, err := evaluation.Spearman(posActual, posSim)
	if err != nil {
		log.Warn("Skipping comparison with historical results", "error", err)
		return nil
	}
	rmse, err := evaluation.RMSE(timeActual, timeSim)
	if err != nil {
		log.Warn("Skipping comparison with historical results", "error", err)
		return nil
	}
	mae, _ := evaluation.MAE(timeActual, timeSim)
	w, wP, _ := evaluation.Wilcoxon(timeActual, timeSim)

	return &models.Comparison{
		Spearman:       rho,
		SpearmanPValue: rhoP,
		RMSE:           rmse,
		MAE:            mae,
		WilcoxonW:      w,
		WilcoxonPValue: wP,
		Drivers:        len(posActual),
	}
}
