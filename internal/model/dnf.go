package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/data"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/utils"
)

const (
	// retirementSeasons is how many seasons, current included, feed the DNF fit
	retirementSeasons = 3
	// minStartsForPrior excludes drivers with few starts from the accident prior
	minStartsForPrior = 20
)

// BetaPrior is a Beta(alpha, beta) prior estimated by the method of moments
type BetaPrior struct {
	Alpha float64
	Beta  float64
}

var _ Fitter[float64] = (*BetaPrior)(nil)

// UniformPrior is the Beta(1,1) fallback used when the moments are degenerate
var UniformPrior = BetaPrior{Alpha: 1, Beta: 1}

// Fit estimates the prior from observed proportions. Fewer than two
// proportions, zero variance, a mean on the boundary of [0,1] or a
// non-positive shape leave UniformPrior in p and return ErrInsufficientData.
func (p *BetaPrior) Fit(proportions []float64) error {
	*p = UniformPrior
	if len(proportions) < 2 {
		return fmt.Errorf("%w: %d proportions for a beta prior", ErrInsufficientData, len(proportions))
	}
	mu, sigma := stat.PopMeanStdDev(proportions, nil)
	if sigma == 0 || mu <= 0 || mu >= 1 || math.IsNaN(mu) || math.IsNaN(sigma) {
		return fmt.Errorf("%w: degenerate proportions (mean %g, std %g)", ErrInsufficientData, mu, sigma)
	}
	alpha := ((1-mu)/(sigma*sigma) - 1/mu) * mu * mu
	beta := alpha * (1/mu - 1)
	if alpha <= 0 || beta <= 0 || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
		return fmt.Errorf("%w: non-positive beta shape", ErrInsufficientData)
	}
	p.Alpha, p.Beta = alpha, beta
	return nil
}

// PosteriorMean returns the expected probability after observing successes in trials
func (p BetaPrior) PosteriorMean(successes, trials float64) float64 {
	a := successes + p.Alpha
	b := trials - successes + p.Beta
	if a+b <= 0 {
		return 0
	}
	return utils.ClampFloat64(a/(a+b), 0, 1)
}

// BetaRetirement holds the posterior per-race DNF probabilities of one driver
type BetaRetirement struct {
	Accident float64
	Failure  float64
}

// Probabilities implements RetirementModel
func (r BetaRetirement) Probabilities() (accident, failure float64) {
	return r.Accident, r.Failure
}

// pooledPrior is the fallback when too few proportions exist to fit a prior.
// It centres on the pooled rate and weighs as much as minStartsForPrior starts.
// Without trials it is the zero prior, whose posterior is the raw rate.
func pooledPrior(successes, trials float64) BetaPrior {
	if trials <= 0 {
		return BetaPrior{}
	}
	mean := (successes + 0.5) / (trials + 1)
	return BetaPrior{Alpha: mean * minStartsForPrior, Beta: (1 - mean) * minStartsForPrior}
}

// FitRetirement computes a driver's accident probability and their team's
// failure probability from the current and two previous seasons. A driver or
// team without retirements rows had clean starts. With no retirements rows
// in the window both probabilities are zero.
func FitRetirement(tables *data.Tables, driverID int64, team string, season int) BetaRetirement {
	seasons := make(map[int]bool, retirementSeasons)
	for i := 0; i < retirementSeasons; i++ {
		seasons[season-i] = true
	}

	type driverSeason struct {
		driverID int64
		season   int
	}
	failures := make(map[driverSeason]float64)
	accidentsByDriver := make(map[int64]float64)
	var rows int
	for _, r := range tables.Retirements {
		if !seasons[r.Season] {
			continue
		}
		rows++
		failures[driverSeason{r.DriverID, r.Season}] += r.Failures
		accidentsByDriver[r.DriverID] += r.Accidents
	}
	if rows == 0 {
		return BetaRetirement{}
	}

	startsByDriver := make(map[int64]float64)
	startsByTeam := make(map[string]float64)
	failuresByTeam := make(map[string]float64)
	countedTeamSeason := make(map[string]map[driverSeason]bool)
	for s := range seasons {
		for _, race := range tables.RacesInSeason(s) {
			for _, sf := range tables.StarterFieldsForRace(race.ID) {
				startsByDriver[sf.DriverID]++
				startsByTeam[sf.Team]++
				key := driverSeason{sf.DriverID, s}
				if countedTeamSeason[sf.Team] == nil {
					countedTeamSeason[sf.Team] = make(map[driverSeason]bool)
				}
				// a driver's season failures count once per team they drove for
				if !countedTeamSeason[sf.Team][key] {
					countedTeamSeason[sf.Team][key] = true
					failuresByTeam[sf.Team] += failures[key]
				}
			}
		}
	}

	var accidentProportions []float64
	var totalAccidents, totalStarts float64
	for id, starts := range startsByDriver {
		totalAccidents += accidentsByDriver[id]
		totalStarts += starts
		if starts > minStartsForPrior {
			accidentProportions = append(accidentProportions, accidentsByDriver[id]/starts)
		}
	}
	var accidentPrior BetaPrior
	if err := accidentPrior.Fit(accidentProportions); err != nil {
		accidentPrior = pooledPrior(totalAccidents, totalStarts)
	}

	var failureProportions []float64
	var totalFailures, totalTeamStarts float64
	for t, starts := range startsByTeam {
		totalFailures += failuresByTeam[t]
		totalTeamStarts += starts
		failureProportions = append(failureProportions, failuresByTeam[t]/starts)
	}
	var failurePrior BetaPrior
	if err := failurePrior.Fit(failureProportions); err != nil {
		failurePrior = pooledPrior(totalFailures, totalTeamStarts)
	}

	return BetaRetirement{
		Accident: accidentPrior.PosteriorMean(accidentsByDriver[driverID], startsByDriver[driverID]),
		Failure:  failurePrior.PosteriorMean(failuresByTeam[team], startsByTeam[team]),
	}
}
