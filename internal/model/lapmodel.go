package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Compounds lists the tire compounds known to the lap-time regression, in
// the order their dummy columns are laid out.
var Compounds = []string{"A1", "A2", "A3", "A4", "A6", "A7", "I", "W"}

// LapSample is one cleaned historical lap used to fit a LapTimeModel
type LapSample struct {
	Fuel     float64
	Compound string
	TireAge  int
	// Corrected is the lap time minus the driver's best qualifying time.
	Corrected float64
}

// LapTimeModel is an ordinary least squares fit of
//
//	corrected ~ fuel + compound + compound:tireage
//
// The first compound present in the training data is the reference level.
type LapTimeModel struct {
	intercept float64
	fuel      float64
	offset    map[string]float64
	slope     map[string]float64
	residual  float64
	fitted    bool
}

var _ Fitter[LapSample] = (*LapTimeModel)(nil)

// Fit estimates the coefficients from samples
func (m *LapTimeModel) Fit(samples []LapSample) error {
	var levels []string
	present := make(map[string]bool)
	for _, s := range samples {
		present[s.Compound] = true
	}
	for _, c := range Compounds {
		if present[c] {
			levels = append(levels, c)
		}
	}
	if len(levels) == 0 {
		return fmt.Errorf("%w: no laps on a known compound", ErrInsufficientData)
	}

	known := make([]LapSample, 0, len(samples))
	for _, s := range samples {
		if isKnownCompound(s.Compound) {
			known = append(known, s)
		}
	}

	// columns: intercept, fuel, one dummy per non-reference level, one slope per level
	cols := 2 + (len(levels) - 1) + len(levels)
	if len(known) <= cols {
		return fmt.Errorf("%w: %d laps for %d coefficients", ErrInsufficientData, len(known), cols)
	}

	dummyCol := make(map[string]int, len(levels))
	slopeCol := make(map[string]int, len(levels))
	for i, c := range levels {
		if i > 0 {
			dummyCol[c] = 1 + i
		}
		slopeCol[c] = 2 + (len(levels) - 1) + i
	}

	x := mat.NewDense(len(known), cols, nil)
	y := mat.NewVecDense(len(known), nil)
	for i, s := range known {
		x.Set(i, 0, 1)
		x.Set(i, 1, s.Fuel)
		if col, ok := dummyCol[s.Compound]; ok {
			x.Set(i, col, 1)
		}
		x.Set(i, slopeCol[s.Compound], float64(s.TireAge))
		y.SetVec(i, s.Corrected)
	}

	var beta mat.VecDense
	// an ill-conditioned design (e.g. tire age collinear with fuel) is rejected
	if err := beta.SolveVec(x, y); err != nil {
		return fmt.Errorf("%w: solve least squares: %v", ErrInsufficientData, err)
	}
	for i := 0; i < beta.Len(); i++ {
		if v := beta.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: degenerate design matrix", ErrInsufficientData)
		}
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	residuals := make([]float64, len(known))
	for i := range residuals {
		residuals[i] = y.AtVec(i) - fitted.AtVec(i)
	}
	_, std := stat.PopMeanStdDev(residuals, nil)

	m.intercept = beta.AtVec(0)
	m.fuel = beta.AtVec(1)
	m.offset = make(map[string]float64, len(levels))
	m.slope = make(map[string]float64, len(levels))
	for c, col := range dummyCol {
		m.offset[c] = beta.AtVec(col)
	}
	for c, col := range slopeCol {
		m.slope[c] = beta.AtVec(col)
	}
	m.residual = std
	m.fitted = true
	return nil
}

// Predict returns the expected corrected lap time. A compound absent from
// the training data contributes no offset or degradation.
func (m *LapTimeModel) Predict(f Features) float64 {
	if !m.fitted {
		return 0
	}
	return m.intercept + m.fuel*f.Fuel + m.offset[f.Compound] + m.slope[f.Compound]*float64(f.TireAge)
}

// Variability is the population standard deviation of the residuals
func (m *LapTimeModel) Variability() float64 {
	return m.residual
}

// Coefficients returns the fitted intercept and fuel coefficient
func (m *LapTimeModel) Coefficients() (intercept, fuel float64) {
	return m.intercept, m.fuel
}

// Degradation returns the fitted per-lap tire slope of a compound
func (m *LapTimeModel) Degradation(compound string) float64 {
	return m.slope[compound]
}

func isKnownCompound(c string) bool {
	for _, k := range Compounds {
		if k == c {
			return true
		}
	}
	return false
}
