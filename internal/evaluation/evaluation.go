// Package evaluation compares simulated race results with historical ones.
package evaluation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrLengthMismatch is returned when the paired samples differ in length
	ErrLengthMismatch = errors.New("samples differ in length")
	// ErrTooFewSamples is returned when a statistic needs more pairs
	ErrTooFewSamples = errors.New("too few samples")
	// ErrConstantInput is returned when a rank correlation is undefined
	ErrConstantInput = errors.New("constant input")
)

func checkPairs(actual, simulated []float64, minimum int) error {
	if len(actual) != len(simulated) {
		return fmt.Errorf("%w: %d actual, %d simulated", ErrLengthMismatch, len(actual), len(simulated))
	}
	if len(actual) < minimum {
		return fmt.Errorf("%w: need %d, got %d", ErrTooFewSamples, minimum, len(actual))
	}
	return nil
}

// RMSE is the root mean squared error of simulated against actual
func RMSE(actual, simulated []float64) (float64, error) {
	if err := checkPairs(actual, simulated, 1); err != nil {
		return 0, err
	}
	sq := make([]float64, len(actual))
	for i := range actual {
		d := simulated[i] - actual[i]
		sq[i] = d * d
	}
	return math.Sqrt(stat.Mean(sq, nil)), nil
}

// MAE is the mean absolute error of simulated against actual
func MAE(actual, simulated []float64) (float64, error) {
	if err := checkPairs(actual, simulated, 1); err != nil {
		return 0, err
	}
	abs := make([]float64, len(actual))
	for i := range actual {
		abs[i] = math.Abs(simulated[i] - actual[i])
	}
	return stat.Mean(abs, nil), nil
}

// Spearman returns the rank correlation between actual and simulated and
// its two-sided p-value from the t distribution with n-2 degrees of freedom.
func Spearman(actual, simulated []float64) (rho, pValue float64, err error) {
	if err := checkPairs(actual, simulated, 3); err != nil {
		return 0, 0, err
	}
	rho = stat.Correlation(Ranks(actual), Ranks(simulated), nil)
	if math.IsNaN(rho) {
		return 0, 0, ErrConstantInput
	}

	n := float64(len(actual))
	if math.Abs(rho) >= 1 {
		return rho, 0, nil
	}
	t := rho * math.Sqrt((n-2)/(1-rho*rho))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 2}
	return rho, 2 * dist.Survival(math.Abs(t)), nil
}

// Wilcoxon runs the signed-rank test on the paired differences using the
// normal approximation with tie correction. Zero differences are dropped.
// When every difference is zero the statistic is 0 and the p-value 1.
func Wilcoxon(actual, simulated []float64) (w, pValue float64, err error) {
	if err := checkPairs(actual, simulated, 1); err != nil {
		return 0, 0, err
	}

	var diffs []float64
	for i := range actual {
		if d := simulated[i] - actual[i]; d != 0 {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) == 0 {
		return 0, 1, nil
	}

	abs := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(d)
	}
	ranks := Ranks(abs)

	var plus, minus float64
	for i, d := range diffs {
		if d > 0 {
			plus += ranks[i]
		} else {
			minus += ranks[i]
		}
	}
	w = math.Min(plus, minus)

	n := float64(len(diffs))
	mean := n * (n + 1) / 4
	variance := n*(n+1)*(2*n+1)/24 - tieCorrection(abs)/48
	if variance <= 0 {
		return w, 1, nil
	}
	z := (w - mean) / math.Sqrt(variance)
	return w, 2 * distuv.UnitNormal.Survival(math.Abs(z)), nil
}

// Ranks assigns 1-based ranks, averaging the ranks of tied values
func Ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		// positions i..j-1 share the average of ranks i+1..j
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

// tieCorrection returns sum(t^3 - t) over groups of tied values
func tieCorrection(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	total := 0.0
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		t := float64(j - i)
		total += t*t*t - t
		i = j
	}
	return total
}
