package utils

import (
	"math"
	"math/rand"
	"time"
)

// RandSource is a seeded random number generator. It is not safe for
// concurrent use; give each goroutine its own source.
type RandSource struct {
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// IntRange returns a uniformly distributed int in [lo, hi]
func (r *RandSource) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.rng.Intn(hi-lo+1)
}

// NormFloat64 returns a normally distributed random number with mean and stddev
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	return r.rng.NormFloat64()*stddev + mean
}

// BernoulliBool returns true with probability p, false otherwise
func (r *RandSource) BernoulliBool(p float64) bool {
	return r.rng.Float64() < p
}

// FiskFloat64 draws from a Fisk (log-logistic) distribution by inverting its CDF.
// A non-positive shape or scale collapses the distribution onto loc.
func (r *RandSource) FiskFloat64(shape, loc, scale float64) float64 {
	if shape <= 0 || scale <= 0 {
		return loc
	}
	u := r.rng.Float64()
	for u == 0 {
		u = r.rng.Float64()
	}
	return loc + scale*math.Pow(u/(1-u), 1/shape)
}

