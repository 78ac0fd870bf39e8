package field

import (
	"math/rand/v2"
	"time"
)

// RNG is a seedable random source for field perturbations.
type RNG struct {
	r *rand.Rand
}

// NewRNG creates a deterministic RNG using the provided seed.
func NewRNG(seed int64) *RNG {
	return &RNG{r: rand.New(rand.NewPCG(uint64(seed), 0))}
}

func newTimeSeededRNG() *RNG {
	return NewRNG(time.Now().UnixNano())
}

// Normal draws from a zero-mean Gaussian with the given standard deviation.
func (r *RNG) Normal(sigma float64) float64 {
	return r.r.NormFloat64() * sigma
}

// Exponential draws from an exponential distribution with the given scale (1/rate).
func (r *RNG) Exponential(scale float64) float64 {
	return r.r.ExpFloat64() * scale
}

// Source exposes the underlying rand.Rand for advanced use.
func (r *RNG) Source() *rand.Rand { return r.r }
