package field

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// fluctuationScale is the scale (1/rate) of the exponential burst factor.
const fluctuationScale = 15.0

// ApplyFluctuation adds heavy-tailed noise to the targeted slot: every element
// receives N(0, intensity) multiplied by an independent Exp(1/15) draw.
// A zero, negative or non-finite intensity leaves the field untouched.
// It reports false for an invalid slot.
func (s *Simulator) ApplyFluctuation(intensity float64, slot int) bool {
	slots, ok := s.targets(slot)
	if !ok {
		return false
	}
	if !(intensity > 0) || math.IsInf(intensity, 0) {
		return true
	}
	for _, t := range slots {
		values := s.slot(t)
		for i := range values {
			values[i] += s.rng.Normal(intensity) * s.rng.Exponential(fluctuationScale)
		}
	}
	return true
}

// Curvature returns the Planck-scaled periodic 6-point Laplacian of one slot,
// or of every slot concatenated in slot order for AllSlots. It returns nil for
// an invalid slot.
func (s *Simulator) Curvature(slot int) []float64 {
	slots, ok := s.targets(slot)
	if !ok {
		return nil
	}
	n := s.slotLen()
	out := make([]float64, len(slots)*n)
	for i, t := range slots {
		s.laplacian(out[i*n:(i+1)*n], s.slot(t))
	}
	return out
}

func (s *Simulator) laplacian(dst, src []float64) {
	n := s.size
	at := func(x, y, z int) float64 {
		return src[(x*n+y)*n+z]
	}
	wrap := func(i int) int {
		return (i%n + n) % n
	}
	for x := 0; x < n; x++ {
		xp, xm := wrap(x+1), wrap(x-1)
		for y := 0; y < n; y++ {
			yp, ym := wrap(y+1), wrap(y-1)
			for z := 0; z < n; z++ {
				zp, zm := wrap(z+1), wrap(z-1)
				centre := at(x, y, z)
				sum := at(xm, y, z) + at(xp, y, z) +
					at(x, ym, z) + at(x, yp, z) +
					at(x, y, zm) + at(x, y, zp)
				dst[(x*n+y)*n+z] = (sum - 6*centre) * PlanckLength
			}
		}
	}
}

// Step applies fluctuation and then curvature to the targeted slot. When
// evolveTime is set and the field has more than one slot, the time ring
// advances by one and slot 0 is cleared.
func (s *Simulator) Step(intensity float64, slot int, evolveTime bool) bool {
	slots, ok := s.targets(slot)
	if !ok {
		return false
	}
	s.ApplyFluctuation(intensity, slot)
	curvature := make([]float64, s.slotLen())
	for _, t := range slots {
		s.laplacian(curvature, s.slot(t))
		floats.Add(s.slot(t), curvature)
	}

	if slot == AllSlots {
		s.current = 0
	} else {
		s.current = slot
	}
	if evolveTime && s.timeSteps > 1 {
		s.evolve()
	}
	return true
}

// evolve shifts slot t into t+1 and clears slot 0 as the new present. The
// oldest slot wraps onto slot 0 and is therefore discarded.
func (s *Simulator) evolve() {
	n := s.slotLen()
	copy(s.data[n:], s.data[:len(s.data)-n])
	clear(s.data[:n])
	s.current = (s.current + 1) % s.timeSteps
}

// AddNoise adds N(0, sigma) to every element of slot t. A non-positive sigma
// is a no-op.
func (s *Simulator) AddNoise(t int, sigma float64) bool {
	if !s.validSlot(t) {
		return false
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return true
	}
	values := s.slot(t)
	for i := range values {
		values[i] += s.rng.Normal(sigma)
	}
	return true
}
