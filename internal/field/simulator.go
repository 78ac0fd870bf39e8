package field

import (
	"fmt"
	"math"
)

const (
	// Epsilon guards divisions whose denominator can reach zero.
	Epsilon = 1e-10

	// AllSlots targets every time slot of the field.
	AllSlots = -1

	reducedPlanck         = 1.054571817e-34
	gravitationalConstant = 6.67430e-11
	speedOfLight          = 299792458.0
)

// PlanckLength scales curvature and density metrics.
var PlanckLength = math.Sqrt(reducedPlanck * gravitationalConstant / (speedOfLight * speedOfLight * speedOfLight))

// Plane selects a 2-D cross-section of a time slot.
type Plane string

const (
	PlaneXY Plane = "xy"
	PlaneXZ Plane = "xz"
	PlaneYZ Plane = "yz"
)

// Simulator owns a scalar field of shape (timeSteps, size, size, size).
// Slots form a ring buffer: evolving time shifts every slot forward by one
// and recycles the oldest slot as a zeroed slot 0.
type Simulator struct {
	size      int
	timeSteps int
	data      []float64
	current   int
	rng       *RNG
}

// New allocates a zeroed field. A nil rng is replaced by a time-seeded one.
func New(size, timeSteps int, rng *RNG) (*Simulator, error) {
	if size < 2 {
		return nil, fmt.Errorf("field size must be at least 2, got %d", size)
	}
	if timeSteps < 1 {
		return nil, fmt.Errorf("time steps must be positive, got %d", timeSteps)
	}
	if rng == nil {
		rng = newTimeSeededRNG()
	}
	return &Simulator{
		size:      size,
		timeSteps: timeSteps,
		data:      make([]float64, timeSteps*size*size*size),
		rng:       rng,
	}, nil
}

func (s *Simulator) Size() int      { return s.size }
func (s *Simulator) TimeSteps() int { return s.timeSteps }

// CurrentSlot is the slot holding the most recent step result.
func (s *Simulator) CurrentSlot() int { return s.current }

// RNG returns the random source used for perturbations.
func (s *Simulator) RNG() *RNG { return s.rng }

// Value returns the value at (x, y, z) in slot t, or 0 when out of range.
func (s *Simulator) Value(x, y, z, t int) float64 {
	if !s.inBounds(x, y, z) || !s.validSlot(t) {
		return 0
	}
	return s.data[s.index(t, x, y, z)]
}

// SetValue writes v at (x, y, z) in slot t. Out-of-range coordinates and
// non-finite values are ignored and reported as false.
func (s *Simulator) SetValue(x, y, z, t int, v float64) bool {
	if !s.inBounds(x, y, z) || !s.validSlot(t) {
		return false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	s.data[s.index(t, x, y, z)] = v
	return true
}

// State returns a copy of slot t, or nil for an invalid slot.
func (s *Simulator) State(t int) []float64 {
	if !s.validSlot(t) {
		return nil
	}
	out := make([]float64, s.slotLen())
	copy(out, s.slot(t))
	return out
}

// Field returns a copy of the whole field in (t, x, y, z) order.
func (s *Simulator) Field() []float64 {
	out := make([]float64, len(s.data))
	copy(out, s.data)
	return out
}

// Slice returns a size×size copy of a cross-section of slot t. Invalid
// plane, position or slot yield a zero-filled slice of the same shape.
func (s *Simulator) Slice(plane Plane, position, t int) [][]float64 {
	out := make([][]float64, s.size)
	for i := range out {
		out[i] = make([]float64, s.size)
	}
	if !s.validSlot(t) || position < 0 || position >= s.size {
		return out
	}
	for i := 0; i < s.size; i++ {
		for j := 0; j < s.size; j++ {
			switch plane {
			case PlaneXY:
				out[i][j] = s.data[s.index(t, i, j, position)]
			case PlaneXZ:
				out[i][j] = s.data[s.index(t, i, position, j)]
			case PlaneYZ:
				out[i][j] = s.data[s.index(t, position, i, j)]
			default:
				return out
			}
		}
	}
	return out
}

func (s *Simulator) slotLen() int {
	return s.size * s.size * s.size
}

func (s *Simulator) slot(t int) []float64 {
	n := s.slotLen()
	return s.data[t*n : (t+1)*n]
}

func (s *Simulator) validSlot(t int) bool {
	return t >= 0 && t < s.timeSteps
}

func (s *Simulator) inBounds(x, y, z int) bool {
	return x >= 0 && x < s.size && y >= 0 && y < s.size && z >= 0 && z < s.size
}

func (s *Simulator) index(t, x, y, z int) int {
	return ((t*s.size+x)*s.size+y)*s.size + z
}

// targets resolves a slot argument into the list of slots it covers.
func (s *Simulator) targets(slot int) ([]int, bool) {
	if slot == AllSlots {
		all := make([]int, s.timeSteps)
		for t := range all {
			all[t] = t
		}
		return all, true
	}
	if !s.validSlot(slot) {
		return nil, false
	}
	return []int{slot}, true
}
