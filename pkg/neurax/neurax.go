// Package neurax exposes the field simulator, the neuron and a client that
// runs and inspects neuron meshes.
package neurax

import (
	"neurax/internal/field"
	"neurax/internal/neuron"
)

type (
	Simulator        = field.Simulator
	Metrics          = field.Metrics
	RNG              = field.RNG
	Plane            = field.Plane
	Neuron           = neuron.Neuron
	NeuronConfig     = neuron.Config
	Params           = neuron.Params
	StepResult       = neuron.StepResult
	State            = neuron.State
	PeerState        = neuron.PeerState
	KnowledgePackage = neuron.KnowledgePackage
	SavedState       = neuron.SavedState
)

const (
	AllSlots = field.AllSlots
	PlaneXY  = field.PlaneXY
	PlaneXZ  = field.PlaneXZ
	PlaneYZ  = field.PlaneYZ
)

// NewRNG returns a deterministic generator for simulators and neurons.
func NewRNG(seed int64) *RNG { return field.NewRNG(seed) }

// NewSimulator creates a zeroed size³ field with timeSteps time slots.
func NewSimulator(size, timeSteps int, rng *RNG) (*Simulator, error) {
	return field.New(size, timeSteps, rng)
}

// NewNeuron creates a neuron owning its own simulator.
func NewNeuron(cfg NeuronConfig) (*Neuron, error) { return neuron.New(cfg) }

// DefaultParams returns the default effective-probability weights.
func DefaultParams() Params { return neuron.DefaultParams() }

// DefaultNeuronConfig returns the default neuron configuration.
func DefaultNeuronConfig() NeuronConfig { return neuron.DefaultConfig() }

// ReadState reads the metadata of a saved neuron state without its field.
func ReadState(path string) (SavedState, error) { return neuron.ReadState(path) }
