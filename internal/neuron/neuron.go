package neuron

import (
	"log"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"neurax/internal/field"
)

const (
	DefaultSize          = 20
	DefaultTimeSteps     = 8
	DefaultIntensity     = 1e-6
	DefaultInitialWeight = 0.1

	// modulationGain scales how strongly activation feeds back into the field.
	modulationGain = 10.0
)

// Config configures a neuron and the simulator it owns.
type Config struct {
	Size      int
	TimeSteps int
	Params    Params

	// RNG drives the owned simulator. When nil a generator seeded with Seed
	// is used.
	RNG  *field.RNG
	Seed int64

	Logger  *log.Logger
	Verbose bool
	Now     func() time.Time
}

// DefaultConfig returns a config with the standard grid and parameters.
func DefaultConfig() Config {
	return Config{
		Size:      DefaultSize,
		TimeSteps: DefaultTimeSteps,
		Params:    DefaultParams(),
	}
}

// Neuron derives decision signals from a field simulator and adapts weighted
// connections to peers. A Neuron is owned by a single caller; it performs no
// locking.
type Neuron struct {
	id     string
	params Params
	sim    *field.Simulator
	rng    *field.RNG

	iterations int
	history    History
	neighbors  map[string]float64
	shared     []KnowledgePackage
	received   []KnowledgePackage

	logger  *log.Logger
	verbose bool
	now     func() time.Time
}

// New builds a neuron with a zeroed simulator and a fresh node id.
func New(cfg Config) (*Neuron, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.TimeSteps == 0 {
		cfg.TimeSteps = DefaultTimeSteps
	}
	rng := cfg.RNG
	if rng == nil {
		rng = field.NewRNG(cfg.Seed)
	}
	sim, err := field.New(cfg.Size, cfg.TimeSteps, rng)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	n := &Neuron{
		id:        uuid.NewString(),
		params:    cfg.Params,
		sim:       sim,
		rng:       rng,
		neighbors: make(map[string]float64),
		logger:    logger,
		verbose:   cfg.Verbose,
		now:       now,
	}
	n.logger.Printf("[INFO] Neuron %s initialized (grid %d, time steps %d)", n.id, cfg.Size, cfg.TimeSteps)
	n.debugf("neuron %s params: p0=%g beta1=%g beta2=%g beta3=%g", n.id, n.params.P0, n.params.Beta1, n.params.Beta2, n.params.Beta3)
	return n, nil
}

func (n *Neuron) ID() string                  { return n.id }
func (n *Neuron) Params() Params              { return n.params }
func (n *Neuron) Iterations() int             { return n.iterations }
func (n *Neuron) Simulator() *field.Simulator { return n.sim }

// History returns a copy of the per-step series.
func (n *Neuron) History() History { return n.history.clone() }

// Metrics returns the metrics of the whole field.
func (n *Neuron) Metrics() field.Metrics { return n.sim.Metrics(field.AllSlots) }

// SlotMetrics returns the metrics of a single time slot.
func (n *Neuron) SlotMetrics(t int) field.Metrics { return n.sim.Metrics(t) }

// Step advances the field, recomputes every index, feeds the activation back
// into the field and adapts the weights of the supplied peers.
func (n *Neuron) Step(intensity float64, peers map[string]PeerState) StepResult {
	n.sim.Step(intensity, field.AllSlots, true)
	n.iterations++

	activation := n.computeActivation(peers)

	n.sim.AddNoise(n.sim.CurrentSlot(), activation*intensity*modulationGain)

	if len(peers) > 0 {
		n.updateWeights(peers)
	}

	result := StepResult{
		NodeID:           n.id,
		Iteration:        n.iterations,
		Timestamp:        n.now().UTC(),
		Activation:       activation,
		Creativity:       last(n.history.Creativity),
		Decision:         last(n.history.Decision),
		NetworkConsensus: last(n.history.NetworkConsensus),
		PEffective:       last(n.history.PEffective),
		Metrics:          n.Metrics(),
		FieldDigest:      n.sim.Digest(),
	}
	n.debugf("neuron %s step %d completed with activation %.4f", n.id, n.iterations, activation)
	return result
}

// State returns a snapshot of the neuron.
func (n *Neuron) State() State {
	return State{
		NodeID:           n.id,
		Iterations:       n.iterations,
		Timestamp:        n.now().UTC(),
		Activation:       last(n.history.Activation),
		Creativity:       last(n.history.Creativity),
		Decision:         last(n.history.Decision),
		NetworkConsensus: last(n.history.NetworkConsensus),
		PEffective:       last(n.history.PEffective),
		ConnectedPeers:   len(n.neighbors),
		PeerList:         slices.Sorted(maps.Keys(n.neighbors)),
		Metrics:          n.Metrics(),
		FieldDigest:      n.sim.Digest(),
	}
}

func (n *Neuron) debugf(format string, args ...any) {
	if n.verbose {
		n.logger.Printf("[DEBUG] "+format, args...)
	}
}
