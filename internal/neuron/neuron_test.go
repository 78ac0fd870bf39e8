package neuron

import (
	"io"
	"log"
	"math"
	"testing"

	"neurax/internal/field"
)

func newTestNeuron(t *testing.T, size, timeSteps int, params Params) *Neuron {
	t.Helper()
	n, err := New(Config{
		Size:      size,
		TimeSteps: timeSteps,
		Params:    params,
		Seed:      11,
		Logger:    log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("new neuron: %v", err)
	}
	return n
}

func ptr(v float64) *float64 { return &v }

func TestNewValidatesShape(t *testing.T) {
	if _, err := New(Config{Size: 1, TimeSteps: 2, Logger: log.New(io.Discard, "", 0)}); err == nil {
		t.Fatal("expected error for size 1")
	}
	n := newTestNeuron(t, 4, 2, DefaultParams())
	if n.ID() == "" {
		t.Fatal("expected generated node id")
	}
	other := newTestNeuron(t, 4, 2, DefaultParams())
	if n.ID() == other.ID() {
		t.Fatal("node ids must be unique")
	}
}

func TestBaselineProbabilityWithoutBetas(t *testing.T) {
	n := newTestNeuron(t, 10, 4, Params{P0: 0.5})
	result := n.Step(DefaultIntensity, nil)

	if result.PEffective != 0.5 {
		t.Fatalf("expected p_eff 0.5, got %g", result.PEffective)
	}
	if result.Iteration != 1 || n.Iterations() != 1 {
		t.Fatalf("expected one iteration, got %d/%d", result.Iteration, n.Iterations())
	}
	want := 1 - math.Exp(-0.001*0.5)
	if math.Abs(result.Activation-want) > 1e-12 {
		t.Fatalf("activation: got %g want %g", result.Activation, want)
	}
	if result.NetworkConsensus != 0 {
		t.Fatalf("consensus without peers must be 0, got %g", result.NetworkConsensus)
	}
}

func TestStepAppendsHistory(t *testing.T) {
	n := newTestNeuron(t, 4, 3, DefaultParams())
	for i := 0; i < 5; i++ {
		n.Step(0.5, nil)
	}
	h := n.History()
	for name, series := range map[string][]float64{
		"activation": h.Activation,
		"creativity": h.Creativity,
		"decision":   h.Decision,
		"consensus":  h.NetworkConsensus,
		"p_eff":      h.PEffective,
	} {
		if len(series) != 5 {
			t.Fatalf("%s history has %d entries, want 5", name, len(series))
		}
	}
	h.Activation[0] = 42
	if n.History().Activation[0] == 42 {
		t.Fatal("history must be returned as a copy")
	}
}

func TestHebbianUpdateMovesOneLearningRateStep(t *testing.T) {
	n := newTestNeuron(t, 6, 3, DefaultParams())
	if !n.Connect("peer", 0.2) {
		t.Fatal("connect failed")
	}
	peerMetrics := field.Metrics{MeanCurvature: 0.1, StdDeviation: 0.2, QuantumDensity: 1}
	peer := PeerState{Metrics: &peerMetrics, PEffective: ptr(0.6), Creativity: ptr(0.5)}

	n.Step(0.3, map[string]PeerState{"peer": peer})

	sim := n.Similarity(peer)
	want := 0.2 + 0.01*(0.5*sim+0.5*0.5-0.2)
	got, ok := n.Weight("peer")
	if !ok {
		t.Fatal("peer disappeared")
	}
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("weight: got %.15f want %.15f", got, want)
	}
}

func TestIndicesStayInRange(t *testing.T) {
	cases := []struct {
		name  string
		value float64
		peers map[string]PeerState
	}{
		{name: "zero field", value: 0},
		{name: "huge field", value: 1e300, peers: map[string]PeerState{"a": {}}},
		{name: "tiny field", value: 1e-300, peers: map[string]PeerState{
			"a": {PEffective: ptr(math.NaN()), Creativity: ptr(math.Inf(1))},
		}},
		{name: "negative field", value: -5e10, peers: map[string]PeerState{
			"a": {Metrics: &field.Metrics{MeanCurvature: math.Inf(-1), StdDeviation: math.NaN()}, PEffective: ptr(7)},
			"b": {Metrics: &field.Metrics{}, PEffective: ptr(-3), Creativity: ptr(0.1)},
			"c": {PEffective: ptr(0.9)},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := newTestNeuron(t, 4, 2, DefaultParams())
			n.Connect("a", 0.7)
			n.Connect("b", 1e9)
			sim := n.Simulator()
			for x := 0; x < 4; x += 2 {
				for y := 0; y < 4; y++ {
					sim.SetValue(x, y, x, 0, tc.value)
				}
			}
			for i := 0; i < 3; i++ {
				r := n.Step(0.5, tc.peers)
				checkUnit(t, "activation", r.Activation, 0, 1)
				checkUnit(t, "creativity", r.Creativity, 0, 1)
				checkUnit(t, "decision", r.Decision, 0, 1)
				checkUnit(t, "consensus", r.NetworkConsensus, 0, 1)
				checkUnit(t, "p_eff", r.PEffective, 0.01, 0.99)
			}
			for id, w := range n.Neighbors() {
				checkUnit(t, "weight "+id, w, 0.01, 1)
			}
		})
	}
}

func checkUnit(t *testing.T, name string, v, lo, hi float64) {
	t.Helper()
	if math.IsNaN(v) || v < lo || v > hi {
		t.Fatalf("%s out of [%g, %g]: %g", name, lo, hi, v)
	}
}

func TestStateSnapshot(t *testing.T) {
	n := newTestNeuron(t, 4, 2, DefaultParams())
	n.Connect("b", 0.3)
	n.Connect("a", 0.3)
	r := n.Step(0.2, nil)

	s := n.State()
	if s.NodeID != n.ID() || s.Iterations != 1 || s.ConnectedPeers != 2 {
		t.Fatalf("unexpected state: %+v", s)
	}
	if s.PeerList[0] != "a" || s.PeerList[1] != "b" {
		t.Fatalf("peer list must be sorted: %v", s.PeerList)
	}
	if s.Activation != r.Activation || s.FieldDigest != r.FieldDigest {
		t.Fatal("state must reflect the last step")
	}
}
