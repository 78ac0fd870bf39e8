package neuron

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConnectRejectsSelf(t *testing.T) {
	n := newTestNeuron(t, 3, 1, DefaultParams())
	if n.Connect(n.ID(), 0.5) {
		t.Fatal("self connection must be rejected")
	}
	if n.Connect("", 0.5) {
		t.Fatal("empty id must be rejected")
	}
	if len(n.Neighbors()) != 0 {
		t.Fatalf("unexpected neighbours: %v", n.Neighbors())
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	n := newTestNeuron(t, 3, 1, DefaultParams())
	if !n.Connect("peer", 0.4) || !n.Connect("peer", 0.9) {
		t.Fatal("connect must succeed")
	}
	if w, _ := n.Weight("peer"); w != 0.4 {
		t.Fatalf("reconnect must keep weight, got %g", w)
	}
	n.Connect("heavy", 5)
	if w, _ := n.Weight("heavy"); w != 1 {
		t.Fatalf("weight must be clamped, got %g", w)
	}
	if !n.Disconnect("peer") || n.Disconnect("peer") {
		t.Fatal("disconnect must report removal once")
	}
}

func TestReceiveKnowledgeSuppressesEcho(t *testing.T) {
	n := newTestNeuron(t, 3, 2, DefaultParams())
	n.Step(0.1, nil)
	own := n.ShareKnowledge()
	if n.ReceiveKnowledge(own) {
		t.Fatal("own package must be rejected")
	}
	if n.ReceiveKnowledge(KnowledgePackage{}) {
		t.Fatal("anonymous package must be rejected")
	}
	if len(n.Neighbors()) != 0 || len(n.ReceivedKnowledge()) != 0 {
		t.Fatal("rejected packages must not change the neuron")
	}
	if len(n.SharedKnowledge()) != 1 {
		t.Fatalf("expected one shared package, got %d", len(n.SharedKnowledge()))
	}
}

func TestReceiveKnowledgeAutoConnects(t *testing.T) {
	a := newTestNeuron(t, 3, 2, DefaultParams())
	b := newTestNeuron(t, 3, 2, DefaultParams())
	b.Step(0.4, nil)
	pkg := b.ShareKnowledge()

	if !a.ReceiveKnowledge(pkg) {
		t.Fatal("package from peer must be accepted")
	}
	if w, ok := a.Weight(b.ID()); !ok || w != DefaultInitialWeight {
		t.Fatalf("expected auto connection with default weight, got %g/%v", w, ok)
	}
	got := a.ReceivedKnowledge()
	if len(got) != 1 || got[0].NodeID != b.ID() || got[0].Iteration != 1 {
		t.Fatalf("unexpected received log: %+v", got)
	}
	if got[0].Peer().Metrics == nil || *got[0].Peer().PEffective != pkg.PEffective {
		t.Fatal("package must convert to a peer state")
	}
}

func TestSaveLoadState(t *testing.T) {
	src := newTestNeuron(t, 4, 3, DefaultParams())
	src.Connect("peer", 0.6)
	for i := 0; i < 3; i++ {
		src.Step(0.25, nil)
	}
	src.ShareKnowledge()

	path := filepath.Join(t.TempDir(), "neuron.json")
	if err := src.SaveState(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + FieldSuffix); err != nil {
		t.Fatalf("field container missing: %v", err)
	}

	dst := newTestNeuron(t, 6, 2, Params{P0: 0.1})
	if err := dst.LoadState(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if dst.ID() != src.ID() || dst.Iterations() != 3 || dst.Params() != src.Params() {
		t.Fatalf("identity not restored: %s/%d/%+v", dst.ID(), dst.Iterations(), dst.Params())
	}
	if dst.Metrics() != src.Metrics() {
		t.Fatal("field metrics diverged after load")
	}
	if w, _ := dst.Weight("peer"); w != 0.6 {
		t.Fatalf("weight not restored: %g", w)
	}
	if len(dst.History().Activation) != 3 || len(dst.SharedKnowledge()) != 1 {
		t.Fatal("history or knowledge log not restored")
	}
}

func TestLoadStateFailureLeavesNeuronUnchanged(t *testing.T) {
	n := newTestNeuron(t, 3, 2, DefaultParams())
	n.Step(0.3, nil)
	id, digest := n.ID(), n.Simulator().Digest()

	dir := t.TempDir()
	if err := n.LoadState(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing state")
	}

	other := newTestNeuron(t, 3, 2, DefaultParams())
	path := filepath.Join(dir, "other.json")
	if err := other.SaveState(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(path + FieldSuffix); err != nil {
		t.Fatalf("remove field: %v", err)
	}
	if err := n.LoadState(path); err == nil {
		t.Fatal("expected error when the field container is missing")
	}

	if n.ID() != id || n.Iterations() != 1 || n.Simulator().Digest() != digest {
		t.Fatal("failed load must not modify the neuron")
	}
}
