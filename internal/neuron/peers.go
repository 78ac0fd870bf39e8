package neuron

import (
	"maps"
	"math"
	"slices"
)

const (
	minWeight    = 0.01
	maxWeight    = 1.0
	learningRate = 0.01

	defaultPeerCreativity = 0.5
)

// Connect adds a weighted edge to a peer. Connecting to itself is rejected
// and reconnecting a known peer keeps its current weight.
func (n *Neuron) Connect(peerID string, weight float64) bool {
	if peerID == "" || peerID == n.id {
		n.logger.Printf("[WARN] Neuron %s refused connection to %q", n.id, peerID)
		return false
	}
	if _, ok := n.neighbors[peerID]; ok {
		return true
	}
	if !isFinite(weight) {
		weight = DefaultInitialWeight
	}
	n.neighbors[peerID] = clamp(weight, minWeight, maxWeight)
	n.logger.Printf("[INFO] Neuron %s connected to %s (weight %.3f)", n.id, peerID, n.neighbors[peerID])
	return true
}

// Disconnect removes a peer and reports whether it was connected.
func (n *Neuron) Disconnect(peerID string) bool {
	if _, ok := n.neighbors[peerID]; !ok {
		return false
	}
	delete(n.neighbors, peerID)
	n.logger.Printf("[INFO] Neuron %s disconnected from %s", n.id, peerID)
	return true
}

// Neighbors returns a copy of the connection weights.
func (n *Neuron) Neighbors() map[string]float64 {
	return maps.Clone(n.neighbors)
}

// Weight returns the weight of the edge to peerID.
func (n *Neuron) Weight(peerID string) (float64, bool) {
	w, ok := n.neighbors[peerID]
	return w, ok
}

// ShareKnowledge builds a package describing the neuron's latest step and
// records it in the shared log.
func (n *Neuron) ShareKnowledge() KnowledgePackage {
	pkg := KnowledgePackage{
		NodeID:      n.id,
		Timestamp:   n.now().UTC(),
		Iteration:   n.iterations,
		Activation:  last(n.history.Activation),
		Creativity:  last(n.history.Creativity),
		Decision:    last(n.history.Decision),
		PEffective:  last(n.history.PEffective),
		Metrics:     n.Metrics(),
		FieldDigest: n.sim.Digest(),
	}
	n.shared = append(n.shared, pkg)
	n.debugf("neuron %s shared knowledge at iteration %d", n.id, pkg.Iteration)
	return pkg
}

// ReceiveKnowledge logs a package from another node and connects to it with
// the default weight when it is not a neighbour yet. Anonymous packages and
// echoes of the neuron's own packages are rejected.
func (n *Neuron) ReceiveKnowledge(pkg KnowledgePackage) bool {
	if pkg.NodeID == "" {
		n.logger.Printf("[WARN] Neuron %s dropped knowledge package without node id", n.id)
		return false
	}
	if pkg.NodeID == n.id {
		return false
	}
	n.received = append(n.received, pkg)
	if _, ok := n.neighbors[pkg.NodeID]; !ok {
		n.Connect(pkg.NodeID, DefaultInitialWeight)
	}
	n.debugf("neuron %s received knowledge from %s (iteration %d)", n.id, pkg.NodeID, pkg.Iteration)
	return true
}

// SharedKnowledge returns the packages this neuron has produced.
func (n *Neuron) SharedKnowledge() []KnowledgePackage { return slices.Clone(n.shared) }

// ReceivedKnowledge returns the packages accepted from peers.
func (n *Neuron) ReceivedKnowledge() []KnowledgePackage { return slices.Clone(n.received) }

// updateWeights moves every neighbour weight one learning-rate step towards
// the peer's utility.
func (n *Neuron) updateWeights(peers map[string]PeerState) {
	local := n.Metrics()
	for _, id := range slices.Sorted(maps.Keys(peers)) {
		w, ok := n.neighbors[id]
		if !ok {
			continue
		}
		peer := peers[id]
		creativity := defaultPeerCreativity
		if peer.Creativity != nil && isFinite(*peer.Creativity) {
			creativity = *peer.Creativity
		}
		utility := 0.5*similarity(local, peer) + 0.5*creativity
		updated := w + learningRate*(utility-w)
		if math.IsNaN(updated) {
			updated = w
		}
		n.neighbors[id] = clamp(updated, minWeight, maxWeight)
	}
	n.debugf("neuron %s updated %d connection weights", n.id, len(peers))
}
