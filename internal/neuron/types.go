package neuron

import (
	"time"

	"neurax/internal/field"
)

// Params weights the terms of the effective-probability formula.
type Params struct {
	P0    float64 `json:"p_0" yaml:"p0"`
	Beta1 float64 `json:"beta_1" yaml:"beta1"`
	Beta2 float64 `json:"beta_2" yaml:"beta2"`
	Beta3 float64 `json:"beta_3" yaml:"beta3"`
}

// DefaultParams returns the baseline probability and index weights.
func DefaultParams() Params {
	return Params{P0: 0.5, Beta1: 0.3, Beta2: 0.3, Beta3: 0.2}
}

// StepResult is returned by every Step call.
type StepResult struct {
	NodeID           string        `json:"node_id"`
	Iteration        int           `json:"iteration"`
	Timestamp        time.Time     `json:"timestamp"`
	Activation       float64       `json:"activation"`
	Creativity       float64       `json:"creativity"`
	Decision         float64       `json:"decision"`
	NetworkConsensus float64       `json:"network_consensus"`
	PEffective       float64       `json:"p_effective"`
	Metrics          field.Metrics `json:"metrics"`
	FieldDigest      string        `json:"field_digest"`
}

// State is a full read-only snapshot of a neuron.
type State struct {
	NodeID           string        `json:"node_id"`
	Iterations       int           `json:"iterations"`
	Timestamp        time.Time     `json:"timestamp"`
	Activation       float64       `json:"activation"`
	Creativity       float64       `json:"creativity"`
	Decision         float64       `json:"decision"`
	NetworkConsensus float64       `json:"network_consensus"`
	PEffective       float64       `json:"p_effective"`
	ConnectedPeers   int           `json:"connected_peers"`
	PeerList         []string      `json:"peer_list"`
	Metrics          field.Metrics `json:"metrics"`
	FieldDigest      string        `json:"field_digest"`
}

// Peer returns the view of this state a neighbour consumes in Step.
func (s State) Peer() PeerState {
	return newPeerState(s.Metrics, s.PEffective, s.Creativity)
}

// KnowledgePackage is the summary a neuron shares with its peers. It is a
// plain value; copies never alias the producer's state.
type KnowledgePackage struct {
	NodeID      string        `json:"node_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Iteration   int           `json:"iteration"`
	Activation  float64       `json:"activation"`
	Creativity  float64       `json:"creativity"`
	Decision    float64       `json:"decision"`
	PEffective  float64       `json:"p_effective"`
	Metrics     field.Metrics `json:"metrics"`
	FieldDigest string        `json:"field_digest"`
}

// Peer returns the view of this package a neighbour consumes in Step.
func (k KnowledgePackage) Peer() PeerState {
	return newPeerState(k.Metrics, k.PEffective, k.Creativity)
}

// PeerState is what a neuron knows about a neighbour during a step. Absent
// fields fall back to neutral defaults.
type PeerState struct {
	Metrics    *field.Metrics `json:"metrics,omitempty"`
	PEffective *float64       `json:"p_effective,omitempty"`
	Creativity *float64       `json:"creativity,omitempty"`
}

func newPeerState(m field.Metrics, pEffective, creativity float64) PeerState {
	return PeerState{Metrics: &m, PEffective: &pEffective, Creativity: &creativity}
}

// History holds the per-step series of a neuron.
type History struct {
	Activation       []float64 `json:"activation_history"`
	Creativity       []float64 `json:"creativity_history"`
	Decision         []float64 `json:"decision_history"`
	NetworkConsensus []float64 `json:"network_consensus_history"`
	PEffective       []float64 `json:"p_effective_history"`
}

func (h History) clone() History {
	return History{
		Activation:       cloneSeries(h.Activation),
		Creativity:       cloneSeries(h.Creativity),
		Decision:         cloneSeries(h.Decision),
		NetworkConsensus: cloneSeries(h.NetworkConsensus),
		PEffective:       cloneSeries(h.PEffective),
	}
}

func cloneSeries(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
