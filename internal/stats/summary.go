package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"neurax/internal/model"
)

// SeriesSummary describes one numeric column of a run.
type SeriesSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	First float64 `json:"first"`
	Last  float64 `json:"last"`
}

// NodeSummary aggregates the step records of one node.
type NodeSummary struct {
	NodeID     string        `json:"node_id"`
	Activation SeriesSummary `json:"activation"`
	PEffective SeriesSummary `json:"p_effective"`
	Consensus  SeriesSummary `json:"network_consensus"`
}

// Summarize computes population statistics of values. An empty series
// yields the zero summary.
func Summarize(values []float64) SeriesSummary {
	if len(values) == 0 {
		return SeriesSummary{}
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	return SeriesSummary{
		Count: len(values),
		Mean:  mean,
		Std:   math.Sqrt(math.Max(variance, 0)),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		First: values[0],
		Last:  values[len(values)-1],
	}
}

// SummarizeNodes groups step records by node, preserving first-seen order.
func SummarizeNodes(steps []model.StepRecord) []NodeSummary {
	type columns struct{ activation, pEff, consensus []float64 }
	var order []string
	byNode := make(map[string]*columns)
	for _, s := range steps {
		c, ok := byNode[s.NodeID]
		if !ok {
			c = &columns{}
			byNode[s.NodeID] = c
			order = append(order, s.NodeID)
		}
		c.activation = append(c.activation, s.Activation)
		c.pEff = append(c.pEff, s.PEffective)
		c.consensus = append(c.consensus, s.NetworkConsensus)
	}

	out := make([]NodeSummary, 0, len(order))
	for _, id := range order {
		c := byNode[id]
		out = append(out, NodeSummary{
			NodeID:     id,
			Activation: Summarize(c.activation),
			PEffective: Summarize(c.pEff),
			Consensus:  Summarize(c.consensus),
		})
	}
	return out
}
