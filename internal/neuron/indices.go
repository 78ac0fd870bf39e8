package neuron

import (
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"neurax/internal/field"
)

const (
	minProbability = 0.01
	maxProbability = 0.99

	defaultPeerProbability = 0.5
	defaultSimilarity      = 0.1

	// activationTimeScale normalises the iteration count in L(t).
	activationTimeScale = 1000.0
)

// computeActivation evaluates L = 1 - exp(-t·φ) and records every index of
// the step in the history.
func (n *Neuron) computeActivation(peers map[string]PeerState) float64 {
	pEff := n.effectiveProbability(peers)

	phi := pEff
	if len(peers) > 0 && len(n.neighbors) > 0 {
		product := 1.0
		contributed := 0
		for _, id := range slices.Sorted(maps.Keys(peers)) {
			weight, ok := n.neighbors[id]
			if !ok {
				continue
			}
			p := defaultPeerProbability
			if v := peers[id].PEffective; v != nil && isFinite(*v) {
				p = clamp(*v, 0, 1)
			}
			product *= math.Pow(1-p, weight)
			contributed++
		}
		if contributed > 0 {
			phi = 1 - product
		}
	}

	tNorm := float64(n.iterations) / activationTimeScale
	activation := sanitize(1-math.Exp(-tNorm*phi), 0, 1)
	n.history.Activation = append(n.history.Activation, activation)
	n.debugf("neuron %s activation %.4f (phi %.4f, t %.4f)", n.id, activation, phi, tNorm)
	return activation
}

// effectiveProbability computes p0 + β1·creativity + β2·decision + β3·consensus
// clamped into [0.01, 0.99] and appends the four series.
func (n *Neuron) effectiveProbability(peers map[string]PeerState) float64 {
	creativity := n.creativityIndex()
	decision := n.decisionIndex()
	consensus := n.networkConsensus(peers)

	p := n.params.P0 + n.params.Beta1*creativity + n.params.Beta2*decision + n.params.Beta3*consensus
	p = sanitize(p, minProbability, maxProbability)

	n.history.Creativity = append(n.history.Creativity, creativity)
	n.history.Decision = append(n.history.Decision, decision)
	n.history.NetworkConsensus = append(n.history.NetworkConsensus, consensus)
	n.history.PEffective = append(n.history.PEffective, p)
	return p
}

// creativityIndex rewards dispersion, steep peaks and a broad spectrum.
func (n *Neuron) creativityIndex() float64 {
	slot := n.sim.CurrentSlot()
	state := n.sim.State(slot)

	_, std := field.PopMeanStd(state)
	meanAbs := stat.Mean(absValues(state), nil)
	diversity := std / (meanAbs + field.Epsilon)

	gradient := n.sim.GradientMagnitude(slot)
	gMean, gStd := field.PopMeanStd(gradient)
	threshold := gMean + gStd
	peaks := 0
	for _, g := range gradient {
		if g > threshold {
			peaks++
		}
	}
	peakRatio := float64(peaks) / float64(len(gradient))

	sMean, sStd := field.PopMeanStd(n.sim.SpectrumMagnitude(slot))
	complexity := sStd / (sMean + field.Epsilon)

	creativity := sanitize(math.Tanh(0.4*diversity+0.3*peakRatio+0.3*complexity), 0, 1)
	n.debugf("neuron %s creativity %.4f (diversity %.4f, peaks %.4f, complexity %.4f)", n.id, creativity, diversity, peakRatio, complexity)
	return creativity
}

// decisionIndex rewards curvature/gradient coherence, a stable previous
// activation and a low energy-to-mean ratio.
func (n *Neuron) decisionIndex() float64 {
	slot := n.sim.CurrentSlot()
	curvature := n.sim.Curvature(slot)
	gradient := n.sim.GradientMagnitude(slot)

	coherence := 0.0
	_, cStd := field.PopMeanStd(curvature)
	_, gStd := field.PopMeanStd(gradient)
	if cStd > field.Epsilon && gStd > field.Epsilon {
		coherence = stat.Correlation(curvature, gradient, nil)
		if !isFinite(coherence) {
			coherence = 0
		}
	}

	stability := 0.0
	if len(n.history.Activation) > 0 {
		prev := n.history.Activation[len(n.history.Activation)-1]
		stability = 1 - math.Min(math.Abs(prev-0.5)*2, 1)
	}

	m := n.Metrics()
	efficiency := sanitize(math.Exp(-math.Abs(m.TotalEnergy/(m.MeanCurvature+field.Epsilon))), 0, 1)

	quality := 0.5*math.Abs(coherence) + 0.3*stability + 0.2*efficiency
	decision := sanitize(0.5*(math.Tanh(quality)+1), 0, 1)
	n.debugf("neuron %s decision %.4f (coherence %.4f, stability %.4f, efficiency %.4f)", n.id, decision, coherence, stability, efficiency)
	return decision
}

// networkConsensus is the weight-averaged similarity to the supplied peers
// that are also neighbours. It is 0 when either side is empty.
func (n *Neuron) networkConsensus(peers map[string]PeerState) float64 {
	if len(peers) == 0 || len(n.neighbors) == 0 {
		return 0
	}
	local := n.Metrics()
	var score, weightSum float64
	for _, id := range slices.Sorted(maps.Keys(peers)) {
		weight, ok := n.neighbors[id]
		if !ok {
			continue
		}
		score += similarity(local, peers[id]) * weight
		weightSum += weight
	}
	if weightSum <= field.Epsilon {
		return 0
	}
	consensus := sanitize(math.Tanh(score/weightSum), 0, 1)
	n.debugf("neuron %s network consensus %.4f over %d peers", n.id, consensus, len(peers))
	return consensus
}

// Similarity compares the current field metrics with a peer's.
func (n *Neuron) Similarity(peer PeerState) float64 {
	return similarity(n.Metrics(), peer)
}

func similarity(local field.Metrics, peer PeerState) float64 {
	if peer.Metrics == nil {
		return defaultSimilarity
	}
	remote := *peer.Metrics
	pairs := [][2]float64{
		{local.MeanCurvature, remote.MeanCurvature},
		{local.StdDeviation, remote.StdDeviation},
		{local.QuantumDensity, remote.QuantumDensity},
	}
	var sum float64
	scored := 0
	for _, p := range pairs {
		a, b := p[0], p[1]
		if !isFinite(a) || !isFinite(b) {
			continue
		}
		diff := math.Abs(a - b)
		largest := math.Max(math.Abs(a), math.Abs(b))
		switch {
		case largest > field.Epsilon:
			sum += 1 - math.Min(diff/largest, 1)
		case diff < field.Epsilon:
			sum += 1
		}
		scored++
	}
	if scored == 0 {
		return defaultSimilarity
	}
	return sum / float64(scored)
}

func absValues(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Abs(v)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// sanitize clamps v into [lo, hi], mapping NaN to lo.
func sanitize(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return clamp(v, lo, hi)
}
