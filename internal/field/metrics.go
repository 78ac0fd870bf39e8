package field

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics summarises a field snapshot. TemporalVariance and EnergyGradient
// are only populated when the metrics cover all slots.
type Metrics struct {
	MeanCurvature    float64 `json:"mean_curvature"`
	MaxCurvature     float64 `json:"max_curvature"`
	MinCurvature     float64 `json:"min_curvature"`
	StdDeviation     float64 `json:"std_deviation"`
	TotalEnergy      float64 `json:"total_energy"`
	QuantumDensity   float64 `json:"quantum_density"`
	SpatialEntropy   float64 `json:"spatial_entropy"`
	NonzeroRatio     float64 `json:"nonzero_ratio"`
	Slots            int     `json:"slots"`
	TemporalVariance float64 `json:"temporal_variance"`
	EnergyGradient   float64 `json:"energy_gradient"`
}

// Metrics computes the summary of slot t, or of the whole field for
// AllSlots. An invalid slot yields the zero record.
func (s *Simulator) Metrics(slot int) Metrics {
	if slot != AllSlots {
		if !s.validSlot(slot) {
			return Metrics{}
		}
		m := summarize(s.slot(slot))
		m.Slots = 1
		return m
	}

	m := summarize(s.data)
	m.Slots = s.timeSteps
	means := make([]float64, s.timeSteps)
	energies := make([]float64, s.timeSteps)
	for t := 0; t < s.timeSteps; t++ {
		values := s.slot(t)
		means[t] = stat.Mean(values, nil)
		energies[t] = absSum(values)
	}
	m.TemporalVariance = PopVariance(means)
	m.EnergyGradient = stat.Mean(gradient1D(energies), nil)
	return m
}

func summarize(values []float64) Metrics {
	mean, std := PopMeanStd(values)
	total := absSum(values)
	meanAbs := total / float64(len(values))
	return Metrics{
		MeanCurvature:  mean,
		MaxCurvature:   floats.Max(values),
		MinCurvature:   floats.Min(values),
		StdDeviation:   std,
		TotalEnergy:    total,
		QuantumDensity: meanAbs / PlanckLength,
		SpatialEntropy: spatialEntropy(values, total),
		NonzeroRatio:   nonzeroRatio(values),
	}
}

// PopMeanStd returns the population mean and standard deviation of values.
func PopMeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	return mean, math.Sqrt(math.Max(variance, 0))
}

// PopVariance returns the population variance of values.
func PopVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	_, variance := stat.PopMeanVariance(values, nil)
	return math.Max(variance, 0)
}

func absSum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += math.Abs(v)
	}
	return total
}

// spatialEntropy is the Shannon entropy of the |v| distribution normalised
// into [0, 1] by ln(N).
func spatialEntropy(values []float64, total float64) float64 {
	if total == 0 || len(values) < 2 || math.IsInf(total, 0) || math.IsNaN(total) {
		return 0
	}
	p := make([]float64, len(values))
	for i, v := range values {
		p[i] = math.Abs(v) / total
	}
	return stat.Entropy(p) / math.Log(float64(len(values)))
}

func nonzeroRatio(values []float64) float64 {
	count := 0
	for _, v := range values {
		if math.Abs(v) > Epsilon {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

// gradient1D mirrors a unit-spacing central difference with one-sided edges.
func gradient1D(values []float64) []float64 {
	n := len(values)
	if n < 2 {
		return []float64{0}
	}
	out := make([]float64, n)
	out[0] = values[1] - values[0]
	out[n-1] = values[n-1] - values[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (values[i+1] - values[i-1]) / 2
	}
	return out
}
