package field

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestMetricsSingleSlot(t *testing.T) {
	sim := newTestSimulator(t, 2, 2)
	// slot 1 holds {-2, 2, 0, 0, 0, 0, 0, 4}
	sim.SetValue(0, 0, 0, 1, -2)
	sim.SetValue(0, 0, 1, 1, 2)
	sim.SetValue(1, 1, 1, 1, 4)

	m := sim.Metrics(1)
	if m.Slots != 1 {
		t.Fatalf("expected single slot metrics, got %d", m.Slots)
	}
	if m.MeanCurvature != 0.5 {
		t.Fatalf("mean: got %g", m.MeanCurvature)
	}
	if m.MaxCurvature != 4 || m.MinCurvature != -2 {
		t.Fatalf("extrema: got %g/%g", m.MaxCurvature, m.MinCurvature)
	}
	// population variance = (6.25+2.25+5*0.25+12.25)/8
	if !almostEqual(m.StdDeviation, math.Sqrt(22.0/8), 1e-12) {
		t.Fatalf("std: got %g", m.StdDeviation)
	}
	if m.TotalEnergy != 8 {
		t.Fatalf("energy: got %g", m.TotalEnergy)
	}
	if !almostEqual(m.QuantumDensity, 1/PlanckLength, 1e-12/PlanckLength) {
		t.Fatalf("quantum density: got %g", m.QuantumDensity)
	}
	if m.NonzeroRatio != 3.0/8 {
		t.Fatalf("nonzero ratio: got %g", m.NonzeroRatio)
	}
	// p = {0.25, 0.25, 0.5}
	wantEntropy := -(0.25*math.Log(0.25)*2 + 0.5*math.Log(0.5)) / math.Log(8)
	if !almostEqual(m.SpatialEntropy, wantEntropy, 1e-12) {
		t.Fatalf("entropy: got %g want %g", m.SpatialEntropy, wantEntropy)
	}
	if m.TemporalVariance != 0 || m.EnergyGradient != 0 {
		t.Fatal("single slot metrics must not carry temporal fields")
	}
}

func TestMetricsAllSlotsTemporalFields(t *testing.T) {
	sim := newTestSimulator(t, 2, 3)
	// slot means: 0, 1, 3; slot energies: 0, 8, 24
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				sim.SetValue(x, y, z, 1, 1)
				sim.SetValue(x, y, z, 2, 3)
			}
		}
	}

	m := sim.Metrics(AllSlots)
	if m.Slots != 3 {
		t.Fatalf("expected 3 slots, got %d", m.Slots)
	}
	if !almostEqual(m.MeanCurvature, 4.0/3, 1e-12) {
		t.Fatalf("mean: got %g", m.MeanCurvature)
	}
	wantVariance := ((0-4.0/3)*(0-4.0/3) + (1-4.0/3)*(1-4.0/3) + (3-4.0/3)*(3-4.0/3)) / 3
	if !almostEqual(m.TemporalVariance, wantVariance, 1e-12) {
		t.Fatalf("temporal variance: got %g want %g", m.TemporalVariance, wantVariance)
	}
	// gradient of {0, 8, 24} = {8, 12, 16}
	if !almostEqual(m.EnergyGradient, 12, 1e-12) {
		t.Fatalf("energy gradient: got %g", m.EnergyGradient)
	}
}

func TestMetricsZeroField(t *testing.T) {
	sim := newTestSimulator(t, 3, 1)
	m := sim.Metrics(AllSlots)
	if m.StdDeviation != 0 || m.TotalEnergy != 0 || m.SpatialEntropy != 0 || m.NonzeroRatio != 0 {
		t.Fatalf("unexpected metrics for zero field: %+v", m)
	}
	if m.EnergyGradient != 0 {
		t.Fatalf("single slot gradient must be zero, got %g", m.EnergyGradient)
	}
}

func TestMetricsInvalidSlot(t *testing.T) {
	sim := newTestSimulator(t, 2, 2)
	if m := sim.Metrics(2); m != (Metrics{}) {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
}

func TestMetricsRecomputedAfterMutation(t *testing.T) {
	sim := newTestSimulator(t, 2, 1)
	first := sim.Metrics(0)
	sim.SetValue(0, 0, 0, 0, 1)
	second := sim.Metrics(0)
	if first == second {
		t.Fatal("metrics must reflect the mutated field")
	}
}

func TestGradientMagnitude(t *testing.T) {
	sim := newTestSimulator(t, 3, 1)
	// linear ramp along x: f = x
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			for z := 0; z < 3; z++ {
				sim.SetValue(x, y, z, 0, float64(x))
			}
		}
	}
	for i, g := range sim.GradientMagnitude(0) {
		if g != 1 {
			t.Fatalf("expected unit gradient at %d, got %g", i, g)
		}
	}
	if sim.GradientMagnitude(1) != nil {
		t.Fatal("expected nil gradient for invalid slot")
	}
}

func TestSpectrumMagnitudeOfConstantField(t *testing.T) {
	sim := newTestSimulator(t, 4, 1)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			for z := 0; z < 4; z++ {
				sim.SetValue(x, y, z, 0, 2)
			}
		}
	}
	spectrum := sim.SpectrumMagnitude(0)
	if !almostEqual(spectrum[0], 128, 1e-9) {
		t.Fatalf("dc component: got %g", spectrum[0])
	}
	for i, v := range spectrum[1:] {
		if !almostEqual(v, 0, 1e-9) {
			t.Fatalf("expected zero at %d, got %g", i+1, v)
		}
	}
}

func TestSpectrumMagnitudeOfImpulse(t *testing.T) {
	sim := newTestSimulator(t, 3, 1)
	sim.SetValue(0, 0, 0, 0, 1)
	for i, v := range sim.SpectrumMagnitude(0) {
		if !almostEqual(v, 1, 1e-12) {
			t.Fatalf("impulse spectrum must be flat, got %g at %d", v, i)
		}
	}
}

func TestDigestTracksDownsampledState(t *testing.T) {
	sim := newTestSimulator(t, 4, 1)
	base := sim.Digest()
	if len(base) != 64 {
		t.Fatalf("expected hex sha256, got %q", base)
	}

	sim.SetValue(1, 1, 1, 0, 9)
	if sim.Digest() != base {
		t.Fatal("odd coordinates are not sampled and must not change the digest")
	}
	sim.SetValue(2, 0, 2, 0, 9)
	if sim.Digest() == base {
		t.Fatal("sampled coordinate must change the digest")
	}
}
