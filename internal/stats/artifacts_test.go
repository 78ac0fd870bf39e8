package stats

import (
	"os"
	"path/filepath"
	"testing"

	"neurax/internal/field"
	"neurax/internal/model"
	"neurax/internal/network"
	"neurax/internal/neuron"
)

func testArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:     runID,
			Nodes:     2,
			Steps:     2,
			Size:      4,
			TimeSteps: 3,
			Seed:      1,
			Topology:  "full",
			Params:    neuron.DefaultParams(),
		},
		Rounds: []network.RoundSummary{{Round: 0, MeanActivation: 0.1}, {Round: 1, MeanActivation: 0.2}},
		Steps: []model.StepRecord{
			{RunID: runID, Round: 0, NodeID: "a", Iteration: 1, Activation: 0.1, Metrics: field.Metrics{TotalEnergy: 2}},
			{RunID: runID, Round: 0, NodeID: "b", Iteration: 1, Activation: 0.3},
			{RunID: runID, Round: 1, NodeID: "a", Iteration: 2, Activation: 0.15},
			{RunID: runID, Round: 1, NodeID: "b", Iteration: 2, Activation: 0.25},
		},
		Edges:  []model.EdgeRecord{{RunID: runID, From: "a", To: "b", Weight: 0.1}},
		States: []neuron.State{{NodeID: "a", Iterations: 2}, {NodeID: "b", Iterations: 2}},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, testArtifacts("run-123"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range artifactFiles {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range artifactFiles {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	if _, err := ExportRunArtifacts(baseDir, "missing", outDir); err == nil {
		t.Fatal("expected error exporting unknown run")
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestReadRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, testArtifacts("run-1")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%v err=%v", ok, err)
	}
	if cfg.Nodes != 2 || cfg.Params != neuron.DefaultParams() {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	steps, ok, err := ReadSteps(baseDir, "run-1")
	if err != nil || !ok || len(steps) != 4 {
		t.Fatalf("read steps: %d ok=%v err=%v", len(steps), ok, err)
	}
	if steps[0].Metrics.TotalEnergy != 2 {
		t.Fatalf("metrics not preserved: %+v", steps[0].Metrics)
	}

	rounds, ok, err := ReadRounds(baseDir, "run-1")
	if err != nil || !ok || len(rounds) != 2 {
		t.Fatalf("read rounds: %d ok=%v err=%v", len(rounds), ok, err)
	}
	edges, ok, err := ReadEdges(baseDir, "run-1")
	if err != nil || !ok || len(edges) != 1 {
		t.Fatalf("read edges: %d ok=%v err=%v", len(edges), ok, err)
	}

	series, ok, err := ReadActivationSeries(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%v err=%v", ok, err)
	}
	if len(series["a"]) != 2 || series["a"][1] != 0.15 || series["b"][0] != 0.3 {
		t.Fatalf("unexpected series: %+v", series)
	}

	if _, ok, err := ReadSteps(baseDir, "missing"); ok || err != nil {
		t.Fatalf("expected missing steps, ok=%v err=%v", ok, err)
	}
}

func TestWriteRunConfigRejectsMismatch(t *testing.T) {
	baseDir := t.TempDir()
	if err := WriteRunConfig(baseDir, "run-1", RunConfig{RunID: "run-2"}); err == nil {
		t.Fatal("expected run id mismatch error")
	}
	if err := WriteRunConfig(baseDir, "run-1", RunConfig{Nodes: 3}); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	if err != nil || !ok || cfg.RunID != "run-1" || cfg.Nodes != 3 {
		t.Fatalf("unexpected config: %+v ok=%v err=%v", cfg, ok, err)
	}
}

func TestRunIndexOrdering(t *testing.T) {
	baseDir := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "old", CreatedAtUTC: "2024-01-01T00:00:00Z"},
		{RunID: "new", CreatedAtUTC: "2024-02-01T00:00:00Z"},
		{RunID: "same-a", CreatedAtUTC: "2024-01-15T00:00:00Z"},
		{RunID: "same-b", CreatedAtUTC: "2024-01-15T00:00:00Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "old", CreatedAtUTC: "2024-01-01T00:00:00Z", Status: "completed"}); err != nil {
		t.Fatalf("replace old: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	want := []string{"new", "same-b", "same-a", "old"}
	if len(index) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(index))
	}
	for i, id := range want {
		if index[i].RunID != id {
			t.Fatalf("position %d: got %s want %s", i, index[i].RunID, id)
		}
	}
	if index[3].Status != "completed" {
		t.Fatal("re-appended entry must replace the original")
	}

	empty, err := ListRunIndex(t.TempDir())
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty index, got %v err=%v", empty, err)
	}
}
