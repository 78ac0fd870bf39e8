package storage

import (
	"errors"
	"testing"
	"time"

	"neurax/internal/field"
	"neurax/internal/model"
)

func TestRunCodecPreservesRecord(t *testing.T) {
	run := testRun("run-1", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	run.Topology = "ring"
	run.Intensity = 1e-6

	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != run.ID || !decoded.CreatedAt.Equal(run.CreatedAt) || decoded.Topology != "ring" || decoded.Intensity != 1e-6 {
		t.Fatalf("unexpected decoded run: %+v", decoded)
	}
}

func TestStepCodecKeepsMetrics(t *testing.T) {
	step := testSteps("run-1", 2)[0]
	step.Metrics = field.Metrics{MeanCurvature: 1.5e-36, TotalEnergy: 4, Slots: 8, EnergyGradient: -0.25}

	data, err := EncodeStep(step)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeStep(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Metrics != step.Metrics || decoded.Round != 2 {
		t.Fatalf("unexpected decoded step: %+v", decoded)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	run := testRun("run-1", time.Now())
	run.SchemaVersion = CurrentSchemaVersion + 1
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}

	edges := []model.EdgeRecord{{RunID: "run-1", From: "a", To: "b"}}
	data, err = EncodeEdges(edges)
	if err != nil {
		t.Fatalf("encode edges: %v", err)
	}
	if _, err := DecodeEdges(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected edge version mismatch, got %v", err)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeStep([]byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
}
