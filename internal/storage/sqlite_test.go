//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"neurax/internal/model"
)

func TestSQLiteStoreRunAndStepRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "neurax.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.SaveRun(ctx, testRun("r2", base.Add(time.Hour))); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.SaveRun(ctx, testRun("r1", base)); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok || loaded.Nodes != 2 || len(loaded.NodeIDs) != 2 {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	for round := 0; round < 2; round++ {
		if err := store.AppendSteps(ctx, "r1", testSteps("r1", round)); err != nil {
			t.Fatalf("append steps: %v", err)
		}
	}
	steps, ok, err := store.GetSteps(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get steps: ok=%v err=%v", ok, err)
	}
	if len(steps) != 4 || steps[3].Round != 1 || steps[3].NodeID != "b" {
		t.Fatalf("unexpected steps: %+v", steps)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "neurax.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init first: %v", err)
	}
	version := model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
	edges := []model.EdgeRecord{{VersionedRecord: version, RunID: "r1", From: "a", To: "b", Weight: 0.42}}
	if err := first.SaveEdges(ctx, "r1", edges); err != nil {
		t.Fatalf("save edges: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close first: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("init second: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})
	loaded, ok, err := second.GetEdges(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get edges: ok=%v err=%v", ok, err)
	}
	if len(loaded) != 1 || loaded[0].Weight != 0.42 {
		t.Fatalf("unexpected edges: %+v", loaded)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "neurax.db"))
	if _, _, err := store.GetRun(context.Background(), "r1"); err == nil {
		t.Fatal("expected error before init")
	}
}
