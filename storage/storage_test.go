package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flowgen/intentminer"
	"github.com/flowgen/intentminer/runconfig"
)

func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	id := uuid.New()
	snap := Snapshot{
		Run: RunRecord{
			ID:           id,
			StartedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			FinishedAt:   time.Date(2026, 1, 2, 3, 5, 0, 0, time.UTC),
			LabelingPath: "testdata/hierarchy.json",
			Config:       runconfig.Default(),
		},
		Clusters: []intentminer.Spec{
			{Cost: 1, Value: "web"},
			{Cost: 4, Value: intentminer.DValueTop},
		},
		Parents: []int{1, 1},
		Intents: []intentminer.IntentInfo{
			{K: 2, Added: []int{0, 1}},
			{K: 1, Added: []int{2}, Removed: []int{0, 1}},
		},
		Stats: []intentminer.ClusterStat{
			{K: 2, OverallCost: 5},
			{K: 1, OverallCost: 4},
		},
	}

	if err := store.SaveRun(ctx, snap); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.LoadRun(ctx, id)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}

	if got.Run.ID != id {
		t.Fatalf("Run.ID = %v, want %v", got.Run.ID, id)
	}
	if !got.Run.StartedAt.Equal(snap.Run.StartedAt) || !got.Run.FinishedAt.Equal(snap.Run.FinishedAt) {
		t.Fatalf("Run timestamps did not round-trip: got %+v", got.Run)
	}
	if got.Run.LabelingPath != snap.Run.LabelingPath {
		t.Fatalf("LabelingPath = %q, want %q", got.Run.LabelingPath, snap.Run.LabelingPath)
	}
	if got.Run.Config != snap.Run.Config {
		t.Fatalf("Config = %+v, want %+v", got.Run.Config, snap.Run.Config)
	}

	if len(got.Clusters) != len(snap.Clusters) {
		t.Fatalf("Clusters length = %d, want %d", len(got.Clusters), len(snap.Clusters))
	}
	for i, c := range got.Clusters {
		// Spec.Value round-trips through its string rendering, not its
		// original Go type, so compare against fmt.Sprint of the original.
		want := snap.Clusters[i]
		if c.Cost != want.Cost {
			t.Fatalf("Clusters[%d].Cost = %v, want %v", i, c.Cost, want.Cost)
		}
		if c.Value != fmt.Sprint(want.Value) {
			t.Fatalf("Clusters[%d].Value = %v, want %q", i, c.Value, fmt.Sprint(want.Value))
		}
	}

	if len(got.Intents) != len(snap.Intents) || len(got.Stats) != len(snap.Stats) {
		t.Fatalf("Intents/Stats length mismatch: got %d/%d, want %d/%d",
			len(got.Intents), len(got.Stats), len(snap.Intents), len(snap.Stats))
	}
	for i, s := range got.Stats {
		if s != snap.Stats[i] {
			t.Fatalf("Stats[%d] = %+v, want %+v", i, s, snap.Stats[i])
		}
	}
}

func TestMemStoreLoadMissingRun(t *testing.T) {
	store := NewMemStore()
	if _, err := store.LoadRun(context.Background(), uuid.New()); err == nil {
		t.Fatalf("LoadRun on an unknown id should fail")
	}
}
