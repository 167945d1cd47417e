package main

import (
	"testing"

	persistlog "stockpile.ai/internal/persistence/log"
	"stockpile.ai/internal/persistence/snapshot"
)

func TestReplayAppliesChangesAfterSnapshot(t *testing.T) {
	base := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, Seq: 3},
		Zones: []snapshot.ZoneV1{
			{ID: "Z1", RefillThreshold: 50, SimilarStackLimit: 1},
			{ID: "Z2", RefillThreshold: 80, SimilarStackLimit: 0},
		},
	}
	changes := []persistlog.ChangeEntry{
		{Seq: 2, Op: "DELETE", ZoneID: "Z1"}, // already in the snapshot
		{Seq: 4, Op: "RENAME", ZoneID: "Z3", From: "Z1", RefillThreshold: 50, SimilarStackLimit: 1},
		{Seq: 5, Op: "SET", ZoneID: "Z2", RefillThreshold: 30, SimilarStackLimit: 2},
		{Seq: 6, Op: "DELETE", ZoneID: "Z2"},
	}
	out, applied := replay(base, changes)
	if applied != 3 {
		t.Fatalf("applied: got=%d want=3", applied)
	}
	if out.Header.Seq != 6 {
		t.Fatalf("seq: got=%d want=6", out.Header.Seq)
	}
	if len(out.Zones) != 1 || out.Zones[0].ID != "Z3" || out.Zones[0].RefillThreshold != 50 {
		t.Fatalf("zones: %+v", out.Zones)
	}
}
