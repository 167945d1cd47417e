package stockpile

import (
	"testing"

	"stockpile.ai/internal/persistence/indexdb"
	"stockpile.ai/internal/sim/zoneconfig"
)

func TestRuntime_SnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := testRuntime(t)
	if _, err := r.SetZone("Z1", zoneconfig.ZoneConfig{RefillThresholdPercent: 40, SimilarStackLimit: 3}, SetOptions{}); err != nil {
		t.Fatalf("SetZone: %v", err)
	}
	if err := r.CopyZone("", "Z1", ""); err != nil {
		t.Fatalf("CopyZone: %v", err)
	}
	path, err := r.SaveSnapshot(dir)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	r2 := testRuntime(t)
	got, ok, err := r2.LoadLatestSnapshot(dir)
	if err != nil || !ok {
		t.Fatalf("LoadLatestSnapshot: ok=%v err=%v", ok, err)
	}
	if got != path {
		t.Fatalf("path: got=%s want=%s", got, path)
	}
	if r2.Seq() != r.Seq() {
		t.Fatalf("seq: got=%d want=%d", r2.Seq(), r.Seq())
	}
	if c := r2.Store().Get("Z1"); c.RefillThresholdPercent != 40 || c.SimilarStackLimit != 3 {
		t.Fatalf("Z1: %+v", c)
	}
	if c := r2.Store().Get(zoneconfig.ClipboardID); c.RefillThresholdPercent != 40 {
		t.Fatalf("clipboard: %+v", c)
	}
	if c := r2.Store().Get("Z2"); !c.Disabled() {
		t.Fatalf("absent zone should load as default: %+v", c)
	}
}

func TestRuntime_LoadLatestSnapshotEmptyDir(t *testing.T) {
	r := testRuntime(t)
	_, ok, err := r.LoadLatestSnapshot(t.TempDir())
	if err != nil || ok {
		t.Fatalf("empty dir: ok=%v err=%v", ok, err)
	}
}

func TestRuntime_ImportZoneRows(t *testing.T) {
	r := testRuntime(t)
	r.SetSeq(10)
	r.ImportZoneRows([]indexdb.ZoneRow{{ZoneID: "Z1", RefillThreshold: 150, SimilarStackLimit: 2}}, 7)
	if c := r.Store().Get("Z1"); c.RefillThresholdPercent != 100 || c.SimilarStackLimit != 2 {
		t.Fatalf("rows not normalized: %+v", c)
	}
	if r.Seq() != 10 {
		t.Fatalf("seq moved backwards: %d", r.Seq())
	}
}
