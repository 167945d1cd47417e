package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(42))
	in := SnapshotV1{
		Header:     Header{Version: Version, Seq: 42, CreatedAt: "2026-10-18T00:00:00Z"},
		Aggressive: true,
		Zones: []ZoneV1{
			{ID: "Stockpile zone 1", RefillThreshold: 50, SimilarStackLimit: 2},
			{ID: "___clipboard", RefillThreshold: 10},
		},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if out.Header.Seq != 42 || !out.Aggressive || len(out.Zones) != 2 {
		t.Fatalf("unexpected snapshot: %+v", out)
	}
	if out.Zones[0] != in.Zones[0] {
		t.Fatalf("zone mismatch: got=%+v want=%+v", out.Zones[0], in.Zones[0])
	}
}

func TestReadSnapshotRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName(1))
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 9}}); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if got := Latest(dir); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	for _, seq := range []uint64{7, 120, 9} {
		if err := WriteSnapshot(filepath.Join(dir, FileName(seq)), SnapshotV1{Header: Header{Version: Version, Seq: seq}}); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	if got := filepath.Base(Latest(dir)); got != FileName(120) {
		t.Fatalf("unexpected latest: %s", got)
	}
}
