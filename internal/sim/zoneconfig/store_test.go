package zoneconfig

import (
	"sync"
	"testing"
)

func TestStoreGetDefaultsWhenAbsent(t *testing.T) {
	s := NewStore()
	got := s.Get("Stockpile zone 1")
	if got != Default() {
		t.Fatalf("unexpected default: got=%+v want=%+v", got, Default())
	}
	if !got.Disabled() {
		t.Fatalf("default must be the disabled state")
	}
	if s.Exists("Stockpile zone 1") {
		t.Fatalf("Get must not create an entry")
	}
}

func TestStoreSetClamps(t *testing.T) {
	s := NewStore()
	s.Set("Z1", ZoneConfig{RefillThresholdPercent: 140, SimilarStackLimit: -3})
	got := s.Get("Z1")
	if got.RefillThresholdPercent != 100 || got.SimilarStackLimit != 0 {
		t.Fatalf("unexpected clamp: %+v", got)
	}
	s.Set("Z1", ZoneConfig{RefillThresholdPercent: -5, SimilarStackLimit: 2})
	if got := s.Get("Z1"); got.RefillThresholdPercent != 0 || got.SimilarStackLimit != 2 {
		t.Fatalf("unexpected clamp: %+v", got)
	}
}

func TestStoreDeleteRevertsToDefault(t *testing.T) {
	s := NewStore()
	s.Set("Z1", ZoneConfig{RefillThresholdPercent: 50, SimilarStackLimit: 1})
	s.Delete("Z1")
	if s.Exists("Z1") {
		t.Fatalf("expected Z1 removed")
	}
	if got := s.Get("Z1"); got != Default() {
		t.Fatalf("expected default after delete, got %+v", got)
	}
}

func TestStoreRenameLaw(t *testing.T) {
	s := NewStore()
	want := ZoneConfig{RefillThresholdPercent: 30, SimilarStackLimit: 4}
	s.Set("A", want)
	before := s.Get("A")
	s.Rename("A", "B")
	if got := s.Get("B"); got != before {
		t.Fatalf("rename lost value: got=%+v want=%+v", got, before)
	}
	if s.Exists("A") {
		t.Fatalf("expected A gone after rename")
	}
}

func TestStoreRenameUnsetOverwritesStaleTarget(t *testing.T) {
	s := NewStore()
	s.Set("B", ZoneConfig{RefillThresholdPercent: 10})
	s.Rename("A", "B")
	if got := s.Get("B"); got != Default() {
		t.Fatalf("expected B to carry A's default, got %+v", got)
	}
}

func TestStoreCopyFromClipboard(t *testing.T) {
	s := NewStore()
	s.Set("Z1", ZoneConfig{RefillThresholdPercent: 25, SimilarStackLimit: 3})
	s.CopyFrom("", "Z1")
	if got := s.Get(ClipboardID); got.RefillThresholdPercent != 25 || got.SimilarStackLimit != 3 {
		t.Fatalf("clipboard copy failed: %+v", got)
	}
	s.CopyFrom("Z2", "")
	if got := s.Get("Z2"); got != s.Get("Z1") {
		t.Fatalf("paste failed: %+v", got)
	}
}

func TestStoreObserversSeeCommitOrder(t *testing.T) {
	s := NewStore()
	var got []Change
	s.Observe(func(c Change) { got = append(got, c) })

	s.Set("A", ZoneConfig{RefillThresholdPercent: 40})
	s.Rename("A", "B")
	s.Delete("B")
	s.Delete("missing")

	if len(got) != 3 {
		t.Fatalf("unexpected change count: %d (%+v)", len(got), got)
	}
	if got[0].Op != OpSet || got[1].Op != OpRename || got[2].Op != OpDelete {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].From != "A" || got[1].ID != "B" || got[1].Config.RefillThresholdPercent != 40 {
		t.Fatalf("unexpected rename change: %+v", got[1])
	}
}

func TestStoreLoadAndEntries(t *testing.T) {
	s := NewStore()
	s.Load([]Entry{
		{ID: "Z2", Config: ZoneConfig{RefillThresholdPercent: 60}},
		{ID: "", Config: ZoneConfig{RefillThresholdPercent: 1}},
		{ID: "Z1", Config: ZoneConfig{RefillThresholdPercent: 200, SimilarStackLimit: 1}},
	})
	es := s.Entries()
	if len(es) != 2 {
		t.Fatalf("unexpected entry count: %d", len(es))
	}
	if es[0].ID != "Z1" || es[0].Config.RefillThresholdPercent != 100 {
		t.Fatalf("unexpected first entry: %+v", es[0])
	}
}

func TestStoreRenameNeverObservedHalfApplied(t *testing.T) {
	s := NewStore()
	s.Set("A", ZoneConfig{RefillThresholdPercent: 20, SimilarStackLimit: 1})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var bad int
	var badMu sync.Mutex
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.mu.RLock()
			_, a := s.configs["A"]
			_, b := s.configs["B"]
			s.mu.RUnlock()
			if a == b {
				badMu.Lock()
				bad++
				badMu.Unlock()
			}
		}
	}()
	for i := 0; i < 500; i++ {
		if i%2 == 0 {
			s.Rename("A", "B")
		} else {
			s.Rename("B", "A")
		}
	}
	close(stop)
	wg.Wait()
	if bad != 0 {
		t.Fatalf("observed %d half-applied renames", bad)
	}
}
