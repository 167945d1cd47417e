package stockpile

import (
	"fmt"
	"path/filepath"
	"time"

	"stockpile.ai/internal/persistence/indexdb"
	"stockpile.ai/internal/persistence/snapshot"
	"stockpile.ai/internal/sim/zoneconfig"
)

// ExportSnapshot captures the zone config table at the current change sequence.
// Mutations are held off while the table is read so Seq matches the rows.
func (r *Runtime) ExportSnapshot() snapshot.SnapshotV1 {
	r.mutMu.Lock()
	entries := r.store.Entries()
	seq := r.seq.Load()
	r.mutMu.Unlock()

	zones := make([]snapshot.ZoneV1, 0, len(entries))
	for _, e := range entries {
		zones = append(zones, snapshot.ZoneV1{
			ID:                e.ID,
			RefillThreshold:   e.Config.RefillThresholdPercent,
			SimilarStackLimit: e.Config.SimilarStackLimit,
		})
	}
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			Seq:       seq,
			CreatedAt: r.now().UTC().Format(time.RFC3339Nano),
		},
		Aggressive: r.engine.Aggressive(),
		Zones:      zones,
	}
}

// ImportSnapshot replaces the zone config table. Observers are not notified.
func (r *Runtime) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	entries := make([]zoneconfig.Entry, 0, len(s.Zones))
	for _, z := range s.Zones {
		entries = append(entries, zoneconfig.Entry{
			ID: z.ID,
			Config: zoneconfig.ZoneConfig{
				RefillThresholdPercent: z.RefillThreshold,
				SimilarStackLimit:      z.SimilarStackLimit,
			},
		})
	}
	r.mutMu.Lock()
	r.store.Load(entries)
	r.mutMu.Unlock()
	r.SetSeq(s.Header.Seq)
	return nil
}

// SaveSnapshot writes the current table into dir and returns the file path.
func (r *Runtime) SaveSnapshot(dir string) (string, error) {
	snap := r.ExportSnapshot()
	path := filepath.Join(dir, snapshot.FileName(snap.Header.Seq))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

// LoadLatestSnapshot imports the newest snapshot in dir. ok is false when dir has none.
func (r *Runtime) LoadLatestSnapshot(dir string) (path string, ok bool, err error) {
	path = snapshot.Latest(dir)
	if path == "" {
		return "", false, nil
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return path, false, err
	}
	if err := r.ImportSnapshot(snap); err != nil {
		return path, false, err
	}
	return path, true, nil
}

// ImportZoneRows replaces the table from the sqlite read model, which may be ahead of the
// newest snapshot after a crash.
func (r *Runtime) ImportZoneRows(rows []indexdb.ZoneRow, seq uint64) {
	entries := make([]zoneconfig.Entry, 0, len(rows))
	for _, z := range rows {
		entries = append(entries, zoneconfig.Entry{
			ID: z.ZoneID,
			Config: zoneconfig.ZoneConfig{
				RefillThresholdPercent: z.RefillThreshold,
				SimilarStackLimit:      z.SimilarStackLimit,
			},
		})
	}
	r.mutMu.Lock()
	r.store.Load(entries)
	r.mutMu.Unlock()
	r.SetSeq(seq)
}
