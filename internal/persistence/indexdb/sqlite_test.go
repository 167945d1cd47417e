package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"stockpile.ai/internal/sim/catalogs"
)

func TestSQLiteIndex_ZoneChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordChange(ChangeRow{Seq: 1, Op: "SET", ZoneID: "Z1", RefillThreshold: 50, SimilarStackLimit: 2})
	idx.RecordChange(ChangeRow{Seq: 2, Op: "SET", ZoneID: "Z2", RefillThreshold: 80, SimilarStackLimit: 0})
	idx.RecordChange(ChangeRow{Seq: 3, Op: "RENAME", ZoneID: "Z3", From: "Z1", RefillThreshold: 50, SimilarStackLimit: 2})
	idx.RecordChange(ChangeRow{Seq: 4, Op: "DELETE", ZoneID: "Z2", RefillThreshold: 100, SimilarStackLimit: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	rows, err := idx.LoadZoneConfigs(ctx)
	if err != nil {
		t.Fatalf("LoadZoneConfigs: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: got=%d want=1 (%+v)", len(rows), rows)
	}
	if rows[0].ZoneID != "Z3" || rows[0].RefillThreshold != 50 || rows[0].SimilarStackLimit != 2 {
		t.Fatalf("row mismatch: %+v", rows[0])
	}
	seq, err := idx.LastChangeSeq(ctx)
	if err != nil {
		t.Fatalf("LastChangeSeq: %v", err)
	}
	if seq != 4 {
		t.Fatalf("seq: got=%d want=4", seq)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSQLiteIndex_RecordDecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordDecision(DecisionRow{
		At: "2026-01-01T00:00:00Z", ItemID: "I1", ItemType: "STEEL", Requested: 75,
		X: 1, Z: 2, ZoneID: "Z1", Admit: false, Quantity: 0, Reason: "SIMILAR_LIMIT", StackLimit: 37, Duplicates: 2,
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Writes after close are ignored.
	idx.RecordDecision(DecisionRow{ItemID: "I2"})

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		n      int
		item   string
		admit  int
		reason string
		x, z   int
	)
	if err := db.QueryRow(`SELECT COUNT(*) FROM decisions`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("decisions: got=%d want=1", n)
	}
	row := db.QueryRow(`SELECT item_id,admit,reason,x,z FROM decisions`)
	if err := row.Scan(&item, &admit, &reason, &x, &z); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if item != "I1" || admit != 0 || reason != "SIMILAR_LIMIT" || x != 1 || z != 2 {
		t.Fatalf("row mismatch: item=%s admit=%d reason=%s x=%d z=%d", item, admit, reason, x, z)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	cats, err := catalogs.FromDefs([]catalogs.ItemDef{{ID: "STEEL", Kind: "RAW", StackLimit: 75}})
	if err != nil {
		t.Fatalf("FromDefs: %v", err)
	}
	if err := idx.UpsertCatalogs(cats); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	var digest string
	var count int
	if err := idx.db.QueryRow(`SELECT digest,count FROM catalogs WHERE name='items_defs'`).Scan(&digest, &count); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if digest != cats.Items.DefsDigest || count != 1 {
		t.Fatalf("catalog row: digest=%s count=%d", digest, count)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatalf("expected error")
	}
}
