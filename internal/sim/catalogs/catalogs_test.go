package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadItems(t *testing.T) {
	dir := t.TempDir()
	raw := `[
	  {"id":"STEEL","kind":"RAW","stack_limit":75},
	  {"id":"CORPSE","kind":"RAW","stack_limit":1,"storable":false},
	  {"id":"MEAL","kind":"FOOD","stack_limit":10}
	]`
	if err := os.WriteFile(filepath.Join(dir, "items.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cats, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cats.Items.Palette; len(got) != 3 || got[0] != "CORPSE" {
		t.Fatalf("unexpected palette: %v", got)
	}
	steel, ok := cats.Items.Lookup("STEEL")
	if !ok || steel.StackLimit != 75 || !steel.IsStorable() {
		t.Fatalf("unexpected STEEL def: %+v", steel)
	}
	corpse, _ := cats.Items.Lookup("CORPSE")
	if corpse.IsStorable() {
		t.Fatalf("expected CORPSE non-storable")
	}
	if cats.Items.DefsDigest == "" || cats.Items.PaletteDigest == "" {
		t.Fatalf("expected digests")
	}
}

func TestLoadItemsRejectsZeroStackLimit(t *testing.T) {
	if _, err := FromDefs([]ItemDef{{ID: "X", StackLimit: 0}}); err == nil {
		t.Fatalf("expected error for zero stack_limit")
	}
	if _, err := FromDefs([]ItemDef{{ID: "", StackLimit: 1}}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
