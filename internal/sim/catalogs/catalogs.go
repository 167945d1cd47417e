package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Items ItemCatalog
}

type ItemCatalog struct {
	Palette       []string
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"` // "RAW","MANUFACTURED","FOOD","APPAREL","WEAPON"
	StackLimit int    `json:"stack_limit"`
	// Storable defaults to true; set false for things that can never sit in storage (e.g. corpses in transit).
	Storable *bool `json:"storable,omitempty"`
}

func (d ItemDef) IsStorable() bool {
	return d.Storable == nil || *d.Storable
}

func (c ItemCatalog) Lookup(id string) (ItemDef, bool) {
	d, ok := c.Defs[id]
	return d, ok
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromDefs builds an item catalog from in-memory definitions (tests, embedded defaults).
func FromDefs(defs []ItemDef) (*Catalogs, error) {
	raw, err := json.Marshal(defs)
	if err != nil {
		return nil, err
	}
	var c Catalogs
	if err := parseItems(raw, &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseItems(raw, out)
}

func parseItems(raw []byte, out *ItemCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if d.StackLimit <= 0 {
			return fmt.Errorf("items.json: %s: stack_limit must be > 0", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}
