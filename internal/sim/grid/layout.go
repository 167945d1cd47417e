package grid

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stockpile.ai/internal/sim/catalogs"
	"stockpile.ai/internal/sim/model"
)

// Layout is the on-disk description of zones, containers and placed stacks.
type Layout struct {
	Zones      []ZoneSpec      `yaml:"zones"`
	Containers []ContainerSpec `yaml:"containers,omitempty"`
	Items      []ItemSpec      `yaml:"items,omitempty"`
}

type ZoneSpec struct {
	ID    string   `yaml:"id"`
	Label string   `yaml:"label,omitempty"`
	Cells [][2]int `yaml:"cells,omitempty"`
	// Rect is an inclusive [x1,z1,x2,z2] area, enumerated row by row.
	Rect []int `yaml:"rect,omitempty"`
}

type ContainerSpec struct {
	ID   string `yaml:"id"`
	Cell [2]int `yaml:"cell"`
}

type ItemSpec struct {
	ID      string `yaml:"id"`
	Type    string `yaml:"type"`
	Quality int    `yaml:"quality,omitempty"`
	Count   int    `yaml:"count"`
	Cell    [2]int `yaml:"cell"`
}

func LoadLayout(path string) (Layout, error) {
	var l Layout
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("layout.yaml: %w", err)
	}
	return l, nil
}

func (z ZoneSpec) cells() ([]model.Cell, error) {
	out := make([]model.Cell, 0, len(z.Cells))
	for _, c := range z.Cells {
		out = append(out, model.CellFromArray(c))
	}
	if len(z.Rect) == 0 {
		return out, nil
	}
	if len(z.Rect) != 4 {
		return nil, fmt.Errorf("zone %s: rect needs 4 values", z.ID)
	}
	x1, z1, x2, z2 := z.Rect[0], z.Rect[1], z.Rect[2], z.Rect[3]
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if z1 > z2 {
		z1, z2 = z2, z1
	}
	for zz := z1; zz <= z2; zz++ {
		for xx := x1; xx <= x2; xx++ {
			out = append(out, model.Cell{X: xx, Z: zz})
		}
	}
	return out, nil
}

// Apply builds the layout into m, resolving stack capacity and storability from the item catalog.
func (l Layout) Apply(m *Map, items catalogs.ItemCatalog) error {
	for _, z := range l.Zones {
		cells, err := z.cells()
		if err != nil {
			return fmt.Errorf("layout.yaml: %w", err)
		}
		if err := m.AddZone(z.ID, z.Label, cells); err != nil {
			return fmt.Errorf("layout.yaml: %w", err)
		}
	}
	for _, c := range l.Containers {
		if err := m.AddContainer(c.ID, model.CellFromArray(c.Cell)); err != nil {
			return fmt.Errorf("layout.yaml: %w", err)
		}
	}
	for _, it := range l.Items {
		s, err := NewStack(items, it.ID, it.Type, it.Quality, it.Count)
		if err != nil {
			return fmt.Errorf("layout.yaml: %w", err)
		}
		if err := m.Place(model.CellFromArray(it.Cell), s); err != nil {
			return fmt.Errorf("layout.yaml: %w", err)
		}
	}
	return nil
}

// NewStack resolves a stack of typ against the catalog.
func NewStack(items catalogs.ItemCatalog, id, typ string, quality, count int) (model.ItemStack, error) {
	def, ok := items.Lookup(typ)
	if !ok {
		return model.ItemStack{}, fmt.Errorf("item %s: unknown type %q", id, typ)
	}
	return model.ItemStack{
		ID:       id,
		Type:     typ,
		Quality:  quality,
		Count:    count,
		Capacity: def.StackLimit,
		Storable: def.IsStorable(),
	}, nil
}
