package grid

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"stockpile.ai/internal/sim/model"
)

var (
	ErrZoneExists   = errors.New("zone already exists")
	ErrZoneNotFound = errors.New("zone not found")
	ErrCellTaken    = errors.New("cell already belongs to a zone")
	ErrItemExists   = errors.New("item already placed")
	ErrItemNotFound = errors.New("item not found")
)

// Lifecycle receives zone identity events so per-zone configuration follows the zone.
type Lifecycle interface {
	Rename(oldID, newID string)
	Delete(id string)
}

type zone struct {
	ID    string
	Label string
	Cells []model.Cell
}

type container struct {
	ID   string
	Cell model.Cell
}

// Map is an in-memory storage grid: zones own cells, cells hold ordered item stacks.
type Map struct {
	mu sync.RWMutex

	zones      map[string]*zone
	cellZone   map[model.Cell]string
	items      map[model.Cell][]model.ItemStack
	itemCell   map[string]model.Cell
	containers map[string]container

	lifecycle Lifecycle
}

func NewMap(lc Lifecycle) *Map {
	return &Map{
		zones:      map[string]*zone{},
		cellZone:   map[model.Cell]string{},
		items:      map[model.Cell][]model.ItemStack{},
		itemCell:   map[string]model.Cell{},
		containers: map[string]container{},
		lifecycle:  lc,
	}
}

// AddZone registers a zone over cells. Cell order is the zone's enumeration order.
func (m *Map) AddZone(id, label string, cells []model.Cell) error {
	if id == "" {
		return fmt.Errorf("add zone: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zones[id]; ok {
		return fmt.Errorf("add zone %s: %w", id, ErrZoneExists)
	}
	seen := map[model.Cell]struct{}{}
	for _, c := range cells {
		if owner, ok := m.cellZone[c]; ok {
			return fmt.Errorf("add zone %s: cell %s owned by %s: %w", id, c, owner, ErrCellTaken)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("add zone %s: duplicate cell %s", id, c)
		}
		seen[c] = struct{}{}
	}
	z := &zone{ID: id, Label: label, Cells: append([]model.Cell(nil), cells...)}
	m.zones[id] = z
	for _, c := range z.Cells {
		m.cellZone[c] = id
	}
	return nil
}

// RenameZone re-keys a zone and forwards the rename to the lifecycle hook.
func (m *Map) RenameZone(oldID, newID string) error {
	if newID == "" {
		return fmt.Errorf("rename zone: empty id")
	}
	m.mu.Lock()
	z, ok := m.zones[oldID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("rename zone %s: %w", oldID, ErrZoneNotFound)
	}
	if oldID == newID {
		m.mu.Unlock()
		return nil
	}
	if _, taken := m.zones[newID]; taken {
		m.mu.Unlock()
		return fmt.Errorf("rename zone %s -> %s: %w", oldID, newID, ErrZoneExists)
	}
	delete(m.zones, oldID)
	z.ID = newID
	m.zones[newID] = z
	for _, c := range z.Cells {
		m.cellZone[c] = newID
	}
	lc := m.lifecycle
	m.mu.Unlock()

	if lc != nil {
		lc.Rename(oldID, newID)
	}
	return nil
}

// RemoveZone deregisters a zone. Items stay on their cells but no longer belong to storage.
func (m *Map) RemoveZone(id string) error {
	m.mu.Lock()
	z, ok := m.zones[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("remove zone %s: %w", id, ErrZoneNotFound)
	}
	delete(m.zones, id)
	for _, c := range z.Cells {
		delete(m.cellZone, c)
	}
	lc := m.lifecycle
	m.mu.Unlock()

	if lc != nil {
		lc.Delete(id)
	}
	return nil
}

func (m *Map) SetLabel(id, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[id]
	if !ok {
		return fmt.Errorf("label zone %s: %w", id, ErrZoneNotFound)
	}
	z.Label = label
	return nil
}

// Label is the user-visible name of a zone. It is independent of the zone's identity.
func (m *Map) Label(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[id]
	if !ok {
		return "", false
	}
	return z.Label, true
}

func (m *Map) ZoneIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.zones))
	for id := range m.zones {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Map) AddContainer(id string, cell model.Cell) error {
	if id == "" {
		return fmt.Errorf("add container: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[id] = container{ID: id, Cell: cell}
	return nil
}

// Place appends a stack to a cell's item list.
func (m *Map) Place(cell model.Cell, s model.ItemStack) error {
	if s.ID == "" {
		return fmt.Errorf("place: empty item id")
	}
	if s.Count <= 0 || s.Capacity <= 0 {
		return fmt.Errorf("place %s: count and capacity must be > 0", s.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.itemCell[s.ID]; ok {
		return fmt.Errorf("place %s: %w", s.ID, ErrItemExists)
	}
	m.items[cell] = append(m.items[cell], s)
	m.itemCell[s.ID] = cell
	return nil
}

// Take removes n units from a stack (the whole stack when n >= count) and returns what was taken.
func (m *Map) Take(itemID string, n int) (model.ItemStack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cell, ok := m.itemCell[itemID]
	if !ok {
		return model.ItemStack{}, fmt.Errorf("take %s: %w", itemID, ErrItemNotFound)
	}
	list := m.items[cell]
	for i := range list {
		if list[i].ID != itemID {
			continue
		}
		taken := list[i]
		if n > 0 && n < list[i].Count {
			list[i].Count -= n
			taken.Count = n
			return taken, nil
		}
		m.items[cell] = append(list[:i:i], list[i+1:]...)
		if len(m.items[cell]) == 0 {
			delete(m.items, cell)
		}
		delete(m.itemCell, itemID)
		return taken, nil
	}
	return model.ItemStack{}, fmt.Errorf("take %s: %w", itemID, ErrItemNotFound)
}

// Merge adds n units onto an existing stack.
func (m *Map) Merge(itemID string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cell, ok := m.itemCell[itemID]
	if !ok {
		return fmt.Errorf("merge %s: %w", itemID, ErrItemNotFound)
	}
	list := m.items[cell]
	for i := range list {
		if list[i].ID == itemID {
			list[i].Count += n
			return nil
		}
	}
	return fmt.Errorf("merge %s: %w", itemID, ErrItemNotFound)
}

func (m *Map) ZoneOf(c model.Cell) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.cellZone[c]
	return id, ok
}

func (m *Map) CellsOf(zoneID string) []model.Cell {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[zoneID]
	if !ok {
		return nil
	}
	return append([]model.Cell(nil), z.Cells...)
}

func (m *Map) ItemsAt(c model.Cell) []model.ItemStack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.ItemStack(nil), m.items[c]...)
}

func (m *Map) Item(id string) (model.ItemStack, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cell, ok := m.itemCell[id]
	if !ok {
		return model.ItemStack{}, false
	}
	for _, s := range m.items[cell] {
		if s.ID == id {
			return s, true
		}
	}
	return model.ItemStack{}, false
}

func (m *Map) ItemCell(id string) (model.Cell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.itemCell[id]
	return c, ok
}

func (m *Map) ContainerCell(id string) (model.Cell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.containers[id]
	return c.Cell, ok
}
