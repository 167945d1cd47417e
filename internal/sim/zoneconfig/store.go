package zoneconfig

import (
	"sort"
	"sync"
)

type Op string

const (
	OpSet    Op = "SET"
	OpDelete Op = "DELETE"
	OpRename Op = "RENAME"
)

// Change describes one committed mutation. For OpRename, From is the old identity.
type Change struct {
	Op     Op
	ID     string
	From   string
	Config ZoneConfig
}

// Entry is one row of the persisted table.
type Entry struct {
	ID     string
	Config ZoneConfig
}

// Store maps zone identities to configs. Reads are concurrent, writes serialized.
type Store struct {
	mu      sync.RWMutex
	configs map[string]ZoneConfig

	// notifyMu keeps observer delivery in commit order without holding mu.
	notifyMu  sync.Mutex
	observers []func(Change)
}

func NewStore() *Store {
	return &Store{configs: map[string]ZoneConfig{}}
}

// Observe registers fn to receive every committed change. Not safe to call concurrently with mutations.
func (s *Store) Observe(fn func(Change)) {
	if fn == nil {
		return
	}
	s.notifyMu.Lock()
	s.observers = append(s.observers, fn)
	s.notifyMu.Unlock()
}

func (s *Store) Get(id string) ZoneConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.configs[id]; ok {
		return c
	}
	return Default()
}

func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.configs[id]
	return ok
}

func (s *Store) Set(id string, cfg ZoneConfig) {
	cfg = cfg.Normalize()
	s.commit(func() (Change, bool) {
		s.configs[id] = cfg
		return Change{Op: OpSet, ID: id, Config: cfg}, true
	})
}

func (s *Store) Delete(id string) {
	s.commit(func() (Change, bool) {
		if _, ok := s.configs[id]; !ok {
			return Change{}, false
		}
		delete(s.configs, id)
		return Change{Op: OpDelete, ID: id, Config: Default()}, true
	})
}

// Rename moves the config of oldID to newID and drops oldID, as one step.
// Renaming an identity without an entry still clears any stale entry under newID
// so that newID reads the same value oldID did.
func (s *Store) Rename(oldID, newID string) {
	if oldID == newID {
		return
	}
	s.commit(func() (Change, bool) {
		cfg, ok := s.configs[oldID]
		if !ok {
			cfg = Default()
		}
		s.configs[newID] = cfg
		delete(s.configs, oldID)
		return Change{Op: OpRename, ID: newID, From: oldID, Config: cfg}, true
	})
}

// CopyFrom copies the config of src onto dst. Empty identities mean the clipboard.
func (s *Store) CopyFrom(dst, src string) {
	if dst == "" {
		dst = ClipboardID
	}
	if src == "" {
		src = ClipboardID
	}
	s.Set(dst, s.Get(src))
}

// Entries returns the table sorted by identity.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.configs))
	for id, c := range s.configs {
		out = append(out, Entry{ID: id, Config: c})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load replaces the table. It does not notify observers: loaded state is already persisted.
func (s *Store) Load(entries []Entry) {
	next := make(map[string]ZoneConfig, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		next[e.ID] = e.Config.Normalize()
	}
	s.mu.Lock()
	s.configs = next
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.configs)
}

func (s *Store) commit(apply func() (Change, bool)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	ch, ok := apply()
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, fn := range s.observers {
		fn(ch)
	}
}
