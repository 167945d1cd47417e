package stockpile

import (
	"errors"
	"fmt"

	"stockpile.ai/internal/sim/grid"
	"stockpile.ai/internal/sim/model"
	"stockpile.ai/internal/sim/zoneconfig"
)

// SetOptions qualifies a config write.
type SetOptions struct {
	Origin string
	// Interactive writes come from a live control (slider drag) and are throttled per zone.
	Interactive bool
}

// SetZone writes the config of a zone. Interactive writes are capped at the tuning's
// similar-stack ceiling and rejected with *RateLimitedError inside the commit window.
func (r *Runtime) SetZone(id string, cfg zoneconfig.ZoneConfig, opts SetOptions) (zoneconfig.ZoneConfig, error) {
	if id == "" {
		return cfg, fmt.Errorf("set zone: %w", ErrBadZone)
	}
	cfg = cfg.Normalize()
	if opts.Interactive {
		if ceiling := r.cfg.Tuning.MaxSimilarStackLimit; ceiling > 0 && cfg.SimilarStackLimit > ceiling {
			cfg.SimilarStackLimit = ceiling
		}
		if ok, wait := r.limiter.Allow(id); !ok {
			return cfg, &RateLimitedError{ZoneID: id, RetryAfter: wait}
		}
	}
	r.mutate(opts.Origin, func() { r.store.Set(id, cfg) })
	return cfg, nil
}

// DeleteZoneConfig resets a zone to the default. Deleting an absent identity commits nothing.
func (r *Runtime) DeleteZoneConfig(id, origin string) error {
	if id == "" {
		return fmt.Errorf("delete zone: %w", ErrBadZone)
	}
	r.mutate(origin, func() { r.store.Delete(id) })
	return nil
}

// RenameZone re-keys a zone. A zone known to the grid is renamed there (which re-keys its
// config); an identity only known to the config table is re-keyed in the table alone.
func (r *Runtime) RenameZone(from, to, origin string) error {
	if from == "" || to == "" {
		return fmt.Errorf("rename zone: %w", ErrBadZone)
	}
	var err error
	r.mutate(origin, func() {
		err = r.grid.RenameZone(from, to)
		if errors.Is(err, grid.ErrZoneNotFound) {
			err = nil
			r.store.Rename(from, to)
		}
	})
	return err
}

// CopyZone copies src's config onto dst; empty identities mean the clipboard.
func (r *Runtime) CopyZone(dst, src, origin string) error {
	r.mutate(origin, func() { r.store.CopyFrom(dst, src) })
	return nil
}

// AddZone registers a storage zone on the grid. Its config starts at the default.
func (r *Runtime) AddZone(id, label string, cells []model.Cell) error {
	return r.grid.AddZone(id, label, cells)
}

// RemoveZone deregisters a zone from the grid and drops its config.
func (r *Runtime) RemoveZone(id, origin string) error {
	var err error
	r.mutate(origin, func() { err = r.grid.RemoveZone(id) })
	return err
}

func (r *Runtime) mutate(origin string, fn func()) {
	r.mutMu.Lock()
	defer r.mutMu.Unlock()
	r.origin = origin
	fn()
	r.origin = ""
}
