// Package admission decides whether an item may be hauled into a storage cell, and how much of it.
//
// Decisions read three collaborators: the spatial index (zones, cells, placed stacks), the
// reservation ledger (in-flight jobs) and the zone config store. None of them is mutated here.
package admission

import (
	"sync/atomic"

	"stockpile.ai/internal/sim/model"
	"stockpile.ai/internal/sim/zoneconfig"
)

type SpatialIndex interface {
	ZoneOf(c model.Cell) (string, bool)
	// CellsOf returns the zone's cells in its stable enumeration order.
	CellsOf(zoneID string) []model.Cell
	ItemsAt(c model.Cell) []model.ItemStack
	ContainerCell(containerID string) (model.Cell, bool)
}

type ReservationLedger interface {
	ActiveJobs() []model.TransferJob
}

type ConfigSource interface {
	Get(zoneID string) zoneconfig.ZoneConfig
}

type Reason string

const (
	ReasonUnmanaged     Reason = "UNMANAGED"
	ReasonRefill        Reason = "REFILL"
	ReasonTopOff        Reason = "TOP_OFF"
	ReasonSimilarLimit  Reason = "SIMILAR_LIMIT"
	ReasonReservedLimit Reason = "RESERVED_LIMIT"
)

type Verdict struct {
	Admit    bool
	Quantity int
	Reason   Reason
	ZoneID   string
	// StackLimit is the effective per-stack cap; zero when the zone is unmanaged.
	StackLimit int
	// Duplicates is the duplicate-unit count reached before the verdict.
	Duplicates int
}

// Decision is what a DecisionSink receives after every Evaluate.
type Decision struct {
	Item    model.ItemStack
	Cell    model.Cell
	Verdict Verdict
}

type DecisionSink interface {
	RecordDecision(d Decision)
}

type Options struct {
	// Aggressive also counts in-flight storage jobs toward the similar-stack limit.
	Aggressive bool
	Sink       DecisionSink
}

type Engine struct {
	index   SpatialIndex
	ledger  ReservationLedger
	configs ConfigSource
	opts    Options

	unmanaged atomic.Bool
}

func New(index SpatialIndex, ledger ReservationLedger, configs ConfigSource, opts Options) *Engine {
	return &Engine{index: index, ledger: ledger, configs: configs, opts: opts}
}

// SetManaged(false) turns every decision into a pass-through. Used when an integration
// precondition fails at startup: no limiting is safer than limiting on bad data.
func (e *Engine) SetManaged(on bool) { e.unmanaged.Store(!on) }

func (e *Engine) Managed() bool { return !e.unmanaged.Load() }

func (e *Engine) Aggressive() bool { return e.opts.Aggressive }

// StackLimit is the effective per-stack cap a zone enforces for an item of natural capacity.
func StackLimit(capacity, refillThresholdPercent int) int {
	limit := capacity * refillThresholdPercent / 100
	if limit < 1 {
		return 1
	}
	return limit
}

// settings resolves the managed config for the zone owning cell.
func (e *Engine) settings(cell model.Cell) (zoneID string, cfg zoneconfig.ZoneConfig, ok bool) {
	if !e.Managed() || e.index == nil {
		return "", cfg, false
	}
	zoneID, ok = e.index.ZoneOf(cell)
	if !ok {
		return "", cfg, false
	}
	if e.configs != nil {
		cfg = e.configs.Get(zoneID)
	} else {
		cfg = zoneconfig.Default()
	}
	if cfg.Disabled() {
		return zoneID, cfg, false
	}
	return zoneID, cfg, true
}

// refillTarget finds the first storable, stackable stack on cell that sits below limit.
func refillTarget(items []model.ItemStack, item model.ItemStack, limit int) (model.ItemStack, bool) {
	for _, t := range items {
		if !t.Storable {
			continue
		}
		if !t.CanStackWith(item) {
			continue
		}
		if t.Count >= limit {
			continue
		}
		return t, true
	}
	return model.ItemStack{}, false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
