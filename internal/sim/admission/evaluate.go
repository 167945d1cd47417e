package admission

import (
	"stockpile.ai/internal/sim/model"
	"stockpile.ai/internal/sim/zoneconfig"
)

// Evaluate decides whether item may be hauled onto cell and for how many units.
func (e *Engine) Evaluate(item model.ItemStack, cell model.Cell) Verdict {
	v := e.evaluate(item, cell)
	if e.opts.Sink != nil {
		e.opts.Sink.RecordDecision(Decision{Item: item, Cell: cell, Verdict: v})
	}
	return v
}

func (e *Engine) evaluate(item model.ItemStack, cell model.Cell) Verdict {
	requested := item.Count
	zoneID, cfg, ok := e.settings(cell)
	if !ok {
		return Verdict{Admit: true, Quantity: requested, Reason: ReasonUnmanaged, ZoneID: zoneID}
	}

	limit := StackLimit(item.Capacity, cfg.RefillThresholdPercent)
	v := Verdict{Admit: true, ZoneID: zoneID, StackLimit: limit}

	// Refill: the destination cell itself always wins over zone-wide limits.
	if t, found := refillTarget(e.index.ItemsAt(cell), item, limit); found {
		v.Quantity = minInt(requested, limit-t.Count)
		v.Reason = ReasonRefill
		return v
	}
	v.Quantity = minInt(requested, limit)
	v.Reason = ReasonTopOff

	if cfg.SimilarStackLimit == 0 {
		return v
	}

	dups, denied := e.countPlaced(zoneID, item, limit, cfg)
	v.Duplicates = dups
	if denied {
		return deny(v, ReasonSimilarLimit)
	}

	if !e.opts.Aggressive || e.ledger == nil {
		return v
	}
	dups, denied = e.countReserved(zoneID, item, dups, cfg)
	v.Duplicates = dups
	if denied {
		return deny(v, ReasonReservedLimit)
	}
	return v
}

// countPlaced walks the zone's cells in order and stops as soon as the limit is reached.
// Stacks above the effective limit count once per full limit they hold.
func (e *Engine) countPlaced(zoneID string, item model.ItemStack, limit int, cfg zoneconfig.ZoneConfig) (int, bool) {
	dups := 0
	for _, c := range e.index.CellsOf(zoneID) {
		for _, t := range e.index.ItemsAt(c) {
			if !t.Storable {
				continue
			}
			if !t.SameKind(item) {
				continue
			}
			units := t.Count / limit
			if units < 1 {
				units = 1
			}
			dups += units
			if dups >= cfg.SimilarStackLimit {
				return dups, true
			}
		}
	}
	return dups, false
}

// countReserved adds in-flight storage jobs bound for the same zone with a stackable item.
func (e *Engine) countReserved(zoneID string, item model.ItemStack, dups int, cfg zoneconfig.ZoneConfig) (int, bool) {
	for _, j := range e.ledger.ActiveJobs() {
		if !j.Kind.IsStorage() {
			continue
		}
		if j.Item.ID == "" || j.Item.ID == item.ID {
			continue
		}
		if !j.Item.CanStackWith(item) {
			continue
		}
		dest, ok := e.jobDestination(j)
		if !ok {
			continue
		}
		if z, ok := e.index.ZoneOf(dest); !ok || z != zoneID {
			continue
		}
		dups++
		if dups >= cfg.SimilarStackLimit {
			return dups, true
		}
	}
	return dups, false
}

func (e *Engine) jobDestination(j model.TransferJob) (model.Cell, bool) {
	if j.Kind == model.JobToContainer {
		return e.index.ContainerCell(j.ContainerID)
	}
	return j.Cell, true
}

func deny(v Verdict, r Reason) Verdict {
	v.Admit = false
	v.Quantity = 0
	v.Reason = r
	return v
}
