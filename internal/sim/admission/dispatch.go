package admission

import "stockpile.ai/internal/sim/model"

// DispatchPlan is the quantity a freshly built haul job should carry to one chosen cell.
type DispatchPlan struct {
	Managed  bool
	Quantity int
	// RefillPartial is set when the cell holds an under-filled stackable stack; the scheduler
	// may then pick up other duplicate stacks along the way.
	RefillPartial bool
	StackLimit    int
}

// Dispatch computes the carry quantity against a single cell. It does not look at the rest of
// the zone or at reservations: the caller already picked the cell with a broader search.
func (e *Engine) Dispatch(item model.ItemStack, cell model.Cell) DispatchPlan {
	requested := item.Count
	_, cfg, ok := e.settings(cell)
	if !ok {
		return DispatchPlan{Quantity: requested}
	}
	limit := StackLimit(item.Capacity, cfg.RefillThresholdPercent)
	p := DispatchPlan{Managed: true, StackLimit: limit}
	if t, found := refillTarget(e.index.ItemsAt(cell), item, limit); found {
		p.Quantity = minInt(requested, limit-t.Count)
		p.RefillPartial = true
		return p
	}
	p.Quantity = minInt(requested, limit)
	return p
}
