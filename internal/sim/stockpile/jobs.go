package stockpile

import (
	"fmt"

	"stockpile.ai/internal/sim/model"
	"stockpile.ai/internal/sim/reservation"
)

// JobRequest describes a haul a scheduler wants to reserve.
type JobRequest struct {
	ItemID      string
	Kind        model.JobKind
	Cell        model.Cell
	ContainerID string
}

// Reserve records an in-flight job for a placed item. The job carries the item as it is now.
func (r *Runtime) Reserve(req JobRequest) (model.TransferJob, error) {
	it, ok := r.grid.Item(req.ItemID)
	if !ok {
		return model.TransferJob{}, fmt.Errorf("reserve %s: %w", req.ItemID, ErrUnknownItem)
	}
	if req.Kind == model.JobToContainer {
		if _, ok := r.grid.ContainerCell(req.ContainerID); !ok {
			return model.TransferJob{}, fmt.Errorf("reserve %s: %w: unknown container %q", req.ItemID, reservation.ErrBadJob, req.ContainerID)
		}
	}
	return r.ledger.Reserve(model.TransferJob{
		Item:        it,
		Kind:        req.Kind,
		Cell:        req.Cell,
		ContainerID: req.ContainerID,
	})
}

func (r *Runtime) Release(jobID string) bool {
	return r.ledger.Release(jobID)
}
