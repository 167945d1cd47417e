package model

type JobKind string

const (
	JobToCell      JobKind = "TO_CELL"
	JobToContainer JobKind = "TO_CONTAINER"
	// Non-storage kinds may share the ledger; the admission engine ignores them.
	JobOther JobKind = "OTHER"
)

func (k JobKind) IsStorage() bool {
	return k == JobToCell || k == JobToContainer
}

// TransferJob is a reservation of an item for an in-flight haul.
type TransferJob struct {
	ID          string
	Item        ItemStack // source item as reserved
	Kind        JobKind
	Cell        Cell   // TO_CELL
	ContainerID string // TO_CONTAINER
}
