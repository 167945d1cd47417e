package reservation

import (
	"errors"
	"fmt"
	"sync"

	"stockpile.ai/internal/sim/model"
)

var (
	ErrItemReserved = errors.New("item already reserved")
	ErrBadJob       = errors.New("bad job")
)

// Ledger is the live set of in-flight transfer jobs, in reservation order.
type Ledger struct {
	mu     sync.Mutex
	next   uint64
	jobs   []model.TransferJob
	byItem map[string]string // item id -> job id
}

func NewLedger() *Ledger {
	return &Ledger{byItem: map[string]string{}}
}

// Reserve records a job for an item. One item carries at most one reservation.
func (l *Ledger) Reserve(j model.TransferJob) (model.TransferJob, error) {
	if j.Item.ID == "" {
		return j, fmt.Errorf("reserve: %w: empty item id", ErrBadJob)
	}
	switch j.Kind {
	case model.JobToCell, model.JobOther:
	case model.JobToContainer:
		if j.ContainerID == "" {
			return j, fmt.Errorf("reserve: %w: container job without container", ErrBadJob)
		}
	default:
		return j, fmt.Errorf("reserve: %w: kind %q", ErrBadJob, j.Kind)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.byItem[j.Item.ID]; ok {
		return j, fmt.Errorf("reserve %s (held by %s): %w", j.Item.ID, held, ErrItemReserved)
	}
	l.next++
	j.ID = fmt.Sprintf("J%d", l.next)
	l.jobs = append(l.jobs, j)
	l.byItem[j.Item.ID] = j.ID
	return j, nil
}

// Release drops a job when it completes, is cancelled or superseded.
func (l *Ledger) Release(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, j := range l.jobs {
		if j.ID != jobID {
			continue
		}
		l.jobs = append(l.jobs[:i:i], l.jobs[i+1:]...)
		delete(l.byItem, j.Item.ID)
		return true
	}
	return false
}

func (l *Ledger) Get(jobID string) (model.TransferJob, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, j := range l.jobs {
		if j.ID == jobID {
			return j, true
		}
	}
	return model.TransferJob{}, false
}

// ActiveJobs returns a snapshot copy; later reservations do not show up in it.
func (l *Ledger) ActiveJobs() []model.TransferJob {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.TransferJob(nil), l.jobs...)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.jobs)
}
