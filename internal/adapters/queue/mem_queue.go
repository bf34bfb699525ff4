package queue

import (
	"sync"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// MemQueue is an in-memory DurableQueue that preserves FIFO ordering. It does not survive a
// restart and exists for embedders that bring their own persistence, and for tests.
type MemQueue struct {
	mu        sync.Mutex
	data      []*domain.Record
	appendErr error
}

func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

// FailAppends makes every following Append return err (nil restores normal behavior).
func (q *MemQueue) FailAppends(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.appendErr = err
}

func (q *MemQueue) Append(r *domain.Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.appendErr != nil {
		return q.appendErr
	}
	q.data = append(q.data, r)
	return nil
}

func (q *MemQueue) ReadAll() ([]*domain.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked(), nil
}

func (q *MemQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.data = nil
	return nil
}

func (q *MemQueue) Pending() bool {
	return q.Len() > 0
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

func (q *MemQueue) Exclusive(fn func(tx ports.QueueTx) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return fn(memTx{q})
}

func (q *MemQueue) snapshotLocked() []*domain.Record {
	if len(q.data) == 0 {
		return nil
	}
	out := make([]*domain.Record, len(q.data))
	copy(out, q.data)
	return out
}

type memTx struct{ q *MemQueue }

func (t memTx) ReadAll() ([]*domain.Record, error) { return t.q.snapshotLocked(), nil }
func (t memTx) Clear() error {
	t.q.data = nil
	return nil
}

var _ ports.DurableQueue = (*MemQueue)(nil)
