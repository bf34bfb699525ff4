package ports

import "github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"

// QueueTx is the view handed to DurableQueue.Exclusive; its calls run under the queue lock.
type QueueTx interface {
	ReadAll() ([]*domain.Record, error)
	Clear() error
}

// DurableQueue is the local FIFO of records whose remote delivery failed.
type DurableQueue interface {
	Append(r *domain.Record) error
	ReadAll() ([]*domain.Record, error)
	Clear() error
	Pending() bool
	Len() int
	Exclusive(fn func(tx QueueTx) error) error
}
