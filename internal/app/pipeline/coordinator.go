package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/observability"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/sink"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

var (
	// ErrNoValue rejects records without a parsed measurement.
	ErrNoValue = errors.New("pipeline: record has no value")
	// ErrQueueAppend means the record reached neither the sink nor the durable queue.
	ErrQueueAppend = errors.New("pipeline: queue append failed")
)

// Outcome tells where a delivered record ended up.
type Outcome int

const (
	OutcomeDelivered Outcome = iota + 1
	OutcomeQueued
	OutcomeLost
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeQueued:
		return "queued"
	case OutcomeLost:
		return "lost"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Coordinator sends each record to the remote sink and falls back to the durable queue.
// Exactly one of the two receives the record.
type Coordinator struct {
	session       *Session
	queue         ports.DurableQueue
	obs           ports.Observability
	appendTimeout time.Duration
}

func NewCoordinator(session *Session, q ports.DurableQueue, obs ports.Observability, appendTimeout time.Duration) *Coordinator {
	return &Coordinator{
		session:       session,
		queue:         q,
		obs:           obs,
		appendTimeout: appendTimeout,
	}
}

// Deliver never drops a record silently: the only error path is OutcomeLost, returned
// with an error wrapping ErrQueueAppend.
func (c *Coordinator) Deliver(ctx context.Context, r *domain.Record) (Outcome, error) {
	if !r.HasValue() {
		return 0, ErrNoValue
	}

	if snk := c.session.Current(); snk != nil {
		err := appendWithTimeout(ctx, snk, r, c.appendTimeout, c.obs)
		if err == nil {
			c.obs.IncCounter(observability.RecordsDelivered, 1)
			return OutcomeDelivered, nil
		}
		c.obs.LogError("sink_append_failed", err, append(recordFields(r),
			ports.Field{Key: "sink", Value: snk.Name()},
			ports.Field{Key: "reason", Value: sink.Reason(err)})...)
	}

	if err := c.queue.Append(r); err != nil {
		c.obs.IncCounter(observability.RecordsLost, 1)
		c.obs.LogCritical("queue_append_failed", err, recordFields(r)...)
		return OutcomeLost, fmt.Errorf("%w: %w", ErrQueueAppend, err)
	}

	c.obs.IncCounter(observability.RecordsQueued, 1)
	c.obs.SetGauge(observability.QueueLength, float64(c.queue.Len()))
	c.obs.LogInfo("record_queued", recordFields(r)...)
	return OutcomeQueued, nil
}
