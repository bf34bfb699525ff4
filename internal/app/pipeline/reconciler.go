package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/observability"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/sink"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

var (
	// ErrDrainStopped means a replay hit a failure; the queue was left untouched.
	ErrDrainStopped = errors.New("pipeline: drain stopped")
	// ErrDrainInProgress is returned by a trigger that arrives while a drain is running.
	ErrDrainInProgress = errors.New("pipeline: drain in progress")
)

type DrainResult struct {
	ID        string
	Queued    int
	Delivered int
	Cleared   bool
}

// Reconciler replays the durable queue against the sink, in order, stopping at the first
// failure. The queue is cleared only after every record was accepted.
type Reconciler struct {
	queue         ports.DurableQueue
	obs           ports.Observability
	appendTimeout time.Duration
	running       atomic.Bool
}

func NewReconciler(q ports.DurableQueue, obs ports.Observability, appendTimeout time.Duration) *Reconciler {
	return &Reconciler{queue: q, obs: obs, appendTimeout: appendTimeout}
}

// Drain is single-flight: a concurrent call returns ErrDrainInProgress without touching
// the queue. Records accepted before a failure stay queued and are sent again next time.
func (r *Reconciler) Drain(ctx context.Context, snk ports.RemoteSink) (DrainResult, error) {
	var res DrainResult
	if snk == nil {
		return res, ErrSinkUnavailable
	}
	if !r.running.CompareAndSwap(false, true) {
		return res, ErrDrainInProgress
	}
	defer r.running.Store(false)

	if !r.queue.Pending() {
		return res, nil
	}
	res.ID = uuid.NewString()

	err := r.queue.Exclusive(func(tx ports.QueueTx) error {
		recs, err := tx.ReadAll()
		if err != nil {
			return err
		}
		res.Queued = len(recs)

		for i, rec := range recs {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrDrainStopped, err)
			}
			if err := appendWithTimeout(ctx, snk, rec, r.appendTimeout, r.obs); err != nil {
				r.obs.LogError("drain_stopped", err, append(recordFields(rec),
					ports.Field{Key: "drain_id", Value: res.ID},
					ports.Field{Key: "position", Value: i + 1},
					ports.Field{Key: "queued", Value: len(recs)},
					ports.Field{Key: "reason", Value: sink.Reason(err)})...)
				return fmt.Errorf("%w at record %d of %d: %w", ErrDrainStopped, i+1, len(recs), err)
			}
			res.Delivered++
		}

		if err := tx.Clear(); err != nil {
			return err
		}
		res.Cleared = true
		return nil
	})

	r.obs.IncCounter(observability.RecordsDrained, float64(res.Delivered))
	r.obs.SetGauge(observability.QueueLength, float64(r.queue.Len()))
	if err != nil {
		if !errors.Is(err, ErrDrainStopped) {
			r.obs.LogCritical("drain_failed", err, ports.Field{Key: "drain_id", Value: res.ID})
		}
		return res, err
	}

	r.obs.LogInfo("drain_complete",
		ports.Field{Key: "drain_id", Value: res.ID},
		ports.Field{Key: "records", Value: res.Delivered},
		ports.Field{Key: "sink", Value: snk.Name()})
	return res, nil
}
