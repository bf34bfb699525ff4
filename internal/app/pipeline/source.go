package pipeline

import (
	"context"
	"time"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/observability"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/measure"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// SourcePipeline turns one collector's readings into records and hands them to the
// coordinator. One pipeline per collector keeps per-source order and isolates a slow sink
// call to its own source.
type SourcePipeline struct {
	name  string
	coord *Coordinator
	obs   ports.Observability
	now   func() time.Time
}

func NewSourcePipeline(name string, coord *Coordinator, obs ports.Observability, now func() time.Time) *SourcePipeline {
	if now == nil {
		now = time.Now
	}
	return &SourcePipeline{name: name, coord: coord, obs: obs, now: now}
}

// Run consumes in until it is closed or ctx ends. On ctx end the readings already buffered
// in the channel are still handled, so a stopped collector loses nothing it emitted.
func (p *SourcePipeline) Run(ctx context.Context, in <-chan *domain.Reading) {
	for {
		select {
		case reading, ok := <-in:
			if !ok {
				return
			}
			p.Handle(ctx, reading)
		case <-ctx.Done():
			for {
				select {
				case reading, ok := <-in:
					if !ok {
						return
					}
					p.Handle(ctx, reading)
				default:
					return
				}
			}
		}
	}
}

// Handle parses and delivers a single reading. Unparseable payloads are dropped.
func (p *SourcePipeline) Handle(ctx context.Context, reading *domain.Reading) (Outcome, error) {
	if reading == nil {
		return 0, nil
	}
	val, ok := measure.Parse(reading.Raw)
	if !ok {
		p.obs.IncCounter(observability.RecordsDropped, 1)
		p.obs.LogInfo("reading_unparsed", append(ports.Fields(reading.Tag),
			ports.Field{Key: "collector", Value: p.name},
			ports.Field{Key: "raw", Value: reading.Raw})...)
		return OutcomeDropped, nil
	}

	received := reading.ReceivedAt
	if received.IsZero() {
		received = p.now()
	}
	rec := &domain.Record{
		Timestamp: domain.IngestTime(received),
		Value:     val,
		Raw:       reading.Raw,
		Metadata:  reading.Tag.Clone(),
	}
	return p.coord.Deliver(ctx, rec)
}
