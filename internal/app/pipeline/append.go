package pipeline

import (
	"context"
	"time"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/observability"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// appendWithTimeout detaches from ctx cancellation so a shutdown does not abort a
// remote write halfway; the timeout still bounds it.
func appendWithTimeout(ctx context.Context, snk ports.RemoteSink, r *domain.Record, timeout time.Duration, obs ports.Observability) error {
	actx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := snk.Append(actx, r)
	obs.ObserveLatency(observability.SinkAppend, time.Since(start).Seconds())
	return err
}

func recordFields(r *domain.Record) []ports.Field {
	fields := []ports.Field{
		{Key: "ts", Value: r.TimestampText()},
		{Key: "value", Value: r.ValueText()},
		{Key: "raw", Value: r.Raw},
	}
	if len(r.Metadata) > 0 {
		fields = append(fields, ports.Field{Key: "tag", Value: map[string]any(r.Metadata)})
	}
	return fields
}
