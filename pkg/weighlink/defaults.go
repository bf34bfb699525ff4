package weighlink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/sink"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/ble"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/httpsrc"
	natssrc "github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/nats"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/opcua"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/serial"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/app/config"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// buildCollectors instantiates every transport listed under sources. An entry that cannot
// be built is logged and left out; the others still run.
func buildCollectors(cfg *Config, obs ports.Observability) []ports.Collector {
	var cols []ports.Collector
	add := func(entry string, c ports.Collector, err error) {
		if err != nil {
			obs.LogError("collector_invalid", err, ports.Field{Key: "source", Value: entry})
			return
		}
		cols = append(cols, c)
	}

	for i := range cfg.Sources.Serial {
		c, err := serial.NewCollector(cfg.Sources.Serial[i], cfg.Policy, obs)
		add(fmt.Sprintf("serial[%d]", i), c, err)
	}
	for i := range cfg.Sources.BLE {
		c, err := ble.NewCollector(cfg.Sources.BLE[i], cfg.Policy, obs)
		add(fmt.Sprintf("ble[%d]", i), c, err)
	}
	if cfg.Sources.OPCUA.Endpoint != "" {
		c, err := opcua.NewCollector(cfg.Sources.OPCUA, cfg.Policy, obs)
		add("opcua", c, err)
	}
	for i := range cfg.Sources.NATS {
		c, err := natssrc.NewCollector(cfg.Sources.NATS[i], cfg.Policy, obs)
		add(fmt.Sprintf("nats[%d]", i), c, err)
	}
	if cfg.Sources.HTTP.Addr != "" {
		c, err := httpsrc.NewCollector(cfg.Sources.HTTP, obs)
		add("http", c, err)
	}
	return cols
}

// closerSet remembers sinks that hold resources (database pools) until shutdown.
type closerSet struct {
	mu      sync.Mutex
	closers []io.Closer
}

func (s *closerSet) add(c io.Closer) {
	s.mu.Lock()
	s.closers = append(s.closers, c)
	s.mu.Unlock()
}

func (s *closerSet) closeAll() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errs
}

// sinkFactory opens the configured sink kind; nil means no sink is configured at all.
func sinkFactory(cfg config.SinkConfig, closers *closerSet) ports.SinkFactory {
	var open ports.SinkFactory
	switch cfg.Kind {
	case config.SinkSheets:
		open = func(ctx context.Context) (ports.RemoteSink, error) {
			return sink.NewSheetsSink(ctx, cfg.Sheets)
		}
	case config.SinkPostgres:
		open = func(ctx context.Context) (ports.RemoteSink, error) {
			s, err := sink.OpenPostgres(ctx, cfg.Postgres)
			if err != nil {
				return nil, err
			}
			closers.add(s)
			return s, nil
		}
	default:
		return nil
	}

	return func(ctx context.Context) (ports.RemoteSink, error) {
		s, err := open(ctx)
		if err != nil {
			return nil, err
		}
		return sink.NewRateLimited(s, cfg.RateLimit, cfg.Burst), nil
	}
}
