// Package nats takes raw scale payloads published on a NATS subject, for scales bridged by
// another process.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

type Config struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	// Queue joins a queue group so several gateways can share one subject.
	Queue string `yaml:"queue"`
	Name  string `yaml:"name"`
}

func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Name == "" {
		c.Name = "weighlink"
	}
}

func (c *Config) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("%w: nats subject is empty", source.ErrNotConfigured)
	}
	return nil
}

type Collector struct {
	cfg Config
	pol ports.Policy
	obs ports.Observability
	now func() time.Time

	mu      sync.Mutex
	conn    *nats.Conn
	sub     *nats.Subscription
	cancel  context.CancelFunc
	started bool
}

func NewCollector(cfg Config, pol ports.Policy, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{cfg: cfg, pol: pol, obs: obs, now: time.Now}, nil
}

func (c *Collector) Name() string { return "nats:" + c.cfg.Subject }

func (c *Collector) options() []nats.Option {
	return []nats.Option{
		nats.Name(c.cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(c.pol.Backoff(1)),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.obs.LogError("nats_disconnected", err, ports.Field{Key: "url", Value: c.cfg.URL})
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.obs.LogInfo("nats_reconnected", ports.Field{Key: "url", Value: nc.ConnectedUrl()})
		}),
	}
}

// Start connects (retrying in the background while the server is down) and subscribes.
func (c *Collector) Start(out chan<- *domain.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return source.ErrAlreadyStarted
	}

	nc, err := nats.Connect(c.cfg.URL, c.options()...)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", c.cfg.URL, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(m *nats.Msg) { c.handle(ctx, m, out) }

	var sub *nats.Subscription
	if c.cfg.Queue != "" {
		sub, err = nc.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, handler)
	} else {
		sub, err = nc.Subscribe(c.cfg.Subject, handler)
	}
	if err != nil {
		cancel()
		nc.Close()
		return fmt.Errorf("nats subscribe %s: %w", c.cfg.Subject, err)
	}

	c.conn, c.sub, c.cancel, c.started = nc, sub, cancel, true
	c.obs.LogInfo("nats_subscribed", ports.Field{Key: "url", Value: c.cfg.URL}, ports.Field{Key: "subject", Value: c.cfg.Subject})
	return nil
}

// handle runs on the subscription's delivery goroutine, so messages keep subject order.
func (c *Collector) handle(ctx context.Context, m *nats.Msg, out chan<- *domain.Reading) {
	raw := source.CleanPayload(m.Data)
	if raw == "" {
		return
	}
	source.Emit(ctx, out, &domain.Reading{
		Raw:        raw,
		Tag:        domain.Metadata{"source": "nats", "subject": m.Subject},
		ReceivedAt: c.now(),
	})
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	nc, sub, cancel := c.conn, c.sub, c.cancel
	c.conn, c.sub, c.cancel, c.started = nil, nil, nil, false
	c.mu.Unlock()

	cancel()
	err := sub.Unsubscribe()
	nc.Close()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats unsubscribe: %w", err)
	}
	return nil
}

var _ ports.Collector = (*Collector)(nil)
