// Package ble collects readings from a Bluetooth Low Energy scale, either by polling a GATT
// characteristic or by subscribing to every notifiable one.
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

var (
	ErrDeviceNotFound = errors.New("ble: device not found")
	ErrNoNotifiable   = errors.New("ble: no notifiable characteristic")
	ErrIdle           = errors.New("ble: no data within idle timeout")
)

type Config struct {
	Address     string        `yaml:"address"`
	DeviceName  string        `yaml:"device_name"`
	CharUUID    string        `yaml:"char_uuid"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`
	// IdleTimeout forces a reconnect when a notify session stays silent this long.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = time.Minute
	}
}

func (c *Config) Validate() error {
	if c.Address == "" && c.DeviceName == "" {
		return fmt.Errorf("%w: ble needs address or device_name", source.ErrNotConfigured)
	}
	return nil
}

// Link is the part of a BLE stack the collector needs.
type Link interface {
	// Scan returns the address of the first advertisement accepted by match.
	Scan(ctx context.Context, match func(name, addr string) bool) (string, error)
	Connect(ctx context.Context, addr string) (Conn, error)
}

// Conn is one connected peripheral.
type Conn interface {
	Read(charUUID string) ([]byte, error)
	// Subscribe enables notifications on every notifiable characteristic and reports how many.
	Subscribe(fn func(charUUID string, data []byte)) (int, error)
	Close() error
}

type Option func(*Collector)

func WithLink(l Link) Option {
	return func(c *Collector) { c.link = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

type Collector struct {
	cfg  Config
	pol  ports.Policy
	obs  ports.Observability
	link Link
	now  func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewCollector(cfg Config, pol ports.Policy, obs ports.Observability, opts ...Option) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Collector{cfg: cfg, pol: pol, obs: obs, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.link == nil {
		c.link = NewAdapterLink()
	}
	return c, nil
}

func (c *Collector) Name() string {
	if c.cfg.Address != "" {
		return "ble:" + c.cfg.Address
	}
	return "ble:" + c.cfg.DeviceName
}

func (c *Collector) Start(out chan<- *domain.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return source.ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true

	c.wg.Add(1)
	go c.run(ctx, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	return nil
}

func (c *Collector) run(ctx context.Context, out chan<- *domain.Reading) {
	defer c.wg.Done()

	attempt := 0
	for ctx.Err() == nil {
		err := c.connectOnce(ctx, out)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			attempt = 0
			continue
		}
		attempt++
		c.obs.LogError("ble_session_failed", err,
			ports.Field{Key: "device", Value: c.Name()},
			ports.Field{Key: "attempt", Value: attempt})
		if !source.Sleep(ctx, c.pol.Backoff(attempt)) {
			return
		}
	}
}

func (c *Collector) connectOnce(ctx context.Context, out chan<- *domain.Reading) error {
	addr := c.cfg.Address
	if addr == "" {
		scanCtx, cancel := context.WithTimeout(ctx, c.cfg.ScanTimeout)
		found, err := c.link.Scan(scanCtx, c.matches)
		cancel()
		if err != nil {
			return err
		}
		addr = found
	}

	conn, err := c.link.Connect(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.obs.LogError("ble_close_failed", err, ports.Field{Key: "address", Value: addr})
		}
	}()
	c.obs.LogInfo("ble_connected", ports.Field{Key: "address", Value: addr})

	if c.cfg.CharUUID != "" {
		return c.poll(ctx, conn, addr, out)
	}
	return c.listen(ctx, conn, addr, out)
}

func (c *Collector) matches(name, addr string) bool {
	if c.cfg.Address != "" && strings.EqualFold(addr, c.cfg.Address) {
		return true
	}
	return c.cfg.DeviceName != "" && strings.Contains(name, c.cfg.DeviceName)
}

func (c *Collector) tag(addr, char string) domain.Metadata {
	return domain.Metadata{"source": "ble", "address": addr, "char": char}
}

func (c *Collector) pollInterval() time.Duration {
	if c.pol.PollInterval > 0 {
		return c.pol.PollInterval
	}
	return time.Second
}

func (c *Collector) poll(ctx context.Context, conn Conn, addr string, out chan<- *domain.Reading) error {
	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()
	for {
		data, err := conn.Read(c.cfg.CharUUID)
		if err != nil {
			return fmt.Errorf("read %s: %w", c.cfg.CharUUID, err)
		}
		if raw := source.CleanPayload(data); raw != "" {
			r := &domain.Reading{Raw: raw, Tag: c.tag(addr, c.cfg.CharUUID), ReceivedAt: c.now()}
			if !source.Emit(ctx, out, r) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Collector) listen(ctx context.Context, conn Conn, addr string, out chan<- *domain.Reading) error {
	// Notifications arrive on the stack's goroutine; funnel them so emission stays ordered.
	// done ends with this session, so a callback fired after an idle timeout never blocks
	// the stack.
	notes := make(chan *domain.Reading, 16)
	done := make(chan struct{})
	defer close(done)
	n, err := conn.Subscribe(func(char string, data []byte) {
		raw := source.CleanPayload(data)
		if raw == "" {
			return
		}
		select {
		case notes <- &domain.Reading{Raw: raw, Tag: c.tag(addr, char), ReceivedAt: c.now()}:
		case <-done:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if n == 0 {
		return ErrNoNotifiable
	}
	c.obs.LogInfo("ble_subscribed", ports.Field{Key: "address", Value: addr}, ports.Field{Key: "characteristics", Value: n})

	idle := time.NewTimer(c.cfg.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
			return ErrIdle
		case r := <-notes:
			if !source.Emit(ctx, out, r) {
				return nil
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(c.cfg.IdleTimeout)
		}
	}
}

var _ ports.Collector = (*Collector)(nil)
