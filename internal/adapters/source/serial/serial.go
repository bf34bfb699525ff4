// Package serial reads line-oriented scale output from a serial port (including Bluetooth
// SPP virtual ports such as /dev/rfcomm0 or COM4).
package serial

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

const maxLineLen = 4096

type Config struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

func (c *Config) ApplyDefaults() {
	if c.Baud == 0 {
		c.Baud = 9600
	}
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: serial port is empty", source.ErrNotConfigured)
	}
	if c.Baud < 0 {
		return fmt.Errorf("serial baud must be positive, got %d", c.Baud)
	}
	return nil
}

// Opener opens a port whose reads return (0, nil) after readTimeout without data.
type Opener func(name string, baud int, readTimeout time.Duration) (io.ReadCloser, error)

// OpenPort opens a real serial device.
func OpenPort(name string, baud int, readTimeout time.Duration) (io.ReadCloser, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

type Option func(*Collector)

// WithOpener replaces the device opener.
func WithOpener(o Opener) Option {
	return func(c *Collector) { c.open = o }
}

// WithClock overrides the ingestion clock.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

type Collector struct {
	cfg  Config
	pol  ports.Policy
	obs  ports.Observability
	open Opener
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
	c := &Collector{cfg: cfg, pol: pol, obs: obs, open: OpenPort, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Collector) Name() string { return "serial:" + c.cfg.Port }

func (c *Collector) tag() domain.Metadata {
	return domain.Metadata{"source": "serial", "port": c.cfg.Port}
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

// Stop returns within one read timeout (the poll interval) plus close time.
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

func (c *Collector) pollInterval() time.Duration {
	if c.pol.PollInterval > 0 {
		return c.pol.PollInterval
	}
	return time.Second
}

func (c *Collector) run(ctx context.Context, out chan<- *domain.Reading) {
	defer c.wg.Done()

	attempt := 0
	for ctx.Err() == nil {
		port, err := c.open(c.cfg.Port, c.cfg.Baud, c.pollInterval())
		if err != nil {
			attempt++
			c.obs.LogError("serial_open_failed", err,
				ports.Field{Key: "port", Value: c.cfg.Port},
				ports.Field{Key: "attempt", Value: attempt})
			if !source.Sleep(ctx, c.pol.Backoff(attempt)) {
				return
			}
			continue
		}

		attempt = 0
		c.obs.LogInfo("serial_opened", ports.Field{Key: "port", Value: c.cfg.Port}, ports.Field{Key: "baud", Value: c.cfg.Baud})
		err = c.readLines(ctx, port, out)
		if cerr := port.Close(); cerr != nil {
			c.obs.LogError("serial_close_failed", cerr, ports.Field{Key: "port", Value: c.cfg.Port})
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		c.obs.LogError("serial_read_failed", err, ports.Field{Key: "port", Value: c.cfg.Port})
		if !source.Sleep(ctx, c.pol.Backoff(attempt)) {
			return
		}
	}
}

// readLines splits the byte stream on CR or LF and emits every non-empty line.
func (c *Collector) readLines(ctx context.Context, port io.Reader, out chan<- *domain.Reading) error {
	buf := make([]byte, 256)
	line := make([]byte, 0, 64)

	flush := func() bool {
		raw := source.CleanPayload(line)
		line = line[:0]
		if raw == "" {
			return true
		}
		return source.Emit(ctx, out, &domain.Reading{Raw: raw, Tag: c.tag(), ReceivedAt: c.now()})
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := port.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' || b == '\r' {
				if !flush() {
					return nil
				}
				continue
			}
			if len(line) >= maxLineLen {
				line = line[:0]
			}
			line = append(line, b)
		}
		if err != nil {
			return err
		}
		if n == 0 && !source.Sleep(ctx, 100*time.Millisecond) {
			return nil
		}
	}
}

var _ ports.Collector = (*Collector)(nil)
