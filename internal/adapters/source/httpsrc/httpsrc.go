// Package httpsrc accepts raw scale payloads over HTTP for devices that push instead of stream.
package httpsrc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

const defaultMaxBody = 4 << 10

type Config struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

func (c *Config) ApplyDefaults() {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBody
	}
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: http addr is empty", source.ErrNotConfigured)
	}
	return nil
}

type Collector struct {
	cfg Config
	obs ports.Observability
	now func() time.Time

	mu      sync.Mutex
	srv     *http.Server
	ln      net.Listener
	ctx     context.Context
	cancel  context.CancelFunc
	out     chan<- *domain.Reading
	wg      sync.WaitGroup
	started bool
}

func NewCollector(cfg Config, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{cfg: cfg, obs: obs, now: time.Now}, nil
}

func (c *Collector) Name() string { return "http:" + c.cfg.Addr }

// Addr is the bound listener address once started.
func (c *Collector) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ln == nil {
		return c.cfg.Addr
	}
	return c.ln.Addr().String()
}

func (c *Collector) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/v1/readings", c.ingest)
	r.Post("/v1/readings/{device}", c.ingest)
	return r
}

// Start binds synchronously so address errors surface here, then serves in the background.
func (c *Collector) Start(out chan<- *domain.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return source.ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", c.cfg.Addr, err)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.out = out
	c.ln = ln
	c.srv = &http.Server{Handler: c.routes(), ReadHeaderTimeout: 5 * time.Second}
	c.started = true

	srv := c.srv
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.obs.LogError("http_source_serve_failed", err, ports.Field{Key: "addr", Value: ln.Addr().String()})
		}
	}()
	c.obs.LogInfo("http_source_listening", ports.Field{Key: "addr", Value: ln.Addr().String()})
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	srv, cancel := c.srv, c.cancel
	c.started = false
	c.mu.Unlock()

	// Cancel first so handlers blocked on a full pipeline answer 503 and Shutdown can finish.
	cancel()
	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	err := srv.Shutdown(ctx)
	c.wg.Wait()
	return err
}

func (c *Collector) ingest(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	ctx, out := c.ctx, c.out
	c.mu.Unlock()

	body, err := io.ReadAll(io.LimitReader(r.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	raw := source.CleanPayload(body)
	if raw == "" {
		http.Error(w, "empty payload", http.StatusBadRequest)
		return
	}

	tag := domain.Metadata{"source": "http", "addr": c.cfg.Addr}
	if device := chi.URLParam(r, "device"); device != "" {
		tag["device"] = device
	}
	reading := &domain.Reading{Raw: raw, Tag: tag, ReceivedAt: c.now()}

	select {
	case out <- reading:
		w.WriteHeader(http.StatusAccepted)
	case <-ctx.Done():
		http.Error(w, "stopping", http.StatusServiceUnavailable)
	case <-r.Context().Done():
	}
}

var _ ports.Collector = (*Collector)(nil)
