package weighlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/tomb.v2"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/observability"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/queue"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/app/pipeline"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

var (
	// ErrGatewayStarted is returned by a second Start.
	ErrGatewayStarted = errors.New("weighlink: gateway already started")
	// ErrGatewayClosed is returned by Start after Shutdown.
	ErrGatewayClosed = errors.New("weighlink: gateway closed")
	// ErrShutdownTimeout means some source pipelines were still delivering when the
	// shutdown budget ran out.
	ErrShutdownTimeout = errors.New("weighlink: shutdown timed out")
)

// GatewayOption customizes the dependencies used by Gateway.
type GatewayOption func(*gatewayOverrides)

type gatewayOverrides struct {
	collectors    []Collector
	sink          RemoteSink
	sinkFactory   SinkFactory
	queue         DurableQueue
	observability Observability
	registry      *prometheus.Registry
	now           func() time.Time
}

// WithCollectors adds collectors next to the ones built from the sources section.
func WithCollectors(cols ...Collector) GatewayOption {
	return func(o *gatewayOverrides) {
		for _, c := range cols {
			if c != nil {
				o.collectors = append(o.collectors, c)
			}
		}
	}
}

// WithSink starts the gateway with s already connected, bypassing sink.kind.
func WithSink(s RemoteSink) GatewayOption {
	return func(o *gatewayOverrides) {
		o.sink = s
	}
}

// WithSinkFactory replaces the sink.kind factory; it is retried every connect_interval until
// it succeeds.
func WithSinkFactory(f SinkFactory) GatewayOption {
	return func(o *gatewayOverrides) {
		o.sinkFactory = f
	}
}

// WithQueue swaps the CSV file queue for a caller-provided implementation.
func WithQueue(q DurableQueue) GatewayOption {
	return func(o *gatewayOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom log/metrics backend. The ops server then serves
// /healthz only, unless WithRegistry is also given.
func WithObservability(obs Observability) GatewayOption {
	return func(o *gatewayOverrides) {
		o.observability = obs
	}
}

// WithRegistry registers the default metrics on reg and serves it on /metrics.
func WithRegistry(reg *prometheus.Registry) GatewayOption {
	return func(o *gatewayOverrides) {
		o.registry = reg
	}
}

// WithClock overrides the ingestion clock used to stamp records.
func WithClock(now func() time.Time) GatewayOption {
	return func(o *gatewayOverrides) {
		o.now = now
	}
}

// Gateway wires collectors → parser → coordinator (sink or queue) and keeps the queue
// reconciled with the sink in the background.
type Gateway struct {
	cfg        *Config
	obs        ports.Observability
	registry   *prometheus.Registry
	queue      ports.DurableQueue
	session    *pipeline.Session
	coord      *pipeline.Coordinator
	recon      *pipeline.Reconciler
	collectors []ports.Collector
	now        func() time.Time
	closers    closerSet

	mu      sync.Mutex
	started bool
	closed  bool
	loops   *tomb.Tomb
	pipes   *tomb.Tomb
	pipeN   int
	opsSrv  *http.Server
	opsAddr string

	// colMu guards running against collectors started late by retryCollector.
	colMu    sync.Mutex
	running  []ports.Collector
	stopping bool
}

var errGatewayStopping = errors.New("weighlink: gateway stopping")

// NewGateway builds the default adapters from cfg (CSV queue, configured collectors,
// sink.kind factory, zerolog + Prometheus observability). Options override any of them.
func NewGateway(cfg *Config, opts ...GatewayOption) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var o gatewayOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	g := &Gateway{cfg: cfg, now: o.now}
	if g.now == nil {
		g.now = time.Now
	}

	g.obs = o.observability
	g.registry = o.registry
	if g.obs == nil {
		if g.registry == nil {
			g.registry = prometheus.NewRegistry()
			g.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		}
		logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		g.obs = observability.New(logger, g.registry)
	}

	g.queue = o.queue
	if g.queue == nil {
		fq, err := queue.NewFileQueue(cfg.Queue.Path)
		if err != nil {
			return nil, err
		}
		g.queue = fq
		g.closers.add(fq)
	}

	switch {
	case o.sink != nil:
		g.session = pipeline.NewOnlineSession(o.sink)
	case o.sinkFactory != nil:
		g.session = pipeline.NewSession(o.sinkFactory)
	default:
		g.session = pipeline.NewSession(sinkFactory(cfg.Sink, &g.closers))
	}

	g.collectors = append(buildCollectors(cfg, g.obs), o.collectors...)

	g.coord = pipeline.NewCoordinator(g.session, g.queue, g.obs, cfg.Sink.AppendTimeout)
	g.recon = pipeline.NewReconciler(g.queue, g.obs, cfg.Sink.AppendTimeout)
	return g, nil
}

// Start connects the sink if it can, drains what an earlier run left queued, then starts
// every collector with its own pipeline. It returns once everything is running; ctx only
// bounds the startup connect and drain.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGatewayClosed
	}
	if g.started {
		return ErrGatewayStarted
	}

	g.obs.SetGauge(observability.QueueLength, float64(g.queue.Len()))
	g.obs.LogInfo("gateway_starting",
		ports.Field{Key: "queue", Value: g.cfg.Queue.Path},
		ports.Field{Key: "queued", Value: g.queue.Len()},
		ports.Field{Key: "collectors", Value: len(g.collectors)})

	// Older queued records go out before anything new is read.
	g.connect(ctx)
	if snk := g.session.Current(); snk != nil && g.queue.Pending() {
		g.drain(ctx, snk, "startup")
	}

	g.loops = &tomb.Tomb{}
	loopCtx := g.loops.Context(nil)
	g.loops.Go(func() error {
		g.maintain(loopCtx)
		return nil
	})

	g.colMu.Lock()
	g.running = nil
	g.stopping = false
	g.colMu.Unlock()

	g.pipes = &tomb.Tomb{}
	g.pipeN = 0
	pipeCtx := g.pipes.Context(nil)
	for _, col := range g.collectors {
		col := col
		ch := make(chan *domain.Reading, g.cfg.Policy.SourceBuffer)
		sp := pipeline.NewSourcePipeline(col.Name(), g.coord, g.obs, g.now)
		g.pipes.Go(func() error {
			sp.Run(pipeCtx, ch)
			return nil
		})
		g.pipeN++

		// A source that cannot start must not keep the others from running.
		if err := g.startCollector(col, ch); err != nil {
			g.obs.LogError("collector_start_failed", err, ports.Field{Key: "collector", Value: col.Name()})
			g.loops.Go(func() error {
				g.retryCollector(loopCtx, col, ch)
				return nil
			})
		}
	}

	if addr := g.cfg.Metrics.Addr; addr != "" {
		if err := g.startOps(addr); err != nil {
			g.stopLocked(ctx)
			return err
		}
	}

	g.started = true
	return nil
}

// Run starts the gateway and blocks until ctx is cancelled, then shuts down.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), g.cfg.Policy.ShutdownTimeout+g.cfg.Sink.AppendTimeout)
	defer cancel()
	return g.Shutdown(shutdownCtx)
}

// Shutdown stops collectors first, then lets each pipeline finish the readings it already
// holds, within policy.shutdown_timeout. Records still in flight at that point are handled
// by the next start (queued or, at worst, lost with a critical log).
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if !g.started {
		return errors.Join(g.closers.closeAll()...)
	}
	g.started = false
	return g.stopLocked(ctx)
}

func (g *Gateway) stopLocked(ctx context.Context) error {
	var errs []error

	if g.loops != nil {
		g.loops.Kill(nil)
	}
	if g.opsSrv != nil {
		if err := g.opsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		g.opsSrv = nil
	}

	g.colMu.Lock()
	g.stopping = true
	running := g.running
	g.running = nil
	g.colMu.Unlock()
	for i := len(running) - 1; i >= 0; i-- {
		col := running[i]
		if err := col.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", col.Name(), err))
		}
	}

	budget := time.NewTimer(g.cfg.Policy.ShutdownTimeout)
	defer budget.Stop()
	// A tomb with no goroutines never reports Dead, so only wait on populated ones.
	var waits []*tomb.Tomb
	if g.pipes != nil && g.pipeN > 0 {
		waits = append(waits, g.pipes)
	}
	if g.loops != nil {
		waits = append(waits, g.loops)
	}
	for _, t := range waits {
		t.Kill(nil)
		select {
		case <-t.Dead():
		case <-budget.C:
			errs = append(errs, ErrShutdownTimeout)
			g.obs.LogCritical("shutdown_timeout", ErrShutdownTimeout, ports.Field{Key: "queued", Value: g.queue.Len()})
			return errors.Join(append(errs, g.closers.closeAll()...)...)
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		}
	}
	g.pipes, g.loops = nil, nil

	errs = append(errs, g.closers.closeAll()...)
	g.obs.LogInfo("gateway_stopped", ports.Field{Key: "queued", Value: g.queue.Len()})
	return errors.Join(errs...)
}

func (g *Gateway) startCollector(col ports.Collector, out chan<- *domain.Reading) error {
	g.colMu.Lock()
	defer g.colMu.Unlock()
	if g.stopping {
		return errGatewayStopping
	}
	if err := col.Start(out); err != nil {
		return err
	}
	g.running = append(g.running, col)
	g.obs.LogInfo("collector_started", ports.Field{Key: "collector", Value: col.Name()})
	return nil
}

// retryCollector keeps starting col with policy backoff until it runs or the gateway stops.
func (g *Gateway) retryCollector(ctx context.Context, col ports.Collector, out chan<- *domain.Reading) {
	for attempt := 1; ; attempt++ {
		if !source.Sleep(ctx, g.cfg.Policy.Backoff(attempt)) {
			return
		}
		err := g.startCollector(col, out)
		if err == nil || errors.Is(err, errGatewayStopping) {
			return
		}
		g.obs.LogError("collector_start_failed", err,
			ports.Field{Key: "collector", Value: col.Name()},
			ports.Field{Key: "attempt", Value: attempt + 1})
	}
}

// Drain replays the queue now, connecting the sink first if needed.
func (g *Gateway) Drain(ctx context.Context) (DrainResult, error) {
	snk := g.connect(ctx)
	if snk == nil {
		return DrainResult{}, ErrSinkUnavailable
	}
	return g.recon.Drain(ctx, snk)
}

// Status reports sink presence, queue depth and the configured and running collectors.
func (g *Gateway) Status() Status {
	st := Status{
		Pending:  g.queue.Pending(),
		QueueLen: g.queue.Len(),
	}
	if snk := g.session.Current(); snk != nil {
		st.Online = true
		st.Sink = snk.Name()
	}
	for _, c := range g.collectors {
		st.Collectors = append(st.Collectors, c.Name())
	}
	g.colMu.Lock()
	for _, c := range g.running {
		st.Running = append(st.Running, c.Name())
	}
	g.colMu.Unlock()
	return st
}

// OpsAddr is the bound address of the ops server, empty when disabled.
func (g *Gateway) OpsAddr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.opsAddr
}

// connect tries to bring the session online and drains on the absent→present transition.
func (g *Gateway) connect(ctx context.Context) ports.RemoteSink {
	if snk := g.session.Current(); snk != nil {
		return snk
	}
	cctx, cancel := context.WithTimeout(ctx, g.cfg.Sink.AppendTimeout)
	snk, connected, err := g.session.Connect(cctx)
	cancel()
	if err != nil {
		if !errors.Is(err, pipeline.ErrSinkUnavailable) {
			g.obs.LogError("sink_connect_failed", err, ports.Field{Key: "kind", Value: g.cfg.Sink.Kind})
		}
		return nil
	}
	if connected {
		g.obs.LogInfo("sink_connected", ports.Field{Key: "sink", Value: snk.Name()})
	}
	return snk
}

func (g *Gateway) drain(ctx context.Context, snk ports.RemoteSink, trigger string) {
	res, err := g.recon.Drain(ctx, snk)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrDrainInProgress), errors.Is(err, pipeline.ErrDrainStopped):
		// Logged by the reconciler; the next tick retries.
	default:
		g.obs.LogError("drain_failed", err, ports.Field{Key: "trigger", Value: trigger})
		return
	}
	if res.Delivered > 0 {
		g.obs.LogInfo("drain_finished",
			ports.Field{Key: "trigger", Value: trigger},
			ports.Field{Key: "drain_id", Value: res.ID},
			ports.Field{Key: "delivered", Value: res.Delivered},
			ports.Field{Key: "queued", Value: res.Queued})
	}
}

// maintain retries the sink while it is absent and drains whenever records are pending.
func (g *Gateway) maintain(ctx context.Context) {
	every := g.cfg.Sink.ConnectInterval
	if every <= 0 {
		every = 5 * time.Second
	}
	connectT := time.NewTicker(every)
	defer connectT.Stop()

	var drainC <-chan time.Time
	if g.cfg.Sink.DrainInterval > 0 {
		drainT := time.NewTicker(g.cfg.Sink.DrainInterval)
		defer drainT.Stop()
		drainC = drainT.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-connectT.C:
			if g.session.Online() {
				continue
			}
			if snk := g.connect(ctx); snk != nil && g.queue.Pending() {
				g.drain(ctx, snk, "connect")
			}
		case <-drainC:
			if snk := g.session.Current(); snk != nil && g.queue.Pending() {
				g.drain(ctx, snk, "periodic")
			}
		}
	}
}

func (g *Gateway) startOps(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ops listen %s: %w", addr, err)
	}
	var gatherer prometheus.Gatherer
	if g.registry != nil {
		gatherer = g.registry
	}
	srv := &http.Server{Handler: g.opsHandler(gatherer), ReadHeaderTimeout: 5 * time.Second}
	g.opsSrv = srv
	g.opsAddr = ln.Addr().String()

	g.loops.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.obs.LogError("ops_server_exited", err, ports.Field{Key: "addr", Value: addr})
		}
		return nil
	})
	g.obs.LogInfo("ops_server_listening", ports.Field{Key: "addr", Value: g.opsAddr})
	return nil
}
