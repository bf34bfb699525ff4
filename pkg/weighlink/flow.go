package weighlink

import (
	"context"
	"errors"
	"fmt"
)

// Flow reads left to right: Conf loads where readings come from and where they go,
// StreamIN adds or replaces inputs, StreamOUT picks the delivery side and builds the Gateway.
//
//	flow, err := weighlink.Conf("weighlink.yaml")
//	...
//	gw, err := flow.
//		StreamIN(weighlink.StreamInSerial("/dev/ttyUSB0", 9600)).
//		StreamOUT(weighlink.StreamOutCallback("print", handle))
type Flow struct {
	cfg  *Config
	opts []GatewayOption
	err  error
}

// FlowOption mutates the Flow right after its configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures sources and the local queue.
type StreamInOption func(*Flow)

// StreamOutOption configures the remote sink and its throttling.
type StreamOutOption func(*Flow)

// Conf loads YAML from path. A load error is returned here; errors raised by later
// builder steps surface from StreamOUT.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from an in-memory Config, which the builder may modify.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, f.err
}

func (f *Flow) Config() *Config { return f.cfg }

// Options appends raw GatewayOption values.
func (f *Flow) Options(opts ...GatewayOption) *Flow {
	f.use(opts...)
	return f
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT applies opts and builds the Gateway. It does not start it.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Gateway, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return NewGateway(f.cfg, f.opts...)
}

// Run builds the Gateway and runs it until ctx ends.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	gw, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return gw.Run(ctx)
}

func WithFlowOptions(opts ...GatewayOption) FlowOption {
	return func(f *Flow) { f.use(opts...) }
}

// StreamInCollector adds collectors next to the configured sources (simulators, custom
// transports, a Publisher).
func StreamInCollector(cols ...Collector) StreamInOption {
	return func(f *Flow) {
		if len(cols) > 0 {
			f.use(WithCollectors(cols...))
		}
	}
}

// StreamInSerial adds a serial scale; baud 0 means 9600.
func StreamInSerial(port string, baud int) StreamInOption {
	return func(f *Flow) {
		if port == "" {
			f.fail(errors.New("serial port is required"))
			return
		}
		f.cfg.Sources.Serial = append(f.cfg.Sources.Serial, SerialConfig{Port: port, Baud: baud})
	}
}

// StreamInHTTP accepts readings posted to addr.
func StreamInHTTP(addr string) StreamInOption {
	return func(f *Flow) {
		if addr == "" {
			f.fail(errors.New("http source address is required"))
			return
		}
		f.cfg.Sources.HTTP.Addr = addr
	}
}

// StreamInQueue swaps the CSV queue for a caller-provided implementation.
func StreamInQueue(q DurableQueue) StreamInOption {
	return func(f *Flow) {
		if q != nil {
			f.use(WithQueue(q))
		}
	}
}

// StreamInObservability overrides the default zerolog + Prometheus stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if obs != nil {
			f.use(WithObservability(obs))
		}
	}
}

// StreamOutSink delivers to an already-connected sink instead of sink.kind.
func StreamOutSink(s RemoteSink) StreamOutOption {
	return func(f *Flow) {
		if s != nil {
			f.use(WithSink(s))
		}
	}
}

// StreamOutSinkFactory delivers to a sink the gateway opens itself and retries every
// connect_interval until it succeeds.
func StreamOutSinkFactory(fn SinkFactory) StreamOutOption {
	return func(f *Flow) {
		if fn != nil {
			f.use(WithSinkFactory(fn))
		}
	}
}

// StreamOutObservability is StreamInObservability, kept for builder symmetry.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if obs != nil {
			f.use(WithObservability(obs))
		}
	}
}

// StreamOutCallback hands every delivered record to fn. A returning error queues it.
func StreamOutCallback(name string, fn RecordHandler) StreamOutOption {
	return func(f *Flow) {
		if fn == nil {
			f.fail(errors.New("callback is required"))
			return
		}
		f.use(WithSink(NewCallbackSink(name, fn)))
	}
}

// StreamOutQueueOnly runs without a remote sink; every record lands in the queue until a
// later run (or the drain command) delivers it.
func StreamOutQueueOnly() StreamOutOption {
	return func(f *Flow) {
		f.cfg.Sink.Kind = SinkNone
	}
}

// StreamOutRateLimit throttles the configured sink.kind to perSecond appends.
func StreamOutRateLimit(perSecond float64, burst int) StreamOutOption {
	return func(f *Flow) {
		if perSecond < 0 || burst < 0 {
			f.fail(fmt.Errorf("invalid rate limit %v/%d", perSecond, burst))
			return
		}
		f.cfg.Sink.RateLimit = perSecond
		f.cfg.Sink.Burst = burst
		if perSecond > 0 && burst == 0 {
			f.cfg.Sink.Burst = 1
		}
	}
}

func (f *Flow) use(opts ...GatewayOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}

func (f *Flow) fail(err error) {
	f.err = errors.Join(f.err, err)
}
