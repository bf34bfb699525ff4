package weighlink

import (
	base "github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/pkg/weighlink"
)

// Re-exported errors for convenience.
var (
	ErrSinkUnavailable     = base.ErrSinkUnavailable
	ErrDrainStopped        = base.ErrDrainStopped
	ErrDrainInProgress     = base.ErrDrainInProgress
	ErrQueueAppend         = base.ErrQueueAppend
	ErrChannelSinkClosed   = base.ErrChannelSinkClosed
	ErrPublisherNotStarted = base.ErrPublisherNotStarted
	ErrPublisherClosed     = base.ErrPublisherClosed
	ErrGatewayStarted      = base.ErrGatewayStarted
	ErrGatewayClosed       = base.ErrGatewayClosed
	ErrShutdownTimeout     = base.ErrShutdownTimeout
)

// Type aliases so consumers can import the module root directly.
type (
	Config          = base.Config
	Policy          = base.Policy
	SinkConfig      = base.SinkConfig
	SheetsConfig    = base.SheetsConfig
	PostgresConfig  = base.PostgresConfig
	SourcesConfig   = base.SourcesConfig
	OPCUAConfig     = base.OPCUAConfig
	MetricsConfig   = base.MetricsConfig
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Gateway         = base.Gateway
	GatewayOption   = base.GatewayOption
	Status          = base.Status
	Reading         = base.Reading
	Record          = base.Record
	Metadata        = base.Metadata
	RecordHandler   = base.RecordHandler
	Collector       = base.Collector
	RemoteSink      = base.RemoteSink
	SinkFactory     = base.SinkFactory
	DurableQueue    = base.DurableQueue
	Observability   = base.Observability
	DrainResult     = base.DrainResult
	Publisher       = base.Publisher
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...GatewayOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCollector(cols ...Collector) StreamInOption {
	return base.StreamInCollector(cols...)
}

func StreamInSerial(port string, baud int) StreamInOption {
	return base.StreamInSerial(port, baud)
}

func StreamInHTTP(addr string) StreamInOption {
	return base.StreamInHTTP(addr)
}

func StreamInQueue(q DurableQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s RemoteSink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutSinkFactory(f SinkFactory) StreamOutOption {
	return base.StreamOutSinkFactory(f)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn RecordHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

func StreamOutQueueOnly() StreamOutOption {
	return base.StreamOutQueueOnly()
}

func StreamOutRateLimit(perSecond float64, burst int) StreamOutOption {
	return base.StreamOutRateLimit(perSecond, burst)
}

// Gateway and options.
func NewGateway(cfg *Config, opts ...GatewayOption) (*Gateway, error) {
	return base.NewGateway(cfg, opts...)
}

func WithCollectors(cols ...Collector) GatewayOption {
	return base.WithCollectors(cols...)
}

func WithSink(s RemoteSink) GatewayOption {
	return base.WithSink(s)
}

func WithSinkFactory(f SinkFactory) GatewayOption {
	return base.WithSinkFactory(f)
}

func WithQueue(q DurableQueue) GatewayOption {
	return base.WithQueue(q)
}

func WithObservability(obs Observability) GatewayOption {
	return base.WithObservability(obs)
}

// Sink adapters.
func NewCallbackSink(name string, fn RecordHandler) RemoteSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (RemoteSink, <-chan *Record, func()) {
	return base.NewChannelSink(name, buffer)
}

// Programmatic input.
func NewPublisher(name string) *Publisher {
	return base.NewPublisher(name)
}
