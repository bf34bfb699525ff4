package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// Metric names shared by the pipeline and the ops endpoint.
const (
	RecordsDelivered = "weighlink_records_delivered_total"
	RecordsQueued    = "weighlink_records_queued_total"
	RecordsDropped   = "weighlink_records_dropped_total"
	RecordsLost      = "weighlink_records_lost_total"
	RecordsDrained   = "weighlink_records_drained_total"
	QueueLength      = "weighlink_queue_length"
	SinkAppend       = "weighlink_sink_append_seconds"
)

// Obs logs through zerolog and keeps process counters in Prometheus.
type Obs struct {
	logger   zerolog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// New registers the gateway metrics on reg. A nil reg keeps logging but drops metrics.
func New(logger zerolog.Logger, reg prometheus.Registerer) *Obs {
	o := &Obs{
		logger:   logger,
		counters: map[string]prometheus.Counter{},
		gauges:   map[string]prometheus.Gauge{},
		histos:   map[string]prometheus.Observer{},
	}
	if reg == nil {
		return o
	}

	counter := func(name, help string) {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		reg.MustRegister(c)
		o.counters[name] = c
	}
	counter(RecordsDelivered, "Records accepted by the remote sink on first attempt.")
	counter(RecordsQueued, "Records appended to the local durable queue.")
	counter(RecordsDropped, "Payloads dropped because no measurement could be parsed.")
	counter(RecordsLost, "Records that could neither be delivered nor queued.")
	counter(RecordsDrained, "Queued records replayed to the remote sink.")

	queueLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: QueueLength,
		Help: "Records currently held in the durable queue.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    SinkAppend,
		Help:    "Latency of single remote sink appends.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	reg.MustRegister(queueLen, latency)
	o.gauges[QueueLength] = queueLen
	o.histos[SinkAppend] = latency
	return o
}

func (o *Obs) LogInfo(msg string, fields ...ports.Field) {
	withFields(o.logger.Info(), fields).Msg(msg)
}

func (o *Obs) LogError(msg string, err error, fields ...ports.Field) {
	withFields(o.logger.Error().Err(err), fields).Msg(msg)
}

func (o *Obs) LogCritical(msg string, err error, fields ...ports.Field) {
	withFields(o.logger.Error().Err(err).Bool("critical", true), fields).Msg(msg)
}

func (o *Obs) IncCounter(name string, v float64) {
	if c, ok := o.counters[name]; ok {
		c.Add(v)
	}
}

func (o *Obs) ObserveLatency(name string, seconds float64) {
	if h, ok := o.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (o *Obs) SetGauge(name string, v float64) {
	if g, ok := o.gauges[name]; ok {
		g.Set(v)
	}
}

func withFields(e *zerolog.Event, fields []ports.Field) *zerolog.Event {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	return e
}

var _ ports.Observability = (*Obs)(nil)
