package weighlink

import (
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/app/pipeline"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// Reading is a raw payload emitted by a collector before parsing.
type Reading = domain.Reading

// Record is the parsed, timestamped unit written to the sink or the queue.
type Record = domain.Record

// Metadata is the free-form tag carried by readings and records.
type Metadata = domain.Metadata

// Collector streams readings from one transport (serial, BLE, OPC UA, NATS, HTTP, custom).
type Collector = ports.Collector

// RemoteSink accepts one record per call; it is the primary destination.
type RemoteSink = ports.RemoteSink

// SinkFactory opens the remote sink; the gateway retries it until it succeeds.
type SinkFactory = ports.SinkFactory

// DurableQueue is the local FIFO that holds records the sink did not accept.
type DurableQueue = ports.DurableQueue

// Observability receives logs and process metrics.
type Observability = ports.Observability

// Field is a structured log field.
type Field = ports.Field

// Outcome reports where a record ended up.
type Outcome = pipeline.Outcome

// DrainResult summarises one replay of the queue.
type DrainResult = pipeline.DrainResult

const (
	OutcomeDelivered = pipeline.OutcomeDelivered
	OutcomeQueued    = pipeline.OutcomeQueued
	OutcomeLost      = pipeline.OutcomeLost
	OutcomeDropped   = pipeline.OutcomeDropped
)

var (
	ErrSinkUnavailable = pipeline.ErrSinkUnavailable
	ErrDrainStopped    = pipeline.ErrDrainStopped
	ErrDrainInProgress = pipeline.ErrDrainInProgress
	ErrQueueAppend     = pipeline.ErrQueueAppend
)
