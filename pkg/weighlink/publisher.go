package weighlink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

var (
	// ErrPublisherNotStarted is returned by Publish before the gateway starts the publisher.
	ErrPublisherNotStarted = errors.New("weighlink: publisher not started")
	// ErrPublisherClosed is returned by Publish after the gateway stopped the publisher.
	ErrPublisherClosed = errors.New("weighlink: publisher closed")
	// ErrEmptyPayload rejects blank payloads.
	ErrEmptyPayload = errors.New("weighlink: empty payload")
)

// Publisher is a collector fed by the embedding program: anything passed to Publish goes
// through the same parse, deliver-or-queue path as a scale reading.
type Publisher struct {
	name string
	now  func() time.Time

	mu      sync.Mutex
	out     chan<- *domain.Reading
	done    chan struct{}
	stopped bool
}

func NewPublisher(name string) *Publisher {
	if name == "" {
		name = "publisher"
	}
	return &Publisher{name: name, now: time.Now}
}

func (p *Publisher) Name() string { return "publisher:" + p.name }

func (p *Publisher) Start(out chan<- *domain.Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out != nil {
		return errors.New("weighlink: publisher already started")
	}
	if p.stopped {
		return ErrPublisherClosed
	}
	p.out = out
	p.done = make(chan struct{})
	return nil
}

func (p *Publisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true
	if p.done != nil {
		close(p.done)
	}
	return nil
}

// Publish blocks until the gateway has taken the payload, the publisher stops, or ctx ends.
// tag is merged over {source: publisher, name}.
func (p *Publisher) Publish(ctx context.Context, raw string, tag Metadata) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyPayload
	}

	p.mu.Lock()
	out, done, stopped := p.out, p.done, p.stopped
	p.mu.Unlock()
	if stopped {
		return ErrPublisherClosed
	}
	if out == nil {
		return ErrPublisherNotStarted
	}

	r := &domain.Reading{
		Raw:        raw,
		Tag:        domain.Metadata{"source": "publisher", "name": p.name}.Merge(tag),
		ReceivedAt: p.now(),
	}
	select {
	case <-done:
		return ErrPublisherClosed
	case <-ctx.Done():
		return ctx.Err()
	case out <- r:
		return nil
	}
}

var _ Collector = (*Publisher)(nil)
