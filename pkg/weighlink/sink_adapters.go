package weighlink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("weighlink: channel sink closed")

// RecordHandler receives one record per delivery. A non-nil error makes the gateway queue
// the record and retry it on the next drain.
type RecordHandler func(ctx context.Context, r *Record) error

// NewCallbackSink adapts a RecordHandler into a RemoteSink so callers can plug arbitrary
// functions without defining structs. Handlers get a private copy of each record.
func NewCallbackSink(name string, fn RecordHandler) RemoteSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes records via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown. A record is accepted
// once it is in the channel.
func NewChannelSink(name string, buffer int) (RemoteSink, <-chan *Record, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan *Record, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   RecordHandler
}

func (s *callbackSink) Append(ctx context.Context, r *domain.Record) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(ctx, r.Clone())
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan *Record
	closed chan struct{}
	mu     sync.RWMutex
	once   sync.Once
}

func (s *channelSink) Append(ctx context.Context, r *domain.Record) error {
	// The read lock keeps close from racing a send on the channel.
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- r.Clone():
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
