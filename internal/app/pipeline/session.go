package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// ErrSinkUnavailable is returned when an operation needs a sink and the session is offline.
var ErrSinkUnavailable = errors.New("pipeline: sink unavailable")

// Session holds the possibly-absent remote sink. Once a sink is present it stays present;
// lost connectivity shows up as failed appends, not as a teardown.
type Session struct {
	mu      sync.RWMutex
	sink    ports.RemoteSink
	factory ports.SinkFactory

	connectMu sync.Mutex
}

// NewSession starts offline; Connect calls factory until it succeeds.
func NewSession(factory ports.SinkFactory) *Session {
	return &Session{factory: factory}
}

// NewOnlineSession starts with s already present.
func NewOnlineSession(s ports.RemoteSink) *Session {
	return &Session{sink: s}
}

// Current returns the sink or nil while offline.
func (s *Session) Current() ports.RemoteSink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sink
}

func (s *Session) Online() bool {
	return s.Current() != nil
}

// Connect initializes the sink if absent. connected reports whether this call performed the
// absent→present transition, which is the caller's cue to drain.
func (s *Session) Connect(ctx context.Context) (snk ports.RemoteSink, connected bool, err error) {
	if cur := s.Current(); cur != nil {
		return cur, false, nil
	}

	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	if cur := s.Current(); cur != nil {
		return cur, false, nil
	}
	if s.factory == nil {
		return nil, false, ErrSinkUnavailable
	}

	snk, err = s.factory(ctx)
	if err != nil {
		return nil, false, err
	}
	if snk == nil {
		return nil, false, ErrSinkUnavailable
	}

	s.mu.Lock()
	s.sink = snk
	s.mu.Unlock()
	return snk, true, nil
}
