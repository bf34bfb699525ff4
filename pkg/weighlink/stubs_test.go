package weighlink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

type stubCollector struct{ name string }

func (s *stubCollector) Name() string                        { return s.name }
func (s *stubCollector) Start(out chan<- *domain.Reading) error { return nil }
func (s *stubCollector) Stop() error                         { return nil }

// busyCollector fails its first failures starts, like a listener whose port is taken.
type busyCollector struct {
	name     string
	failures int32
	starts   atomic.Int32
	stopped  atomic.Bool
}

func (b *busyCollector) Name() string { return b.name }

func (b *busyCollector) Start(chan<- *domain.Reading) error {
	if b.starts.Add(1) <= b.failures {
		return errors.New("listen: address already in use")
	}
	return nil
}

func (b *busyCollector) Stop() error {
	b.stopped.Store(true)
	return nil
}

// recordingSink accepts records unless failing is set.
type recordingSink struct {
	mu      sync.Mutex
	failing bool
	rows    []*Record
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Append(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("remote: 503")
	}
	s.rows = append(s.rows, r)
	return nil
}

func (s *recordingSink) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *recordingSink) raws() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Raw
	}
	return out
}

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)            {}
func (s *stubObservability) LogError(string, error, ...Field)    {}
func (s *stubObservability) LogCritical(string, error, ...Field) {}
func (s *stubObservability) IncCounter(string, float64)          {}
func (s *stubObservability) ObserveLatency(string, float64)      {}
func (s *stubObservability) SetGauge(string, float64)            {}

func record(raw, value string) *Record {
	d, _, err := apd.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return &Record{
		Timestamp: time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
		Value:     d,
		Raw:       raw,
		Metadata:  Metadata{"source": "test"},
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
