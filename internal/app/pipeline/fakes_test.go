package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

var errRemote = errors.New("remote: 503 backend unavailable")

// fakeSink records accepted rows; fail decides per call (1-based) whether to reject.
type fakeSink struct {
	mu    sync.Mutex
	calls int
	rows  []*domain.Record
	fail  func(call int, r *domain.Record) bool
	delay time.Duration
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Append(ctx context.Context, r *domain.Record) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil && f.fail(f.calls, r) {
		return errRemote
	}
	f.rows = append(f.rows, r)
	return nil
}

func (f *fakeSink) accepted() []*domain.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Record, len(f.rows))
	copy(out, f.rows)
	return out
}

type nopObs struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

func (o *nopObs) LogInfo(msg string, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.infos = append(o.infos, msg)
}

func (o *nopObs) LogError(msg string, _ error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, msg)
}

func (o *nopObs) LogCritical(msg string, err error, f ...ports.Field) { o.LogError(msg, err, f...) }
func (o *nopObs) IncCounter(string, float64)                          {}
func (o *nopObs) ObserveLatency(string, float64)                      {}
func (o *nopObs) SetGauge(string, float64)                            {}

func rec(raw string) *domain.Record {
	d, _, err := apd.NewFromString(raw)
	if err != nil {
		panic(err)
	}
	return &domain.Record{
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Value:     d,
		Raw:       raw,
		Metadata:  domain.Metadata{"source": "test"},
	}
}

func raws(recs []*domain.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Raw
	}
	return out
}
