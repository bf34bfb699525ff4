package weighlink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

func TestPublisherLifecycle(t *testing.T) {
	pub := NewPublisher("")
	if pub.Name() != "publisher:publisher" {
		t.Fatalf("unexpected default name %s", pub.Name())
	}
	ctx := context.Background()
	if err := pub.Publish(ctx, "1", nil); !errors.Is(err, ErrPublisherNotStarted) {
		t.Fatalf("expected ErrPublisherNotStarted, got %v", err)
	}

	out := make(chan *domain.Reading, 1)
	if err := pub.Start(out); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pub.Publish(ctx, "   ", nil); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	if err := pub.Publish(ctx, " 12.5 kg ", Metadata{"name": "dock", "line": 2}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	r := <-out
	if r.Raw != "12.5 kg" || r.Tag["source"] != "publisher" || r.Tag["name"] != "dock" || r.Tag["line"] != 2 {
		t.Fatalf("unexpected reading %+v", r)
	}

	if err := pub.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := pub.Publish(ctx, "1", nil); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("expected ErrPublisherClosed, got %v", err)
	}
}

func TestPublisherUnblocksOnStop(t *testing.T) {
	pub := NewPublisher("blocked")
	if err := pub.Start(make(chan *domain.Reading)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- pub.Publish(context.Background(), "5", nil) }()
	time.Sleep(20 * time.Millisecond)
	_ = pub.Stop()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPublisherClosed) {
			t.Fatalf("expected ErrPublisherClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Publish stayed blocked after Stop")
	}
}
