package weighlink

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []*Record
	sink := NewCallbackSink("cb", func(_ context.Context, r *Record) error {
		received = append(received, r)
		return nil
	})

	input := record("ST,GS,+00012.50 kg", "12.50")
	if err := sink.Append(context.Background(), input); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 record, got %d", len(received))
	}
	got := received[0]
	if got == input {
		t.Fatalf("handler must receive a copy")
	}
	if got.Raw != input.Raw || got.ValueText() != "12.50" {
		t.Fatalf("mismatched record payload: %+v vs %+v", got, input)
	}
	if sink.Name() != "cb" {
		t.Fatalf("unexpected name %s", sink.Name())
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if err := sink.Append(context.Background(), record("1", "1")); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 0)
	defer closeFn()

	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.Append(context.Background(), record("7", "7"))
	}()

	var got *Record
	select {
	case got = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel record")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if got.Raw != "7" {
		t.Fatalf("unexpected record: %+v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Append(ctx, record("8", "8")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled on unbuffered sink, got %v", err)
	}

	closeFn()
	if err := sink.Append(context.Background(), record("9", "9")); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
}
