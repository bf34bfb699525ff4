package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

func TestCleanPayload(t *testing.T) {
	assert.Equal(t, "+00123.45 kg", CleanPayload([]byte(" +00123.45 kg\r\n\x00")))
	assert.Equal(t, "12kg", CleanPayload([]byte{'1', '2', 0xff, 'k', 'g'}))
	assert.Equal(t, "", CleanPayload(nil))
}

func TestEmitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan *domain.Reading)
	assert.False(t, Emit(ctx, out, &domain.Reading{Raw: "1"}))

	buffered := make(chan *domain.Reading, 1)
	assert.True(t, Emit(context.Background(), buffered, &domain.Reading{Raw: "1"}))
}

func TestEmitKeepsReadingThatFitsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan *domain.Reading, 8)
	for i := 0; i < 8; i++ {
		assert.True(t, Emit(ctx, out, &domain.Reading{Raw: "1"}), "send %d", i)
	}
	assert.Len(t, out, 8)
	assert.False(t, Emit(ctx, out, &domain.Reading{Raw: "full"}))
}

func TestSleep(t *testing.T) {
	assert.True(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, time.Hour))
}
