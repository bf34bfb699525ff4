package serial

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/observability"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// scriptedPort serves chunks in order, then behaves like an idle port until closed.
type scriptedPort struct {
	mu     sync.Mutex
	chunks [][]byte
	err    error
	closed bool
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) > 0 {
		n := copy(b, p.chunks[0])
		p.chunks = p.chunks[1:]
		return n, nil
	}
	if p.err != nil {
		err := p.err
		p.err = nil
		return 0, err
	}
	return 0, nil
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func testPolicy() ports.Policy {
	return ports.Policy{PollInterval: 10 * time.Millisecond, RetryBackoff: time.Millisecond, MaxRetryBackoff: 2 * time.Millisecond}
}

func nopObs() ports.Observability {
	return observability.New(zerolog.Nop(), nil)
}

func receive(t *testing.T, out <-chan *domain.Reading, n int) []*domain.Reading {
	t.Helper()
	got := make([]*domain.Reading, 0, n)
	for len(got) < n {
		select {
		case r := <-out:
			got = append(got, r)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d readings", len(got), n)
		}
	}
	return got
}

func TestConfigValidation(t *testing.T) {
	_, err := NewCollector(Config{}, testPolicy(), nopObs())
	assert.ErrorIs(t, err, source.ErrNotConfigured)

	c, err := NewCollector(Config{Port: "/dev/rfcomm0"}, testPolicy(), nopObs())
	require.NoError(t, err)
	assert.Equal(t, 9600, c.cfg.Baud)
	assert.Equal(t, "serial:/dev/rfcomm0", c.Name())
}

func TestCollectorSplitsLines(t *testing.T) {
	port := &scriptedPort{chunks: [][]byte{
		[]byte("ST,GS,+00"),
		[]byte("123.45 kg\r\n\r\n"),
		[]byte("-12\nnoise\n"),
	}}
	var opens atomic.Int32
	opener := func(name string, baud int, readTimeout time.Duration) (io.ReadCloser, error) {
		opens.Add(1)
		assert.Equal(t, "COM4", name)
		assert.Equal(t, 115200, baud)
		assert.Equal(t, 10*time.Millisecond, readTimeout)
		return port, nil
	}

	c, err := NewCollector(Config{Port: "COM4", Baud: 115200}, testPolicy(), nopObs(), WithOpener(opener))
	require.NoError(t, err)

	out := make(chan *domain.Reading, 8)
	require.NoError(t, c.Start(out))
	assert.ErrorIs(t, c.Start(out), source.ErrAlreadyStarted)

	got := receive(t, out, 3)
	require.NoError(t, c.Stop())

	assert.Equal(t, "ST,GS,+00123.45 kg", got[0].Raw)
	assert.Equal(t, "-12", got[1].Raw)
	assert.Equal(t, "noise", got[2].Raw)
	assert.Equal(t, domain.Metadata{"source": "serial", "port": "COM4"}, got[0].Tag)
	assert.Equal(t, int32(1), opens.Load())
	assert.True(t, port.closed)
}

func TestCollectorReopensAfterFailures(t *testing.T) {
	var opens atomic.Int32
	opener := func(string, int, time.Duration) (io.ReadCloser, error) {
		switch opens.Add(1) {
		case 1:
			return nil, errors.New("no such device")
		case 2:
			return &scriptedPort{chunks: [][]byte{[]byte("1\n")}, err: errors.New("device unplugged")}, nil
		default:
			return &scriptedPort{chunks: [][]byte{[]byte("2\n")}}, nil
		}
	}

	c, err := NewCollector(Config{Port: "/dev/ttyUSB0"}, testPolicy(), nopObs(), WithOpener(opener))
	require.NoError(t, err)

	out := make(chan *domain.Reading, 8)
	require.NoError(t, c.Start(out))
	got := receive(t, out, 2)
	require.NoError(t, c.Stop())

	assert.Equal(t, "1", got[0].Raw)
	assert.Equal(t, "2", got[1].Raw)
	assert.GreaterOrEqual(t, opens.Load(), int32(3))
}

func TestStopWithoutStart(t *testing.T) {
	c, err := NewCollector(Config{Port: "COM1"}, testPolicy(), nopObs())
	require.NoError(t, err)
	assert.NoError(t, c.Stop())
}
