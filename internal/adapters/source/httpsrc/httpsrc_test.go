package httpsrc

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/observability"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

func startCollector(t *testing.T, out chan *domain.Reading) *Collector {
	t.Helper()
	c, err := NewCollector(Config{Addr: "127.0.0.1:0"}, observability.New(zerolog.Nop(), nil))
	require.NoError(t, err)
	require.NoError(t, c.Start(out))
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func post(t *testing.T, c *Collector, path, body string) int {
	t.Helper()
	resp, err := http.Post("http://"+c.Addr()+path, "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestConfigRequiresAddr(t *testing.T) {
	_, err := NewCollector(Config{}, nil)
	assert.ErrorIs(t, err, source.ErrNotConfigured)
}

func TestPostAccepted(t *testing.T) {
	out := make(chan *domain.Reading, 4)
	c := startCollector(t, out)
	assert.ErrorIs(t, c.Start(out), source.ErrAlreadyStarted)

	assert.Equal(t, http.StatusAccepted, post(t, c, "/v1/readings", "ST,GS,+00123.45 kg\r\n"))
	assert.Equal(t, http.StatusAccepted, post(t, c, "/v1/readings/dock-2", "-7"))

	first := <-out
	assert.Equal(t, "ST,GS,+00123.45 kg", first.Raw)
	assert.Equal(t, domain.Metadata{"source": "http", "addr": "127.0.0.1:0"}, first.Tag)

	second := <-out
	assert.Equal(t, "-7", second.Raw)
	assert.Equal(t, "dock-2", second.Tag["device"])
}

func TestPostRejectsBadBodies(t *testing.T) {
	out := make(chan *domain.Reading, 1)
	c := startCollector(t, out)

	assert.Equal(t, http.StatusBadRequest, post(t, c, "/v1/readings", "  \n"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(t, c, "/v1/readings", strings.Repeat("9", defaultMaxBody+1)))
	assert.Empty(t, out)

	resp, err := http.Get("http://" + c.Addr() + "/v1/readings")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPostDuringStopReturnsUnavailable(t *testing.T) {
	out := make(chan *domain.Reading) // nobody reads
	c := startCollector(t, out)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+c.Addr()+"/v1/readings", "text/plain", strings.NewReader("5"))
		if err != nil {
			status <- -1
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Stop())

	select {
	case code := <-status:
		assert.Equal(t, http.StatusServiceUnavailable, code)
	case <-time.After(3 * time.Second):
		t.Fatal("request never completed")
	}
}
