package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

func TestObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := New(zerolog.Nop(), reg)

	obs.IncCounter(RecordsDelivered, 5)
	if got := testutil.ToFloat64(obs.counters[RecordsDelivered]); got != 5 {
		t.Fatalf("expected delivered counter 5, got %f", got)
	}

	obs.IncCounter(RecordsQueued, 2)
	if got := testutil.ToFloat64(obs.counters[RecordsQueued]); got != 2 {
		t.Fatalf("expected queued counter 2, got %f", got)
	}

	obs.SetGauge(QueueLength, 42)
	if got := testutil.ToFloat64(obs.gauges[QueueLength]); got != 42 {
		t.Fatalf("expected queue gauge 42, got %f", got)
	}

	obs.ObserveLatency(SinkAppend, 0.5)
	hCollector := obs.histos[SinkAppend].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	// Unknown names are ignored.
	obs.IncCounter("nope", 1)
	obs.SetGauge("nope", 1)
}

func TestObsWithoutRegistry(t *testing.T) {
	obs := New(zerolog.Nop(), nil)
	obs.IncCounter(RecordsDelivered, 1)
	if len(obs.counters) != 0 {
		t.Fatalf("expected no counters without a registry")
	}
}

func TestObsLogsFields(t *testing.T) {
	var buf bytes.Buffer
	obs := New(zerolog.New(&buf), nil)

	obs.LogCritical("queue_append_failed", errors.New("disk full"),
		ports.Field{Key: "source", Value: "serial"},
		ports.Field{Key: "raw", Value: "+0012.0 kg"})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "queue_append_failed" || line["error"] != "disk full" {
		t.Fatalf("unexpected log line %v", line)
	}
	if line["source"] != "serial" || line["critical"] != true {
		t.Fatalf("expected fields in log line, got %v", line)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
	if ParseLevel("DEBUG") != zerolog.DebugLevel || ParseLevel("bogus") != zerolog.InfoLevel {
		t.Fatalf("unexpected level parsing")
	}
}
