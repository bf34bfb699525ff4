package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
queue:
  path: /var/lib/weighlink/buffered_readings.csv
sink:
  kind: Sheets
  sheets:
    credentials_file: creds.json
    spreadsheet_id: 1AbC
sources:
  serial:
    - port: /dev/rfcomm0
  opcua:
    endpoint: opc.tcp://localhost:4840
    nodes:
      - node_id: "ns=2;s=Scale.Weight"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Policy.PollInterval != time.Second {
		t.Fatalf("expected PollInterval default 1s, got %s", cfg.Policy.PollInterval)
	}
	if cfg.Policy.SourceBuffer != 64 {
		t.Fatalf("expected SourceBuffer default 64, got %d", cfg.Policy.SourceBuffer)
	}
	if cfg.Sink.Kind != SinkSheets {
		t.Fatalf("expected sink kind normalised to sheets, got %q", cfg.Sink.Kind)
	}
	if cfg.Sink.Sheets.Range != "Sheet1" {
		t.Fatalf("expected default range Sheet1, got %s", cfg.Sink.Sheets.Range)
	}
	if cfg.Sink.DrainInterval != 30*time.Second || cfg.Sink.AppendTimeout != 10*time.Second {
		t.Fatalf("unexpected sink timings: %+v", cfg.Sink)
	}
	if cfg.Sources.Serial[0].Baud != 9600 {
		t.Fatalf("expected serial baud default 9600, got %d", cfg.Sources.Serial[0].Baud)
	}
	if cfg.Sources.OPCUA.Nodes[0].Scale != "ns=2;s=Scale.Weight" {
		t.Fatalf("expected scale fallback to node ID, got %s", cfg.Sources.OPCUA.Nodes[0].Scale)
	}
	if cfg.Metrics.Addr != "" {
		t.Fatalf("expected ops server disabled by default, got %s", cfg.Metrics.Addr)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestEmptyConfigIsValid(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Queue.Path != "./data/buffered_readings.csv" {
		t.Fatalf("expected default queue path, got %s", cfg.Queue.Path)
	}
	if cfg.Sink.Sheets.SpreadsheetID != "" {
		t.Fatalf("missing credentials must stay empty, not fail")
	}
	if !reflect.DeepEqual(Default(), cfg) {
		t.Fatalf("Default() differs from an empty file")
	}
}

func TestNegativeDrainIntervalDisables(t *testing.T) {
	cfg, err := Parse([]byte("sink: {drain_interval: -1s, rate_limit: 2}"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Sink.DrainInterval >= 0 {
		t.Fatalf("expected negative drain interval kept, got %s", cfg.Sink.DrainInterval)
	}
	if cfg.Sink.Burst != 1 {
		t.Fatalf("expected burst default 1 when rate limited, got %d", cfg.Sink.Burst)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	_, err := Parse([]byte(`
sink: {kind: s3}
log: {format: xml}
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"sink.kind", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestBrokenSourceDoesNotFailConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
sources:
  serial: [{port: ""}, {port: /dev/ttyUSB0}]
  nats: [{url: "nats://localhost:4222"}, {subject: scales.raw}]
  opcua:
    endpoint: opc.tcp://plc:4840
    nodes: [{node_id: "not a node"}]
`))
	if err != nil {
		t.Fatalf("broken sources must not fail the config: %v", err)
	}
	if len(cfg.Sources.Serial) != 2 || len(cfg.Sources.NATS) != 2 {
		t.Fatalf("source entries must be kept for the gateway to report, got %+v", cfg.Sources)
	}

	problems := cfg.SourceProblems()
	if len(problems) != 3 {
		t.Fatalf("expected 3 source problems, got %d: %v", len(problems), problems)
	}
	for i, want := range []string{"sources.serial[0]", "sources.opcua", "sources.nats[0]"} {
		if !strings.Contains(problems[i].Error(), want) {
			t.Fatalf("problem %d = %v, want %q", i, problems[i], want)
		}
	}
}
