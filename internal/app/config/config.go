package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/sink"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/ble"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/httpsrc"
	natssrc "github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/nats"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/opcua"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/serial"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

const (
	SinkSheets   = "sheets"
	SinkPostgres = "postgres"
	SinkNone     = "none"
)

type Config struct {
	Policy  ports.Policy  `yaml:"policy"`
	Queue   QueueConfig   `yaml:"queue"`
	Sink    SinkConfig    `yaml:"sink"`
	Sources SourcesConfig `yaml:"sources"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type QueueConfig struct {
	Path string `yaml:"path"`
}

type SinkConfig struct {
	Kind            string        `yaml:"kind"`
	ConnectInterval time.Duration `yaml:"connect_interval"`
	// DrainInterval is how often pending records are retried; negative disables.
	DrainInterval time.Duration `yaml:"drain_interval"`
	AppendTimeout time.Duration `yaml:"append_timeout"`
	// RateLimit caps appends per second; zero means unlimited.
	RateLimit float64             `yaml:"rate_limit"`
	Burst     int                 `yaml:"burst"`
	Sheets    sink.SheetsConfig   `yaml:"sheets"`
	Postgres  sink.PostgresConfig `yaml:"postgres"`
}

// SourcesConfig lists the transports to watch. An empty section is simply not started.
type SourcesConfig struct {
	Serial []serial.Config  `yaml:"serial"`
	BLE    []ble.Config     `yaml:"ble"`
	OPCUA  opcua.Config     `yaml:"opcua"`
	NATS   []natssrc.Config `yaml:"nats"`
	HTTP   httpsrc.Config   `yaml:"http"`
}

type MetricsConfig struct {
	// Addr serves /healthz and /metrics; empty disables the ops server.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, fills defaults and validates.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default is the configuration of an empty file: no sources, Sheets sink unconfigured.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Policy.PollInterval <= 0 {
		c.Policy.PollInterval = time.Second
	}
	if c.Policy.RetryBackoff <= 0 {
		c.Policy.RetryBackoff = 2 * time.Second
	}
	if c.Policy.MaxRetryBackoff <= 0 {
		c.Policy.MaxRetryBackoff = 30 * time.Second
	}
	if c.Policy.SourceBuffer <= 0 {
		c.Policy.SourceBuffer = 64
	}
	if c.Policy.ShutdownTimeout <= 0 {
		c.Policy.ShutdownTimeout = 2 * time.Second
	}

	if c.Queue.Path == "" {
		c.Queue.Path = "./data/buffered_readings.csv"
	}

	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
	if c.Sink.Kind == "" {
		c.Sink.Kind = SinkSheets
	}
	if c.Sink.ConnectInterval <= 0 {
		c.Sink.ConnectInterval = 5 * time.Second
	}
	if c.Sink.DrainInterval == 0 {
		c.Sink.DrainInterval = 30 * time.Second
	}
	if c.Sink.AppendTimeout <= 0 {
		c.Sink.AppendTimeout = 10 * time.Second
	}
	if c.Sink.RateLimit > 0 && c.Sink.Burst <= 0 {
		c.Sink.Burst = 1
	}
	if c.Sink.Sheets.Range == "" {
		c.Sink.Sheets.Range = "Sheet1"
	}
	if c.Sink.Postgres.Table == "" {
		c.Sink.Postgres.Table = "readings"
	}

	for i := range c.Sources.Serial {
		c.Sources.Serial[i].ApplyDefaults()
	}
	for i := range c.Sources.BLE {
		c.Sources.BLE[i].ApplyDefaults()
	}
	if c.Sources.OPCUA.Endpoint != "" {
		c.Sources.OPCUA.ApplyDefaults()
	}
	for i := range c.Sources.NATS {
		c.Sources.NATS[i].ApplyDefaults()
	}
	if c.Sources.HTTP.Addr != "" {
		c.Sources.HTTP.ApplyDefaults()
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Queue.Path == "" {
		errs = append(errs, errors.New("queue.path is required"))
	}
	switch c.Sink.Kind {
	case SinkSheets, SinkPostgres, SinkNone:
	default:
		errs = append(errs, fmt.Errorf("sink.kind %q: want sheets, postgres or none", c.Sink.Kind))
	}
	if c.Sink.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("sink.rate_limit must not be negative, got %v", c.Sink.RateLimit))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SourceProblems lists source entries that cannot run. They do not fail Load: the gateway
// logs and skips them and starts the remaining sources.
func (c *Config) SourceProblems() []error {
	var errs []error
	for i := range c.Sources.Serial {
		if err := c.Sources.Serial[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sources.serial[%d]: %w", i, err))
		}
	}
	for i := range c.Sources.BLE {
		if err := c.Sources.BLE[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sources.ble[%d]: %w", i, err))
		}
	}
	if c.Sources.OPCUA.Endpoint != "" {
		if err := c.Sources.OPCUA.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sources.opcua: %w", err))
		}
	}
	for i := range c.Sources.NATS {
		if err := c.Sources.NATS[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sources.nats[%d]: %w", i, err))
		}
	}
	return errs
}
