package weighlink

import (
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/sink"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/ble"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/httpsrc"
	natssrc "github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/nats"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/opcua"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source/serial"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/app/config"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy holds source timing and buffering.
	Policy         = ports.Policy
	QueueConfig    = config.QueueConfig
	SinkConfig     = config.SinkConfig
	SheetsConfig   = sink.SheetsConfig
	PostgresConfig = sink.PostgresConfig
	SourcesConfig  = config.SourcesConfig
	SerialConfig   = serial.Config
	BLEConfig      = ble.Config
	// OPCUAConfig holds connection + node details.
	OPCUAConfig     = opcua.Config
	OPCUANodeConfig = opcua.NodeConfig
	NATSConfig      = natssrc.Config
	HTTPConfig      = httpsrc.Config
	// MetricsConfig configures the ops HTTP server.
	MetricsConfig = config.MetricsConfig
	LogConfig     = config.LogConfig
)

const (
	SinkSheets   = config.SinkSheets
	SinkPostgres = config.SinkPostgres
	SinkNone     = config.SinkNone
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig reads YAML from memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// DefaultConfig returns the configuration of an empty file.
func DefaultConfig() *Config {
	return config.Default()
}
