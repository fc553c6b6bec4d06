package perfwatch

import (
	"github.com/ghalamif/perfwatch/internal/adapters/opcua"
	"github.com/ghalamif/perfwatch/internal/adapters/simulator"
	"github.com/ghalamif/perfwatch/internal/adapters/statushttp"
	"github.com/ghalamif/perfwatch/internal/app/config"
	"github.com/ghalamif/perfwatch/internal/dashboard"
	"github.com/ghalamif/perfwatch/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy bounds the recorder's WAL and queue.
	Policy = ports.Policy
	// SourceConfig selects and configures the status source.
	SourceConfig = config.SourceConfig
	// HTTPSourceConfig points at the backend REST API.
	HTTPSourceConfig = statushttp.Config
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps a status field onto a node.
	OPCUANodeConfig = opcua.NodeConfig
	// OPCUACommandNodes maps operator commands onto writable nodes.
	OPCUACommandNodes = opcua.CommandNodes
	// SimulatorConfig tunes the built-in simulated apparatus.
	SimulatorConfig = simulator.Config
	PollConfig      = config.PollConfig
	// DashboardConfig tunes the telemetry window and control policies.
	DashboardConfig = dashboard.Config
	RecorderConfig  = config.RecorderConfig
	WALConfig       = config.WALConfig
	TimescaleConfig = config.TimescaleConfig
	NATSConfig      = config.NATSConfig
	ServerConfig    = config.ServerConfig
	LogConfig       = config.LogConfig
)

// Source and sink kinds accepted in Config.
const (
	SourceHTTP      = config.SourceHTTP
	SourceOPCUA     = config.SourceOPCUA
	SourceSimulator = config.SourceSimulator
	SinkTimescale   = config.SinkTimescale
	SinkNATS        = config.SinkNATS
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig decodes YAML held in memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// DefaultConfig returns the configuration of an empty file.
func DefaultConfig() *Config {
	return config.Default()
}
