package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/perfwatch/internal/adapters/opcua"
	"github.com/ghalamif/perfwatch/internal/adapters/simulator"
	"github.com/ghalamif/perfwatch/internal/adapters/statushttp"
	"github.com/ghalamif/perfwatch/internal/dashboard"
	"github.com/ghalamif/perfwatch/internal/ports"
)

// Source kinds.
const (
	SourceHTTP      = "http"
	SourceOPCUA     = "opcua"
	SourceSimulator = "simulator"
)

// Recorder sink kinds.
const (
	SinkTimescale = "timescale"
	SinkNATS      = "nats"
)

type Config struct {
	Source    SourceConfig     `yaml:"source"`
	Poll      PollConfig       `yaml:"poll"`
	Dashboard dashboard.Config `yaml:"dashboard"`
	Recorder  RecorderConfig   `yaml:"recorder"`
	Server    ServerConfig     `yaml:"server"`
	Log       LogConfig        `yaml:"log"`
}

type SourceConfig struct {
	Kind      string            `yaml:"kind"`
	HTTP      statushttp.Config `yaml:"http"`
	OPCUA     opcua.Config      `yaml:"opcua"`
	Simulator simulator.Config  `yaml:"simulator"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type RecorderConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Sink      string          `yaml:"sink"`
	Policy    ports.Policy    `yaml:"policy"`
	WAL       WALConfig       `yaml:"wal"`
	Timescale TimescaleConfig `yaml:"timescale"`
	NATS      NATSConfig      `yaml:"nats"`
}

type WALConfig struct {
	Dir string `yaml:"dir"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File switches logging from stderr to a size-rotated file.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a YAML document, applies defaults and validates it.
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

// Default is the configuration of an empty file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = SourceHTTP
	}
	c.Source.HTTP.ApplyDefaults()
	c.Source.OPCUA.ApplyDefaults()
	c.Source.Simulator.ApplyDefaults()

	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 2 * time.Second
	}
	// an unset read timeout must still fit inside a short poll interval
	if c.Dashboard.ReadTimeout <= 0 {
		c.Dashboard.ReadTimeout = min(dashboard.DefaultReadTimeout, c.Poll.Interval)
	}
	c.Dashboard.ApplyDefaults()

	// the recorder must never stall the display: drop on overflow
	if c.Recorder.Policy.MaxWALSizeBytes == 0 {
		c.Recorder.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Recorder.Policy.MaxQueueLen == 0 {
		c.Recorder.Policy.MaxQueueLen = 10_000
	}
	if c.Recorder.Policy.MaxBatchSize == 0 {
		c.Recorder.Policy.MaxBatchSize = 500
	}
	if c.Recorder.Policy.IdleSleep == 0 {
		c.Recorder.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Recorder.Policy.OnQueueFull == "" {
		c.Recorder.Policy.OnQueueFull = "drop"
	}
	if c.Recorder.Policy.OnWALFull == "" {
		c.Recorder.Policy.OnWALFull = "drop"
	}
	if c.Recorder.Sink == "" {
		c.Recorder.Sink = SinkTimescale
	}
	if c.Recorder.WAL.Dir == "" {
		c.Recorder.WAL.Dir = "./data/wal"
	}
	if c.Recorder.Timescale.Table == "" {
		c.Recorder.Timescale.Table = "perfusion_readings"
	}
	if c.Recorder.NATS.URL == "" {
		c.Recorder.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.Recorder.NATS.Subject == "" {
		c.Recorder.NATS.Subject = "perfwatch.readings"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.File != "" {
		if c.Log.MaxSizeMB <= 0 {
			c.Log.MaxSizeMB = 50
		}
		if c.Log.MaxBackups <= 0 {
			c.Log.MaxBackups = 5
		}
		if c.Log.MaxAgeDays <= 0 {
			c.Log.MaxAgeDays = 14
		}
	}
}

func (c *Config) validate() error {
	switch c.Source.Kind {
	case SourceHTTP:
		if c.Source.HTTP.BaseURL == "" {
			return errors.New("source.http.base_url is required")
		}
	case SourceOPCUA:
		if err := c.Source.OPCUA.Validate(); err != nil {
			return fmt.Errorf("source.opcua config: %w", err)
		}
	case SourceSimulator:
	default:
		return fmt.Errorf("source.kind %q is not one of http, opcua, simulator", c.Source.Kind)
	}

	if err := c.Dashboard.Validate(); err != nil {
		return fmt.Errorf("dashboard config: %w", err)
	}
	if c.Dashboard.ReadTimeout > c.Poll.Interval {
		return fmt.Errorf("dashboard.read_timeout %s exceeds poll.interval %s", c.Dashboard.ReadTimeout, c.Poll.Interval)
	}

	if c.Recorder.Enabled {
		if err := c.validateRecorder(); err != nil {
			return err
		}
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}

func (c *Config) validateRecorder() error {
	r := c.Recorder
	switch r.Sink {
	case SinkTimescale:
		if r.Timescale.ConnString == "" {
			return errors.New("recorder.timescale.conn_string is required")
		}
	case SinkNATS:
		if r.NATS.URL == "" {
			return errors.New("recorder.nats.url is required")
		}
	default:
		return fmt.Errorf("recorder.sink %q is not one of timescale, nats", r.Sink)
	}
	if r.WAL.Dir == "" {
		return errors.New("recorder.wal.dir is required")
	}
	switch r.Policy.OnQueueFull {
	case "drop", "reject", "block":
	default:
		return fmt.Errorf("recorder.policy.on_queue_full %q is invalid", r.Policy.OnQueueFull)
	}
	switch r.Policy.OnWALFull {
	case "drop", "block":
	default:
		return fmt.Errorf("recorder.policy.on_wal_full %q is invalid", r.Policy.OnWALFull)
	}
	return nil
}
