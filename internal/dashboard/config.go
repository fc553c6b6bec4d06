package dashboard

import (
	"fmt"
	"time"

	"github.com/ghalamif/perfwatch/internal/telemetry"
)

// Channel names fed by the update cycle.
const (
	ChannelTemperature     = "temperature"
	ChannelFlow            = "flow"
	ChannelPressureKidney1 = "pressure:kidney1"
	ChannelPressureKidney2 = "pressure:kidney2"
)

// DefaultReadTimeout bounds a status read when read_timeout is unset.
const DefaultReadTimeout = 1500 * time.Millisecond

var pressureChannels = []string{ChannelPressureKidney1, ChannelPressureKidney2}

// Config tunes the update cycle and the operator-facing policies.
type Config struct {
	MaxPoints        int           `yaml:"max_points"`
	SeqStep          int64         `yaml:"seq_step"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	TemperatureMin   float64       `yaml:"temperature_min"`
	TemperatureMax   float64       `yaml:"temperature_max"`
	SelectedPressure string        `yaml:"selected_pressure"`

	// LockWhenDisconnected refuses manual commands while the last status
	// read failed. Off by default so the panel stays usable on the bench.
	LockWhenDisconnected bool `yaml:"lock_when_disconnected"`
}

func (c *Config) ApplyDefaults() {
	if c.MaxPoints <= 0 {
		c.MaxPoints = telemetry.DefaultMaxPoints
	}
	if c.SeqStep <= 0 {
		c.SeqStep = 2
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.TemperatureMin == 0 && c.TemperatureMax == 0 {
		c.TemperatureMin = 4.0
		c.TemperatureMax = 8.0
	}
	if c.SelectedPressure == "" {
		c.SelectedPressure = ChannelPressureKidney1
	}
}

func (c *Config) Validate() error {
	if c.TemperatureMin > c.TemperatureMax {
		return fmt.Errorf("temperature band [%.1f, %.1f] is inverted", c.TemperatureMin, c.TemperatureMax)
	}
	if !isPressureChannel(c.SelectedPressure) {
		return fmt.Errorf("unknown pressure channel %q", c.SelectedPressure)
	}
	return nil
}

func isPressureChannel(name string) bool {
	for _, ch := range pressureChannels {
		if ch == name {
			return true
		}
	}
	return false
}
