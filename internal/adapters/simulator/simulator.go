// Package simulator provides an in-process perfusion apparatus for demos
// and tests. It answers status reads with deterministic synthetic values
// and applies commands the way the backend does.
package simulator

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

var ErrInjected = errors.New("simulator: injected read failure")

type Config struct {
	// BaseTemperature is the center of the temperature oscillation in °C.
	BaseTemperature float64 `yaml:"base_temperature"`
	// Flow is the pump flow in ml/min while the pump runs.
	Flow float64 `yaml:"flow"`
	// Pressure is the kidney 1 perfusion pressure in mmHg while the pump runs.
	Pressure float64 `yaml:"pressure"`
	// SecondKidney enables the pressure2 line.
	SecondKidney bool `yaml:"second_kidney"`
}

func (c *Config) ApplyDefaults() {
	if c.BaseTemperature == 0 {
		c.BaseTemperature = 6
	}
	if c.Flow == 0 {
		c.Flow = 150
	}
	if c.Pressure == 0 {
		c.Pressure = 90
	}
}

// Source starts in Manual with the pump off, as the backend forces on boot.
type Source struct {
	cfg Config

	mu        sync.Mutex
	step      int
	pumpOn    bool
	coolingOn bool
	mode      string
	failNext  int
}

func New(cfg Config) *Source {
	cfg.ApplyDefaults()
	return &Source{cfg: cfg, mode: domain.ModeManual}
}

// FailNext makes the next n reads fail.
func (s *Source) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

func (s *Source) ReadStatus(ctx context.Context) (domain.Status, error) {
	if err := ctx.Err(); err != nil {
		return domain.Status{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext > 0 {
		s.failNext--
		return domain.Status{}, ErrInjected
	}

	phase := float64(s.step) / 10
	s.step++

	st := domain.DefaultStatus()
	st.Temperature = round1(s.cfg.BaseTemperature + 2.5*math.Sin(phase))
	if s.coolingOn {
		st.Temperature = round1(st.Temperature - 1)
	}
	st.PumpOn = s.pumpOn
	st.CoolingOn = s.coolingOn
	st.Mode = s.mode
	st.Port = "simulator"
	if s.pumpOn {
		st.Flow = round1(s.cfg.Flow + 5*math.Sin(phase*1.7))
		st.Pressure1 = round1(s.cfg.Pressure + 4*math.Cos(phase))
		st.Pressure = st.Pressure1
		if s.cfg.SecondKidney {
			st.Pressure2 = round1(s.cfg.Pressure*0.8 + 3*math.Sin(phase))
		}
	} else {
		st.Pressure1 = 0
		if s.cfg.SecondKidney {
			st.Pressure2 = 0
		}
	}
	// bubble detector trips for one read every 40
	st.Bubble = s.pumpOn && s.step%40 == 0
	return st, nil
}

// SetPump is ignored outside Manual mode.
func (s *Source) SetPump(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == domain.ModeManual {
		s.pumpOn = on
	}
	return nil
}

func (s *Source) SetMode(ctx context.Context, mode string) error {
	m, ok := domain.ParseMode(mode)
	if !ok {
		return errors.New("simulator: unknown mode " + mode)
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	return nil
}

func (s *Source) SetCooling(ctx context.Context, on bool) error {
	s.mu.Lock()
	s.coolingOn = on
	s.mu.Unlock()
	return nil
}

// EmergencyStop stops the pump in any mode.
func (s *Source) EmergencyStop(ctx context.Context) error {
	s.mu.Lock()
	s.pumpOn = false
	s.mu.Unlock()
	return nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

var (
	_ ports.StatusSource = (*Source)(nil)
	_ ports.CommandSink  = (*Source)(nil)
)
