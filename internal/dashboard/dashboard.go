package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
	"github.com/ghalamif/perfwatch/internal/telemetry"
)

var (
	// ErrDisconnected wraps a failed status read.
	ErrDisconnected = errors.New("perfwatch: status source disconnected")
	// ErrUnknownChannel is returned when selecting a channel that is not a pressure line.
	ErrUnknownChannel = errors.New("perfwatch: unknown pressure channel")
)

// Option customises a Dashboard.
type Option func(*Dashboard)

// WithRecorder archives every finite sample appended by the update cycle.
func WithRecorder(r ports.Recorder) Option {
	return func(d *Dashboard) { d.recorder = r }
}

// WithClock overrides the wall clock used to stamp archived readings.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) {
		if now != nil {
			d.now = now
		}
	}
}

// WithSession fixes the session id instead of generating one.
func WithSession(id string) Option {
	return func(d *Dashboard) {
		if id != "" {
			d.session = id
		}
	}
}

// Dashboard owns the telemetry window and the state of one dashboard
// session. Cycle is meant to be driven by a single poll loop; View, State and
// IssueCommand may be called concurrently with it.
type Dashboard struct {
	cfg      Config
	source   ports.StatusSource
	commands ports.CommandSink
	obs      ports.Observability
	recorder ports.Recorder
	now      func() time.Time
	session  string

	window *telemetry.Window

	mu    sync.RWMutex
	state State
}

func New(cfg Config, src ports.StatusSource, cmds ports.CommandSink, obs ports.Observability, opts ...Option) (*Dashboard, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("status source is required")
	}
	if obs == nil {
		return nil, fmt.Errorf("observability is required")
	}

	d := &Dashboard{
		cfg:      cfg,
		source:   src,
		commands: cmds,
		obs:      obs,
		now:      time.Now,
		session:  uuid.NewString(),
		window:   telemetry.NewWindow(cfg.MaxPoints),
		state: State{
			Status:           domain.DefaultStatus(),
			SelectedPressure: cfg.SelectedPressure,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

func (d *Dashboard) Session() string { return d.session }

func (d *Dashboard) Window() *telemetry.Window { return d.window }

func (d *Dashboard) Config() Config { return d.cfg }

// State returns a copy of the current state.
func (d *Dashboard) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Cycle runs one update: read the status, append every channel, recompute
// the derived values. A failed read leaves the window untouched and marks
// the dashboard disconnected. A read that completes after ctx is done is
// discarded.
func (d *Dashboard) Cycle(ctx context.Context) error {
	readCtx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	st, err := d.source.ReadStatus(readCtx)
	cancel()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	d.obs.IncCounter("perfwatch_cycles_total", 1)

	if err != nil {
		d.mu.Lock()
		d.state.Connected = false
		d.state.LastError = err.Error()
		d.mu.Unlock()

		d.obs.IncCounter("perfwatch_status_read_failures_total", 1)
		d.obs.SetGauge("perfwatch_connected", 0)
		d.obs.LogError("status_read_failed", err, ports.Field{Key: "session", Value: d.session})
		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	}

	for _, r := range d.apply(st) {
		d.record(r)
	}
	return nil
}

// apply mutates the window and state and returns the readings to archive.
func (d *Dashboard) apply(st domain.Status) []*domain.Reading {
	d.mu.Lock()
	defer d.mu.Unlock()

	seq := d.state.Seq
	values := []struct {
		channel string
		value   float64
	}{
		{ChannelTemperature, st.Temperature},
		{ChannelFlow, st.Flow},
		{ChannelPressureKidney1, st.KidneyPressure(1)},
		{ChannelPressureKidney2, st.KidneyPressure(2)},
	}

	ts := d.now()
	var pending []*domain.Reading
	for _, v := range values {
		d.window.Append(v.channel, seq, v.value)
		d.obs.ObserveChannel(v.channel, v.value)
		if d.recorder != nil && !math.IsNaN(v.value) && !math.IsInf(v.value, 0) {
			pending = append(pending, &domain.Reading{
				Session:   d.session,
				Channel:   v.channel,
				Seq:       seq,
				Value:     v.value,
				Timestamp: ts,
			})
		}
	}

	r, ok := d.window.Resistance(ChannelFlow, d.state.SelectedPressure)

	d.state.Seq = seq + d.cfg.SeqStep
	d.state.Status = st
	d.state.HasStatus = true
	d.state.Connected = st.Connected
	d.state.LastError = ""
	d.state.LastUpdate = ts
	d.state.Resistance, d.state.ResistanceOK = r, ok

	if ok {
		d.obs.SetGauge("perfwatch_resistance", r)
	} else {
		d.obs.SetGauge("perfwatch_resistance", math.NaN())
	}
	if st.Connected {
		d.obs.SetGauge("perfwatch_connected", 1)
	} else {
		d.obs.SetGauge("perfwatch_connected", 0)
	}
	return pending
}

func (d *Dashboard) record(r *domain.Reading) {
	if err := d.recorder.Record(r); err != nil {
		d.obs.IncCounter("perfwatch_recorder_dropped_total", 1)
		d.obs.LogError("record_reading_failed", err, ports.Field{Key: "channel", Value: r.Channel})
	}
}

// SelectPressureChannel switches the line used for resistance. Only values
// computed after the switch are affected.
func (d *Dashboard) SelectPressureChannel(name string) error {
	if !isPressureChannel(name) {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.SelectedPressure = name
	return nil
}

// View renders the current state for a renderer. The series are taken
// under the same lock as the state so they always match one cycle.
func (d *Dashboard) View() View {
	d.mu.RLock()
	st := d.state
	series := d.window.Series()
	d.mu.RUnlock()

	v := View{
		Connected:        st.Connected,
		Mode:             st.Status.Mode,
		SelectedPressure: st.SelectedPressure,
		Indicators:       indicatorsFor(st, d.cfg),
		Controls:         controlsFor(st, d.cfg.LockWhenDisconnected),
		Series:           series,
		UpdatedAt:        st.LastUpdate,
	}
	if st.ResistanceOK {
		r := st.Resistance
		v.Resistance = &r
	}
	return v
}
