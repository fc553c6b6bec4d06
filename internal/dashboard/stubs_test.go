package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

var errBoom = errors.New("boom")

type stubSource struct {
	mu       sync.Mutex
	statuses []domain.Status
	errs     []error
	calls    int
}

func (s *stubSource) push(st domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
	s.errs = append(s.errs, nil)
}

func (s *stubSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, domain.Status{})
	s.errs = append(s.errs, err)
}

func (s *stubSource) ReadStatus(context.Context) (domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return domain.DefaultStatus(), nil
	}
	idx := s.calls
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	s.calls++
	return s.statuses[idx], s.errs[idx]
}

type sentCommand struct {
	kind string
	on   bool
	mode string
}

type stubCommands struct {
	sent []sentCommand
	err  error
}

func (c *stubCommands) SetPump(_ context.Context, on bool) error {
	c.sent = append(c.sent, sentCommand{kind: "pump", on: on})
	return c.err
}

func (c *stubCommands) SetMode(_ context.Context, mode string) error {
	c.sent = append(c.sent, sentCommand{kind: "mode", mode: mode})
	return c.err
}

func (c *stubCommands) SetCooling(_ context.Context, on bool) error {
	c.sent = append(c.sent, sentCommand{kind: "cooling", on: on})
	return c.err
}

func (c *stubCommands) EmergencyStop(context.Context) error {
	c.sent = append(c.sent, sentCommand{kind: "emergency-stop"})
	return c.err
}

type stubObs struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
	channels map[string]float64
	errors   []string
}

func newStubObs() *stubObs {
	return &stubObs{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
		channels: make(map[string]float64),
	}
}

func (o *stubObs) LogInfo(string, ...ports.Field) {}

func (o *stubObs) LogError(msg string, _ error, _ ...ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, msg)
}

func (o *stubObs) LogCritical(string, error, ...ports.Field) {}

func (o *stubObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counters[name] += v
}

func (o *stubObs) ObserveLatency(string, float64) {}

func (o *stubObs) SetGauge(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gauges[name] = v
}

func (o *stubObs) ObserveChannel(channel string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.channels[channel] = v
}

func (o *stubObs) RecordDLQ(ports.WALEntryID, *domain.Reading, error) {}

func (o *stubObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

type stubRecorder struct {
	readings []*domain.Reading
	err      error
}

func (r *stubRecorder) Record(rd *domain.Reading) error {
	r.readings = append(r.readings, rd)
	return r.err
}

func status(fields map[string]any) domain.Status {
	return domain.StatusFromFields(fields)
}

func boolPtr(b bool) *bool { return &b }
