package perfwatch

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ghalamif/perfwatch/internal/adapters/observability"
)

type stubSink struct{}

func (s *stubSink) WriteBatch(context.Context, []*Reading) error { return nil }
func (s *stubSink) Name() string                                 { return "stub" }

type stubTransformer struct{}

func (s *stubTransformer) Transform(r *Reading) (*Reading, error) { return r, nil }
func (s *stubTransformer) Version() uint16                        { return 42 }

type stubQueue struct{}

func (s *stubQueue) Enqueue(WALEntryID, *Reading) bool    { return true }
func (s *stubQueue) DequeueBatch(max int) []QueuedReading { return nil }
func (s *stubQueue) Len() int                             { return 0 }

type stubWAL struct {
	mu     sync.Mutex
	closed bool
}

func (s *stubWAL) Append(*Reading) (WALEntryID, error) { return 0, nil }
func (s *stubWAL) Iterate(WALEntryID, func(id WALEntryID, r *Reading) error) error {
	return nil
}
func (s *stubWAL) Commit(WALEntryID) error  { return nil }
func (s *stubWAL) TruncateCommitted() error { return nil }
func (s *stubWAL) Stats() WALStats          { return WALStats{} }
func (s *stubWAL) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)              {}
func (s *stubObservability) LogError(string, error, ...Field)      {}
func (s *stubObservability) LogCritical(string, error, ...Field)   {}
func (s *stubObservability) IncCounter(string, float64)            {}
func (s *stubObservability) ObserveLatency(string, float64)        {}
func (s *stubObservability) SetGauge(string, float64)              {}
func (s *stubObservability) ObserveChannel(string, float64)        {}
func (s *stubObservability) RecordDLQ(WALEntryID, *Reading, error) {}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testObs(t *testing.T) (*observability.PromObs, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return observability.NewPromObs(observability.WithRegisterer(reg), observability.WithLogger(quietLogger())), reg
}
