package perfwatch

import (
	"github.com/ghalamif/perfwatch/internal/dashboard"
	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
	"github.com/ghalamif/perfwatch/internal/telemetry"
)

// Reading is one archived channel value. It flows through the
// WAL→queue→sink pipeline.
type Reading = domain.Reading

// QueuedReading represents an item buffered inside the bounded queue.
type QueuedReading = ports.QueuedReading

// Status is one decoded read of the apparatus status.
type Status = domain.Status

// StatusSource yields status reads (HTTP backend, OPC UA, simulators, ...).
type StatusSource = ports.StatusSource

// CommandSink carries operator commands to the apparatus.
type CommandSink = ports.CommandSink

// ReadingQueue is the bounded, in-memory queue between recorder and sink.
type ReadingQueue = ports.ReadingQueue

// Transformer lets callers mutate readings (calibration, unit conversion) before persistence.
type Transformer = ports.Transformer

// Sink consumes batches of readings and persists them to any downstream system.
type Sink = ports.Sink

// Observability emits metrics/logs about cycles, commands and the recorder.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// WAL abstracts the write-ahead log used for durability and crash recovery.
type WAL = ports.WAL

// WALStats exposes WAL metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a WAL entry.
type WALEntryID = ports.WALEntryID

type (
	Dashboard      = dashboard.Dashboard
	View           = dashboard.View
	CommandKind    = dashboard.CommandKind
	CommandPayload = dashboard.CommandPayload
	Sample         = telemetry.Sample
)

const (
	ModeManual    = domain.ModeManual
	ModeAutomatic = domain.ModeAutomatic

	CommandPump          = dashboard.CommandPump
	CommandMode          = dashboard.CommandMode
	CommandCooling       = dashboard.CommandCooling
	CommandEmergencyStop = dashboard.CommandEmergencyStop

	ChannelTemperature     = dashboard.ChannelTemperature
	ChannelFlow            = dashboard.ChannelFlow
	ChannelPressureKidney1 = dashboard.ChannelPressureKidney1
	ChannelPressureKidney2 = dashboard.ChannelPressureKidney2
)

var (
	ErrDisconnected        = dashboard.ErrDisconnected
	ErrUnknownChannel      = dashboard.ErrUnknownChannel
	ErrUnknownCommand      = dashboard.ErrUnknownCommand
	ErrManualControlLocked = dashboard.ErrManualControlLocked
	ErrCommandsUnavailable = dashboard.ErrCommandsUnavailable
	ErrInvalidMode         = dashboard.ErrInvalidMode
)

// Resistance computes P / (F/1000) in mmHg·min/L; ok is false when flow is
// zero or either input is missing.
func Resistance(flowMLPerMin, pressureMMHg float64) (float64, bool) {
	return telemetry.Resistance(flowMLPerMin, pressureMMHg)
}

// FormatResistance renders a resistance for display, "--" when unavailable.
func FormatResistance(v float64, ok bool) string {
	return telemetry.FormatResistance(v, ok)
}
