package perfwatch

import (
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	base "github.com/ghalamif/perfwatch/pkg/perfwatch"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull           = base.ErrQueueFull
	ErrWALFull             = base.ErrWALFull
	ErrArchiveClosed       = base.ErrArchiveClosed
	ErrChannelSinkClosed   = base.ErrChannelSinkClosed
	ErrDisconnected        = base.ErrDisconnected
	ErrUnknownChannel      = base.ErrUnknownChannel
	ErrUnknownCommand      = base.ErrUnknownCommand
	ErrManualControlLocked = base.ErrManualControlLocked
	ErrCommandsUnavailable = base.ErrCommandsUnavailable
	ErrInvalidMode         = base.ErrInvalidMode
)

// Type aliases so consumers can import github.com/ghalamif/perfwatch directly.
type (
	Config            = base.Config
	Policy            = base.Policy
	SourceConfig      = base.SourceConfig
	HTTPSourceConfig  = base.HTTPSourceConfig
	OPCUAConfig       = base.OPCUAConfig
	OPCUANodeConfig   = base.OPCUANodeConfig
	OPCUACommandNodes = base.OPCUACommandNodes
	SimulatorConfig   = base.SimulatorConfig
	DashboardConfig   = base.DashboardConfig
	RecorderConfig    = base.RecorderConfig
	WALConfig         = base.WALConfig
	TimescaleConfig   = base.TimescaleConfig
	NATSConfig        = base.NATSConfig
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	Runtime           = base.Runtime
	RuntimeOption     = base.RuntimeOption
	Dashboard         = base.Dashboard
	View              = base.View
	CommandKind       = base.CommandKind
	CommandPayload    = base.CommandPayload
	Status            = base.Status
	Reading           = base.Reading
	ReadingBatchSink  = base.ReadingBatchSink
	StatusSource      = base.StatusSource
	CommandSink       = base.CommandSink
	Sink              = base.Sink
	Transformer       = base.Transformer
	ReadingQueue      = base.ReadingQueue
	WAL               = base.WAL
	Observability     = base.Observability
	QueuedReading     = base.QueuedReading
	WALEntryID        = base.WALEntryID
	WALStats          = base.WALStats
	Archive           = base.Archive
	ArchiveConfig     = base.ArchiveConfig
	ArchiveStats      = base.ArchiveStats
)

const (
	ModeManual    = base.ModeManual
	ModeAutomatic = base.ModeAutomatic

	CommandPump          = base.CommandPump
	CommandMode          = base.CommandMode
	CommandCooling       = base.CommandCooling
	CommandEmergencyStop = base.CommandEmergencyStop

	ChannelTemperature     = base.ChannelTemperature
	ChannelFlow            = base.ChannelFlow
	ChannelPressureKidney1 = base.ChannelPressureKidney1
	ChannelPressureKidney2 = base.ChannelPressureKidney2
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src StatusSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInCommands(c CommandSink) StreamInOption {
	return base.StreamInCommands(c)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamInSimulator(sim SimulatorConfig) StreamInOption {
	return base.StreamInSimulator(sim)
}

func StreamInPoll(interval, readTimeout time.Duration) StreamInOption {
	return base.StreamInPoll(interval, readTimeout)
}

func StreamInPressure(channel string) StreamInOption {
	return base.StreamInPressure(channel)
}

func StreamInLockWhenDisconnected(lock bool) StreamInOption {
	return base.StreamInLockWhenDisconnected(lock)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutTransformer(tr Transformer) StreamOutOption {
	return base.StreamOutTransformer(tr)
}

func StreamOutWAL(w WAL) StreamOutOption {
	return base.StreamOutWAL(w)
}

func StreamOutQueue(q ReadingQueue) StreamOutOption {
	return base.StreamOutQueue(q)
}

func StreamOutCallback(name string, fn ReadingBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

func StreamOutArchiveDir(dir string) StreamOutOption {
	return base.StreamOutArchiveDir(dir)
}

func StreamOutListener(ln net.Listener) StreamOutOption {
	return base.StreamOutListener(ln)
}

func StreamOutRegistry(reg *prometheus.Registry) StreamOutOption {
	return base.StreamOutRegistry(reg)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithStatusSource(src StatusSource) RuntimeOption {
	return base.WithStatusSource(src)
}

func WithCommandSink(c CommandSink) RuntimeOption {
	return base.WithCommandSink(c)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithTransformer(tr Transformer) RuntimeOption {
	return base.WithTransformer(tr)
}

func WithWAL(w WAL) RuntimeOption {
	return base.WithWAL(w)
}

func WithReadingQueue(q ReadingQueue) RuntimeOption {
	return base.WithReadingQueue(q)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

func WithListener(ln net.Listener) RuntimeOption {
	return base.WithListener(ln)
}

func WithLogger(l *logrus.Logger) RuntimeOption {
	return base.WithLogger(l)
}

// Sink adapters.
func NewCallbackSink(name string, fn ReadingBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []Reading, func()) {
	return base.NewChannelSink(name, buffer)
}

// Standalone archive.
func OpenArchive(cfg *ArchiveConfig, snk Sink, obs Observability) (*Archive, error) {
	return base.OpenArchive(cfg, snk, obs)
}

// Resistance computes P / (F/1000) in mmHg·min/L.
func Resistance(flowMLPerMin, pressureMMHg float64) (float64, bool) {
	return base.Resistance(flowMLPerMin, pressureMMHg)
}
