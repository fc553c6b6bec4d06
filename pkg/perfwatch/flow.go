package perfwatch

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Flow follows the data through a dashboard session: Conf picks the device
// config, StreamIN decides where status comes from and how the dashboard
// reads it, StreamOUT decides where readings and the view go. Settings that
// have a config field are written into the config; adapters become
// RuntimeOption values.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption adjusts a Flow right after its config is loaded.
type FlowOption func(*Flow)

// StreamInOption shapes the status side: source, commands, poll rhythm,
// pressure line and control policy.
type StreamInOption func(*Flow)

// StreamOutOption shapes the output side: archive sink and pipeline, view
// server listener and metrics registry.
type StreamOutOption func(*Flow)

func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	applySteps(f, opts)
	return f, nil
}

// Config exposes the config the runtime will be built from.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f != nil {
		applySteps(f, opts)
	}
	return f
}

// StreamOUT applies the output options and builds the Runtime.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	applySteps(f, opts)
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the Runtime with opts and runs it until ctx is done.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func applySteps[S ~func(*Flow)](f *Flow, steps []S) {
	for _, step := range steps {
		if step != nil {
			step(f)
		}
	}
}

func (f *Flow) use(opt RuntimeOption) { f.opts = append(f.opts, opt) }

// WithFlowOptions passes raw RuntimeOption values through the builder.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		for _, opt := range opts {
			if opt != nil {
				f.use(opt)
			}
		}
	}
}

// StreamInSource reads status from src instead of the configured source
// kind. A src that also implements CommandSink receives commands.
func StreamInSource(src StatusSource) StreamInOption {
	return func(f *Flow) {
		if src != nil {
			f.use(WithStatusSource(src))
		}
	}
}

// StreamInCommands sends operator commands to c.
func StreamInCommands(c CommandSink) StreamInOption {
	return func(f *Flow) {
		if c != nil {
			f.use(WithCommandSink(c))
		}
	}
}

// StreamInSimulator switches the session to the built-in simulated device.
func StreamInSimulator(sim SimulatorConfig) StreamInOption {
	return func(f *Flow) {
		f.cfg.Source.Kind = SourceSimulator
		f.cfg.Source.Simulator = sim
	}
}

// StreamInPoll sets the poll interval and the per-read timeout. A zero
// timeout keeps the configured one, capped at the interval.
func StreamInPoll(interval, readTimeout time.Duration) StreamInOption {
	return func(f *Flow) {
		if interval > 0 {
			f.cfg.Poll.Interval = interval
		}
		if readTimeout > 0 {
			f.cfg.Dashboard.ReadTimeout = readTimeout
		}
		f.cfg.Dashboard.ReadTimeout = min(f.cfg.Dashboard.ReadTimeout, f.cfg.Poll.Interval)
	}
}

// StreamInPressure selects the kidney line used for flow resistance.
// Unknown channels are rejected when the runtime is built.
func StreamInPressure(channel string) StreamInOption {
	return func(f *Flow) { f.cfg.Dashboard.SelectedPressure = channel }
}

// StreamInLockWhenDisconnected refuses manual commands while the device is
// unreachable.
func StreamInLockWhenDisconnected(lock bool) StreamInOption {
	return func(f *Flow) { f.cfg.Dashboard.LockWhenDisconnected = lock }
}

// StreamInObservability replaces the Prometheus and logrus backend.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if obs != nil {
			f.use(WithObservability(obs))
		}
	}
}

// StreamOutSink archives readings into s; this turns the recorder on.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if s != nil {
			f.use(WithSink(s))
		}
	}
}

// StreamOutCallback archives readings by calling fn once per batch.
func StreamOutCallback(name string, fn ReadingBatchSink) StreamOutOption {
	return StreamOutSink(NewCallbackSink(name, fn))
}

// StreamOutArchiveDir keeps the recorder WAL in dir.
func StreamOutArchiveDir(dir string) StreamOutOption {
	return func(f *Flow) {
		if dir != "" {
			f.cfg.Recorder.WAL.Dir = dir
		}
	}
}

func StreamOutTransformer(tr Transformer) StreamOutOption {
	return func(f *Flow) {
		if tr != nil {
			f.use(WithTransformer(tr))
		}
	}
}

func StreamOutWAL(w WAL) StreamOutOption {
	return func(f *Flow) {
		if w != nil {
			f.use(WithWAL(w))
		}
	}
}

func StreamOutQueue(q ReadingQueue) StreamOutOption {
	return func(f *Flow) {
		if q != nil {
			f.use(WithReadingQueue(q))
		}
	}
}

// StreamOutListener serves the view on ln instead of server.addr.
func StreamOutListener(ln net.Listener) StreamOutOption {
	return func(f *Flow) {
		if ln != nil {
			f.use(WithListener(ln))
		}
	}
}

// StreamOutRegistry registers the metrics on reg and serves reg on /metrics.
func StreamOutRegistry(reg *prometheus.Registry) StreamOutOption {
	return func(f *Flow) {
		if reg != nil {
			f.use(WithRegistry(reg))
		}
	}
}
