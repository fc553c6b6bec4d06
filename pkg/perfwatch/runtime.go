package perfwatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"github.com/ghalamif/perfwatch/internal/adapters/observability"
	"github.com/ghalamif/perfwatch/internal/adapters/opcua"
	"github.com/ghalamif/perfwatch/internal/adapters/queue"
	"github.com/ghalamif/perfwatch/internal/adapters/simulator"
	"github.com/ghalamif/perfwatch/internal/adapters/sink"
	"github.com/ghalamif/perfwatch/internal/adapters/statushttp"
	"github.com/ghalamif/perfwatch/internal/adapters/wal"
	"github.com/ghalamif/perfwatch/internal/app/config"
	"github.com/ghalamif/perfwatch/internal/app/pipeline"
	"github.com/ghalamif/perfwatch/internal/dashboard"
	"github.com/ghalamif/perfwatch/internal/ports"
)

const (
	gaugeInterval = time.Second
	compactEvery  = time.Minute
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        StatusSource
	commands      CommandSink
	sink          Sink
	transformer   Transformer
	wal           WAL
	queue         ReadingQueue
	observability Observability
	registry      *prometheus.Registry
	listener      net.Listener
	logger        *logrus.Logger
}

// WithStatusSource injects a custom status source. When it also implements
// CommandSink it carries commands too unless WithCommandSink is given.
func WithStatusSource(src StatusSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithCommandSink routes operator commands somewhere other than the source.
func WithCommandSink(c CommandSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.commands = c
	}
}

// WithSink injects a custom archive sink and enables the recorder.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithTransformer overrides the default no-op transformer.
func WithTransformer(t Transformer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.transformer = t
	}
}

// WithWAL lets callers bring their own WAL implementation or reuse an existing instance.
func WithWAL(w WAL) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.wal = w
	}
}

// WithReadingQueue injects a custom queue implementation.
func WithReadingQueue(q ReadingQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithRegistry registers the default metrics on reg and serves reg on
// /metrics instead of the global registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithListener serves the view server on ln instead of server.addr.
func WithListener(ln net.Listener) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.listener = ln
	}
}

// WithLogger replaces the logger built from the log config section.
func WithLogger(l *logrus.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// Runtime wires the status source, the dashboard update cycle, the optional
// reading archive and the view server, and supervises them as one unit.
type Runtime struct {
	cfg      *Config
	obs      ports.Observability
	dash     *dashboard.Dashboard
	archive  *Archive
	server   *viewServer
	gatherer prometheus.Gatherer
	listener net.Listener
	closers  []func(context.Context) error
}

// NewRuntime bootstraps the adapters selected by cfg (HTTP, OPC UA or
// simulated source; file WAL, in-memory queue and Timescale or NATS sink
// when recording; Prometheus observability). RuntimeOption values override
// any dependency.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{cfg: cfg, listener: overrides.listener}
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		err        error
	)
	rt.gatherer = prometheus.DefaultGatherer
	if overrides.registry != nil {
		registerer = overrides.registry
		rt.gatherer = overrides.registry
	}

	obs := overrides.observability
	if obs == nil {
		logger := overrides.logger
		if logger == nil {
			var out io.Writer = os.Stderr
			if cfg.Log.File != "" {
				lf := observability.RotatingFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays)
				rt.closers = append(rt.closers, func(context.Context) error { return lf.Close() })
				out = lf
			}
			logger, err = observability.NewLogger(cfg.Log.Level, cfg.Log.Format, out)
			if err != nil {
				_ = rt.closeAll(context.Background())
				return nil, fmt.Errorf("log config: %w", err)
			}
		}
		obs = observability.NewPromObs(observability.WithRegisterer(registerer), observability.WithLogger(logger))
	}
	rt.obs = obs

	src := overrides.source
	if src == nil {
		src, err = rt.buildSource(cfg.Source)
		if err != nil {
			obs.LogError("source_build_failed", err, ports.Field{Key: "source", Value: cfg.Source.Kind})
			_ = rt.closeAll(context.Background())
			return nil, err
		}
	}
	cmds := overrides.commands
	if cmds == nil {
		cmds, _ = src.(CommandSink)
	}

	var dashOpts []dashboard.Option
	if cfg.Recorder.Enabled || overrides.sink != nil {
		archive, err := rt.buildArchive(cfg.Recorder, overrides)
		if err != nil {
			_ = rt.closeAll(context.Background())
			return nil, err
		}
		rt.archive = archive
		dashOpts = append(dashOpts, dashboard.WithRecorder(archive))
	}

	dash, err := dashboard.New(cfg.Dashboard, src, cmds, obs, dashOpts...)
	if err != nil {
		_ = rt.closeAll(context.Background())
		return nil, err
	}
	rt.dash = dash
	rt.server = newViewServer(dash, rt.gatherer)
	return rt, nil
}

func (rt *Runtime) buildSource(sc SourceConfig) (StatusSource, error) {
	switch sc.Kind {
	case config.SourceOPCUA:
		src, err := opcua.NewSource(sc.OPCUA)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, src.Close)
		return src, nil
	case config.SourceSimulator:
		return simulator.New(sc.Simulator), nil
	case config.SourceHTTP, "":
		return statushttp.New(sc.HTTP), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

func (rt *Runtime) buildArchive(rc RecorderConfig, o runtimeOverrides) (*Archive, error) {
	w := o.wal
	if w == nil {
		fw, err := wal.NewFileWAL(rc.WAL.Dir)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return fw.Close() })
		w = fw
	}

	q := o.queue
	if q == nil {
		q = queue.NewMemQueue(rc.Policy.MaxQueueLen)
	}

	snk := o.sink
	if snk == nil {
		var err error
		snk, err = rt.buildSink(rc)
		if err != nil {
			return nil, err
		}
	}

	return newArchive(w, q, o.transformer, snk, rc.Policy, rt.obs)
}

func (rt *Runtime) buildSink(rc RecorderConfig) (Sink, error) {
	switch rc.Sink {
	case config.SinkNATS:
		ns, err := sink.DialNATSSink(rc.NATS.URL, rc.NATS.Subject, "perfwatch")
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { ns.Close(); return nil })
		return ns, nil
	case config.SinkTimescale, "":
		db, err := sql.Open("postgres", rc.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return db.Close() })
		return sink.NewTimescaleSink(db, rc.Timescale.Table), nil
	default:
		return nil, fmt.Errorf("unknown recorder sink %q", rc.Sink)
	}
}

// Dashboard exposes the underlying dashboard for embedding callers.
func (rt *Runtime) Dashboard() *Dashboard { return rt.dash }

// Archive returns the reading archive, nil when recording is disabled.
func (rt *Runtime) Archive() *Archive { return rt.archive }

// Handler returns the view server handler for mounting in another fasthttp server.
func (rt *Runtime) Handler() fasthttp.RequestHandler { return rt.server.Handler }

// Run starts the poll loop, the archive ingest loop, the gauge sampler and
// the view server, and blocks until ctx is cancelled or one of them fails.
// Adapters are closed before Run returns.
func (rt *Runtime) Run(ctx context.Context) error {
	ln := rt.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", rt.cfg.Server.Addr)
		if err != nil {
			_ = rt.closeAll(context.Background())
			return fmt.Errorf("listen %s: %w", rt.cfg.Server.Addr, err)
		}
	}

	rt.obs.LogInfo("runtime_started",
		ports.Field{Key: "session", Value: rt.dash.Session()},
		ports.Field{Key: "source", Value: rt.cfg.Source.Kind},
		ports.Field{Key: "addr", Value: ln.Addr().String()},
		ports.Field{Key: "recording", Value: rt.archive != nil})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pipeline.RunPollLoop(gctx, rt.dash, rt.cfg.Poll.Interval, rt.obs)
	})
	if rt.archive != nil {
		g.Go(func() error { return rt.archive.Run(gctx) })
	}
	g.Go(func() error {
		rt.sampleGauges(gctx)
		return nil
	})
	g.Go(func() error { return rt.serve(gctx, ln) })

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(err, rt.closeAll(shutdownCtx))
}

func (rt *Runtime) serve(ctx context.Context, ln net.Listener) error {
	srv := &fasthttp.Server{
		Handler:      rt.server.Handler,
		Name:         "perfwatch",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("view server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.ShutdownWithContext(shutdownCtx)
		// Serve may not have picked up ln yet
		_ = ln.Close()
		return err
	}
}

func (rt *Runtime) sampleGauges(ctx context.Context) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()
	lastCompact := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rt.archive == nil {
				continue
			}
			stats := rt.archive.Stats()
			rt.obs.SetGauge("perfwatch_wal_size_bytes", float64(stats.WAL.SizeBytes))
			rt.obs.SetGauge("perfwatch_recorder_queue_length", float64(stats.Queued))
			if time.Since(lastCompact) >= compactEvery {
				lastCompact = time.Now()
				if err := rt.archive.Compact(); err != nil {
					rt.obs.LogError("wal_compact_failed", err)
				}
			}
		}
	}
}

func (rt *Runtime) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
