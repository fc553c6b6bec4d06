package observability

import (
	"io"
	"math"
	"strings"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
	"github.com/natefinch/lumberjack"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// PromObs implements ports.Observability with Prometheus collectors and a
// logrus logger. Unknown metric names are ignored.
type PromObs struct {
	log *logrus.Logger

	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	channels *prometheus.GaugeVec
}

type Option func(*promConfig)

type promConfig struct {
	reg    prometheus.Registerer
	logger *logrus.Logger
}

// WithRegisterer registers collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *promConfig) { c.reg = reg }
}

func WithLogger(l *logrus.Logger) Option {
	return func(c *promConfig) { c.logger = l }
}

func NewPromObs(opts ...Option) *PromObs {
	cfg := promConfig{reg: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logrus.New()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		"perfwatch_cycles_total":               counter("perfwatch_cycles_total", "Poll cycles started."),
		"perfwatch_status_read_failures_total": counter("perfwatch_status_read_failures_total", "Status reads that failed or timed out."),
		"perfwatch_commands_issued_total":      counter("perfwatch_commands_issued_total", "Commands accepted by the device."),
		"perfwatch_commands_failed_total":      counter("perfwatch_commands_failed_total", "Commands the device rejected or did not answer."),
		"perfwatch_commands_refused_total":     counter("perfwatch_commands_refused_total", "Commands refused locally because manual control was locked."),
		"perfwatch_readings_recorded_total":    counter("perfwatch_readings_recorded_total", "Readings written to the archive sink."),
		"perfwatch_recorder_dropped_total":     counter("perfwatch_recorder_dropped_total", "Readings lost to recorder backpressure."),
		"perfwatch_dlq_total":                  counter("perfwatch_dlq_total", "Readings sent to DLQ due to transform/sink failures."),
	}
	gauges := map[string]prometheus.Gauge{
		"perfwatch_connected":             gauge("perfwatch_connected", "1 when the last status read succeeded."),
		"perfwatch_resistance":            gauge("perfwatch_resistance", "Latest flow resistance in mmHg·min/L, NaN when unavailable."),
		"perfwatch_recorder_queue_length": gauge("perfwatch_recorder_queue_length", "Readings buffered in the recorder queue."),
		"perfwatch_wal_size_bytes":        gauge("perfwatch_wal_size_bytes", "Size of the recorder WAL on disk."),
	}
	cycle := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "perfwatch_cycle_seconds",
		Help:    "Duration of one poll cycle including the status read.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	sinkLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "perfwatch_recorder_sink_latency_seconds",
		Help:    "Latency of one archive sink batch write.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	channels := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "perfwatch_channel_value",
		Help: "Latest value per telemetry channel.",
	}, []string{"channel"})

	collectors := []prometheus.Collector{cycle, sinkLatency, channels}
	for _, c := range counters {
		collectors = append(collectors, c)
	}
	for _, g := range gauges {
		collectors = append(collectors, g)
	}
	cfg.reg.MustRegister(collectors...)

	return &PromObs{
		log:      cfg.logger,
		counters: counters,
		gauges:   gauges,
		histos: map[string]prometheus.Observer{
			"perfwatch_cycle_seconds":                 cycle,
			"perfwatch_recorder_sink_latency_seconds": sinkLatency,
		},
		channels: channels,
	}
}

// RotatingFile returns a writer that rotates path once it grows past
// maxSizeMB, keeping maxBackups compressed files for at most maxAgeDays.
func RotatingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}

// NewLogger builds a logrus logger from the log section of the config.
func NewLogger(level, format string, out io.Writer) (*logrus.Logger, error) {
	l := logrus.New()
	if out != nil {
		l.SetOutput(out)
	}
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		l.SetLevel(lvl)
	}
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

func (p *PromObs) Logger() *logrus.Logger { return p.log }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.WithFields(toLogrus(fields)).Info(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.WithFields(toLogrus(fields)).WithError(err).Error(msg)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.WithFields(toLogrus(fields)).WithError(err).WithField("critical", true).Error(msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveChannel(channel string, v float64) {
	if math.IsInf(v, 0) {
		v = math.NaN()
	}
	p.channels.WithLabelValues(channel).Set(v)
}

func (p *PromObs) RecordDLQ(id ports.WALEntryID, r *domain.Reading, err error) {
	p.IncCounter("perfwatch_dlq_total", 1)
	if err == nil {
		return
	}
	entry := p.log.WithError(err).WithField("wal_id", uint64(id))
	if r != nil {
		entry = entry.WithFields(logrus.Fields{"channel": r.Channel, "seq": r.Seq})
	}
	entry.Warn("reading sent to DLQ")
}

func toLogrus(fields []ports.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
