package perfwatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/perfwatch/internal/adapters/observability"
	"github.com/ghalamif/perfwatch/internal/adapters/queue"
	"github.com/ghalamif/perfwatch/internal/adapters/wal"
	"github.com/ghalamif/perfwatch/internal/app/pipeline"
	"github.com/ghalamif/perfwatch/internal/ports"
)

var (
	// ErrQueueFull indicates the archive queue rejected a reading according to policy.
	ErrQueueFull = pipeline.ErrQueueFull
	// ErrWALFull indicates the WAL is at capacity and OnWALFull != "block".
	ErrWALFull = pipeline.ErrWALFull
	// ErrArchiveClosed is returned by Record after Close.
	ErrArchiveClosed = errors.New("perfwatch: archive closed")
)

// ArchiveConfig configures a standalone WAL-backed archive.
type ArchiveConfig struct {
	Policy Policy
	WAL    WALConfig
}

// applyDefaults fills in thresholds so callers only override what they need.
func (c *ArchiveConfig) applyDefaults() {
	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "drop"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/perfwatch-wal"
	}
}

func (c *ArchiveConfig) validate() error {
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	if c.Policy.MaxQueueLen <= 0 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	return nil
}

// ArchiveStats is a point-in-time view of the archive backlog.
type ArchiveStats struct {
	Queued int
	WAL    WALStats
}

// Archive makes readings durable in a WAL and drains them into a Sink in
// batches. Uncommitted readings are replayed when an archive is reopened on
// the same WAL.
type Archive struct {
	policy      Policy
	wal         ports.WAL
	queue       ports.ReadingQueue
	obs         ports.Observability
	transformer ports.Transformer
	sink        ports.Sink
	rec         *pipeline.Recorder

	// entries up to backlog predate this archive and are replayed from the WAL
	backlog ports.WALEntryID

	mu       sync.Mutex
	closed   bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	closeErr error
}

func newArchive(w ports.WAL, q ports.ReadingQueue, tr ports.Transformer, snk ports.Sink, pol Policy, obs ports.Observability) (*Archive, error) {
	if w == nil || q == nil || snk == nil {
		return nil, fmt.Errorf("archive needs a WAL, a queue and a sink")
	}
	if tr == nil {
		tr = pipeline.NoopTransformer{}
	}
	return &Archive{
		policy:      pol,
		wal:         w,
		queue:       q,
		obs:         obs,
		transformer: tr,
		sink:        snk,
		rec:         pipeline.NewRecorder(w, q, pol, obs),
		backlog:     w.Stats().LatestAppended,
	}, nil
}

// OpenArchive wires a file WAL, a bounded queue and snk so callers can archive
// readings from anywhere while reusing the durability/backpressure policies.
// The ingest loop starts immediately; Close stops it. A nil obs gets a
// Prometheus backend on a private registry.
func OpenArchive(cfg *ArchiveConfig, snk Sink, obs Observability) (*Archive, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if snk == nil {
		return nil, fmt.Errorf("sink is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = observability.NewPromObs(observability.WithRegisterer(prometheus.NewRegistry()))
	}

	w, err := wal.NewFileWAL(cfg.WAL.Dir)
	if err != nil {
		return nil, err
	}
	a, err := newArchive(w, queue.NewMemQueue(cfg.Policy.MaxQueueLen), nil, snk, cfg.Policy, obs)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	a.start()
	return a, nil
}

// Record appends the reading to the WAL and enqueues it according to policy.
func (a *Archive) Record(r *Reading) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrArchiveClosed
	}
	return a.rec.Record(r)
}

// Run first replays readings left uncommitted by a previous run, then drains
// the queue into the sink until ctx is cancelled.
func (a *Archive) Run(ctx context.Context) error {
	if err := pipeline.DrainBacklog(ctx, a.wal, a.backlog, a.transformer, a.sink, a.policy, a.obs); err != nil {
		return err
	}
	return pipeline.RunIngestPipeline(ctx, a.wal, a.queue, a.transformer, a.sink, a.policy, a.obs)
}

func (a *Archive) Stats() ArchiveStats {
	return ArchiveStats{Queued: a.queue.Len(), WAL: a.wal.Stats()}
}

// Compact drops committed entries from the WAL.
func (a *Archive) Compact() error {
	st := a.wal.Stats()
	if st.OldestUncommitted <= 1 {
		return nil
	}
	return a.wal.TruncateCommitted()
}

func (a *Archive) start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.doneCh = make(chan struct{})
	go func() {
		defer close(a.doneCh)
		_ = a.Run(ctx)
	}()
}

// Close stops the ingest loop started by OpenArchive, waiting at most until
// ctx is done, and closes the WAL. Readings still queued stay in the WAL
// for the next open.
func (a *Archive) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return a.closeErr
	}
	a.closed = true
	a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
		select {
		case <-a.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	err := a.wal.Close()
	a.mu.Lock()
	a.closeErr = err
	a.mu.Unlock()
	return err
}

var _ ports.Recorder = (*Archive)(nil)
