package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

// RunIngestPipeline drains the queue into the sink until ctx is cancelled.
// The WAL is only committed past readings the sink accepted; a failed write
// is retried with backoff, and a cancel during retries leaves the batch for
// replay on the next start.
func RunIngestPipeline(ctx context.Context, wal ports.WAL, q ports.ReadingQueue, tr ports.Transformer, sink ports.Sink, pol ports.Policy, obs ports.Observability) error {
	idle := idleSleep(pol)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) == 0 {
			sleepCtx(ctx, idle)
			continue
		}
		if !deliver(ctx, wal, batch, tr, sink, idle, obs) {
			// cancelled mid-retry; the WAL keeps the batch for replay
			return nil
		}
	}
}

var errBatchFull = errors.New("batch full")

// DrainBacklog writes the uncommitted WAL entries up to and including upTo
// straight to the sink, one batch at a time, before the queue takes over.
// Entries appended after upTo arrive through the queue.
func DrainBacklog(ctx context.Context, wal ports.WAL, upTo ports.WALEntryID, tr ports.Transformer, sink ports.Sink, pol ports.Policy, obs ports.Observability) error {
	size := pol.MaxBatchSize
	if size <= 0 {
		size = 500
	}
	idle := idleSleep(pol)

	var drained int
	from := wal.Stats().OldestUncommitted
	for from != 0 && from <= upTo {
		batch := make([]ports.QueuedReading, 0, size)
		err := wal.Iterate(from, func(id ports.WALEntryID, rd *domain.Reading) error {
			if id > upTo || len(batch) == size {
				return errBatchFull
			}
			batch = append(batch, ports.QueuedReading{ID: id, Reading: rd})
			return nil
		})
		if err != nil && !errors.Is(err, errBatchFull) {
			return fmt.Errorf("wal replay: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		if !deliver(ctx, wal, batch, tr, sink, idle, obs) {
			return nil
		}
		drained += len(batch)
		from = batch[len(batch)-1].ID + 1
	}

	if drained > 0 {
		obs.LogInfo("wal_replay_complete",
			ports.Field{Key: "readings", Value: drained},
			ports.Field{Key: "up_to", Value: uint64(upTo)})
	}
	return nil
}

// deliver transforms one batch, writes it and commits the WAL past it. It
// returns false only when ctx was cancelled before the sink accepted it.
func deliver(ctx context.Context, wal ports.WAL, batch []ports.QueuedReading, tr ports.Transformer, sink ports.Sink, idle time.Duration, obs ports.Observability) bool {
	var (
		out   = make([]*domain.Reading, 0, len(batch))
		maxID ports.WALEntryID
	)
	for _, item := range batch {
		if item.ID > maxID {
			maxID = item.ID
		}
		rd, err := tr.Transform(item.Reading)
		if err != nil {
			obs.RecordDLQ(item.ID, item.Reading, err)
			continue
		}
		rd.TransformVer = tr.Version()
		out = append(out, rd)
	}

	if len(out) > 0 {
		if !writeWithRetry(ctx, sink, out, idle, obs) {
			return false
		}
		obs.IncCounter("perfwatch_readings_recorded_total", float64(len(out)))
	}
	if err := wal.Commit(maxID); err != nil {
		obs.LogError("wal_commit_failed", err)
	}
	return true
}

// writeWithRetry retries the same batch until the sink accepts it, so the
// commit watermark never passes readings that were not written.
func writeWithRetry(ctx context.Context, sink ports.Sink, batch []*domain.Reading, idle time.Duration, obs ports.Observability) bool {
	backoff := idle
	for {
		start := time.Now()
		err := sink.WriteBatch(ctx, batch)
		if err == nil {
			obs.ObserveLatency("perfwatch_recorder_sink_latency_seconds", time.Since(start).Seconds())
			return true
		}
		obs.LogError("sink_write_failed", err,
			ports.Field{Key: "sink", Value: sink.Name()},
			ports.Field{Key: "batch", Value: len(batch)})
		sleepCtx(ctx, backoff)
		if ctx.Err() != nil {
			return false
		}
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// NoopTransformer passes readings through unchanged.
type NoopTransformer struct{}

func (NoopTransformer) Transform(r *domain.Reading) (*domain.Reading, error) { return r, nil }
func (NoopTransformer) Version() uint16                                      { return 1 }
