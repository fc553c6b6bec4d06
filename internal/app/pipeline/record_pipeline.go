package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

var (
	// ErrQueueFull indicates the queue rejected a reading according to policy.
	ErrQueueFull = errors.New("perfwatch: recorder queue full")
	// ErrWALFull indicates the WAL is at capacity and OnWALFull != "block".
	ErrWALFull = errors.New("perfwatch: recorder wal full")
)

// Recorder makes readings durable in the WAL and hands them to the ingest
// loop through the bounded queue.
type Recorder struct {
	wal ports.WAL
	q   ports.ReadingQueue
	pol ports.Policy
	obs ports.Observability
}

func NewRecorder(wal ports.WAL, q ports.ReadingQueue, pol ports.Policy, obs ports.Observability) *Recorder {
	return &Recorder{wal: wal, q: q, pol: pol, obs: obs}
}

func (r *Recorder) Record(rd *domain.Reading) error {
	if !waitForWALCapacity(r.wal, r.pol, r.obs) {
		return ErrWALFull
	}

	id, err := r.wal.Append(rd)
	if err != nil {
		r.obs.LogCritical("wal_append_failed", err)
		return fmt.Errorf("wal append: %w", err)
	}

	if !enqueueWithPolicy(r.q, id, rd, r.pol, r.obs) {
		return ErrQueueFull
	}
	return nil
}

var _ ports.Recorder = (*Recorder)(nil)

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}

func waitForWALCapacity(wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := idleSleep(pol)

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

func enqueueWithPolicy(q ports.ReadingQueue, id ports.WALEntryID, rd *domain.Reading, pol ports.Policy, obs ports.Observability) bool {
	sleep := idleSleep(pol)

	for {
		if ok := q.Enqueue(id, rd); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
