package queue

import (
	"sync"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

// MemQueue is a bounded in-memory FIFO between the recorder and the ingest loop.
// Unlike a telemetry channel it never evicts: a full queue rejects.
type MemQueue struct {
	mu   sync.Mutex
	ring []ports.QueuedReading
	head int
	n    int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{ring: make([]ports.QueuedReading, capacity)}
}

func (q *MemQueue) Enqueue(id ports.WALEntryID, r *domain.Reading) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == len(q.ring) {
		return false
	}
	q.ring[(q.head+q.n)%len(q.ring)] = ports.QueuedReading{ID: id, Reading: r}
	q.n++
	return true
}

// DequeueBatch pops up to max readings in arrival order; max <= 0 drains
// everything. It returns nil when the queue is empty.
func (q *MemQueue) DequeueBatch(max int) []ports.QueuedReading {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return nil
	}
	if max <= 0 || max > q.n {
		max = q.n
	}
	out := make([]ports.QueuedReading, max)
	for i := range out {
		slot := (q.head + i) % len(q.ring)
		out[i] = q.ring[slot]
		q.ring[slot] = ports.QueuedReading{}
	}
	q.head = (q.head + max) % len(q.ring)
	q.n -= max
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *MemQueue) Cap() int { return len(q.ring) }

var _ ports.ReadingQueue = (*MemQueue)(nil)
