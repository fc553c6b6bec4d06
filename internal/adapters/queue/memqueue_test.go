package queue

import (
	"sync"
	"testing"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	r1 := &domain.Reading{Channel: "temperature"}
	r2 := &domain.Reading{Channel: "flow"}

	if !q.Enqueue(1, r1) || !q.Enqueue(2, r2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].ID != 1 || batch[0].Reading.Channel != "temperature" {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
	if q.DequeueBatch(5) != nil {
		t.Fatalf("expected nil batch from empty queue")
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	reading := &domain.Reading{Channel: "flow"}

	if !q.Enqueue(1, reading) || !q.Enqueue(2, reading) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, reading) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4, reading) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}

func TestMemQueueConcurrentProducers(t *testing.T) {
	q := NewMemQueue(1000)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(0, &domain.Reading{Seq: int64(p*100 + i)})
			}
		}(p)
	}
	wg.Wait()

	if got := len(q.DequeueBatch(0)); got != 400 {
		t.Fatalf("expected 400 queued readings, got %d", got)
	}
}

func TestMemQueueWrapsAround(t *testing.T) {
	q := NewMemQueue(3)
	for round := 0; round < 5; round++ {
		base := ports.WALEntryID(round * 2)
		if !q.Enqueue(base+1, &domain.Reading{}) || !q.Enqueue(base+2, &domain.Reading{}) {
			t.Fatalf("round %d: enqueue failed with len %d", round, q.Len())
		}
		batch := q.DequeueBatch(0)
		if len(batch) != 2 || batch[0].ID != base+1 || batch[1].ID != base+2 {
			t.Fatalf("round %d: unexpected batch %+v", round, batch)
		}
	}
	if q.Cap() != 3 || q.Len() != 0 {
		t.Fatalf("expected empty queue of cap 3, got len=%d cap=%d", q.Len(), q.Cap())
	}
}
