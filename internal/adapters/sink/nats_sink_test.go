package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ghalamif/perfwatch/internal/domain"
)

type published struct {
	subject string
	data    []byte
}

type stubPublisher struct {
	msgs       []published
	flushes    int
	publishErr error
}

func (s *stubPublisher) Publish(subj string, data []byte) error {
	if s.publishErr != nil {
		return s.publishErr
	}
	s.msgs = append(s.msgs, published{subject: subj, data: data})
	return nil
}

func (s *stubPublisher) FlushWithContext(ctx context.Context) error {
	s.flushes++
	return ctx.Err()
}

func TestNATSSinkPublishesPerChannel(t *testing.T) {
	pub := &stubPublisher{}
	sink := NewNATSSink(pub, "perfwatch.readings.")

	readings := []*domain.Reading{
		{Session: "s-1", Channel: "flow", Seq: 2, Value: 150},
		{Session: "s-1", Channel: "pressure:kidney2", Seq: 2, Value: 70},
	}
	if err := sink.WriteBatch(context.Background(), readings); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	if len(pub.msgs) != 2 {
		t.Fatalf("expected 2 published messages, got %d", len(pub.msgs))
	}
	if pub.msgs[0].subject != "perfwatch.readings.flow" {
		t.Fatalf("unexpected subject %q", pub.msgs[0].subject)
	}
	if pub.msgs[1].subject != "perfwatch.readings.pressure.kidney2" {
		t.Fatalf("unexpected subject %q", pub.msgs[1].subject)
	}
	var got domain.Reading
	if err := json.Unmarshal(pub.msgs[1].data, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Channel != "pressure:kidney2" || got.Value != 70 {
		t.Fatalf("unexpected payload %+v", got)
	}
	if pub.flushes != 1 {
		t.Fatalf("expected one flush per batch, got %d", pub.flushes)
	}
}

func TestNATSSinkPublishError(t *testing.T) {
	pub := &stubPublisher{publishErr: errors.New("disconnected")}
	sink := NewNATSSink(pub, "perfwatch.readings")

	err := sink.WriteBatch(context.Background(), []*domain.Reading{{Channel: "flow"}})
	if err == nil {
		t.Fatalf("expected publish error")
	}
	if pub.flushes != 0 {
		t.Fatalf("flush should not run after a failed publish")
	}
}

func TestNATSSinkEmptyBatch(t *testing.T) {
	pub := &stubPublisher{}
	if err := NewNATSSink(pub, "x").WriteBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if pub.flushes != 0 {
		t.Fatalf("empty batch should not flush")
	}
}
