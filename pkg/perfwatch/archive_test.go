package perfwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type collectingSink struct {
	mu   sync.Mutex
	got  []Reading
	fail bool
}

func (c *collectingSink) write(batch []Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("archive offline")
	}
	c.got = append(c.got, batch...)
	return nil
}

func (c *collectingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func archiveConfig(dir string) *ArchiveConfig {
	return &ArchiveConfig{
		Policy: Policy{MaxQueueLen: 16, MaxBatchSize: 8, IdleSleep: time.Millisecond},
		WAL:    WALConfig{Dir: dir},
	}
}

func TestArchiveDeliversReadings(t *testing.T) {
	col := &collectingSink{}
	a, err := OpenArchive(archiveConfig(t.TempDir()), NewCallbackSink("collect", col.write), &stubObservability{})
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := a.Record(&Reading{Session: "s", Channel: ChannelFlow, Seq: int64(i * 2), Value: 150}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	waitFor(t, func() bool { return col.count() == 3 })
	waitFor(t, func() bool { return a.Stats().WAL.OldestUncommitted == 4 })

	if err := a.Compact(); err != nil {
		t.Fatalf("compact: %v", err)
	}
	if size := a.Stats().WAL.SizeBytes; size != 0 {
		t.Fatalf("expected empty WAL after compaction, got %d bytes", size)
	}

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Record(&Reading{Channel: ChannelFlow}); !errors.Is(err, ErrArchiveClosed) {
		t.Fatalf("expected ErrArchiveClosed, got %v", err)
	}
}

func TestArchiveReplaysAfterReopen(t *testing.T) {
	dir := t.TempDir()
	offline := &collectingSink{fail: true}
	a, err := OpenArchive(archiveConfig(dir), NewCallbackSink("offline", offline.write), &stubObservability{})
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := a.Record(&Reading{Session: "s", Channel: ChannelTemperature, Seq: int64(i * 2), Value: 5}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	online := &collectingSink{}
	b, err := OpenArchive(archiveConfig(dir), NewCallbackSink("online", online.write), &stubObservability{})
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	defer b.Close(context.Background())

	waitFor(t, func() bool { return online.count() == 2 })
}

func TestOpenArchiveValidates(t *testing.T) {
	if _, err := OpenArchive(nil, &stubSink{}, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := OpenArchive(archiveConfig(t.TempDir()), nil, nil); err == nil {
		t.Fatalf("expected error for nil sink")
	}
}
