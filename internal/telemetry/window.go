package telemetry

import (
	"sort"
	"sync"
)

// Window is a set of independent channel buffers sharing one capacity.
// Buffers are created on first append.
type Window struct {
	mu        sync.RWMutex
	maxPoints int
	channels  map[string]*ChannelBuffer
}

func NewWindow(maxPoints int) *Window {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Window{
		maxPoints: maxPoints,
		channels:  make(map[string]*ChannelBuffer),
	}
}

// Append adds a sample to channel and reports whether that channel evicted
// its oldest sample. Non-finite values are stored as NoData.
func (w *Window) Append(channel string, seq int64, value float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.channels[channel]
	if !ok {
		b = NewChannelBuffer(w.maxPoints)
		w.channels[channel] = b
	}
	return b.Push(Sample{Seq: seq, Value: value})
}

// Snapshot returns a copy of channel, oldest first. Unknown channels yield nil.
func (w *Window) Snapshot(channel string) []Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if b, ok := w.channels[channel]; ok {
		return b.Snapshot()
	}
	return nil
}

// Latest returns the most recent sample, or false if channel has no data yet.
func (w *Window) Latest(channel string) (Sample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if b, ok := w.channels[channel]; ok {
		return b.Latest()
	}
	return Sample{}, false
}

func (w *Window) Len(channel string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if b, ok := w.channels[channel]; ok {
		return b.Len()
	}
	return 0
}

func (w *Window) Capacity() int { return w.maxPoints }

// Channels lists the known channel names in sorted order.
func (w *Window) Channels() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.channels))
	for name := range w.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Series snapshots every channel at once.
func (w *Window) Series() map[string][]Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string][]Sample, len(w.channels))
	for name, b := range w.channels {
		out[name] = b.Snapshot()
	}
	return out
}
