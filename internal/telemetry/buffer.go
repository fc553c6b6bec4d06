package telemetry

import (
	"math"
	"strconv"
)

// DefaultMaxPoints is the window size used by the dashboard charts.
const DefaultMaxPoints = 50

// NoData marks a missing reading. It renders as a gap, never interpolated.
var NoData = math.NaN()

// Sample is one observation on a channel. Seq is a logical timestamp
// assigned by the caller, not wall-clock time.
type Sample struct {
	Seq   int64
	Value float64
}

// Missing reports whether the sample is a no-data gap.
func (s Sample) Missing() bool { return math.IsNaN(s.Value) }

// MarshalJSON encodes gaps as a null value.
func (s Sample) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 40)
	b = append(b, `{"seq":`...)
	b = strconv.AppendInt(b, s.Seq, 10)
	b = append(b, `,"value":`...)
	if s.Missing() {
		b = append(b, "null"...)
	} else {
		b = strconv.AppendFloat(b, s.Value, 'g', -1, 64)
	}
	return append(b, '}'), nil
}

// ChannelBuffer is a fixed-capacity FIFO of samples. It is not safe for
// concurrent use; Window serialises access.
type ChannelBuffer struct {
	buf   []Sample
	start int
	size  int
}

func NewChannelBuffer(capacity int) *ChannelBuffer {
	if capacity <= 0 {
		capacity = DefaultMaxPoints
	}
	return &ChannelBuffer{buf: make([]Sample, capacity)}
}

// Push appends s and reports whether the oldest sample was evicted.
func (b *ChannelBuffer) Push(s Sample) bool {
	if math.IsInf(s.Value, 0) {
		s.Value = NoData
	}
	if b.size < len(b.buf) {
		b.buf[(b.start+b.size)%len(b.buf)] = s
		b.size++
		return false
	}
	b.buf[b.start] = s
	b.start = (b.start + 1) % len(b.buf)
	return true
}

// Snapshot copies the contents oldest to newest.
func (b *ChannelBuffer) Snapshot() []Sample {
	if b.size == 0 {
		return nil
	}
	out := make([]Sample, b.size)
	n := copy(out, b.buf[b.start:min(b.start+b.size, len(b.buf))])
	copy(out[n:], b.buf[:b.size-n])
	return out
}

func (b *ChannelBuffer) Latest() (Sample, bool) {
	if b.size == 0 {
		return Sample{}, false
	}
	return b.buf[(b.start+b.size-1)%len(b.buf)], true
}

func (b *ChannelBuffer) Len() int { return b.size }
func (b *ChannelBuffer) Cap() int { return len(b.buf) }
