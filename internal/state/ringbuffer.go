package state

// Sample is one (timestamp, value) entry in a history ring buffer.
type Sample struct {
	TimestampMS int64
	Value       int
}

// HistoryCapacity is the fixed cap on temperature_readings and
// watt_readings (S3): 128 entries, oldest (smallest key) evicted first.
const HistoryCapacity = 128

// RingBuffer realizes the "evict the entry with the smallest key" mapping
// from S3 as a fixed-capacity circular buffer of (timestamp, value) pairs
// (S9): O(1) insert and eviction, valid because the control tick is a
// single writer with a strictly-advancing clock, so insertion order and
// key order coincide.
type RingBuffer struct {
	buf   [HistoryCapacity]Sample
	start int
	count int
}

// Push appends a new sample, evicting the oldest entry first if already at
// capacity.
func (r *RingBuffer) Push(timestampMS int64, value int) {
	s := Sample{TimestampMS: timestampMS, Value: value}
	if r.count < HistoryCapacity {
		idx := (r.start + r.count) % HistoryCapacity
		r.buf[idx] = s
		r.count++
		return
	}
	// At capacity: overwrite the oldest slot and advance start, which is
	// equivalent to "delete the min-key entry, then insert".
	r.buf[r.start] = s
	r.start = (r.start + 1) % HistoryCapacity
}

// Len returns the current number of entries (<= HistoryCapacity).
func (r *RingBuffer) Len() int {
	return r.count
}

// Samples returns the buffered entries in insertion (i.e. timestamp) order.
// Intended for consumption by the out-of-scope display's graph renderer.
func (r *RingBuffer) Samples() []Sample {
	out := make([]Sample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%HistoryCapacity]
	}
	return out
}
