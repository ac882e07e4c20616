package state

import "testing"

func TestRingBufferEvictsOldestOnOverflow(t *testing.T) {
	var r RingBuffer
	for i := 0; i < HistoryCapacity+10; i++ {
		r.Push(int64(i), i)
	}
	if r.Len() != HistoryCapacity {
		t.Fatalf("expected len %d, got %d", HistoryCapacity, r.Len())
	}
	samples := r.Samples()
	if samples[0].TimestampMS != 10 {
		t.Fatalf("expected oldest surviving timestamp 10, got %d", samples[0].TimestampMS)
	}
	last := samples[len(samples)-1]
	if last.TimestampMS != int64(HistoryCapacity+9) {
		t.Fatalf("expected newest timestamp %d, got %d", HistoryCapacity+9, last.TimestampMS)
	}
}

func TestRingBufferPreservesInsertionOrderUnderCapacity(t *testing.T) {
	var r RingBuffer
	for i := 0; i < 5; i++ {
		r.Push(int64(i*10), i)
	}
	samples := r.Samples()
	if len(samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(samples))
	}
	for i, s := range samples {
		if s.Value != i || s.TimestampMS != int64(i*10) {
			t.Fatalf("sample %d out of order: %+v", i, s)
		}
	}
}
