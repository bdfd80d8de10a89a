package storage

import (
	"sync"
	"time"
)

type RingBuffer struct {
	data     []MixRecord
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		data:     make([]MixRecord, capacity),
		capacity: capacity,
	}
}

func (rb *RingBuffer) Push(rec MixRecord) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data[rb.head] = rec
	rb.head = (rb.head + 1) % rb.capacity

	if rb.size < rb.capacity {
		rb.size++
	}
}

// GetRecent returns the n most recent records, newest first.
func (rb *RingBuffer) GetRecent(n int) []MixRecord {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.size {
		n = rb.size
	}

	result := make([]MixRecord, n)
	for i := 0; i < n; i++ {
		idx := (rb.head - 1 - i + rb.capacity) % rb.capacity
		result[i] = rb.data[idx]
	}

	return result
}

func (rb *RingBuffer) GetByTimeRange(start, end time.Time) []MixRecord {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	result := make([]MixRecord, 0)

	for i := 0; i < rb.size; i++ {
		rec := rb.data[i]
		if (rec.Timestamp.Equal(start) || rec.Timestamp.After(start)) &&
			(rec.Timestamp.Equal(end) || rec.Timestamp.Before(end)) {
			result = append(result, rec)
		}
	}

	return result
}

// Latest returns the newest record, or nil when the buffer is empty.
func (rb *RingBuffer) Latest() *MixRecord {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return nil
	}
	rec := rb.data[(rb.head-1+rb.capacity)%rb.capacity]
	return &rec
}

func (rb *RingBuffer) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

func (rb *RingBuffer) GetStats() map[string]interface{} {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	oldest := time.Time{}
	newest := time.Time{}
	saturatedCycles := 0

	if rb.size > 0 {
		oldestIdx := (rb.head - rb.size + rb.capacity) % rb.capacity
		oldest = rb.data[oldestIdx].Timestamp

		newestIdx := (rb.head - 1 + rb.capacity) % rb.capacity
		newest = rb.data[newestIdx].Timestamp
	}

	for i := 0; i < rb.size; i++ {
		if rb.data[i].Saturation.Saturated() {
			saturatedCycles++
		}
	}

	return map[string]interface{}{
		"size":              rb.size,
		"capacity":          rb.capacity,
		"utilization":       float64(rb.size) / float64(rb.capacity) * 100.0,
		"saturated_cycles":  saturatedCycles,
		"oldest_timestamp":  oldest,
		"newest_timestamp":  newest,
		"time_span_seconds": newest.Sub(oldest).Seconds(),
	}
}
