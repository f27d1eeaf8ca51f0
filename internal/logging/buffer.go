package logging

import (
	"sync"
	"time"
)

// LogEntry is one record kept for the log stream API.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent log entries. Safe for concurrent use.
type RingBuffer struct {
	mu      sync.Mutex
	slots   []LogEntry
	written uint64
}

// NewRingBuffer returns a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{slots: make([]LogEntry, size)}
}

// Write stores entry, replacing the oldest one once the buffer is full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	rb.slots[rb.written%uint64(len(rb.slots))] = entry
	rb.written++
	rb.mu.Unlock()
}

// ReadAll returns every held entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Tail(0)
}

// Count returns the number of held entries.
func (rb *RingBuffer) Count() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.held()
}

// Tail returns up to n of the newest entries, oldest first. n <= 0 means all.
func (rb *RingBuffer) Tail(n int) []LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	count := rb.held()
	if n > 0 && n < count {
		count = n
	}
	if count == 0 {
		return nil
	}

	size := uint64(len(rb.slots))
	first := rb.written - uint64(count)
	out := make([]LogEntry, count)
	for i := range out {
		out[i] = rb.slots[(first+uint64(i))%size]
	}
	return out
}

func (rb *RingBuffer) held() int {
	if rb.written < uint64(len(rb.slots)) {
		return int(rb.written)
	}
	return len(rb.slots)
}
