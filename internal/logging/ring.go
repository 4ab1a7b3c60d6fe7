package logging

import (
	"bytes"
	"sync"
)

// Ring is a fixed-capacity ring buffer of raw log lines that also fans
// them out to live subscribers. It implements io.Writer so it can be
// plugged into zerolog as an additional output via zerolog.MultiLevelWriter.
type Ring struct {
	mu          sync.Mutex
	lines       [][]byte
	cap         int
	next        int
	full        bool
	subscribers map[chan []byte]struct{}
}

// NewRing creates a ring buffer holding up to capacity lines.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Ring{
		lines:       make([][]byte, capacity),
		cap:         capacity,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Write implements io.Writer. Each call is treated as one log line.
func (r *Ring) Write(p []byte) (int, error) {
	line := bytes.TrimRight(p, "\n")
	cp := make([]byte, len(line))
	copy(cp, line)

	r.mu.Lock()
	r.lines[r.next] = cp
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.full = true
	}
	for ch := range r.subscribers {
		select {
		case ch <- cp:
		default:
		}
	}
	r.mu.Unlock()

	return len(p), nil
}

// Recent returns up to n most recent lines, oldest first.
func (r *Ring) Recent(n int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered [][]byte
	if r.full {
		ordered = append(ordered, r.lines[r.next:]...)
		ordered = append(ordered, r.lines[:r.next]...)
	} else {
		ordered = append(ordered, r.lines[:r.next]...)
	}
	if n > 0 && n < len(ordered) {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}

// Subscribe returns a channel that receives every line written from now on.
func (r *Ring) Subscribe() chan []byte {
	ch := make(chan []byte, 256)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (r *Ring) Unsubscribe(ch chan []byte) {
	r.mu.Lock()
	if _, ok := r.subscribers[ch]; ok {
		delete(r.subscribers, ch)
		close(ch)
	}
	r.mu.Unlock()
}
