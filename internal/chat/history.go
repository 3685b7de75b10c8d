package chat

import "sync"

// DefaultHistorySize is the number of chat lines replayed to a new user.
const DefaultHistorySize = 10

// History is a fixed-capacity FIFO of formatted chat lines.
type History struct {
	mu       sync.Mutex
	lines    []string
	capacity int
}

// NewHistory creates a History holding at most capacity lines. A non-positive
// capacity falls back to DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{
		lines:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Append adds line to the tail, evicting the oldest line first when full.
func (h *History) Append(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.lines) >= h.capacity {
		copy(h.lines, h.lines[1:])
		h.lines = h.lines[:len(h.lines)-1]
	}
	h.lines = append(h.lines, line)
}

// Snapshot returns the buffered lines, oldest first.
func (h *History) Snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}

// Len returns the number of buffered lines.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lines)
}

// Capacity returns the maximum number of buffered lines.
func (h *History) Capacity() int {
	return h.capacity
}
