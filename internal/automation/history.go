package automation

import "sync"

// DefaultHistorySize is the number of executions kept when none is configured.
const DefaultHistorySize = 100

// History is a fixed-size ring of recent executions.
type History struct {
	mu     sync.Mutex
	buf    []Execution
	next   int
	full   bool
	total  int
	failed int
}

// NewHistory creates a ring holding up to size executions.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Execution, size)}
}

// Add records an execution, evicting the oldest when full.
func (h *History) Add(e Execution) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = e
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.total++
	if e.Status == StatusFailed {
		h.failed++
	}
}

// Recent returns up to limit executions, newest first. limit <= 0 returns all kept.
func (h *History) Recent(limit int) []Execution {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Execution, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.buf)) % len(h.buf)
		out = append(out, h.buf[idx])
	}
	return out
}

// Counts returns the total and failed executions recorded since creation.
func (h *History) Counts() (total, failed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total, h.failed
}
