// internal/service/history.go
package service

import (
	"sync"

	"register-terminal/internal/model"
)

// History keeps the most recent results in memory, oldest first
type History struct {
	mu      sync.RWMutex
	entries []*model.Result
	next    int
	full    bool
}

// NewHistory creates a history holding at most size entries
func NewHistory(size int) *History {
	if size <= 0 {
		size = 1
	}
	return &History{entries: make([]*model.Result, size)}
}

// Add appends a result, evicting the oldest when full
func (h *History) Add(result *model.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.next] = result
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
}

// Len returns the number of stored results
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// Last returns up to limit most recent results, oldest first. limit <= 0 returns all.
func (h *History) Last(limit int) []*model.Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ordered []*model.Result
	if h.full {
		ordered = append(ordered, h.entries[h.next:]...)
	}
	ordered = append(ordered, h.entries[:h.next]...)

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}
