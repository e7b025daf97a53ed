package history

import (
	"sync"

	"crowdcounter/internal/model"
)

// DefaultSize is the ring capacity when none is configured.
const DefaultSize = 100

// Ring keeps the most recent cycle results, dropping the oldest when full.
type Ring struct {
	items []model.CycleResult
	next  int
	count int
	mu    sync.RWMutex
}

// NewRing creates a ring holding up to size results.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return &Ring{items: make([]model.CycleResult, size)}
}

// Push stores result, overwriting the oldest entry when full.
func (r *Ring) Push(result model.CycleResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.next] = result
	r.next = (r.next + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

// Recent returns up to n results, newest first. n <= 0 returns all.
func (r *Ring) Recent(n int) []model.CycleResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]model.CycleResult, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.items)) % len(r.items)
		out[i] = r.items[idx]
	}
	return out
}

// Latest returns the newest result.
func (r *Ring) Latest() (model.CycleResult, bool) {
	recent := r.Recent(1)
	if len(recent) == 0 {
		return model.CycleResult{}, false
	}
	return recent[0], true
}

// Len returns the number of stored results.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.items)
}
