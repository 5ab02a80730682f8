package renderer

import "sync"

// releaseQueue collects GPU deletions requested from any goroutine. Drain
// runs them on the GL thread.
type releaseQueue struct {
	mu      sync.Mutex
	pending []func()
}

// Push schedules fn. It never blocks on the GL thread.
func (q *releaseQueue) Push(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Drain runs and clears every pending deletion, returning how many ran.
func (q *releaseQueue) Drain() int {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return len(pending)
}
