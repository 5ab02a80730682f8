package desktop

import "sync"

// mailbox hands work from orchestrator goroutines to the GL thread. Post
// never blocks, so a listener called during Load cannot deadlock the loop.
type mailbox struct {
	mu    sync.Mutex
	queue []func()
}

func (m *mailbox) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

func (m *mailbox) Drain() {
	m.mu.Lock()
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()
	for _, fn := range queue {
		fn()
	}
}
