package ingest

import (
	"sync"
	"time"
)

// Event is one progress update of a session.
type Event struct {
	SessionID uint64
	Percent   float64 // 0..100, non-decreasing within a session
	Stage     string
}

// Emitter is a session's progress stream. Delivery is most-recent-wins: a
// slow reader sees the latest event, never a backlog.
type Emitter struct {
	id       uint64
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	ch       chan Event
	last     Event
	lastSent time.Time
	started  bool
	closed   bool
}

// NewEmitter creates the stream for session id. ReportThrottled drops
// updates closer together than interval.
func NewEmitter(id uint64, interval time.Duration) *Emitter {
	return &Emitter{
		id:       id,
		interval: interval,
		now:      time.Now,
		ch:       make(chan Event, 1),
	}
}

// Events returns the stream. It is closed when the session ends.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Last returns the most recent event, if any was reported.
func (e *Emitter) Last() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.started
}

// Report publishes an update unconditionally.
func (e *Emitter) Report(percent float64, stage string) {
	e.report(percent, stage, false)
}

// ReportThrottled publishes an update unless the previous one was less than
// the interval ago. 100% is never dropped.
func (e *Emitter) ReportThrottled(percent float64, stage string) {
	e.report(percent, stage, true)
}

func (e *Emitter) report(percent float64, stage string, throttle bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	percent = min(max(percent, 0), 100)
	if e.started && percent < e.last.Percent {
		percent = e.last.Percent
	}
	now := e.now()
	if throttle && e.started && percent < 100 && now.Sub(e.lastSent) < e.interval {
		return
	}

	ev := Event{SessionID: e.id, Percent: percent, Stage: stage}
	e.last, e.lastSent, e.started = ev, now, true

	select {
	case <-e.ch:
	default:
	}
	e.ch <- ev
}

// Close ends the stream. Later reports are ignored.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
