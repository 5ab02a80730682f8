// Package ingest turns CAD and mesh files into normalized scene graphs. Each
// load runs as a Session with its own cancellation, progress stream and
// exactly one terminal Outcome.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Faultbox/cadview/pkg/scene"
)

// Input is one file handed to a pipeline.
type Input struct {
	Name string
	Ext  string // lowercase extension without the dot
	Data []byte
}

// Result is a pipeline's successful output.
type Result struct {
	Graph    *scene.Graph
	Path     string  // which route produced the graph, e.g. "raw-meshes(ReadStepFile)"
	Warnings []error // recovered problems worth surfacing
	DXF      *DXFReport
}

// Pipeline converts one input into a scene graph. Implementations check ctx
// at their suspension points and return an error wrapping ErrAborted once
// cancellation is observed.
type Pipeline interface {
	Ingest(ctx context.Context, in Input, progress *Emitter) (*Result, error)
}

// Status is the terminal state of a session.
type Status int

const (
	StatusSuccess Status = iota + 1
	StatusAborted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusAborted:
		return "aborted"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome is the single terminal result of a session.
type Outcome struct {
	SessionID uint64
	Status    Status
	Result    *Result // set on success
	Err       error   // set on failure
}

// Session is one in-flight ingestion.
type Session struct {
	ID   uint64
	Name string

	ctx      context.Context
	cancel   context.CancelFunc
	progress *Emitter
	done     chan struct{}

	mu      sync.Mutex
	outcome Outcome
	ran     bool
}

// NewSession creates a session derived from parent. Progress throttling
// uses interval.
func NewSession(parent context.Context, id uint64, name string, interval time.Duration) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:       id,
		Name:     name,
		ctx:      ctx,
		cancel:   cancel,
		progress: NewEmitter(id, interval),
		done:     make(chan struct{}),
	}
}

// Context returns the session's cancellation token.
func (s *Session) Context() context.Context { return s.ctx }

// Progress returns the session's progress stream.
func (s *Session) Progress() *Emitter { return s.progress }

// Cancel signals cancellation. It does not wait; use Wait.
func (s *Session) Cancel() { s.cancel() }

// Done is closed once the outcome is available.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session has finished or ctx is done.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		return s.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Outcome returns the terminal outcome, or a zero Outcome while running.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Run executes p on in and records the outcome. It must be called once;
// later calls return the recorded outcome. A graph produced after
// cancellation is disposed and the session ends as aborted.
func (s *Session) Run(p Pipeline, in Input) Outcome {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		<-s.done
		return s.Outcome()
	}
	s.ran = true
	s.mu.Unlock()

	res, err := runPipeline(s.ctx, p, in, s.progress)
	return s.Finish(res, err)
}

func runPipeline(ctx context.Context, p Pipeline, in Input, progress *Emitter) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.Ingest(ctx, in, progress)
}

// Finish records an outcome for work done outside Run, such as a failed
// DWG conversion step. Only the first call counts.
func (s *Session) Finish(res *Result, err error) Outcome {
	o := Outcome{SessionID: s.ID}
	switch {
	case err == nil && s.ctx.Err() != nil:
		disposeResult(res)
		o.Status, o.Err = StatusAborted, fmt.Errorf("%w: %v", ErrAborted, s.ctx.Err())
	case err == nil && res != nil && res.Graph != nil:
		o.Status, o.Result = StatusSuccess, res
	case err == nil:
		o.Status, o.Err = StatusFailed, errors.New("pipeline produced no scene")
	case errors.Is(err, ErrAborted), s.ctx.Err() != nil && errors.Is(err, s.ctx.Err()):
		disposeResult(res)
		o.Status, o.Err = StatusAborted, err
	default:
		disposeResult(res)
		o.Status, o.Err = StatusFailed, err
	}

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		disposeResult(o.Result)
		return s.Outcome()
	default:
	}
	s.outcome = o
	close(s.done)
	s.mu.Unlock()

	s.progress.Close()
	s.cancel()
	return o
}

func disposeResult(res *Result) {
	if res != nil && res.Graph != nil {
		res.Graph.Dispose()
	}
}

// aborted converts an observed cancellation into ErrAborted.
func aborted(ctx context.Context) error {
	return fmt.Errorf("%w: %v", ErrAborted, context.Cause(ctx))
}
