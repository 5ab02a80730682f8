package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type request struct {
	ctx     context.Context
	fn      Func
	input   []byte
	options []byte
	reply   chan result
}

type result struct {
	out []byte
	err error
}

// port serializes kernel calls onto one worker goroutine. Replies are
// buffered so a call abandoned by its caller still completes without
// blocking the worker.
type port struct {
	reqs chan request
	done chan struct{}
	once sync.Once
}

func newPort() *port {
	p := &port{
		reqs: make(chan request),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *port) run() {
	for {
		select {
		case req := <-p.reqs:
			out, err := invoke(req)
			req.reply <- result{out: out, err: err}
		case <-p.done:
			return
		}
	}
}

func invoke(req request) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCallFailed, r)
		}
	}()
	return req.fn(req.ctx, req.input, req.options)
}

// call sends one request and waits for its reply, the caller's context or
// the timeout, whichever comes first. The kernel itself runs under a
// detached context: once dispatched, a call is never interrupted.
func (p *port) call(ctx context.Context, timeout time.Duration, fn Func, input, options []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	req := request{
		ctx:     context.WithoutCancel(ctx),
		fn:      fn,
		input:   input,
		options: options,
		reply:   make(chan result, 1),
	}
	select {
	case p.reqs <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, fmt.Errorf("%w after %s (queued)", ErrTimeout, timeout)
	case <-p.done:
		return nil, ErrClosed
	}

	select {
	case r := <-req.reply:
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-p.done:
		return nil, ErrClosed
	}
}

func (p *port) close() {
	p.once.Do(func() { close(p.done) })
}
