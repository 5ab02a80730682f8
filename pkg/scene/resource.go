package scene

import "sync"

// releasable tracks the single release of a renderer-visible resource.
// Renderers attach hooks to free their native copies (GPU buffers).
type releasable struct {
	mu       sync.Mutex
	disposed bool
	hooks    []func()
}

// OnDispose registers fn to run when the resource is released. If the
// resource is already released, fn runs immediately.
func (r *releasable) OnDispose(fn func()) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		fn()
		return
	}
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Disposed reports whether the resource has been released.
func (r *releasable) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// release runs the hooks once. It returns false on every call after the first.
func (r *releasable) release() bool {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return false
	}
	r.disposed = true
	hooks := r.hooks
	r.hooks = nil
	r.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return true
}
