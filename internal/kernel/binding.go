package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/cadview/pkg/scene"
)

// Config holds the binding's time limits and default tessellation options.
type Config struct {
	LoadTimeout   time.Duration
	BinaryTimeout time.Duration
	RawTimeout    time.Duration
	Options       Options
}

// DefaultConfig returns the stock time limits.
func DefaultConfig() Config {
	return Config{
		LoadTimeout:   15 * time.Second,
		BinaryTimeout: 30 * time.Second,
		RawTimeout:    60 * time.Second,
	}
}

// Binding is the process-wide kernel context. It is created once, shared by
// every ingestion session and torn down only by Close.
type Binding struct {
	loader  Loader
	cfg     Config
	log     *zap.Logger
	palette *scene.Palette
	port    *port

	mu     sync.Mutex
	ready  chan struct{} // closed when loading has finished
	closed bool

	// written by load before ready is closed
	mod  Module
	caps Capabilities
}

// NewBinding creates an unloaded binding. Zero durations in cfg take the
// defaults; log may be nil.
func NewBinding(loader Loader, cfg Config, log *zap.Logger) *Binding {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = def.LoadTimeout
	}
	if cfg.BinaryTimeout <= 0 {
		cfg.BinaryTimeout = def.BinaryTimeout
	}
	if cfg.RawTimeout <= 0 {
		cfg.RawTimeout = def.RawTimeout
	}
	return &Binding{
		loader:  loader,
		cfg:     cfg,
		log:     log,
		palette: scene.NewPalette(),
		port:    newPort(),
	}
}

// Palette returns the shared mesh materials.
func (b *Binding) Palette() *scene.Palette {
	return b.palette
}

// Initialize loads the kernel on first use and returns the probed
// capabilities. Load failures and load timeouts do not fail: they leave the
// binding in degraded mode (no capabilities). The only errors are ctx
// errors and ErrClosed; an interrupted wait does not abort the load.
func (b *Binding) Initialize(ctx context.Context) (Capabilities, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if b.ready == nil {
		b.ready = make(chan struct{})
		go b.load()
	}
	ready := b.ready
	b.mu.Unlock()

	select {
	case <-ready:
		return b.caps, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Capabilities returns the probed capabilities without loading. It is
// empty until Initialize has completed.
func (b *Binding) Capabilities() Capabilities {
	b.mu.Lock()
	ready := b.ready
	b.mu.Unlock()
	if ready == nil {
		return nil
	}
	select {
	case <-ready:
		return b.caps
	default:
		return nil
	}
}

type loaded struct {
	mod Module
	err error
}

func (b *Binding) load() {
	defer close(b.ready)

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.LoadTimeout)
	defer cancel()

	start := time.Now()
	ch := make(chan loaded, 1)
	go func() {
		mod, err := b.loader.Load(ctx)
		ch <- loaded{mod: mod, err: err}
	}()

	select {
	case l := <-ch:
		if l.err != nil {
			b.log.Warn("kernel load failed, running degraded", zap.Error(l.err))
			return
		}
		b.mod = l.mod
	case <-ctx.Done():
		b.log.Warn("kernel load timed out, running degraded", zap.Duration("timeout", b.cfg.LoadTimeout))
		go func() {
			if l := <-ch; l.mod != nil {
				l.mod.Close(context.Background())
			}
		}()
		return
	}

	b.caps = probe(b.mod, b)
	if b.caps.None() {
		b.log.Warn("kernel exports no known conversion entry point, running degraded")
		return
	}
	b.log.Info("kernel loaded",
		zap.Stringer("capabilities", b.caps),
		zap.Duration("elapsed", time.Since(start)))
}

// Close releases the kernel module, the worker and the shared palette. It
// waits for an in-progress load to finish.
func (b *Binding) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	ready := b.ready
	b.mu.Unlock()

	if ready != nil {
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.port.close()
	b.palette.Dispose()

	if b.mod != nil {
		if err := b.mod.Close(ctx); err != nil {
			return fmt.Errorf("close kernel module: %w", err)
		}
	}
	return nil
}

// BinaryScene converts a whole file into a packaged binary scene (GLB).
type BinaryScene struct {
	entry string
	fn    Func
	b     *Binding
}

// Entry implements Capability.
func (c BinaryScene) Entry() string { return c.entry }
func (BinaryScene) capability()     {}

// Convert runs the conversion under the binary-scene timeout.
func (c BinaryScene) Convert(ctx context.Context, input []byte) ([]byte, error) {
	out, err := c.b.port.call(ctx, c.b.cfg.BinaryTimeout, c.fn, input, c.b.cfg.Options.encode())
	if err != nil {
		return nil, classify(c.entry, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s returned no data", ErrCallFailed, c.entry)
	}
	return out, nil
}

// RawMeshes converts a whole file into mesh records.
type RawMeshes struct {
	entry string
	fn    Func
	b     *Binding
}

// Entry implements Capability.
func (c RawMeshes) Entry() string { return c.entry }
func (RawMeshes) capability()     {}

// Convert runs the conversion under the raw-mesh timeout. Records that
// fail validation are dropped and logged.
func (c RawMeshes) Convert(ctx context.Context, input []byte) ([]MeshRecord, error) {
	out, err := c.b.port.call(ctx, c.b.cfg.RawTimeout, c.fn, input, c.b.cfg.Options.encode())
	if err != nil {
		return nil, classify(c.entry, err)
	}
	records, err := DecodeMeshes(out)
	if err != nil {
		return nil, err
	}

	valid := records[:0]
	for _, r := range records {
		if err := r.Validate(); err != nil {
			c.b.log.Warn("dropping mesh record", zap.String("entry", c.entry), zap.Error(err))
			continue
		}
		valid = append(valid, r)
	}
	return valid, nil
}

// classify keeps timeouts and context errors recognizable and folds any
// other kernel error into ErrCallFailed.
func classify(entry string, err error) error {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrClosed),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", entry, err)
	case errors.Is(err, ErrCallFailed):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", ErrCallFailed, entry, err)
	}
}
