// Package viewer owns the interactive loading session: it routes each file
// to its pipeline, keeps at most one session active and hands exactly one
// live scene graph to the render surface.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/cadview/internal/dwg"
	"github.com/Faultbox/cadview/internal/ingest"
	"github.com/Faultbox/cadview/pkg/formats"
	"github.com/Faultbox/cadview/pkg/scene"
)

// ErrClosed is returned by Load after Close.
var ErrClosed = errors.New("viewer closed")

// DefaultMaxFileSize is the stock upload ceiling.
const DefaultMaxFileSize = 200 << 20

// Pipelines are the ingestion routes. A nil DWG converter makes DWG files
// fail with ingest.ErrConversionUnavailable.
type Pipelines struct {
	Step ingest.Pipeline
	DXF  ingest.Pipeline
	Mesh ingest.Pipeline
	DWG  dwg.Converter
}

// Options tune the orchestrator.
type Options struct {
	MaxFileSize      int64         // bytes; 0 means DefaultMaxFileSize
	ProgressInterval time.Duration // throttle for per-item progress
}

// Listener receives session updates. Callbacks run on orchestrator
// goroutines and only for the active session; implementations must not
// call back into the Orchestrator synchronously.
type Listener interface {
	Progress(ev ingest.Event)
	// SceneReplaced reports the new live scene, or nil when cleared. The
	// previous scene has already been disposed.
	SceneReplaced(g *scene.Graph)
	Outcome(o ingest.Outcome)
}

// Orchestrator coordinates successive loads.
type Orchestrator struct {
	pipes    Pipelines
	opts     Options
	log      *zap.Logger
	listener Listener

	loadMu sync.Mutex // serializes Load, Reset and Close

	mu      sync.Mutex
	nextID  uint64
	active  *job
	current *scene.Graph
	closed  bool
}

// job is a session plus the goroutine delivering its outcome.
type job struct {
	s        *ingest.Session
	finished chan struct{}
}

// New creates an orchestrator. listener and log may be nil.
func New(pipes Pipelines, opts Options, listener Listener, log *zap.Logger) *Orchestrator {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	if listener == nil {
		listener = ListenerFuncs{}
	}
	return &Orchestrator{pipes: pipes, opts: opts, log: log, listener: listener}
}

// Current returns the live scene graph, if any.
func (o *Orchestrator) Current() *scene.Graph {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Active returns the in-flight session, if any.
func (o *Orchestrator) Active() *ingest.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return nil
	}
	return o.active.s
}

// Cancel aborts the in-flight session without waiting. The live scene is
// kept.
func (o *Orchestrator) Cancel() {
	if s := o.Active(); s != nil {
		s.Cancel()
	}
}

// Load starts ingesting f. Unsupported and oversize files are rejected
// synchronously before any pipeline runs. Otherwise the previous session is
// cancelled and awaited, the previous scene disposed, and the new session
// returned while it runs in the background. ctx bounds only the wait for
// the previous session.
func (o *Orchestrator) Load(ctx context.Context, f File) (*ingest.Session, error) {
	det, err := formats.Detect(f.Name())
	if err != nil {
		return nil, err
	}
	if f.Size() > o.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %s, the limit is %s",
			ingest.ErrOversizeInput, f.Name(), megabytes(f.Size()), megabytes(o.opts.MaxFileSize))
	}
	pipe, err := o.route(det)
	if err != nil {
		return nil, err
	}

	o.loadMu.Lock()
	defer o.loadMu.Unlock()

	if err := o.stop(ctx); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	o.nextID++
	s := ingest.NewSession(context.Background(), o.nextID, f.Name(), o.opts.ProgressInterval)
	j := &job{s: s, finished: make(chan struct{})}
	o.active = j
	o.mu.Unlock()

	o.log.Info("loading file",
		zap.Uint64("session", s.ID),
		zap.String("file", f.Name()),
		zap.Stringer("kind", det.Kind),
		zap.Int64("bytes", f.Size()))

	relayed := make(chan struct{})
	go o.relay(s, relayed)
	go o.run(j, f, det, pipe, relayed)
	return s, nil
}

// Reset cancels and awaits the active session, then disposes and clears
// the live scene.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.loadMu.Lock()
	defer o.loadMu.Unlock()
	return o.stop(ctx)
}

// Close behaves like Reset and rejects further loads.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.loadMu.Lock()
	defer o.loadMu.Unlock()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return o.stop(ctx)
}

// stop cancels and awaits the active session and disposes the live scene.
// loadMu must be held.
func (o *Orchestrator) stop(ctx context.Context) error {
	o.mu.Lock()
	prev := o.active
	o.mu.Unlock()

	if prev != nil {
		prev.s.Cancel()
		select {
		case <-prev.finished:
		case <-ctx.Done():
			return fmt.Errorf("wait for session %d: %w", prev.s.ID, ctx.Err())
		}
	}

	o.mu.Lock()
	if o.active == prev {
		o.active = nil
	}
	old := o.current
	o.current = nil
	o.mu.Unlock()

	if old != nil {
		old.Dispose()
		o.listener.SceneReplaced(nil)
	}
	return nil
}

func (o *Orchestrator) route(det formats.Detection) (ingest.Pipeline, error) {
	var p ingest.Pipeline
	switch det.Kind {
	case formats.KindStep:
		p = o.pipes.Step
	case formats.KindDXF:
		p = o.pipes.DXF
	case formats.KindMesh:
		p = o.pipes.Mesh
	case formats.KindDWG:
		if o.pipes.DXF != nil {
			p = &dwgPipeline{conv: o.pipes.DWG, dxf: o.pipes.DXF}
		}
	}
	if p == nil {
		return nil, fmt.Errorf("%w: no pipeline configured for %s files", ingest.ErrUnsupportedFormat, det.Kind)
	}
	return p, nil
}

func (o *Orchestrator) isActive(id uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil && o.active.s.ID == id
}

func (o *Orchestrator) relay(s *ingest.Session, done chan<- struct{}) {
	defer close(done)
	for ev := range s.Progress().Events() {
		if o.isActive(ev.SessionID) {
			o.listener.Progress(ev)
		}
	}
}

func (o *Orchestrator) run(j *job, f File, det formats.Detection, pipe ingest.Pipeline, relayed <-chan struct{}) {
	defer close(j.finished)
	s := j.s
	var out ingest.Outcome
	data, err := o.read(s.Context(), f)
	if err != nil {
		out = s.Finish(nil, err)
	} else {
		out = s.Run(pipe, ingest.Input{Name: f.Name(), Ext: det.Ext, Data: data})
	}
	<-relayed

	log := o.log.With(zap.Uint64("session", s.ID), zap.String("file", f.Name()))
	var old *scene.Graph
	o.mu.Lock()
	live := o.active == j
	if live && out.Status == ingest.StatusSuccess {
		old, o.current = o.current, out.Result.Graph
	}
	o.mu.Unlock()
	if old != nil {
		old.Dispose()
	}

	if !live {
		if out.Result != nil {
			out.Result.Graph.Dispose()
		}
		log.Debug("discarding superseded session", zap.Stringer("status", out.Status))
		return
	}

	// active stays set until the listener has been told, so a concurrent
	// Reset waits for delivery before disposing the new scene.
	defer func() {
		o.mu.Lock()
		if o.active == j {
			o.active = nil
		}
		o.mu.Unlock()
	}()

	switch out.Status {
	case ingest.StatusSuccess:
		st := out.Result.Graph.Stats()
		log.Info("scene ready",
			zap.String("path", out.Result.Path),
			zap.Int("meshes", st.Meshes),
			zap.Int("lines", st.Lines),
			zap.Int("warnings", len(out.Result.Warnings)))
		o.listener.SceneReplaced(out.Result.Graph)
	case ingest.StatusAborted:
		log.Debug("session aborted")
	default:
		log.Error("load failed", zap.Error(out.Err))
	}
	o.listener.Outcome(out)
}

// read loads the file bytes, enforcing the size ceiling even when the
// reported size was wrong.
func (o *Orchestrator) read(ctx context.Context, f File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, o.opts.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	if int64(len(data)) > o.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %s", ingest.ErrOversizeInput, f.Name(), megabytes(o.opts.MaxFileSize))
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ingest.ErrAborted, ctx.Err())
	}
	return data, nil
}

func megabytes(n int64) string {
	return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
}

// dwgPipeline converts DWG to DXF before handing the result to the DXF
// pipeline.
type dwgPipeline struct {
	conv dwg.Converter
	dxf  ingest.Pipeline
}

func (p *dwgPipeline) Ingest(ctx context.Context, in ingest.Input, progress *ingest.Emitter) (*ingest.Result, error) {
	if p.conv == nil {
		return nil, fmt.Errorf("%w: no converter configured", ingest.ErrConversionUnavailable)
	}
	progress.Report(2, "Converting DWG to DXF")
	dxf, err := p.conv.Convert(ctx, in.Name, in.Data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ingest.ErrAborted, ctx.Err())
		}
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ingest.ErrAborted, ctx.Err())
	}
	return p.dxf.Ingest(ctx, ingest.Input{Name: in.Name, Ext: in.Ext, Data: dxf}, progress)
}

// ListenerFuncs adapts optional callbacks to Listener.
type ListenerFuncs struct {
	OnProgress      func(ingest.Event)
	OnSceneReplaced func(*scene.Graph)
	OnOutcome       func(ingest.Outcome)
}

// Progress implements Listener.
func (l ListenerFuncs) Progress(ev ingest.Event) {
	if l.OnProgress != nil {
		l.OnProgress(ev)
	}
}

// SceneReplaced implements Listener.
func (l ListenerFuncs) SceneReplaced(g *scene.Graph) {
	if l.OnSceneReplaced != nil {
		l.OnSceneReplaced(g)
	}
}

// Outcome implements Listener.
func (l ListenerFuncs) Outcome(o ingest.Outcome) {
	if l.OnOutcome != nil {
		l.OnOutcome(o)
	}
}
