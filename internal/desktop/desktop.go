// Package desktop implements the interactive viewer window: file drops,
// progress in the title bar and an orbit camera over the loaded scene.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sqweek/dialog"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/cadview/internal/app"
	"github.com/Faultbox/cadview/internal/config"
	"github.com/Faultbox/cadview/internal/engine/camera"
	"github.com/Faultbox/cadview/internal/engine/debug"
	"github.com/Faultbox/cadview/internal/engine/input"
	"github.com/Faultbox/cadview/internal/engine/renderer"
	"github.com/Faultbox/cadview/internal/engine/window"
	"github.com/Faultbox/cadview/internal/ingest"
	"github.com/Faultbox/cadview/internal/viewer"
	"github.com/Faultbox/cadview/pkg/formats"
	"github.com/Faultbox/cadview/pkg/scene"
)

const loadWait = 5 * time.Second

// Options control the desktop session.
type Options struct {
	Watch      bool   // reload the current file when it changes on disk
	ScreenDir  string // screenshot directory
	InitialArg string // file to open at start
}

// Desktop is the main viewer instance.
type Desktop struct {
	cfg  *config.Config
	opts Options
	log  *zap.Logger

	stack    *app.Stack
	orch     *viewer.Orchestrator
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	shots    *debug.ScreenshotCapture

	inbox   mailbox
	status  status
	current string // path of the file last loaded

	watchCancel context.CancelFunc
	running     bool
}

// New creates the window and GL state and wires the orchestrator.
func New(cfg *config.Config, stack *app.Stack, opts Options, log *zap.Logger) (*Desktop, error) {
	d := &Desktop{
		cfg:    cfg,
		opts:   opts,
		log:    log,
		stack:  stack,
		input:  input.New(),
		camera: camera.NewOrbitCamera(),
		shots:  debug.NewScreenshotCapture(opts.ScreenDir, "cadview"),
		status: status{app: cfg.Viewer.Title},
	}

	var err error
	d.window, err = window.New(window.Config{
		Title:      d.status.String(),
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	}, log.Named("window"))
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Renderer AFTER window, since the OpenGL context must exist.
	w, h := d.window.DrawableSize()
	d.renderer, err = renderer.New(renderer.Config{Width: w, Height: h}, log.Named("renderer"))
	if err != nil {
		d.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	d.orch = viewer.New(stack.Pipelines, stack.Options, viewer.ListenerFuncs{
		OnProgress: func(ev ingest.Event) {
			d.inbox.Post(func() { d.onProgress(ev) })
		},
		OnSceneReplaced: func(g *scene.Graph) {
			d.inbox.Post(func() { d.onScene(g) })
		},
		OnOutcome: func(out ingest.Outcome) {
			d.inbox.Post(func() { d.onOutcome(out) })
		},
	}, log.Named("viewer"))

	log.Info("viewer initialized")
	return d, nil
}

// Run starts the main loop and returns when the window is closed.
func (d *Desktop) Run() error {
	d.running = true
	if d.opts.InitialArg != "" {
		d.open(d.opts.InitialArg)
	}

	frameCount := 0
	fpsTimer := time.Now()
	for d.running {
		if d.input.Update() {
			break
		}
		for _, ev := range d.input.Events() {
			d.handle(ev)
		}
		d.inbox.Drain()

		d.renderer.Draw(d.camera)
		d.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			d.log.Debug("fps", zap.Int("count", frameCount))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

func (d *Desktop) handle(ev input.Event) {
	switch ev.Type {
	case input.EventWindowResize:
		w, h := d.window.DrawableSize()
		d.renderer.Resize(w, h)
	case input.EventDropFile:
		d.open(ev.Path)
	case input.EventMouseDrag:
		if ev.Pan {
			d.camera.HandlePan(ev.DX, ev.DY)
		} else {
			d.camera.HandleDrag(ev.DX, ev.DY)
		}
	case input.EventMouseWheel:
		d.camera.HandleZoom(ev.DY)
	case input.EventKeyDown:
		d.key(ev.Key)
	}
}

func (d *Desktop) key(k sdl.Keycode) {
	switch k {
	case sdl.K_ESCAPE:
		if d.orch.Active() != nil {
			d.orch.Cancel()
			return
		}
		d.running = false
	case sdl.K_f:
		d.camera.FitToBox(d.renderer.Bounds())
	case sdl.K_g:
		d.renderer.ShowGrid = !d.renderer.ShowGrid
	case sdl.K_b:
		d.renderer.ShowBBox = !d.renderer.ShowBBox
	case sdl.K_r:
		if d.current != "" {
			d.open(d.current)
		}
	case sdl.K_DELETE, sdl.K_BACKSPACE:
		d.stopWatch()
		ctx, cancel := context.WithTimeout(context.Background(), loadWait)
		defer cancel()
		if err := d.orch.Reset(ctx); err != nil {
			d.log.Warn("reset failed", zap.Error(err))
		}
		d.current = ""
		d.status = status{app: d.status.app}
		d.refreshTitle()
	case sdl.K_p:
		d.screenshot()
	case sdl.K_o:
		d.openDialog()
	}
}

// openDialog shows a native file picker. The dialog blocks, so it runs on
// its own goroutine and the chosen path comes back through the inbox.
func (d *Desktop) openDialog() {
	go func() {
		path, err := dialog.File().
			Filter("CAD and mesh files", acceptedExts()...).
			Filter("All Files", "*").
			Title("Open drawing").
			Load()
		if err != nil {
			if !errors.Is(err, dialog.ErrCancelled) {
				d.log.Warn("file dialog failed", zap.Error(err))
			}
			return
		}
		d.inbox.Post(func() { d.open(path) })
	}()
}

// open starts loading path, replacing whatever is shown.
func (d *Desktop) open(path string) {
	f, err := viewer.OpenFile(path)
	if err != nil {
		d.fail(path, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), loadWait)
	defer cancel()
	if _, err := d.orch.Load(ctx, f); err != nil {
		d.fail(path, err)
		return
	}
	if path != d.current {
		d.stopWatch()
		d.current = path
		d.startWatch(path)
	}
	d.status.file = f.Name()
	d.status.loading = true
	d.status.percent, d.status.stage, d.status.message = 0, "", ""
	d.shots.SetPrefix(stem(f.Name()))
	d.refreshTitle()
}

func (d *Desktop) fail(path string, err error) {
	d.log.Warn("cannot open file", zap.String("path", path), zap.Error(err))
	d.status.loading = false
	d.status.message = ingest.UserMessage(err)
	d.refreshTitle()
}

func (d *Desktop) onProgress(ev ingest.Event) {
	d.status.percent, d.status.stage = ev.Percent, ev.Stage
	d.refreshTitle()
}

func (d *Desktop) onScene(g *scene.Graph) {
	d.renderer.SetScene(g)
	if g == nil {
		d.status.hasScene = false
		return
	}
	d.status.hasScene = true
	d.status.stats = g.Stats()
	d.camera.FitToBox(d.renderer.Bounds())
}

func (d *Desktop) onOutcome(out ingest.Outcome) {
	d.status.apply(out)
	d.refreshTitle()
}

func (d *Desktop) refreshTitle() {
	d.window.SetTitle(d.status.String())
}

func (d *Desktop) startWatch(path string) {
	if !d.opts.Watch {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.watchCancel = cancel
	go func() {
		err := viewer.Watch(ctx, path, 300*time.Millisecond, d.log.Named("watch"), func(string) {
			d.inbox.Post(func() {
				if d.current == path {
					d.open(path)
				}
			})
		})
		if err != nil {
			d.log.Warn("cannot watch file", zap.String("path", path), zap.Error(err))
		}
	}()
}

func (d *Desktop) stopWatch() {
	if d.watchCancel != nil {
		d.watchCancel()
		d.watchCancel = nil
	}
}

func (d *Desktop) screenshot() {
	pixels, w, h := d.renderer.ReadPixels()
	name, err := d.shots.CaptureFromPixels(pixels, w, h)
	if err != nil {
		d.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	d.log.Info("screenshot saved", zap.String("path", name))
}

// Close cancels any load, disposes the scene and frees the window.
func (d *Desktop) Close() {
	d.log.Info("closing viewer")
	d.stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), loadWait)
	defer cancel()
	if err := d.orch.Close(ctx); err != nil {
		d.log.Warn("viewer close", zap.Error(err))
	}
	d.inbox.Drain()

	if d.renderer != nil {
		d.renderer.Close()
	}
	if d.window != nil {
		d.window.Close()
	}
}

func acceptedExts() []string {
	exts := make([]string, len(formats.Accepted))
	for i, e := range formats.Accepted {
		exts[i] = strings.TrimPrefix(e, ".")
	}
	return exts
}

func stem(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
