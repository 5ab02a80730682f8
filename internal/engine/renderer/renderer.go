// Package renderer draws scene graphs with OpenGL.
package renderer

import (
	_ "embed"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/cadview/internal/engine/camera"
	"github.com/Faultbox/cadview/internal/engine/debug"
	"github.com/Faultbox/cadview/internal/engine/shader"
	"github.com/Faultbox/cadview/pkg/math"
	"github.com/Faultbox/cadview/pkg/scene"
)

var (
	//go:embed shaders/mesh.vert
	meshVertexShader string
	//go:embed shaders/mesh.frag
	meshFragmentShader string
	//go:embed shaders/line.vert
	lineVertexShader string
	//go:embed shaders/line.frag
	lineFragmentShader string
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

// buffer is one uploaded vertex array.
type buffer struct {
	vao, vbo, ebo uint32
	count         int32
	indexed       bool
	deleted       bool
}

func (b *buffer) delete() {
	if b.deleted {
		return
	}
	gl.DeleteVertexArrays(1, &b.vao)
	gl.DeleteBuffers(1, &b.vbo)
	if b.ebo != 0 {
		gl.DeleteBuffers(1, &b.ebo)
	}
	b.deleted = true
}

type meshObject struct {
	meshDraw
	buf *buffer
}

type lineObject struct {
	lineDraw
	buf *buffer
}

// Renderer handles all OpenGL rendering. Every method must be called on the
// thread that owns the GL context.
type Renderer struct {
	config Config
	log    *zap.Logger

	meshProg *shader.Program
	lineProg *shader.Program

	queue    releaseQueue
	geometry map[*scene.Geometry]*buffer
	meshes   []meshObject
	lines    []lineObject
	bounds   math.Box3

	grid *buffer
	bbox *buffer

	ShowGrid bool
	ShowBBox bool
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config, log *zap.Logger) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{
		config:   cfg,
		log:      log,
		geometry: make(map[*scene.Geometry]*buffer),
		bounds:   math.EmptyBox(),
		ShowGrid: true,
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.ClearColor(0.93, 0.94, 0.96, 1.0)

	var err error
	r.meshProg, err = shader.NewProgram(meshVertexShader, meshFragmentShader,
		"uViewProj", "uModel", "uColor", "uMetalness", "uRoughness", "uLightDir", "uEye")
	if err != nil {
		return nil, fmt.Errorf("mesh shader: %w", err)
	}
	r.lineProg, err = shader.NewProgram(lineVertexShader, lineFragmentShader,
		"uViewProj", "uModel", "uColor")
	if err != nil {
		r.meshProg.Delete()
		return nil, fmt.Errorf("line shader: %w", err)
	}

	r.grid = uploadLines(debug.GroundGrid(40, 40))
	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

// Close frees every GPU resource.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	r.SetScene(nil)
	r.queue.Drain()
	for _, b := range r.geometry {
		b.delete()
	}
	if r.grid != nil {
		r.grid.delete()
	}
	r.meshProg.Delete()
	r.lineProg.Delete()
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Bounds returns the bounds of the current scene.
func (r *Renderer) Bounds() math.Box3 {
	return r.bounds
}

// SetScene replaces what is drawn. Geometry buffers are freed when their
// scene geometry is disposed; line buffers belong to the renderer and are
// freed here. A nil graph clears the viewport.
func (r *Renderer) SetScene(g *scene.Graph) {
	r.queue.Drain()
	for _, l := range r.lines {
		l.buf.delete()
	}
	if r.bbox != nil {
		r.bbox.delete()
		r.bbox = nil
	}
	r.meshes, r.lines = nil, nil
	r.bounds = math.EmptyBox()
	if g == nil || g.Disposed() {
		return
	}

	meshes, lines := flatten(g)
	for _, m := range meshes {
		r.meshes = append(r.meshes, meshObject{meshDraw: m, buf: r.uploadGeometry(m.mesh.Geometry)})
	}
	for _, l := range lines {
		r.lines = append(r.lines, lineObject{lineDraw: l, buf: uploadLines(linePositions(l.lines))})
	}
	r.bounds = g.Bounds()
	r.bbox = uploadLines(debug.BBoxWireframe(r.bounds, r.bounds.Size().Length()*0.01))

	st := g.Stats()
	r.log.Debug("scene uploaded",
		zap.String("source", g.Source),
		zap.Int("meshes", st.Meshes),
		zap.Int("triangles", st.Triangles),
		zap.Int("lines", st.Lines),
		zap.Int("geometry buffers", len(r.geometry)))
}

// uploadGeometry uploads geom once and frees it when geom is disposed.
func (r *Renderer) uploadGeometry(geom *scene.Geometry) *buffer {
	if b, ok := r.geometry[geom]; ok {
		return b
	}
	verts := interleave(geom)
	b := &buffer{count: int32(geom.VertexCount())}

	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)

	gl.GenBuffers(1, &b.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, unsafe.Pointer(&verts[0]), gl.STATIC_DRAW)

	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 6*4, nil)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, 6*4, unsafe.Pointer(uintptr(3*4)))
	gl.EnableVertexAttribArray(1)

	if len(geom.Indices) > 0 {
		gl.GenBuffers(1, &b.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(geom.Indices)*4, unsafe.Pointer(&geom.Indices[0]), gl.STATIC_DRAW)
		b.indexed = true
		b.count = int32(len(geom.Indices))
	}

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	r.geometry[geom] = b
	geom.OnDispose(func() {
		r.queue.Push(func() {
			b.delete()
			delete(r.geometry, geom)
		})
	})
	return b
}

func uploadLines(positions []float32) *buffer {
	if len(positions) < 6 {
		return nil
	}
	b := &buffer{count: int32(len(positions) / 3)}
	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)
	gl.GenBuffers(1, &b.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(positions)*4, unsafe.Pointer(&positions[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, nil)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return b
}

// Draw renders one frame from cam.
func (r *Renderer) Draw(cam *camera.OrbitCamera) {
	r.queue.Drain()
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	aspect := float32(r.config.Width) / float32(max(r.config.Height, 1))
	viewProj := cam.ProjectionMatrix(aspect).Mul(cam.ViewMatrix())
	eye := cam.Position()

	r.meshProg.Use()
	gl.UniformMatrix4fv(r.meshProg.Uniform("uViewProj"), 1, false, viewProj.Ptr())
	gl.Uniform3f(r.meshProg.Uniform("uLightDir"), -0.4, -1, -0.3)
	gl.Uniform3f(r.meshProg.Uniform("uEye"), eye.X, eye.Y, eye.Z)
	for i := range r.meshes {
		m := &r.meshes[i]
		if m.buf.deleted {
			continue
		}
		c := materialColor(m.mesh.Material)
		metal, rough := float32(0.1), float32(0.6)
		if mat := m.mesh.Material; mat != nil {
			metal, rough = mat.Metalness, mat.Roughness
		}
		gl.UniformMatrix4fv(r.meshProg.Uniform("uModel"), 1, false, m.world.Ptr())
		gl.Uniform3f(r.meshProg.Uniform("uColor"), c[0], c[1], c[2])
		gl.Uniform1f(r.meshProg.Uniform("uMetalness"), metal)
		gl.Uniform1f(r.meshProg.Uniform("uRoughness"), rough)
		gl.BindVertexArray(m.buf.vao)
		if m.buf.indexed {
			gl.DrawElements(gl.TRIANGLES, m.buf.count, gl.UNSIGNED_INT, nil)
		} else {
			gl.DrawArrays(gl.TRIANGLES, 0, m.buf.count)
		}
	}

	r.lineProg.Use()
	gl.UniformMatrix4fv(r.lineProg.Uniform("uViewProj"), 1, false, viewProj.Ptr())
	for i := range r.lines {
		l := &r.lines[i]
		c := materialColor(l.lines.Material)
		gl.UniformMatrix4fv(r.lineProg.Uniform("uModel"), 1, false, l.world.Ptr())
		gl.Uniform3f(r.lineProg.Uniform("uColor"), c[0], c[1], c[2])
		gl.BindVertexArray(l.buf.vao)
		gl.DrawArrays(gl.LINE_STRIP, 0, l.buf.count)
	}

	identity := math.Identity()
	gl.UniformMatrix4fv(r.lineProg.Uniform("uModel"), 1, false, identity.Ptr())
	if r.ShowGrid && r.grid != nil {
		gl.Uniform3f(r.lineProg.Uniform("uColor"), 0.78, 0.79, 0.82)
		gl.BindVertexArray(r.grid.vao)
		gl.DrawArrays(gl.LINES, 0, r.grid.count)
	}
	if r.ShowBBox && r.bbox != nil {
		gl.Uniform3f(r.lineProg.Uniform("uColor"), 0.9, 0.45, 0.1)
		gl.BindVertexArray(r.bbox.vao)
		gl.DrawArrays(gl.LINES, 0, r.bbox.count)
	}
	gl.BindVertexArray(0)
}

// ReadPixels returns the framebuffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	return pixels, w, h
}
