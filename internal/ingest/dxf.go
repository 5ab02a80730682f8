package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/cadview/pkg/dxf"
	"github.com/Faultbox/cadview/pkg/math"
	"github.com/Faultbox/cadview/pkg/scene"
)

// Curve sampling resolution.
const (
	CircleSamples  = 128
	ArcSamples     = 64
	EllipseSamples = 96
)

// entityBatch is how many entities are built between yields.
const entityBatch = 256

// DrawingParser turns DXF bytes into an entity list.
type DrawingParser interface {
	Parse(data []byte) (*dxf.Document, error)
}

// DXFReport is the per-file diagnostic summary of a drawing.
type DXFReport struct {
	Version  string // $ACADVER, empty for headerless drawings
	Codepage string
	Entities int
	Built    map[string]int // by entity type
	Skipped  map[string]int // unsupported types
	Failures []EntityFailure
}

// EntityFailure records one entity that could not be built.
type EntityFailure struct {
	Index int
	Type  string
	Err   error
}

// Total returns the number of line renderables built.
func (r *DXFReport) Total() int {
	n := 0
	for _, c := range r.Built {
		n += c
	}
	return n
}

var errUnsupportedEntity = errors.New("unsupported entity")

// DXFPipeline builds line renderables from DXF entities. Unsupported kinds
// are skipped and a failing entity never aborts the file.
type DXFPipeline struct {
	Parser  DrawingParser
	Palette *scene.Palette // source of the line material; may be nil
	Log     *zap.Logger

	// Yield is called between entity batches. Defaults to runtime.Gosched.
	Yield func()
}

// Ingest implements Pipeline.
func (p *DXFPipeline) Ingest(ctx context.Context, in Input, progress *Emitter) (*Result, error) {
	log := p.logger().With(zap.String("file", in.Name))

	progress.Report(10, "Parsing drawing")
	parser := p.Parser
	if parser == nil {
		parser = dxf.TextParser{}
	}
	doc, err := parser.Parse(in.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSource, in.Name, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s: parser returned nothing", ErrMalformedSource, in.Name)
	}
	if ctx.Err() != nil {
		return nil, aborted(ctx)
	}

	progress.Report(40, "Building geometry")
	root, report := p.Build(ctx, doc, in.Name, progress)
	if ctx.Err() != nil {
		return nil, aborted(ctx)
	}
	log.Info("drawing built",
		zap.Int("entities", report.Entities),
		zap.Int("built", report.Total()),
		zap.Int("failed", len(report.Failures)))

	progress.Report(92, "Normalizing")
	scene.Normalize(root, scene.UpZ)
	progress.Report(100, "Complete")

	res := &Result{
		Graph: scene.NewGraph(root, in.Name, in.Ext),
		Path:  "dxf",
		DXF:   report,
	}
	if root.Len() == 0 {
		res.Warnings = append(res.Warnings, errors.New("drawing contains no supported entities"))
	}
	for _, f := range report.Failures {
		res.Warnings = append(res.Warnings, fmt.Errorf("entity %d (%s): %w", f.Index, f.Type, f.Err))
	}
	return res, nil
}

// Build converts entities to a group of line strips in drawing coordinates,
// before normalization. It stops early, with a partial group, when ctx is
// cancelled.
func (p *DXFPipeline) Build(ctx context.Context, doc *dxf.Document, name string, progress *Emitter) (*scene.Group, *DXFReport) {
	log := p.logger()
	report := &DXFReport{
		Version:  doc.Version,
		Codepage: doc.Codepage,
		Entities: len(doc.Entities),
		Built:    make(map[string]int),
		Skipped:  make(map[string]int),
	}
	var mat *scene.Material
	if p.Palette != nil {
		mat = p.Palette.Line()
	}

	root := scene.NewGroup(name)
	for i, e := range doc.Entities {
		if i > 0 && i%entityBatch == 0 {
			p.yield()
			if ctx.Err() != nil {
				return root, report
			}
		}

		pts, err := buildEntity(e)
		switch {
		case errors.Is(err, errUnsupportedEntity):
			report.Skipped[e.Type]++
			log.Debug("skipping unsupported entity", zap.String("type", e.Type), zap.Int("index", i))
		case err != nil:
			report.Failures = append(report.Failures, EntityFailure{Index: i, Type: e.Type, Err: err})
			log.Warn("entity failed", zap.String("type", e.Type), zap.Int("index", i), zap.Error(err))
		default:
			nodeName := e.Layer
			if nodeName == "" {
				nodeName = e.Type
			}
			root.Add(scene.NewLines(nodeName, pts, mat))
			report.Built[e.Type]++
		}

		if progress != nil {
			progress.ReportThrottled(40+50*float64(i+1)/float64(len(doc.Entities)), "Building geometry")
		}
	}
	return root, report
}

func buildEntity(e dxf.Entity) (pts []math.Vec3, err error) {
	defer func() {
		if r := recover(); r != nil {
			pts, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	switch e.Type {
	case "LINE":
		return buildLine(e)
	case "LWPOLYLINE", "POLYLINE":
		return buildPolyline(e)
	case "CIRCLE":
		return buildCircle(e)
	case "ARC":
		return buildArc(e)
	case "ELLIPSE":
		return buildEllipse(e)
	default:
		return nil, fmt.Errorf("%w %q", errUnsupportedEntity, e.Type)
	}
}

func buildLine(e dxf.Entity) ([]math.Vec3, error) {
	start, okS := e.Point("start")
	end, okE := e.Point("end")
	if okS && okE {
		return []math.Vec3{vec(start), vec(end)}, nil
	}
	if vs, ok := e.Points("vertices"); ok && len(vs) >= 2 {
		return []math.Vec3{vec(vs[0]), vec(vs[1])}, nil
	}
	return nil, errors.New("line has no endpoints")
}

func buildPolyline(e dxf.Entity) ([]math.Vec3, error) {
	vs, ok := e.Points("vertices")
	if !ok {
		return nil, errors.New("polyline has no vertex list")
	}
	if len(vs) < 2 {
		return nil, fmt.Errorf("polyline has %d vertices", len(vs))
	}
	pts := make([]math.Vec3, 0, len(vs)+1)
	for _, v := range vs {
		pts = append(pts, vec(v))
	}
	if e.Closed() {
		pts = append(pts, pts[0])
	}
	return pts, nil
}

func buildCircle(e dxf.Entity) ([]math.Vec3, error) {
	center, ok := e.Point("center")
	if !ok {
		return nil, errors.New("circle has no center")
	}
	r, ok := e.Float("radius")
	if !ok || r <= 0 {
		return nil, errors.New("circle has no positive radius")
	}
	return ellipse(center, float32(r), float32(r), 0, 0, 2*math32.Pi, CircleSamples), nil
}

func buildArc(e dxf.Entity) ([]math.Vec3, error) {
	center, ok := e.Point("center")
	if !ok {
		return nil, errors.New("arc has no center")
	}
	r, ok := e.Float("radius")
	if !ok || r <= 0 {
		return nil, errors.New("arc has no positive radius")
	}
	startDeg, okS := e.Float("startAngle")
	endDeg, okE := e.Float("endAngle")
	if !okS || !okE {
		return nil, errors.New("arc has no angles")
	}
	start := float32(startDeg) * math32.Pi / 180
	end := float32(endDeg) * math32.Pi / 180
	// DXF arcs run counter-clockwise from start to end.
	for end <= start {
		end += 2 * math32.Pi
	}
	return ellipse(center, float32(r), float32(r), 0, start, end, ArcSamples), nil
}

func buildEllipse(e dxf.Entity) ([]math.Vec3, error) {
	center, ok := e.Point("center")
	if !ok {
		return nil, errors.New("ellipse has no center")
	}
	major, ok := e.Point("majorAxisEndPoint")
	if !ok {
		return nil, errors.New("ellipse has no major axis")
	}
	mx, my := float32(major.X), float32(major.Y)
	a := math32.Sqrt(mx*mx + my*my)
	if a == 0 {
		return nil, errors.New("ellipse major axis has zero length")
	}
	b := a
	if ratio, ok := e.Float("axisRatio"); ok && ratio > 0 {
		b = a * float32(ratio)
	}
	rotation := math32.Atan2(my, mx)
	return ellipse(center, a, b, rotation, 0, 2*math32.Pi, EllipseSamples), nil
}

// ellipse samples segments+1 points on an axis-rotated ellipse in the
// center's Z plane. A full turn ends exactly on its first point.
func ellipse(center dxf.Point, a, b, rotation, start, end float32, segments int) []math.Vec3 {
	c := vec(center)
	cosR, sinR := math32.Cos(rotation), math32.Sin(rotation)
	pts := make([]math.Vec3, 0, segments+1)
	for i := 0; i <= segments; i++ {
		t := start + (end-start)*float32(i)/float32(segments)
		x, y := a*math32.Cos(t), b*math32.Sin(t)
		pts = append(pts, math.Vec3{
			X: c.X + x*cosR - y*sinR,
			Y: c.Y + x*sinR + y*cosR,
			Z: c.Z,
		})
	}
	if end-start >= 2*math32.Pi-1e-6 {
		pts[len(pts)-1] = pts[0]
	}
	return pts
}

func vec(p dxf.Point) math.Vec3 {
	return math.Vec3{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
}

func (p *DXFPipeline) yield() {
	if p.Yield != nil {
		p.Yield()
		return
	}
	runtime.Gosched()
}

func (p *DXFPipeline) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}
