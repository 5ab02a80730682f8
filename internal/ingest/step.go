package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/cadview/internal/kernel"
	"github.com/Faultbox/cadview/pkg/formats"
	"github.com/Faultbox/cadview/pkg/scene"
)

// Kernel is the geometry kernel as seen by the STEP pipeline.
type Kernel interface {
	Initialize(ctx context.Context) (kernel.Capabilities, error)
	Palette() *scene.Palette
}

// Scale limits applied to raw-mesh output.
const (
	DefaultTargetSize = 10
	DefaultMinSize    = 0.01
	DefaultMaxSize    = 1000
)

// StepPipeline ingests STEP-family files through the geometry kernel. It
// tries each kernel capability in preference order and falls back to a
// placeholder primitive when none succeeds. Kernel timeouts and
// cancellation are terminal.
type StepPipeline struct {
	Kernel Kernel
	Log    *zap.Logger

	// Largest-dimension rescaling for raw meshes.
	TargetSize, MinSize, MaxSize float32

	// InflateLimit caps the decompressed size of .stpz input; 0 disables it.
	InflateLimit int64

	// Yield is called between mesh batches. Defaults to runtime.Gosched.
	Yield func()
}

// Ingest implements Pipeline.
func (p *StepPipeline) Ingest(ctx context.Context, in Input, progress *Emitter) (*Result, error) {
	log := p.logger().With(zap.String("file", in.Name))

	progress.Report(5, "Initializing geometry kernel")
	caps, err := p.Kernel.Initialize(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, aborted(ctx)
		}
		return nil, err
	}

	data, err := formats.Inflate(in.Data, p.InflateLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSource, in.Name, err)
	}

	var warnings []error
	for _, c := range caps {
		if ctx.Err() != nil {
			return nil, aborted(ctx)
		}

		var root *scene.Group
		switch c := c.(type) {
		case kernel.BinaryScene:
			root, err = p.binaryScene(ctx, c, in.Name, data, progress)
		case kernel.RawMeshes:
			root, err = p.rawMeshes(ctx, c, in.Name, data, progress)
		default:
			continue
		}
		if err == nil {
			return p.finish(root, in, c, warnings, progress), nil
		}
		if ctx.Err() != nil || errors.Is(err, ErrAborted) {
			return nil, aborted(ctx)
		}
		if errors.Is(err, ErrKernelTimeout) {
			log.Error("kernel call timed out", zap.String("entry", c.Entry()), zap.Error(err))
			return nil, err
		}
		log.Warn("kernel conversion failed, trying next route", zap.String("entry", c.Entry()), zap.Error(err))
		warnings = append(warnings, err)
	}

	if ctx.Err() != nil {
		return nil, aborted(ctx)
	}
	if caps.None() {
		warnings = append(warnings, fmt.Errorf("%w: showing a placeholder", ErrKernelUnavailable))
	}
	kind := FallbackPrimitive(in.Name)
	log.Info("using fallback primitive", zap.Stringer("primitive", kind))

	root := scene.NewGroup(in.Name)
	root.Add(scene.NewMesh("fallback-"+kind.String(), scene.NewPrimitive(kind), p.Kernel.Palette().At(0)))
	scene.Normalize(root, scene.UpY)
	progress.Report(100, "Complete")

	return &Result{
		Graph:    scene.NewGraph(root, in.Name, in.Ext),
		Path:     "fallback(" + kind.String() + ")",
		Warnings: warnings,
	}, nil
}

func (p *StepPipeline) finish(root *scene.Group, in Input, c kernel.Capability, warnings []error, progress *Emitter) *Result {
	progress.Report(92, "Normalizing")
	scene.Normalize(root, scene.UpZ)
	progress.Report(100, "Complete")

	return &Result{
		Graph:    scene.NewGraph(root, in.Name, in.Ext),
		Path:     kernel.Capabilities{c}.String(),
		Warnings: warnings,
	}
}

func (p *StepPipeline) binaryScene(ctx context.Context, c kernel.BinaryScene, name string, data []byte, progress *Emitter) (*scene.Group, error) {
	progress.Report(15, "Converting")
	glb, err := c.Convert(ctx, data)
	if err != nil {
		return nil, err
	}
	progress.Report(60, "Conversion complete")
	if ctx.Err() != nil {
		return nil, aborted(ctx)
	}

	progress.Report(70, "Loading scene")
	decoded, err := formats.DecodeGLTF(glb, p.Kernel.Palette())
	if err != nil {
		return nil, fmt.Errorf("%w: %s output: %v", ErrKernelCallFailed, c.Entry(), err)
	}
	progress.Report(85, "Scene loaded")

	root := scene.NewGroup(name)
	root.Add(decoded)
	return root, nil
}

func (p *StepPipeline) rawMeshes(ctx context.Context, c kernel.RawMeshes, name string, data []byte, progress *Emitter) (*scene.Group, error) {
	progress.Report(15, "Converting")
	records, err := c.Convert(ctx, data)
	if err != nil {
		return nil, err
	}
	progress.Report(60, "Conversion complete")
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s produced no meshes", ErrKernelCallFailed, c.Entry())
	}

	pal := p.Kernel.Palette()
	batch := BatchSize(len(records), len(data))
	root := scene.NewGroup(name)
	for i := range records {
		if i%batch == 0 {
			if i > 0 {
				p.yield()
			}
			if ctx.Err() != nil {
				return nil, aborted(ctx)
			}
		}

		rec := records[i]
		records[i] = kernel.MeshRecord{}

		geom := scene.NewGeometry(rec.Positions, rec.Indices, rec.Normals)
		if rec.Normals == nil {
			geom.ComputeVertexNormals()
		}
		meshName := rec.Name
		if meshName == "" {
			meshName = fmt.Sprintf("mesh_%d", i)
		}
		root.Add(scene.NewMesh(meshName, geom, pal.At(root.Len())))

		progress.ReportThrottled(60+30*float64(i+1)/float64(len(records)), "Processing meshes")
	}

	target, lo, hi := p.scaleLimits()
	if f := scene.FitScale(root, target, lo, hi); f != 1 {
		p.logger().Debug("rescaled raw meshes", zap.String("file", name), zap.Float32("factor", f))
	}
	return root, nil
}

// BatchSize picks how many meshes to process between yields: larger batches
// for inputs with many meshes or many bytes, where yield overhead dominates.
func BatchSize(meshes, bytes int) int {
	const mb = 1 << 20
	switch {
	case meshes > 1000 || bytes > 50*mb:
		return 50
	case meshes > 200 || bytes > 10*mb:
		return 20
	default:
		return 5
	}
}

// FallbackPrimitive picks a placeholder shape from hints in the file name.
func FallbackPrimitive(name string) scene.PrimitiveKind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "cylinder"):
		return scene.PrimitiveCylinder
	case strings.Contains(lower, "sphere"):
		return scene.PrimitiveSphere
	case strings.Contains(lower, "cone"):
		return scene.PrimitiveCone
	default:
		return scene.PrimitiveBox
	}
}

func (p *StepPipeline) scaleLimits() (target, lo, hi float32) {
	target, lo, hi = p.TargetSize, p.MinSize, p.MaxSize
	if target <= 0 {
		target = DefaultTargetSize
	}
	if lo <= 0 {
		lo = DefaultMinSize
	}
	if hi <= 0 {
		hi = DefaultMaxSize
	}
	return target, lo, hi
}

func (p *StepPipeline) yield() {
	if p.Yield != nil {
		p.Yield()
		return
	}
	runtime.Gosched()
}

func (p *StepPipeline) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}
