package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/cadview/pkg/formats"
	"github.com/Faultbox/cadview/pkg/scene"
)

// MeshLoader passes polygon-mesh files (glTF/GLB, STL, OBJ) straight to
// their decoders. Output is Y-up and only centered.
type MeshLoader struct {
	Palette *scene.Palette
	Log     *zap.Logger
}

// Ingest implements Pipeline.
func (l *MeshLoader) Ingest(ctx context.Context, in Input, progress *Emitter) (*Result, error) {
	progress.Report(10, "Decoding mesh")
	root, err := formats.DecodeMesh(in.Ext, in.Name, in.Data, l.Palette)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedSource, in.Name, err)
	}
	if ctx.Err() != nil {
		scene.NewGraph(root, in.Name, in.Ext).Dispose()
		return nil, aborted(ctx)
	}

	progress.Report(92, "Normalizing")
	scene.Normalize(root, scene.UpY)
	progress.Report(100, "Complete")

	g := scene.NewGraph(root, in.Name, in.Ext)
	if l.Log != nil {
		s := g.Stats()
		l.Log.Info("mesh loaded", zap.String("file", in.Name), zap.Int("meshes", s.Meshes), zap.Int("triangles", s.Triangles))
	}
	return &Result{Graph: g, Path: "mesh(" + in.Ext + ")"}, nil
}
