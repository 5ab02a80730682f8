package renderer

import (
	"github.com/Faultbox/cadview/pkg/math"
	"github.com/Faultbox/cadview/pkg/scene"
)

var defaultColor = [3]float32{0.6, 0.6, 0.6}

type meshDraw struct {
	mesh  *scene.Mesh
	world math.Mat4
}

type lineDraw struct {
	lines *scene.Lines
	world math.Mat4
}

// flatten lists the drawable nodes of g with their world transforms.
func flatten(g *scene.Graph) ([]meshDraw, []lineDraw) {
	if g == nil || g.Root == nil {
		return nil, nil
	}
	var meshes []meshDraw
	var lines []lineDraw
	scene.Walk(g.Root, func(n scene.Node, world math.Mat4) {
		switch v := n.(type) {
		case *scene.Mesh:
			if v.Geometry != nil && v.Geometry.VertexCount() > 0 {
				meshes = append(meshes, meshDraw{mesh: v, world: world})
			}
		case *scene.Lines:
			if v.Segments() > 0 {
				lines = append(lines, lineDraw{lines: v, world: world})
			}
		}
	})
	return meshes, lines
}

// interleave packs positions and normals as [px py pz nx ny nz] per vertex.
// Missing normals are uploaded as +Y.
func interleave(geom *scene.Geometry) []float32 {
	n := geom.VertexCount()
	out := make([]float32, 0, n*6)
	hasNormals := len(geom.Normals) == len(geom.Positions)
	for i := 0; i < n; i++ {
		out = append(out, geom.Positions[i*3:i*3+3]...)
		if hasNormals {
			out = append(out, geom.Normals[i*3:i*3+3]...)
		} else {
			out = append(out, 0, 1, 0)
		}
	}
	return out
}

// linePositions flattens a strip to [x y z] per point.
func linePositions(l *scene.Lines) []float32 {
	out := make([]float32, 0, len(l.Points)*3)
	for _, p := range l.Points {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}

func materialColor(m *scene.Material) [3]float32 {
	if m == nil {
		return defaultColor
	}
	return m.Color
}
