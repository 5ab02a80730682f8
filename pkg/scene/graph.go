package scene

import (
	"sync"

	"github.com/Faultbox/cadview/pkg/math"
)

// Graph is one ingested scene: a root group plus provenance.
type Graph struct {
	Root   *Group
	Source string // source file name
	Format string // source format, e.g. "step" or "dxf"

	mu       sync.Mutex
	disposed bool
}

// NewGraph wraps root with provenance metadata.
func NewGraph(root *Group, source, format string) *Graph {
	return &Graph{Root: root, Source: source, Format: format}
}

// Empty reports whether the root has no children.
func (g *Graph) Empty() bool {
	return g.Root == nil || g.Root.Len() == 0
}

// Bounds returns the world-space bounding box of the whole scene.
func (g *Graph) Bounds() math.Box3 {
	if g.Root == nil {
		return math.EmptyBox()
	}
	return Bounds(g.Root)
}

// Stats summarizes a scene.
type Stats struct {
	Meshes    int
	Lines     int
	Vertices  int
	Triangles int
	Segments  int
}

// Stats counts the renderables in the scene.
func (g *Graph) Stats() Stats {
	var s Stats
	if g.Root == nil {
		return s
	}
	Walk(g.Root, func(n Node, _ math.Mat4) {
		switch v := n.(type) {
		case *Mesh:
			s.Meshes++
			if v.Geometry != nil {
				s.Vertices += v.Geometry.VertexCount()
				s.Triangles += v.Geometry.TriangleCount()
			}
		case *Lines:
			s.Lines++
			s.Vertices += len(v.Points)
			s.Segments += v.Segments()
		}
	})
	return s
}

// Dispose releases every distinct geometry and every scene-owned material
// exactly once. Palette materials are left alone. Dispose returns false if
// the graph was already disposed.
func (g *Graph) Dispose() bool {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return false
	}
	g.disposed = true
	g.mu.Unlock()

	if g.Root == nil {
		return true
	}

	geoms := make(map[*Geometry]struct{})
	mats := make(map[*Material]struct{})
	Walk(g.Root, func(n Node, _ math.Mat4) {
		switch v := n.(type) {
		case *Mesh:
			if v.Geometry != nil {
				geoms[v.Geometry] = struct{}{}
			}
			if v.Material != nil && !v.Material.Shared {
				mats[v.Material] = struct{}{}
			}
		case *Lines:
			if v.Material != nil && !v.Material.Shared {
				mats[v.Material] = struct{}{}
			}
			v.Points = nil
		}
	})
	for geom := range geoms {
		geom.Dispose()
	}
	for mat := range mats {
		mat.Dispose()
	}
	return true
}

// Disposed reports whether Dispose has run.
func (g *Graph) Disposed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disposed
}
