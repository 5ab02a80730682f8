package scene

import (
	"github.com/Faultbox/cadview/pkg/math"
)

// Geometry holds flat vertex buffers ready for GPU upload.
// Positions and Normals have 3 components per vertex; Indices, when
// present, are triangle triples into the vertex list.
type Geometry struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32

	releasable
}

// NewGeometry wraps the given buffers without copying them.
func NewGeometry(positions []float32, indices []uint32, normals []float32) *Geometry {
	return &Geometry{
		Positions: positions,
		Normals:   normals,
		Indices:   indices,
	}
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// TriangleCount returns the number of triangles, indexed or not.
func (g *Geometry) TriangleCount() int {
	if g.Indices != nil {
		return len(g.Indices) / 3
	}
	return g.VertexCount() / 3
}

// Vertex returns the i-th vertex position.
func (g *Geometry) Vertex(i int) math.Vec3 {
	return math.Vec3{X: g.Positions[i*3], Y: g.Positions[i*3+1], Z: g.Positions[i*3+2]}
}

// Bounds returns the local-space bounding box.
func (g *Geometry) Bounds() math.Box3 {
	box := math.EmptyBox()
	for i := 0; i < g.VertexCount(); i++ {
		box.Expand(g.Vertex(i))
	}
	return box
}

// ComputeVertexNormals derives per-vertex normals from triangle topology.
// Face normals are accumulated unnormalized, so larger faces weigh more.
func (g *Geometry) ComputeVertexNormals() {
	n := g.VertexCount()
	acc := make([]math.Vec3, n)

	addFace := func(a, b, c int) {
		va, vb, vc := g.Vertex(a), g.Vertex(b), g.Vertex(c)
		face := vb.Sub(va).Cross(vc.Sub(va))
		acc[a] = acc[a].Add(face)
		acc[b] = acc[b].Add(face)
		acc[c] = acc[c].Add(face)
	}

	if g.Indices != nil {
		for i := 0; i+2 < len(g.Indices); i += 3 {
			a, b, c := int(g.Indices[i]), int(g.Indices[i+1]), int(g.Indices[i+2])
			if a >= n || b >= n || c >= n {
				continue
			}
			addFace(a, b, c)
		}
	} else {
		for i := 0; i+2 < n; i += 3 {
			addFace(i, i+1, i+2)
		}
	}

	normals := make([]float32, n*3)
	for i, v := range acc {
		v = v.Normalize()
		normals[i*3] = v.X
		normals[i*3+1] = v.Y
		normals[i*3+2] = v.Z
	}
	g.Normals = normals
}

// Dispose releases the geometry and drops its buffers. It returns true
// only for the call that performed the release.
func (g *Geometry) Dispose() bool {
	if !g.release() {
		return false
	}
	g.Positions = nil
	g.Normals = nil
	g.Indices = nil
	return true
}
