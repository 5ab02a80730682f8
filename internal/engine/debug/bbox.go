// Package debug provides viewport overlays and screenshot capture.
package debug

import "github.com/Faultbox/cadview/pkg/math"

// BBoxWireframeVertexCount is the number of vertices for a bbox wireframe (12 edges × 2).
const BBoxWireframeVertexCount = 24

// BBoxWireframe creates line-pair vertices for the edges of b, expanded by
// padding on every side. The format is [x, y, z] per vertex. An empty box
// yields nil.
func BBoxWireframe(b math.Box3, padding float32) []float32 {
	if b.IsEmpty() {
		return nil
	}
	minX, minY, minZ := b.Min.X-padding, b.Min.Y-padding, b.Min.Z-padding
	maxX, maxY, maxZ := b.Max.X+padding, b.Max.Y+padding, b.Max.Z+padding
	return []float32{
		// Bottom face
		minX, minY, minZ, maxX, minY, minZ,
		maxX, minY, minZ, maxX, minY, maxZ,
		maxX, minY, maxZ, minX, minY, maxZ,
		minX, minY, maxZ, minX, minY, minZ,
		// Top face
		minX, maxY, minZ, maxX, maxY, minZ,
		maxX, maxY, minZ, maxX, maxY, maxZ,
		maxX, maxY, maxZ, minX, maxY, maxZ,
		minX, maxY, maxZ, minX, maxY, minZ,
		// Vertical edges
		minX, minY, minZ, minX, maxY, minZ,
		maxX, minY, minZ, maxX, maxY, minZ,
		maxX, minY, maxZ, maxX, maxY, maxZ,
		minX, minY, maxZ, minX, maxY, maxZ,
	}
}

// GroundGrid creates line-pair vertices for a square grid on the Y=0 plane,
// centered on the origin. size is the full edge length.
func GroundGrid(size float32, divisions int) []float32 {
	if divisions < 1 || size <= 0 {
		return nil
	}
	half := size / 2
	step := size / float32(divisions)
	out := make([]float32, 0, (divisions+1)*12)
	for i := 0; i <= divisions; i++ {
		p := -half + float32(i)*step
		out = append(out,
			p, 0, -half, p, 0, half, // along Z
			-half, 0, p, half, 0, p, // along X
		)
	}
	return out
}
