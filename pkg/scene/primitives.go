package scene

import (
	"github.com/chewxy/math32"
)

// PrimitiveKind selects a placeholder shape.
type PrimitiveKind int

const (
	PrimitiveBox PrimitiveKind = iota
	PrimitiveSphere
	PrimitiveCylinder
	PrimitiveCone
)

// String returns the primitive name.
func (k PrimitiveKind) String() string {
	switch k {
	case PrimitiveSphere:
		return "sphere"
	case PrimitiveCylinder:
		return "cylinder"
	case PrimitiveCone:
		return "cone"
	default:
		return "box"
	}
}

// NewPrimitive builds a unit-ish placeholder geometry of the given kind,
// Y-up and centered on the origin.
func NewPrimitive(kind PrimitiveKind) *Geometry {
	switch kind {
	case PrimitiveSphere:
		return NewSphere(1, 32, 16)
	case PrimitiveCylinder:
		return NewCylinder(1, 1, 2, 32)
	case PrimitiveCone:
		return NewCylinder(0, 1, 2, 32)
	default:
		return NewBox(2, 2, 2)
	}
}

// NewBox builds a box with separate vertices per face so edges stay sharp.
func NewBox(width, height, depth float32) *Geometry {
	hx, hy, hz := width/2, height/2, depth/2

	// Each face: normal and four corners in counter-clockwise order.
	faces := []struct {
		n       [3]float32
		corners [4][3]float32
	}{
		{[3]float32{1, 0, 0}, [4][3]float32{{hx, -hy, hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-hx, -hy, -hz}, {-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}, {-hx, hy, -hz}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}, {-hx, -hy, hz}}},
		{[3]float32{0, 0, 1}, [4][3]float32{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}}},
	}

	positions := make([]float32, 0, 24*3)
	normals := make([]float32, 0, 24*3)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(positions) / 3)
		for _, c := range f.corners {
			positions = append(positions, c[0], c[1], c[2])
			normals = append(normals, f.n[0], f.n[1], f.n[2])
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return NewGeometry(positions, indices, normals)
}

// NewSphere builds a UV sphere.
func NewSphere(radius float32, widthSegments, heightSegments int) *Geometry {
	if widthSegments < 3 {
		widthSegments = 3
	}
	if heightSegments < 2 {
		heightSegments = 2
	}

	var positions, normals []float32
	for y := 0; y <= heightSegments; y++ {
		v := float32(y) / float32(heightSegments)
		theta := v * math32.Pi
		for x := 0; x <= widthSegments; x++ {
			u := float32(x) / float32(widthSegments)
			phi := u * 2 * math32.Pi
			nx := -math32.Cos(phi) * math32.Sin(theta)
			ny := math32.Cos(theta)
			nz := math32.Sin(phi) * math32.Sin(theta)
			positions = append(positions, nx*radius, ny*radius, nz*radius)
			normals = append(normals, nx, ny, nz)
		}
	}

	row := uint32(widthSegments + 1)
	var indices []uint32
	for y := 0; y < heightSegments; y++ {
		for x := 0; x < widthSegments; x++ {
			a := uint32(y)*row + uint32(x)
			b := a + row
			if y != 0 {
				indices = append(indices, a, b, a+1)
			}
			if y != heightSegments-1 {
				indices = append(indices, a+1, b, b+1)
			}
		}
	}
	return NewGeometry(positions, indices, normals)
}

// NewCylinder builds a capped cylinder along Y. A zero top radius makes a cone.
func NewCylinder(radiusTop, radiusBottom, height float32, radialSegments int) *Geometry {
	if radialSegments < 3 {
		radialSegments = 3
	}
	half := height / 2
	var positions []float32
	var indices []uint32

	// Side: two rings.
	for ring, r := range [2]float32{radiusTop, radiusBottom} {
		y := half
		if ring == 1 {
			y = -half
		}
		for i := 0; i <= radialSegments; i++ {
			a := float32(i) / float32(radialSegments) * 2 * math32.Pi
			positions = append(positions, r*math32.Sin(a), y, r*math32.Cos(a))
		}
	}
	row := uint32(radialSegments + 1)
	for i := uint32(0); i < uint32(radialSegments); i++ {
		top, bottom := i, i+row
		indices = append(indices, top, bottom, top+1, bottom, bottom+1, top+1)
	}

	// Caps: a center vertex and a ring each, skipped for a zero radius.
	addCap := func(r, y float32, up bool) {
		if r == 0 {
			return
		}
		center := uint32(len(positions) / 3)
		positions = append(positions, 0, y, 0)
		for i := 0; i <= radialSegments; i++ {
			a := float32(i) / float32(radialSegments) * 2 * math32.Pi
			positions = append(positions, r*math32.Sin(a), y, r*math32.Cos(a))
		}
		for i := uint32(1); i <= uint32(radialSegments); i++ {
			if up {
				indices = append(indices, center, center+i, center+i+1)
			} else {
				indices = append(indices, center, center+i+1, center+i)
			}
		}
	}
	addCap(radiusTop, half, true)
	addCap(radiusBottom, -half, false)

	g := NewGeometry(positions, indices, nil)
	g.ComputeVertexNormals()
	return g
}
