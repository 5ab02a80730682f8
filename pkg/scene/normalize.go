package scene

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/cadview/pkg/math"
)

// UpAxis names the axis a source format treats as "up".
type UpAxis int

const (
	UpY UpAxis = iota // renderer convention
	UpZ               // CAD kernels and 2D drawings
)

// Normalize reorients g to Y-up and rests it centered on the ground plane.
// The axis rotation must be applied once per graph; use Center alone to
// re-center an already normalized group.
func Normalize(g *Group, up UpAxis) {
	if up == UpZ {
		RotateZUpToYUp(g)
	}
	Center(g)
}

// RotateZUpToYUp rotates g by -90 degrees about the X axis.
func RotateZUpToYUp(g *Group) {
	fix := math.QuatFromAxisAngle(math.Vec3{X: 1}, -math32.Pi/2)
	rot := g.Transform.Rotation
	if rot.IsZero() {
		rot = math.QuatIdentity()
	}
	g.Transform.Rotation = fix.Mul(rot).Normalize()
}

// Center translates g so its bounding box is centered on X and Z and its
// lowest point sits at Y=0. Empty groups are left unchanged.
func Center(g *Group) {
	box := Bounds(g)
	if box.IsEmpty() {
		return
	}
	c := box.Center()
	g.Transform.Position = g.Transform.Position.Sub(math.Vec3{X: c.X, Y: box.Min.Y, Z: c.Z})
}

// FitScale uniformly rescales g to target units across its largest
// dimension when that dimension is outside [minSize, maxSize]. It returns
// the factor applied, or 1 when the size was reasonable or degenerate.
func FitScale(g *Group, target, minSize, maxSize float32) float32 {
	size := Bounds(g).Size().MaxComponent()
	if size <= 0 || math32.IsInf(size, 0) || math32.IsNaN(size) {
		return 1
	}
	if size >= minSize && size <= maxSize {
		return 1
	}
	factor := target / size
	scale := g.Transform.Scale
	if scale == (math.Vec3{}) {
		scale = math.Vec3{X: 1, Y: 1, Z: 1}
	}
	g.Transform.Scale = scale.Scale(factor)
	return factor
}
