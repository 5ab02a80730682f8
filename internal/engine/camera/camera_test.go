package camera

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/cadview/pkg/math"
)

func TestPositionDistance(t *testing.T) {
	c := NewOrbitCamera()
	c.Center = math.Vec3{X: 3, Y: 1, Z: -2}
	c.Distance = 7

	if d := c.Position().Distance(c.Center); math32.Abs(d-7) > 1e-4 {
		t.Errorf("camera is %v from center, want 7", d)
	}
}

func TestHandleDragClampsPitch(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleDrag(0, 1e6)
	if c.RotationX != c.MaxPitch {
		t.Errorf("pitch = %v, want %v", c.RotationX, c.MaxPitch)
	}
	c.HandleDrag(0, -1e6)
	if c.RotationX != c.MinPitch {
		t.Errorf("pitch = %v, want %v", c.RotationX, c.MinPitch)
	}
}

func TestHandleZoom(t *testing.T) {
	tests := []struct {
		name  string
		delta float32
		want  func(before, after float32) bool
	}{
		{"in", 1, func(b, a float32) bool { return a < b }},
		{"out", -1, func(b, a float32) bool { return a > b }},
		{"clamped", 1000, func(_, a float32) bool { return a >= 0.05 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewOrbitCamera()
			before := c.Distance
			c.HandleZoom(tt.delta)
			if !tt.want(before, c.Distance) {
				t.Errorf("distance %v -> %v", before, c.Distance)
			}
		})
	}
}

func TestFitToBox(t *testing.T) {
	c := NewOrbitCamera()
	box := math.Box3{Min: math.Vec3{X: -5, Y: 0, Z: -5}, Max: math.Vec3{X: 5, Y: 10, Z: 5}}
	c.FitToBox(box)

	if c.Center != (math.Vec3{X: 0, Y: 5, Z: 0}) {
		t.Errorf("center = %v, want box center", c.Center)
	}
	radius := box.Size().Length() / 2
	if c.Distance <= radius {
		t.Errorf("distance %v does not clear the bounding sphere %v", c.Distance, radius)
	}

	c.FitToBox(math.EmptyBox())
	if c.Center != (math.Vec3{}) {
		t.Errorf("empty box center = %v, want origin", c.Center)
	}
}

func TestHandlePanKeepsDistance(t *testing.T) {
	c := NewOrbitCamera()
	before := c.Position().Distance(c.Center)
	c.HandlePan(100, 50)
	if c.Center == (math.Vec3{}) {
		t.Error("pan did not move the center")
	}
	if after := c.Position().Distance(c.Center); math32.Abs(after-before) > 1e-3 {
		t.Errorf("pan changed orbit distance %v -> %v", before, after)
	}
}
