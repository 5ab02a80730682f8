package scene

import (
	"testing"

	"github.com/Faultbox/cadview/pkg/math"
)

func offsetBox() *Group {
	g := NewGroup("root")
	geom := NewBox(4, 2, 6)
	for i := 0; i < len(geom.Positions); i += 3 {
		geom.Positions[i] += 5
		geom.Positions[i+1] -= 3
		geom.Positions[i+2] += 7
	}
	g.Add(NewMesh("box", geom, nil))
	return g
}

func assertGrounded(t *testing.T, g *Group) {
	t.Helper()
	box := Bounds(g)
	c := box.Center()
	if !near(box.Min.Y, 0) {
		t.Errorf("min Y = %v, want 0", box.Min.Y)
	}
	if !near(c.X, 0) || !near(c.Z, 0) {
		t.Errorf("center XZ = (%v, %v), want (0, 0)", c.X, c.Z)
	}
}

func TestNormalizeGroundsAndCenters(t *testing.T) {
	for _, up := range []UpAxis{UpY, UpZ} {
		g := offsetBox()
		Normalize(g, up)
		assertGrounded(t, g)
	}
}

func TestNormalizeZUpSwapsHeight(t *testing.T) {
	g := offsetBox() // 4 x 2 x 6 before rotation
	Normalize(g, UpZ)

	size := Bounds(g).Size()
	if !near(size.Y, 6) || !near(size.Z, 2) {
		t.Errorf("size after Z-up fix = %v, want height 6 depth 2", size)
	}
}

func TestCenterIdempotent(t *testing.T) {
	g := offsetBox()
	Normalize(g, UpZ)
	before := g.Transform

	Center(g)
	after := g.Transform
	if !nearVec(before.Position, after.Position) {
		t.Errorf("second Center moved the group: %v -> %v", before.Position, after.Position)
	}
	if before.Rotation != after.Rotation {
		t.Error("Center must not change rotation")
	}
}

func TestCenterEmptyGroup(t *testing.T) {
	g := NewGroup("empty")
	Center(g)
	if g.Transform.Position != (math.Vec3{}) {
		t.Errorf("empty group moved to %v", g.Transform.Position)
	}
}

func TestFitScale(t *testing.T) {
	tests := []struct {
		name    string
		size    float32
		rescale bool
	}{
		{"huge", 5000, true},
		{"tiny", 0.001, true},
		{"reasonable", 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGroup("root")
			g.Add(NewMesh("box", NewBox(tt.size, tt.size/2, tt.size/4), nil))

			factor := FitScale(g, 10, 0.01, 1000)
			got := Bounds(g).Size().MaxComponent()
			if tt.rescale {
				if factor == 1 {
					t.Fatal("expected a rescale")
				}
				if got < 9.99 || got > 10.01 {
					t.Errorf("largest dimension after fit = %v, want 10", got)
				}
			} else if factor != 1 || !near(got, tt.size) {
				t.Errorf("reasonable size changed: factor %v size %v", factor, got)
			}
		})
	}
}
