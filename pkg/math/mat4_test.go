package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformVec3(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
		in   Vec3
		want Vec3
	}{
		{"translate", Translate(10, 20, 30), Vec3{1, 2, 3}, Vec3{11, 22, 33}},
		{"scale", Scale(2, 2, 2), Vec3{1, 2, 3}, Vec3{2, 4, 6}},
		{"translate after scale", Translate(1, 0, 0).Mul(Scale(2, 2, 2)), Vec3{1, 1, 1}, Vec3{3, 2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.TransformVec3(tt.in); got != tt.want {
				t.Errorf("TransformVec3: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComposeMatchesProduct(t *testing.T) {
	pos := Vec3{1, 2, 3}
	rot := QuatFromAxisAngle(Vec3{1, 0, 0}, float32(-math.Pi/2))
	scale := Vec3{2, 3, 4}

	composed := Compose(pos, rot, scale)
	product := Translate(pos.X, pos.Y, pos.Z).Mul(rot.ToMat4()).Mul(Scale(scale.X, scale.Y, scale.Z))

	for i := 0; i < 16; i++ {
		if abs(composed[i]-product[i]) > 1e-5 {
			t.Fatalf("element %d: Compose=%v, T*R*S=%v", i, composed[i], product[i])
		}
	}
}

func TestPerspective(t *testing.T) {
	m := Perspective(float32(math.Pi/4), 1, 0.1, 100)

	if m[0] == 0 || m[5] == 0 {
		t.Error("Perspective should have non-zero elements")
	}
	if m[15] != 0 {
		t.Errorf("Perspective [15] should be 0, got %f", m[15])
	}
	if m[11] != -1 {
		t.Errorf("Perspective [11] should be -1, got %f", m[11])
	}
}

func TestLookAt(t *testing.T) {
	m := LookAt(Vec3{0, 0, 5}, Vec3{}, Vec3{0, 1, 0})

	// The eye maps to the view-space origin.
	eye := m.TransformVec3(Vec3{0, 0, 5})
	if !near(eye, Vec3{}) {
		t.Errorf("LookAt eye in view space: got %v, want origin", eye)
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func near(a, b Vec3) bool {
	const eps = 1e-4
	return abs(a.X-b.X) < eps && abs(a.Y-b.Y) < eps && abs(a.Z-b.Z) < eps
}

func TestDecomposeRoundTrip(t *testing.T) {
	pos := Vec3{1, -2, 3}
	rot := QuatFromAxisAngle(Vec3{0, 1, 0}, 0.7)
	scale := Vec3{2, 3, 4}

	p, r, s := Compose(pos, rot, scale).Decompose()
	if !near(p, pos) || !near(s, scale) {
		t.Errorf("Decompose() = %v, %v; want %v, %v", p, s, pos, scale)
	}
	probe := Vec3{1, 0, 0}
	if !near(r.Rotate(probe), rot.Rotate(probe)) {
		t.Errorf("rotation mismatch: %v vs %v", r, rot)
	}
}
