package math

import (
	"testing"
)

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{3, 4, 0}.Normalize()
	l := n.Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Error("normalizing the zero vector should return zero")
	}
}

func TestBox3(t *testing.T) {
	b := EmptyBox()
	if !b.IsEmpty() {
		t.Fatal("EmptyBox should be empty")
	}
	if b.Size() != (Vec3{}) {
		t.Errorf("empty box size = %v, want zero", b.Size())
	}

	b.Expand(Vec3{-1, 0, 2})
	b.Expand(Vec3{3, 4, -2})

	if b.Min != (Vec3{-1, 0, -2}) || b.Max != (Vec3{3, 4, 2}) {
		t.Errorf("box = %+v", b)
	}
	if c := b.Center(); c != (Vec3{1, 2, 0}) {
		t.Errorf("Center() = %v, want (1, 2, 0)", c)
	}
	if s := b.Size().MaxComponent(); s != 4 {
		t.Errorf("largest dimension = %v, want 4", s)
	}
}
