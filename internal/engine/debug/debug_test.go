package debug

import (
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Faultbox/cadview/pkg/math"
)

func TestBBoxWireframe(t *testing.T) {
	b := math.Box3{Min: math.Vec3{X: -1, Y: 0, Z: -2}, Max: math.Vec3{X: 1, Y: 3, Z: 2}}
	v := BBoxWireframe(b, 0.5)
	if len(v) != BBoxWireframeVertexCount*3 {
		t.Fatalf("got %d floats, want %d", len(v), BBoxWireframeVertexCount*3)
	}
	if v[0] != -1.5 || v[1] != -0.5 || v[2] != -2.5 {
		t.Errorf("first corner = %v, want padded min", v[:3])
	}
	if BBoxWireframe(math.EmptyBox(), 0) != nil {
		t.Error("empty box produced vertices")
	}
}

func TestGroundGrid(t *testing.T) {
	v := GroundGrid(10, 4)
	if len(v) != 5*12 {
		t.Fatalf("got %d floats, want %d", len(v), 5*12)
	}
	for i := 1; i < len(v); i += 3 {
		if v[i] != 0 {
			t.Fatalf("grid vertex %d off the ground plane: y=%v", i/3, v[i])
		}
	}
	if GroundGrid(10, 0) != nil {
		t.Error("zero divisions produced vertices")
	}
}

func TestCaptureFromPixelsFlips(t *testing.T) {
	dir := t.TempDir()
	sc := NewScreenshotCapture(dir, "part")
	sc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	// 1x2 image: bottom row red, top row blue in GL order.
	pixels := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}
	name, err := sc.CaptureFromPixels(pixels, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(name, "part_2026-01-02_03-04-05.png") {
		t.Errorf("filename = %s", name)
	}

	f, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if r, _, b, _ := img.At(0, 0).RGBA(); b == 0 || r != 0 {
		t.Error("top row is not blue after flip")
	}
}

func TestCaptureFromPixelsSizeMismatch(t *testing.T) {
	sc := NewScreenshotCapture(t.TempDir(), "x")
	if _, err := sc.CaptureFromPixels(make([]byte, 3), 1, 1); err == nil {
		t.Error("expected size mismatch error")
	}
}
