package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/cadview/internal/kernel"
	"github.com/Faultbox/cadview/pkg/scene"
)

func stepInput(name string) Input {
	return Input{Name: name, Ext: "step", Data: []byte("ISO-10303-21;")}
}

func newStepPipeline(t *testing.T, k Kernel) *StepPipeline {
	return &StepPipeline{Kernel: k, Log: zaptest.NewLogger(t)}
}

func meshes(g *scene.Graph) []*scene.Mesh {
	var out []*scene.Mesh
	for _, n := range g.Root.Children() {
		if m, ok := n.(*scene.Mesh); ok {
			out = append(out, m)
		}
	}
	return out
}

func TestStep_RawMeshes(t *testing.T) {
	k := newKernel(t, fakeModule{"ReadStepFile": returning(meshResult(t, 8))}, kernel.Config{})
	s := testSession(1)
	events := collect(s.Progress())

	out := s.Run(newStepPipeline(t, k), stepInput("bracket.step"))
	if out.Status != StatusSuccess {
		t.Fatalf("expected success, got %v: %v", out.Status, out.Err)
	}
	g := out.Result.Graph
	ms := meshes(g)
	if len(ms) != 8 {
		t.Fatalf("expected 8 meshes, got %d", len(ms))
	}
	for i, m := range ms {
		if m.Geometry.VertexCount() != 3 || m.Geometry.TriangleCount() != 1 {
			t.Errorf("mesh %d: %d vertices, %d triangles", i, m.Geometry.VertexCount(), m.Geometry.TriangleCount())
		}
		if m.Material != k.Palette().At(i%scene.PaletteSize) {
			t.Errorf("mesh %d: material is not palette entry %d", i, i%scene.PaletteSize)
		}
		if len(m.Geometry.Normals) != 9 {
			t.Errorf("mesh %d: normals not computed", i)
		}
	}
	if out.Result.Path != "raw-meshes(ReadStepFile)" {
		t.Errorf("path = %q", out.Result.Path)
	}

	box := g.Bounds()
	c := box.Center()
	if !near(box.Min.Y, 0) || !near(c.X, 0) || !near(c.Z, 0) {
		t.Errorf("scene not normalized: %+v", box)
	}

	evs := <-events
	if len(evs) == 0 || evs[len(evs)-1].Percent != 100 {
		t.Fatalf("final event must be 100%%, got %+v", evs)
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Percent < evs[i-1].Percent {
			t.Errorf("progress went backwards: %+v", evs)
		}
	}
}

func createTestGLB(t *testing.T) []byte {
	t.Helper()
	doc := gltf.NewDocument()
	doc.Meshes = []*gltf.Mesh{{
		Name: "body",
		Primitives: []*gltf.Primitive{{
			Indices: gltf.Index(modeler.WriteIndices(doc, []uint16{0, 1, 2})),
			Attributes: map[string]int{
				gltf.POSITION: modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}}),
			},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: "body", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = []int{0}

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		t.Fatalf("encode GLB: %v", err)
	}
	return buf.Bytes()
}

func TestStep_BinarySceneFirst(t *testing.T) {
	var rawCalls atomic.Int32
	k := newKernel(t, fakeModule{
		"stepToGlb": returning(createTestGLB(t)),
		"readStep": func(context.Context, []byte, []byte) ([]byte, error) {
			rawCalls.Add(1)
			return meshResult(t, 1), nil
		},
	}, kernel.Config{})

	out := testSession(1).Run(newStepPipeline(t, k), stepInput("part.stp"))
	if out.Status != StatusSuccess {
		t.Fatalf("expected success, got %v: %v", out.Status, out.Err)
	}
	if out.Result.Path != "binary-scene(stepToGlb)" {
		t.Errorf("path = %q", out.Result.Path)
	}
	if rawCalls.Load() != 0 {
		t.Error("raw-mesh route should not run after the binary route succeeded")
	}
	if s := out.Result.Graph.Stats(); s.Meshes != 1 || s.Triangles != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestStep_BadBinaryFallsThroughToRaw(t *testing.T) {
	k := newKernel(t, fakeModule{
		"stepToGLB":    returning([]byte("not a glb")),
		"ReadStepFile": returning(meshResult(t, 2)),
	}, kernel.Config{})

	out := testSession(1).Run(newStepPipeline(t, k), stepInput("part.step"))
	if out.Status != StatusSuccess {
		t.Fatalf("expected success, got %v: %v", out.Status, out.Err)
	}
	if out.Result.Path != "raw-meshes(ReadStepFile)" {
		t.Errorf("path = %q", out.Result.Path)
	}
	if len(out.Result.Warnings) != 1 || !errors.Is(out.Result.Warnings[0], ErrKernelCallFailed) {
		t.Errorf("warnings = %v", out.Result.Warnings)
	}
}

func TestStep_Fallback(t *testing.T) {
	tests := []struct {
		name   string
		module fakeModule
		file   string
		want   string
	}{
		{"no capability", fakeModule{}, "shaft_cylinder.step", "fallback-cylinder"},
		{"kernel error", fakeModule{"ReadStepFile": func(context.Context, []byte, []byte) ([]byte, error) {
			return nil, errors.New("Standard_Failure")
		}}, "ball.step", "fallback-box"},
		{"zero meshes", fakeModule{"importStep": returning([]byte(`{"success": true, "meshes": []}`))}, "SPHERE.stp", "fallback-sphere"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKernel(t, tt.module, kernel.Config{})
			out := testSession(1).Run(newStepPipeline(t, k), stepInput(tt.file))
			if out.Status != StatusSuccess {
				t.Fatalf("fallback must succeed, got %v: %v", out.Status, out.Err)
			}
			ms := meshes(out.Result.Graph)
			if len(ms) != 1 || ms[0].Name != tt.want {
				t.Fatalf("expected exactly one %s mesh, got %d", tt.want, len(ms))
			}
			if len(out.Result.Warnings) == 0 {
				t.Error("fallback should carry a warning")
			}
			if min := out.Result.Graph.Bounds().Min.Y; !near(min, 0) {
				t.Errorf("placeholder min Y = %v", min)
			}
		})
	}
}

func TestStep_TimeoutIsFatal(t *testing.T) {
	res := meshResult(t, 1)
	slow := func(context.Context, []byte, []byte) ([]byte, error) {
		time.Sleep(200 * time.Millisecond)
		return res, nil
	}
	k := newKernel(t, fakeModule{"ReadStepFile": slow}, kernel.Config{RawTimeout: 20 * time.Millisecond})

	out := testSession(1).Run(newStepPipeline(t, k), stepInput("huge.step"))
	if out.Status != StatusFailed {
		t.Fatalf("timeout must fail, got %v", out.Status)
	}
	if !errors.Is(out.Err, ErrKernelTimeout) {
		t.Errorf("expected ErrKernelTimeout, got %v", out.Err)
	}
}

func TestStep_BinaryTimeoutSkipsFallbacks(t *testing.T) {
	slow := func(context.Context, []byte, []byte) ([]byte, error) {
		time.Sleep(200 * time.Millisecond)
		return []byte("glTF"), nil
	}
	res := meshResult(t, 1)
	var rawCalled atomic.Bool
	raw := func(context.Context, []byte, []byte) ([]byte, error) {
		rawCalled.Store(true)
		return res, nil
	}
	k := newKernel(t, fakeModule{"stepToGLB": slow, "ReadStepFile": raw},
		kernel.Config{BinaryTimeout: 20 * time.Millisecond})

	out := testSession(1).Run(newStepPipeline(t, k), stepInput("huge.step"))
	if out.Status != StatusFailed {
		t.Fatalf("timeout must fail, got %v", out.Status)
	}
	if !errors.Is(out.Err, ErrKernelTimeout) {
		t.Errorf("expected ErrKernelTimeout, got %v", out.Err)
	}
	if rawCalled.Load() {
		t.Error("raw-mesh route must not run after a binary-scene timeout")
	}
	if out.Result != nil {
		t.Error("failed session must not carry a fallback result")
	}
}

func TestStep_CancelDuringMeshProcessing(t *testing.T) {
	k := newKernel(t, fakeModule{"ReadStepFile": returning(meshResult(t, 40))}, kernel.Config{})
	s := testSession(3)

	p := newStepPipeline(t, k)
	p.Yield = func() {
		if ev, _ := s.Progress().Last(); ev.Percent >= 60 {
			s.Cancel()
		}
	}

	out := s.Run(p, stepInput("assembly.step"))
	if out.Status != StatusAborted {
		t.Fatalf("expected aborted, got %v: %v", out.Status, out.Err)
	}
	if !errors.Is(out.Err, ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", out.Err)
	}
	if ev, _ := s.Progress().Last(); ev.Percent >= 100 {
		t.Errorf("aborted session reported %v%%", ev.Percent)
	}
	if out.Result != nil {
		t.Error("aborted session must not carry a result")
	}
}

func TestStep_CancelledBeforeKernel(t *testing.T) {
	var calls atomic.Int32
	k := newKernel(t, fakeModule{"ReadStepFile": func(context.Context, []byte, []byte) ([]byte, error) {
		calls.Add(1)
		return meshResult(t, 1), nil
	}}, kernel.Config{})
	if _, err := k.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := testSession(1)
	s.Cancel()
	out := s.Run(newStepPipeline(t, k), stepInput("a.step"))
	if out.Status != StatusAborted {
		t.Errorf("expected aborted, got %v", out.Status)
	}
	if calls.Load() != 0 {
		t.Error("kernel invoked after cancellation")
	}
}

func TestStep_InflatesSTPZ(t *testing.T) {
	var got []byte
	k := newKernel(t, fakeModule{"ReadStepFile": func(_ context.Context, in, _ []byte) ([]byte, error) {
		got = append([]byte(nil), in...)
		return meshResult(t, 1), nil
	}}, kernel.Config{})

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("ISO-10303-21;"))
	zw.Close()

	out := testSession(1).Run(newStepPipeline(t, k), Input{Name: "a.stpz", Ext: "stpz", Data: buf.Bytes()})
	if out.Status != StatusSuccess {
		t.Fatalf("expected success, got %v: %v", out.Status, out.Err)
	}
	if string(got) != "ISO-10303-21;" {
		t.Errorf("kernel received %q", got)
	}
}

func TestStep_RescalesHugeModels(t *testing.T) {
	huge := []byte(`{"success": true, "meshes": [{"attributes": {"position": {"array": [0,0,0, 5000,0,0, 0,5000,0]}}}]}`)
	k := newKernel(t, fakeModule{"ReadStepFile": returning(huge)}, kernel.Config{})

	out := testSession(1).Run(newStepPipeline(t, k), stepInput("site.step"))
	if out.Status != StatusSuccess {
		t.Fatalf("expected success, got %v: %v", out.Status, out.Err)
	}
	if size := out.Result.Graph.Bounds().Size().MaxComponent(); size < 9.9 || size > 10.1 {
		t.Errorf("largest dimension = %v, want about 10", size)
	}
	if name := meshes(out.Result.Graph)[0].Name; name != "mesh_0" {
		t.Errorf("unnamed record should get a default name, got %q", name)
	}
}

func TestBatchSize(t *testing.T) {
	tests := []struct {
		meshes, bytes, want int
	}{
		{10, 1 << 20, 5},
		{201, 0, 20},
		{10, 11 << 20, 20},
		{1001, 0, 50},
		{10, 51 << 20, 50},
	}
	for _, tt := range tests {
		if got := BatchSize(tt.meshes, tt.bytes); got != tt.want {
			t.Errorf("BatchSize(%d, %d) = %d, want %d", tt.meshes, tt.bytes, got, tt.want)
		}
	}
}

func TestFallbackPrimitive(t *testing.T) {
	tests := map[string]scene.PrimitiveKind{
		"Cylinder_Head.step": scene.PrimitiveCylinder,
		"sphere.stp":         scene.PrimitiveSphere,
		"cone-adapter.step":  scene.PrimitiveCone,
		"bracket.step":       scene.PrimitiveBox,
	}
	for name, want := range tests {
		if got := FallbackPrimitive(name); got != want {
			t.Errorf("FallbackPrimitive(%q) = %v, want %v", name, got, want)
		}
	}
}
