package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/cadview/internal/kernel"
)

type fakeModule map[string]kernel.Func

func (m fakeModule) Lookup(name string) (kernel.Func, bool) {
	fn, ok := m[name]
	return fn, ok
}

func (fakeModule) Close(context.Context) error { return nil }

func newKernel(t *testing.T, funcs fakeModule, cfg kernel.Config) *kernel.Binding {
	t.Helper()
	loader := kernel.LoaderFunc(func(context.Context) (kernel.Module, error) { return funcs, nil })
	b := kernel.NewBinding(loader, cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { b.Close(context.Background()) })
	return b
}

func returning(out []byte) kernel.Func {
	return func(context.Context, []byte, []byte) ([]byte, error) { return out, nil }
}

// meshResult builds a raw-mesh document with n unit triangles spread along X.
func meshResult(t *testing.T, n int) []byte {
	t.Helper()
	type array struct {
		Array any `json:"array"`
	}
	type mesh struct {
		Name       string           `json:"name"`
		Attributes map[string]array `json:"attributes"`
		Index      array            `json:"index"`
	}
	doc := struct {
		Success bool   `json:"success"`
		Meshes  []mesh `json:"meshes"`
	}{Success: true}
	for i := 0; i < n; i++ {
		x := float32(i * 2)
		doc.Meshes = append(doc.Meshes, mesh{
			Attributes: map[string]array{"position": {Array: []float32{x, 0, 0, x + 1, 0, 0, x, 1, 0}}},
			Index:      array{Array: []uint32{0, 1, 2}},
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// collect drains an emitter until it closes.
func collect(e *Emitter) <-chan []Event {
	out := make(chan []Event, 1)
	go func() {
		var events []Event
		for ev := range e.Events() {
			events = append(events, ev)
		}
		out <- events
	}()
	return out
}

func near(a, b float32) bool {
	const eps = 1e-3
	d := a - b
	return d < eps && d > -eps
}

func testSession(id uint64) *Session {
	return NewSession(context.Background(), id, "test", time.Millisecond)
}
