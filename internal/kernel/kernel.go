// Package kernel binds the WASM geometry kernel: it loads the module once,
// probes which conversion entry points the build exports, and runs every
// call on a dedicated worker so callers never block on kernel execution.
package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Kernel errors.
var (
	ErrUnavailable = errors.New("geometry kernel unavailable")
	ErrTimeout     = errors.New("geometry kernel call timed out")
	ErrCallFailed  = errors.New("geometry kernel call failed")
	ErrClosed      = errors.New("geometry kernel binding closed")
)

// Func is one exported kernel entry point. options is nil when the entry
// point takes no options.
type Func func(ctx context.Context, input, options []byte) ([]byte, error)

// Module is a loaded kernel instance.
type Module interface {
	// Lookup returns the named export, if present.
	Lookup(name string) (Func, bool)
	Close(ctx context.Context) error
}

// Loader loads a kernel module.
type Loader interface {
	Load(ctx context.Context) (Module, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Module, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (Module, error) { return f(ctx) }

// Entry point names seen across kernel builds, in probe order.
var (
	BinarySceneEntries = []string{"stepToGLB", "stepToGlb", "step_to_glb", "convertStepToGLB"}
	RawMeshEntries     = []string{"ReadStepFile", "readStepFile", "importStep", "readStep"}
)

// Options are tessellation settings passed through to entry points that
// accept them. Zero fields are omitted so the kernel applies its defaults.
type Options struct {
	LinearDeflection  float64 `json:"linearDeflection,omitempty"`
	AngularDeflection float64 `json:"angularDeflection,omitempty"`
	LinearUnit        string  `json:"linearUnit,omitempty"`
}

// IsZero reports whether no option is set.
func (o Options) IsZero() bool {
	return o == Options{}
}

func (o Options) encode() []byte {
	if o.IsZero() {
		return nil
	}
	data, _ := json.Marshal(o)
	return data
}

// Capability is a conversion the loaded kernel supports: BinaryScene or
// RawMeshes.
type Capability interface {
	// Entry returns the export name the capability was resolved to.
	Entry() string
	capability()
}

// Capabilities lists the present capabilities in preference order. An
// empty list is degraded mode.
type Capabilities []Capability

// None reports degraded mode.
func (c Capabilities) None() bool {
	return len(c) == 0
}

// String renders the capability list for logs.
func (c Capabilities) String() string {
	if c.None() {
		return "none"
	}
	names := make([]string, len(c))
	for i, item := range c {
		switch item.(type) {
		case BinaryScene:
			names[i] = "binary-scene(" + item.Entry() + ")"
		case RawMeshes:
			names[i] = "raw-meshes(" + item.Entry() + ")"
		}
	}
	return strings.Join(names, ", ")
}

func probe(mod Module, b *Binding) Capabilities {
	var caps Capabilities
	for _, name := range BinarySceneEntries {
		if fn, ok := mod.Lookup(name); ok {
			caps = append(caps, BinaryScene{entry: name, fn: fn, b: b})
			break
		}
	}
	for _, name := range RawMeshEntries {
		if fn, ok := mod.Lookup(name); ok {
			caps = append(caps, RawMeshes{entry: name, fn: fn, b: b})
			break
		}
	}
	return caps
}
