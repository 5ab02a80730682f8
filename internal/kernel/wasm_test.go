package kernel

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

// Value types and opcodes used by the test modules.
const (
	wasmI32 = 0x7f
	wasmI64 = 0x7e

	opLocalGet  = 0x20
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Add    = 0x6a
	opI64Const  = 0x42
	opI64Or     = 0x84
	opI64Shl    = 0x86
	opI64ExtU   = 0xad
)

type wasmFunc struct {
	name    string
	params  int    // all i32
	results []byte // value types
	body    []byte // instructions without the trailing end
}

// Bump allocator over a global heap pointer; free is a no-op.
var (
	wasmMalloc = wasmFunc{name: "malloc", params: 1, results: []byte{wasmI32},
		body: []byte{opGlobalGet, 0, opGlobalGet, 0, opLocalGet, 0, opI32Add, opGlobalSet, 0}}
	wasmFree = wasmFunc{name: "free", params: 1}
)

// packed returns local ptrLocal<<32 | local lenLocal, the result convention
// of conversion exports.
func packed(ptrLocal, lenLocal byte) []byte {
	return []byte{
		opLocalGet, ptrLocal, opI64ExtU, opI64Const, 32, opI64Shl,
		opLocalGet, lenLocal, opI64ExtU, opI64Or,
	}
}

func constResult(v int64) []byte {
	return append([]byte{opI64Const}, sleb(v)...)
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func vec(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, content []byte) []byte {
	out := append([]byte{id}, uleb(uint64(len(content)))...)
	return append(out, content...)
}

func wasmName(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

// assemble builds a module with one page of exported memory, a mutable i32
// global starting at 1024 and the given exported functions.
func assemble(funcs ...wasmFunc) []byte {
	var types, indices, exports, bodies [][]byte
	for i, f := range funcs {
		params := make([]byte, f.params)
		for j := range params {
			params[j] = wasmI32
		}
		sig := append([]byte{0x60}, uleb(uint64(len(params)))...)
		sig = append(sig, params...)
		sig = append(sig, uleb(uint64(len(f.results)))...)
		sig = append(sig, f.results...)
		types = append(types, sig)
		indices = append(indices, uleb(uint64(i)))
		exports = append(exports, append(wasmName(f.name), append([]byte{0x00}, uleb(uint64(i))...)...))

		code := append([]byte{0x00}, f.body...) // no locals
		code = append(code, 0x0b)
		bodies = append(bodies, append(uleb(uint64(len(code))), code...))
	}
	exports = append(exports, append(wasmName("memory"), 0x02, 0x00))

	out := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, vec(types...))...)
	out = append(out, section(3, vec(indices...))...)
	out = append(out, section(5, vec([]byte{0x00, 0x01}))...)
	out = append(out, section(6, vec(append([]byte{wasmI32, 0x01, 0x41}, append(sleb(1024), 0x0b)...)))...)
	out = append(out, section(7, vec(exports...))...)
	out = append(out, section(10, vec(bodies...))...)
	return out
}

// kernelModule exports an echoing binary-scene entry and a few exports
// exercising the result checks.
func kernelModule() []byte {
	return assemble(
		wasmMalloc,
		wasmFree,
		wasmFunc{name: "stepToGLB", params: 2, results: []byte{wasmI64}, body: packed(0, 1)},
		wasmFunc{name: "ReadStepFile", params: 3, results: []byte{wasmI64}, body: constResult(0)},
		wasmFunc{name: "echoOptions", params: 4, results: []byte{wasmI64}, body: packed(2, 3)},
		wasmFunc{name: "nullResult", params: 2, results: []byte{wasmI64}, body: constResult(0)},
		wasmFunc{name: "pastMemory", params: 2, results: []byte{wasmI64}, body: constResult(65520<<32 | 4096)},
	)
}

func loadTestModule(t *testing.T, bin []byte) Module {
	t.Helper()
	mod, err := WASMLoader{Source: bin, Log: zaptest.NewLogger(t)}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() { mod.Close(context.Background()) })
	return mod
}

func TestWASM_BindingProbesAndConverts(t *testing.T) {
	b := newTestBinding(t, WASMLoader{Source: kernelModule(), Log: zaptest.NewLogger(t)}, Config{})

	caps, err := b.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	// ReadStepFile takes three parameters and must not be probed.
	if got := caps.String(); got != "binary-scene(stepToGLB)" {
		t.Fatalf("capabilities = %q", got)
	}

	input := []byte("ISO-10303-21;\nHEADER;\nENDSEC;")
	out, err := caps[0].(BinaryScene).Convert(context.Background(), input)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Errorf("Convert = %q, want %q", out, input)
	}
}

func TestWASM_Lookup(t *testing.T) {
	mod := loadTestModule(t, kernelModule())

	tests := []struct {
		name string
		want bool
	}{
		{"stepToGLB", true},
		{"echoOptions", true},
		{"ReadStepFile", false},
		{"malloc", false},
		{"memory", false},
		{"missing", false},
	}
	for _, tt := range tests {
		if _, ok := mod.Lookup(tt.name); ok != tt.want {
			t.Errorf("Lookup(%q) = %v, want %v", tt.name, ok, tt.want)
		}
	}
}

func TestWASM_OptionsBuffer(t *testing.T) {
	mod := loadTestModule(t, kernelModule())
	fn, _ := mod.Lookup("echoOptions")

	opts := []byte(`{"linearDeflection":0.1}`)
	out, err := fn(context.Background(), []byte("step"), opts)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if !bytes.Equal(out, opts) {
		t.Errorf("options buffer = %q, want %q", out, opts)
	}
}

func TestWASM_ResultErrors(t *testing.T) {
	mod := loadTestModule(t, kernelModule())

	tests := []struct {
		export string
		want   string
	}{
		{"nullResult", "null buffer"},
		{"pastMemory", "out of guest memory"},
	}
	for _, tt := range tests {
		t.Run(tt.export, func(t *testing.T) {
			fn, ok := mod.Lookup(tt.export)
			if !ok {
				t.Fatalf("%s not found", tt.export)
			}
			_, err := fn(context.Background(), []byte("step"), nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWASM_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		bin  []byte
		want string
	}{
		{"no allocator", assemble(wasmFunc{name: "stepToGLB", params: 2, results: []byte{wasmI64}, body: packed(0, 1)}), "malloc/free"},
		{"malloc without free", assemble(wasmMalloc), "malloc/free"},
		{"not wasm", []byte("ISO-10303-21;"), "compile kernel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WASMLoader{Source: tt.bin}.Load(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWASM_MissingFileDegrades(t *testing.T) {
	b := newTestBinding(t, WASMLoader{Path: t.TempDir() + "/missing.wasm"}, Config{})
	caps, err := b.Initialize(context.Background())
	if err != nil || !caps.None() {
		t.Errorf("expected degraded mode, got %v, %v", caps, err)
	}
}
