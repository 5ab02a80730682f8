package kernel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// WASMLoader loads a kernel compiled to WebAssembly.
//
// Guest ABI: the module exports malloc(size) -> ptr and free(ptr). A
// conversion export takes (ptr, len) or (ptr, len, optPtr, optLen) and
// returns ptr<<32 | len of a guest buffer the host frees after copying.
type WASMLoader struct {
	Path   string
	Source []byte // used instead of Path when set
	Log    *zap.Logger
}

// Load implements Loader.
func (l WASMLoader) Load(ctx context.Context) (Module, error) {
	bin := l.Source
	if bin == nil {
		var err error
		if bin, err = os.ReadFile(l.Path); err != nil {
			return nil, fmt.Errorf("read kernel: %w", err)
		}
	}

	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile kernel: %w", err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName("kernel").
		WithStartFunctions("_initialize"))
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate kernel: %w", err)
	}

	malloc, free := mod.ExportedFunction("malloc"), mod.ExportedFunction("free")
	if malloc == nil || free == nil {
		rt.Close(ctx)
		return nil, errors.New("kernel does not export malloc/free")
	}

	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("kernel module instantiated", zap.Int("bytes", len(bin)))
	return &wasmModule{rt: rt, mod: mod, malloc: malloc, free: free}, nil
}

type wasmModule struct {
	rt     wazero.Runtime
	mod    api.Module
	malloc api.Function
	free   api.Function

	// wazero module instances are not safe for concurrent calls.
	mu sync.Mutex
}

// Lookup implements Module.
func (m *wasmModule) Lookup(name string) (Func, bool) {
	fn := m.mod.ExportedFunction(name)
	if fn == nil {
		return nil, false
	}
	params := len(fn.Definition().ParamTypes())
	if params != 2 && params != 4 {
		return nil, false
	}
	return func(ctx context.Context, input, options []byte) ([]byte, error) {
		return m.call(ctx, fn, params, input, options)
	}, true
}

func (m *wasmModule) call(ctx context.Context, fn api.Function, params int, input, options []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inPtr, err := m.write(ctx, input)
	if err != nil {
		return nil, err
	}
	defer m.release(ctx, inPtr)

	args := []uint64{uint64(inPtr), uint64(len(input))}
	if params == 4 {
		optPtr, err := m.write(ctx, options)
		if err != nil {
			return nil, err
		}
		defer m.release(ctx, optPtr)
		args = append(args, uint64(optPtr), uint64(len(options)))
	}

	res, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("entry returned %d values", len(res))
	}
	ptr, size := uint32(res[0]>>32), uint32(res[0])
	if ptr == 0 {
		return nil, errors.New("entry returned a null buffer")
	}
	defer m.release(ctx, ptr)

	data, ok := m.mod.Memory().Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("result [%d, +%d) out of guest memory", ptr, size)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// write copies data into a fresh guest allocation. Empty data yields a
// null pointer.
func (m *wasmModule) write(ctx context.Context, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	res, err := m.malloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("malloc %d: %w", len(data), err)
	}
	ptr := uint32(res[0])
	if ptr == 0 || !m.mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("guest allocation of %d bytes failed", len(data))
	}
	return ptr, nil
}

func (m *wasmModule) release(ctx context.Context, ptr uint32) {
	if ptr != 0 {
		m.free.Call(ctx, uint64(ptr))
	}
}

// Close implements Module.
func (m *wasmModule) Close(ctx context.Context) error {
	return m.rt.Close(ctx)
}
