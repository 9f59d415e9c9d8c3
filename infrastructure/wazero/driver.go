package wazero

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// DriverName is the scheme of WASM plugin sources.
const DriverName = "wasm"

// Driver opens WASM plugins in one shared wazero runtime with the plugabi
// host module instantiated.
type Driver struct {
	runtime wazero.Runtime
	logger  *slog.Logger
	cache   map[string]wazero.CompiledModule
	mu      sync.Mutex
}

var _ ports.Driver = (*Driver)(nil)

// NewDriver creates the runtime, instantiates WASI and the host module.
// Close the driver to release the runtime.
func NewDriver(ctx context.Context, opts ...AdapterOption) (*Driver, error) {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	if err := RegisterWithRuntime(ctx, rt, opts...); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return &Driver{
		runtime: rt,
		logger:  cfg.Logger,
		cache:   make(map[string]wazero.CompiledModule),
	}, nil
}

// Name implements ports.Driver.
func (d *Driver) Name() string { return DriverName }

// Extensions implements ports.Driver.
func (d *Driver) Extensions() []string { return []string{".wasm"} }

// Open reads and instantiates a .wasm file.
func (d *Driver) Open(ctx context.Context, src entities.Source) (ports.Module, error) {
	d.mu.Lock()
	compiled, ok := d.cache[src.Location]
	d.mu.Unlock()
	if !ok {
		wasmBytes, err := os.ReadFile(src.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to read module: %w", err)
		}
		if compiled, err = d.runtime.CompileModule(ctx, wasmBytes); err != nil {
			return nil, fmt.Errorf("failed to compile module: %w", err)
		}
		d.mu.Lock()
		d.cache[src.Location] = compiled
		d.mu.Unlock()
	}
	return d.instantiate(ctx, compiled)
}

// OpenBytes instantiates a module from memory.
func (d *Driver) OpenBytes(ctx context.Context, wasmBytes []byte) (ports.Module, error) {
	compiled, err := d.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}
	return d.instantiate(ctx, compiled)
}

func (d *Driver) instantiate(ctx context.Context, compiled wazero.CompiledModule) (*Module, error) {
	// Anonymous so one file can be loaded more than once; _initialize runs
	// when the guest is a reactor.
	config := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize").
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)

	mod, err := d.runtime.InstantiateModule(ctx, compiled, config)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	return &Module{module: mod, logger: d.logger}, nil
}

// Close releases the runtime and every module opened through it.
func (d *Driver) Close(ctx context.Context) error {
	return d.runtime.Close(ctx)
}
