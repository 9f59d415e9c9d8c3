package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/reglet-dev/plugabi/internal/abi"
	"github.com/tetratelabs/wazero/api"
)

// Module is one instantiated WASM plugin. Calls into it are serialised.
type Module struct {
	module api.Module
	logger *slog.Logger
	name   string
	mu     sync.Mutex
}

var _ ports.Module = (*Module)(nil)

// Descriptor reads the five metadata exports. Their text is borrowed from
// the guest and copied here; it is never deallocated.
func (m *Module) Descriptor(ctx context.Context) (entities.DescriptorText, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var d entities.DescriptorText
	fields := []struct {
		export   string
		dst      *string
		required bool
	}{
		{abi.ExportName, &d.Name, true},
		{abi.ExportVersion, &d.Version, true},
		{abi.ExportAuthor, &d.Author, false},
		{abi.ExportDescription, &d.Description, false},
		{abi.ExportAPI, &d.API, true},
	}
	for _, f := range fields {
		fn := m.module.ExportedFunction(f.export)
		if fn == nil {
			if f.required {
				return d, fmt.Errorf("export %q not found", f.export)
			}
			continue
		}
		results, err := fn.Call(ctx)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.export, err)
		}
		data, err := m.read(results)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.export, err)
		}
		*f.dst = string(data)
	}
	m.name = d.Name
	return d, nil
}

// Init runs plugin_init. A guest without it has nothing to initialise.
func (m *Module) Init(ctx context.Context) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn := m.module.ExportedFunction(abi.ExportInit)
	if fn == nil {
		return 0, nil
	}
	results, err := fn.Call(WithPluginName(ctx, m.name))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", abi.ExportInit, err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("%s returned no status", abi.ExportInit)
	}
	return api.DecodeI32(results[0]), nil
}

// Uninit runs plugin_uninit when the guest exports it.
func (m *Module) Uninit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn := m.module.ExportedFunction(abi.ExportUninit)
	if fn == nil {
		return nil
	}
	if _, err := fn.Call(WithPluginName(ctx, m.name)); err != nil {
		return fmt.Errorf("%s: %w", abi.ExportUninit, err)
	}
	return nil
}

// Invoke runs one capability with inv.ABI reachable from the host module.
// Guests exporting plugin_call get the function name and bag and answer
// with a JSON result record; other guests export each capability directly
// as (bag i32) -> i64, returning raw value bits or, for strings, a packed
// region the host frees.
func (m *Module) Invoke(ctx context.Context, inv ports.Invocation) (entities.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx = withCallState(WithPluginName(ctx, m.name), inv.ABI)
	if call := m.module.ExportedFunction(abi.ExportCall); call != nil {
		return m.dispatch(ctx, call, inv)
	}

	fn := m.module.ExportedFunction(inv.Function.Name)
	if fn == nil {
		return entities.Void(), fmt.Errorf("export %q: %w", inv.Function.Name, errors.NotFound.Err())
	}
	results, err := fn.Call(ctx, uint64(inv.Bag))
	if err != nil {
		return entities.Void(), fmt.Errorf("%s: %w", inv.Function.Name, err)
	}

	ret := inv.Function.ReturnType
	switch {
	case ret.IsVoid():
		return entities.Void(), nil
	case len(results) == 0:
		return entities.Void(), fmt.Errorf("%s returned nothing, declared %s", inv.Function.Name, ret)
	case ret == entities.TagString:
		data, err := m.take(ctx, results[0])
		if err != nil {
			return entities.Void(), err
		}
		return entities.String(string(data)), nil
	default:
		return entities.FromBits(ret.Kind(), results[0])
	}
}

func (m *Module) dispatch(ctx context.Context, call api.Function, inv ports.Invocation) (entities.Value, error) {
	name, err := writeGuest(ctx, m.module, []byte(inv.Function.Name))
	if err != nil {
		return entities.Void(), err
	}
	results, err := call.Call(ctx, name, uint64(inv.Bag))
	if err != nil {
		return entities.Void(), fmt.Errorf("%s %s: %w", abi.ExportCall, inv.Function.Name, err)
	}
	if len(results) == 0 {
		return entities.Void(), fmt.Errorf("%s returned no result", abi.ExportCall)
	}
	data, err := m.take(ctx, results[0])
	if err != nil {
		return entities.Void(), err
	}

	var wire entities.CallResultWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return entities.Void(), fmt.Errorf("malformed call result: %w", err)
	}
	if wire.Error != nil {
		return entities.Void(), errors.FromDetail(wire.Error)
	}
	return wire.Decode()
}

// read copies a borrowed packed region.
func (m *Module) read(results []uint64) ([]byte, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no result")
	}
	ptr, length := unpackPtrLen(results[0])
	if length == 0 {
		return nil, nil
	}
	data, ok := m.module.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("region %d+%d out of guest memory", ptr, length)
	}
	return append([]byte(nil), data...), nil
}

// take copies an owned packed region and returns it to the guest allocator.
func (m *Module) take(ctx context.Context, packed uint64) ([]byte, error) {
	data, err := m.read([]uint64{packed})
	if err != nil {
		return nil, err
	}
	ptr, length := unpackPtrLen(packed)
	if length > 0 {
		if dealloc := m.module.ExportedFunction(abi.ExportDeallocate); dealloc != nil {
			if _, err := dealloc.Call(ctx, uint64(ptr), uint64(length)); err != nil {
				m.logger.WarnContext(ctx, "wazero: guest deallocate failed", "error", err)
			}
		}
	}
	return data, nil
}

// Close releases the instance.
func (m *Module) Close(ctx context.Context) error {
	return m.module.Close(ctx)
}

// writeGuest copies data into memory from the guest's allocate export.
func writeGuest(ctx context.Context, mod api.Module, data []byte) (uint64, error) {
	allocate := mod.ExportedFunction(abi.ExportAllocate)
	if allocate == nil {
		return 0, fmt.Errorf("guest does not export %q", abi.ExportAllocate)
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate in guest: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocate returned no results")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocate failed for %d bytes", len(data))
	}
	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("failed to write %d bytes to guest memory", len(data))
	}
	return abi.PackPtrLen(ptr, uint32(len(data))), nil //nolint:gosec // G115: bounded by guest memory
}
