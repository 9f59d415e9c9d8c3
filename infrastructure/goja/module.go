package goja

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dop251/goja"
	"github.com/reglet-dev/plugabi/application/plugin"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/reglet-dev/plugabi/internal/abi"
)

// Module is one loaded script. goja runtimes are not goroutine safe, so
// every entry into the script is serialised.
type Module struct {
	vm     *goja.Runtime
	host   *hostObject
	logger *slog.Logger
	mu     sync.Mutex
}

var _ ports.Module = (*Module)(nil)

// run executes fn, interrupting the script when ctx ends.
func (m *Module) run(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		m.vm.Interrupt(ctx.Err())
		close(interrupted)
	})
	defer func() {
		if !stop() {
			// The interrupt may still be in flight; clear it only once set.
			<-interrupted
			m.vm.ClearInterrupt()
		}
	}()

	v, err := fn()
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("script interrupted: %w", ctx.Err())
	}
	return v, err
}

// entry calls the global name, or returns its value when it is not a
// function. ok is false when the global is not defined.
func (m *Module) entry(ctx context.Context, name string, args ...goja.Value) (v goja.Value, ok bool, err error) {
	g := m.vm.Get(name)
	if g == nil || goja.IsUndefined(g) {
		return nil, false, nil
	}
	fn, callable := goja.AssertFunction(g)
	if !callable {
		return g, true, nil
	}
	v, err = m.run(ctx, func() (goja.Value, error) { return fn(goja.Undefined(), args...) })
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", name, err)
	}
	return v, true, nil
}

// Descriptor implements ports.Module.
func (m *Module) Descriptor(ctx context.Context) (entities.DescriptorText, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var d entities.DescriptorText
	fields := []struct {
		global   string
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
		v, ok, err := m.entry(ctx, f.global)
		if err != nil {
			return d, err
		}
		if !ok {
			if f.required {
				return d, fmt.Errorf("script does not define %s", f.global)
			}
			continue
		}
		text, err := descriptorText(v)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.global, err)
		}
		*f.dst = text
	}
	return d, nil
}

// descriptorText accepts strings as-is and encodes anything else as JSON.
func descriptorText(v goja.Value) (string, error) {
	if s, ok := v.Export().(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v.Export())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Init implements ports.Module. A script without plugin_init is ready.
func (m *Module) Init(ctx context.Context) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok, err := m.entry(ctx, abi.ExportInit)
	if err != nil || !ok || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, err
	}
	return int32(v.ToInteger()), nil //nolint:gosec // G115: init statuses are small
}

// Uninit implements ports.Module.
func (m *Module) Uninit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, _, err := m.entry(ctx, abi.ExportUninit)
	return err
}

// Invoke calls the global function named by inv with the bag handle.
func (m *Module) Invoke(ctx context.Context, inv ports.Invocation) (entities.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn, ok := goja.AssertFunction(m.vm.Get(inv.Function.Name))
	if !ok {
		return entities.Void(), fmt.Errorf("function %q: %w", inv.Function.Name, errors.NotFound.Err())
	}

	m.host.call = plugin.NewCall(ctx, inv.ABI, inv.Function, inv.Bag)
	defer func() { m.host.call = nil }()

	res, err := m.run(ctx, func() (goja.Value, error) {
		return fn(goja.Undefined(), m.vm.ToValue(uint32(inv.Bag)))
	})
	if err != nil {
		return entities.Void(), fmt.Errorf("%s: %w", inv.Function.Name, err)
	}

	ret := inv.Function.ReturnType
	if ret.IsVoid() {
		return entities.Void(), nil
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return entities.Void(), fmt.Errorf("%s returned nothing, declared %s", inv.Function.Name, ret)
	}
	v, err := entities.Coerce(ret.Kind(), exportValue(res))
	if err != nil {
		return entities.Void(), fmt.Errorf("%s: %w: %w", inv.Function.Name, errors.KindMismatch.Err(), err)
	}
	return v, nil
}

// exportValue unwraps ArrayBuffers so they coerce to blobs.
func exportValue(v goja.Value) any {
	switch x := v.Export().(type) {
	case goja.ArrayBuffer:
		return x.Bytes()
	default:
		return x
	}
}

// Close implements ports.Module. The interpreter is garbage collected.
func (m *Module) Close(context.Context) error {
	m.vm.Interrupt("closed")
	return nil
}
