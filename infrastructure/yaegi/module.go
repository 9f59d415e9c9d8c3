package yaegi

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/reglet-dev/plugabi/application/plugin"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/traefik/yaegi/interp"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Module is one interpreted plugin. Entries into the interpreter are
// serialised.
type Module struct {
	interp *interp.Interpreter
	logger *slog.Logger
	pkg    string
	mu     sync.Mutex
}

var _ ports.Module = (*Module)(nil)

// lookup returns the package-level function name, if the script defines it.
func (m *Module) lookup(name string) (reflect.Value, bool) {
	v, err := m.interp.Eval(m.pkg + "." + name)
	if err != nil || !v.IsValid() || v.Kind() != reflect.Func {
		return reflect.Value{}, false
	}
	return v, true
}

// invoke calls fn, turning a panic in the script into an error.
func invoke(fn reflect.Value, args ...reflect.Value) (out []reflect.Value, err error) {
	if fn.Type().NumIn() != len(args) {
		return nil, fmt.Errorf("function takes %d arguments, want %d", fn.Type().NumIn(), len(args))
	}
	defer func() {
		if r := recover(); r != nil {
			err = &errors.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn.Call(args), nil
}

// split separates a trailing error result from the value results.
func split(out []reflect.Value) ([]reflect.Value, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	return out, nil
}

// Descriptor implements ports.Module.
func (m *Module) Descriptor(context.Context) (entities.DescriptorText, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var d entities.DescriptorText
	fields := []struct {
		fn       string
		dst      *string
		required bool
	}{
		{"PluginName", &d.Name, true},
		{"PluginVersion", &d.Version, true},
		{"PluginAuthor", &d.Author, false},
		{"PluginDescription", &d.Description, false},
		{"PluginAPI", &d.API, true},
	}
	for _, f := range fields {
		fn, ok := m.lookup(f.fn)
		if !ok {
			if f.required {
				return d, fmt.Errorf("%s.%s is not defined", m.pkg, f.fn)
			}
			continue
		}
		out, err := invoke(fn)
		if err != nil {
			return d, fmt.Errorf("%s: %w", f.fn, err)
		}
		if len(out) != 1 || out[0].Kind() != reflect.String {
			return d, fmt.Errorf("%s must return a string", f.fn)
		}
		*f.dst = out[0].String()
	}
	return d, nil
}

// Init implements ports.Module. PluginInit may return any integer type.
func (m *Module) Init(context.Context) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn, ok := m.lookup("PluginInit")
	if !ok {
		return 0, nil
	}
	out, err := invoke(fn)
	if err != nil {
		return 0, fmt.Errorf("PluginInit: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	v, err := entities.Coerce(entities.KindInt32, out[0].Interface())
	if err != nil {
		return 0, fmt.Errorf("PluginInit: %w", err)
	}
	status, _ := v.AsInt32()
	return status, nil
}

// Uninit implements ports.Module.
func (m *Module) Uninit(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fn, ok := m.lookup("PluginUninit"); ok {
		if _, err := invoke(fn); err != nil {
			return fmt.Errorf("PluginUninit: %w", err)
		}
	}
	return nil
}

// Invoke calls the capability's function. It may take a *plugabi.Call, the
// JSON text of its arguments, or nothing, and return a value, an error,
// both, or neither.
func (m *Module) Invoke(ctx context.Context, inv ports.Invocation) (entities.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn, ok := m.lookup(camelCase(inv.Function.Name))
	if !ok {
		if fn, ok = m.lookup(inv.Function.Name); !ok {
			return entities.Void(), fmt.Errorf("function %q: %w", inv.Function.Name, errors.NotFound.Err())
		}
	}

	m.logger.DebugContext(ctx, "yaegi: invoking", "function", inv.Function.Name)
	var args []reflect.Value
	if fn.Type().NumIn() == 1 {
		call := plugin.NewCall(ctx, inv.ABI, inv.Function, inv.Bag)
		if fn.Type().In(0).Kind() != reflect.String {
			args = append(args, reflect.ValueOf(call))
		} else {
			text, err := call.Args().JSON()
			if err != nil {
				return entities.Void(), fmt.Errorf("%s: %w", inv.Function.Name, err)
			}
			args = append(args, reflect.ValueOf(text.Raw()).Convert(fn.Type().In(0)))
		}
	}
	out, err := invoke(fn, args...)
	if err == nil {
		out, err = split(out)
	}
	if err != nil {
		return entities.Void(), fmt.Errorf("%s: %w", inv.Function.Name, err)
	}

	ret := inv.Function.ReturnType
	if ret.IsVoid() {
		return entities.Void(), nil
	}
	if len(out) == 0 {
		return entities.Void(), fmt.Errorf("%s returned nothing, declared %s", inv.Function.Name, ret)
	}
	v, err := entities.Coerce(ret.Kind(), out[0].Interface())
	if err != nil {
		return entities.Void(), fmt.Errorf("%s: %w: %w", inv.Function.Name, errors.KindMismatch.Err(), err)
	}
	return v, nil
}

// Close implements ports.Module. The interpreter is garbage collected.
func (m *Module) Close(context.Context) error { return nil }

// camelCase converts snake_case to CamelCase.
func camelCase(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
