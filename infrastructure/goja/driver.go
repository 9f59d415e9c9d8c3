// Package goja runs JavaScript plugins with the goja interpreter.
//
// A script defines the descriptor entry points as globals, either as
// functions or as plain values:
//
//	const plugin_name = "foo";
//	const plugin_version = "1.0.0";
//	const plugin_api = {API: [{name: "foo_greet", return_type: "string",
//	    arguments: [{name: "name", type: "string"}]}]};
//
//	function foo_greet(bag) {
//	    return "hello, " + host.argumentString(bag, "name");
//	}
//
// plugin_api may be a JSON string or an object. Capabilities are global
// functions taking the bag handle. The host ABI of the call in progress is
// reachable through the global host object, whose methods mirror the host
// ABI with lower-case names.
package goja

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dop251/goja"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/ports"
)

// DriverName is the name of the JavaScript driver.
const DriverName = "js"

// Driver compiles .js files into plugin modules. Every module gets its own
// interpreter.
type Driver struct {
	logger *slog.Logger
}

var _ ports.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger that host.log writes to.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewDriver creates a JavaScript driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements ports.Driver.
func (d *Driver) Name() string { return DriverName }

// Extensions implements ports.Driver.
func (d *Driver) Extensions() []string { return []string{".js"} }

// Open implements ports.Driver.
func (d *Driver) Open(ctx context.Context, src entities.Source) (ports.Module, error) {
	data, err := os.ReadFile(src.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return d.OpenSource(ctx, src.Location, string(data))
}

// OpenSource compiles and runs the top level of a script.
func (d *Driver) OpenSource(ctx context.Context, name, source string) (*Module, error) {
	prog, err := goja.Compile(name, source, true)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", name, err)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	m := &Module{vm: vm, logger: d.logger.With("script", name)}
	m.host = &hostObject{module: m}
	if err := vm.Set("host", m.host); err != nil {
		return nil, err
	}

	if _, err := m.run(ctx, func() (goja.Value, error) { return vm.RunProgram(prog) }); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return m, nil
}
