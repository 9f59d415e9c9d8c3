// Package yaegi runs plugins written as Go source, interpreted by yaegi.
//
// A plugin is one Go file. The descriptor entry points are exported
// functions returning strings, and capabilities are exported functions
// named after the capability in CamelCase (foo_greet becomes FooGreet):
//
//	package foo
//
//	import "plugabi"
//
//	func PluginName() string    { return "foo" }
//	func PluginVersion() string { return "1.0.0" }
//	func PluginAPI() string     { return `{"API":[...]}` }
//
//	func FooGreet(call *plugabi.Call) (string, error) {
//	    name, err := call.Args().String("name")
//	    return "hello, " + name, err
//	}
//
// The plugabi package seen by scripts is the guest-side plugin API, so a
// capability reads its arguments and config exactly as a WASM guest would.
package yaegi

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"reflect"

	"github.com/reglet-dev/plugabi/application/plugin"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DriverName is the name of the interpreted Go driver.
const DriverName = "yaegi"

// Symbols is the plugabi package made available to scripts.
var Symbols = interp.Exports{
	"plugabi/plugabi": {
		"Call":            reflect.ValueOf((*plugin.Call)(nil)),
		"Arguments":       reflect.ValueOf((*plugin.Arguments)(nil)),
		"JSONArguments":   reflect.ValueOf((*plugin.JSONArguments)(nil)),
		"ConfigFile":      reflect.ValueOf((*plugin.ConfigFile)(nil)),
		"String":          reflect.ValueOf((*plugin.String)(nil)),
		"Object":          reflect.ValueOf((*plugin.Object)(nil)),
		"Handle":          reflect.ValueOf((*entities.Handle)(nil)),
		"BagHandle":       reflect.ValueOf((*entities.BagHandle)(nil)),
		"Owned":           reflect.ValueOf(entities.Owned),
		"Borrowed":        reflect.ValueOf(entities.Borrowed),
		"WithString":      reflect.ValueOf(plugin.WithString),
		"WithObject":      reflect.ValueOf(plugin.WithObject),
		"DecodeArguments": reflect.ValueOf(plugin.DecodeArguments),
	},
}

// Driver interprets .go plugin files. Every module gets its own interpreter.
type Driver struct {
	logger  *slog.Logger
	symbols []interp.Exports
}

var _ ports.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithSymbols exposes extra binary packages to scripts.
func WithSymbols(exports interp.Exports) Option {
	return func(d *Driver) {
		d.symbols = append(d.symbols, exports)
	}
}

// NewDriver creates an interpreted Go driver. Scripts see the standard
// library and the plugabi package.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		logger:  slog.Default(),
		symbols: []interp.Exports{stdlib.Symbols, Symbols},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements ports.Driver.
func (d *Driver) Name() string { return DriverName }

// Extensions implements ports.Driver.
func (d *Driver) Extensions() []string { return []string{".go"} }

// Open implements ports.Driver.
func (d *Driver) Open(ctx context.Context, src entities.Source) (ports.Module, error) {
	data, err := os.ReadFile(src.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin source: %w", err)
	}
	return d.OpenSource(ctx, src.Location, string(data))
}

// OpenSource evaluates one Go source file.
func (d *Driver) OpenSource(ctx context.Context, name, source string) (*Module, error) {
	f, err := parser.ParseFile(token.NewFileSet(), name, source, parser.PackageClauseOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	i := interp.New(interp.Options{})
	for _, exports := range d.symbols {
		if err := i.Use(exports); err != nil {
			return nil, fmt.Errorf("failed to load symbols: %w", err)
		}
	}
	if _, err := i.EvalWithContext(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", name, err)
	}

	return &Module{
		interp: i,
		pkg:    f.Name.Name,
		logger: d.logger.With("source", name),
	}, nil
}
