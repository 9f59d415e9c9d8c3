// Package native serves plugins compiled into the host process. They are
// built with application/plugin exactly like WASM guests, and addressed as
// native:<name>.
package native

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/reglet-dev/plugabi/application/plugin"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
)

// DriverName is the scheme of in-process plugin sources.
const DriverName = "native"

var global = struct {
	defs map[string]*plugin.Definition
	mu   sync.RWMutex
}{defs: make(map[string]*plugin.Definition)}

// Register makes a definition available to every native driver under its
// plugin name. Call it from an init function.
func Register(d *plugin.Definition) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if _, exists := global.defs[d.Name()]; exists {
		return fmt.Errorf("native plugin %q already registered", d.Name())
	}
	global.defs[d.Name()] = d
	return nil
}

// MustRegister is Register that panics on error.
func MustRegister(d *plugin.Definition) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Driver opens registered in-process plugins.
type Driver struct {
	defs map[string]*plugin.Definition
	mu   sync.RWMutex
}

var _ ports.Driver = (*Driver)(nil)

// NewDriver creates a driver serving defs in addition to the globally
// registered plugins.
func NewDriver(defs ...*plugin.Definition) *Driver {
	d := &Driver{defs: make(map[string]*plugin.Definition, len(defs))}
	for _, def := range defs {
		d.defs[def.Name()] = def
	}
	return d
}

// Name implements ports.Driver.
func (d *Driver) Name() string { return DriverName }

// Extensions implements ports.Driver. Native plugins have no files.
func (d *Driver) Extensions() []string { return nil }

// Names lists every plugin this driver can open.
func (d *Driver) Names() []string {
	seen := make(map[string]struct{})
	d.mu.RLock()
	for name := range d.defs {
		seen[name] = struct{}{}
	}
	d.mu.RUnlock()
	global.mu.RLock()
	for name := range global.defs {
		seen[name] = struct{}{}
	}
	global.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open looks up a plugin by name. An empty location selects the plugin the
// process registered with plugin.Register.
func (d *Driver) Open(_ context.Context, src entities.Source) (ports.Module, error) {
	def, ok := d.lookup(src.Location)
	if !ok {
		return nil, fmt.Errorf("native plugin %q: %w", src.Location, errors.NotFound.Err())
	}
	return &Module{def: def}, nil
}

func (d *Driver) lookup(name string) (*plugin.Definition, bool) {
	if name == "" {
		def := plugin.Registered()
		return def, def != nil
	}
	d.mu.RLock()
	def, ok := d.defs[name]
	d.mu.RUnlock()
	if ok {
		return def, true
	}
	global.mu.RLock()
	defer global.mu.RUnlock()
	def, ok = global.defs[name]
	return def, ok
}

// Module adapts a plugin definition to ports.Module.
type Module struct {
	def *plugin.Definition
}

var _ ports.Module = (*Module)(nil)

// Descriptor implements ports.Module.
func (m *Module) Descriptor(context.Context) (entities.DescriptorText, error) {
	return m.def.Descriptor(), nil
}

// Init implements ports.Module.
func (m *Module) Init(context.Context) (int32, error) {
	return m.def.Init(), nil
}

// Uninit implements ports.Module.
func (m *Module) Uninit(context.Context) error {
	m.def.Uninit()
	return nil
}

// Invoke implements ports.Module.
func (m *Module) Invoke(ctx context.Context, inv ports.Invocation) (entities.Value, error) {
	return m.def.Invoke(ctx, inv.ABI, inv.Function.Name, inv.Bag)
}

// Close implements ports.Module. The definition outlives its modules.
func (m *Module) Close(context.Context) error { return nil }
