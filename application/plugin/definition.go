package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
)

// PluginDef defines plugin identity and lifecycle hooks.
type PluginDef struct {
	// Init runs once when the host loads the plugin. A non-zero status tells
	// the host never to invoke this plugin.
	Init func() int32
	// Uninit runs at most once, after a successful Init.
	Uninit      func()
	Name        string `validate:"required,printascii"`
	Version     string `validate:"required"`
	Author      string
	Description string
}

// Handler implements one exported capability.
type Handler func(call *Call) (entities.Value, error)

// JSONHandler implements a capability that decodes all of its arguments from
// the bag's JSON text.
type JSONHandler func(call *Call, args *JSONArguments) (entities.Value, error)

// ParamSpec is one declared parameter, built with Param or Variadic.
type ParamSpec struct {
	name     string
	tag      entities.TypeTag
	variadic bool
}

// Param declares a named, typed parameter.
func Param(name string, tag entities.TypeTag) ParamSpec {
	return ParamSpec{name: name, tag: tag}
}

// Variadic marks a function as accepting arguments beyond the declared ones.
func Variadic() ParamSpec {
	return ParamSpec{variadic: true}
}

type export struct {
	handler Handler
	spec    entities.FunctionSpec
}

// Definition is a plugin: its descriptor, its exported capabilities and its
// lifecycle state.
type Definition struct {
	def     PluginDef
	exports map[string]*export
	apiErr  error
	api     string
	order   []string
	mu      sync.RWMutex
	apiOnce sync.Once
	state   lifecycle
	// hooks serialises Init and Uninit so their hooks run outside mu.
	hooks sync.Mutex
}

type lifecycle uint8

const (
	stateLoaded lifecycle = iota
	stateReady
	stateFailed
	stateClosed
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// DefinePlugin creates a plugin definition. Call it once at package level.
func DefinePlugin(def PluginDef) (*Definition, error) {
	if err := structValidator.Struct(def); err != nil {
		return nil, fmt.Errorf("invalid plugin definition: %w", err)
	}
	return &Definition{
		def:     def,
		exports: make(map[string]*export),
	}, nil
}

// MustDefinePlugin is DefinePlugin that panics on error.
func MustDefinePlugin(def PluginDef) *Definition {
	d, err := DefinePlugin(def)
	if err != nil {
		panic(err)
	}
	return d
}

// Export registers a capability. Names must be unique and tags must belong
// to the vocabulary; parameters cannot be void.
func (d *Definition) Export(name string, ret entities.TypeTag, h Handler, params ...ParamSpec) error {
	if name == "" {
		return fmt.Errorf("export name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("export %q: handler is nil", name)
	}
	if !ret.Valid() {
		return fmt.Errorf("export %q: %w: %q", name, entities.ErrUnknownTypeTag, ret)
	}

	spec := entities.FunctionSpec{Name: name, ReturnType: ret}
	for _, p := range params {
		if p.variadic {
			spec.Variadic = true
			continue
		}
		spec.Arguments = append(spec.Arguments, entities.ArgumentSpec{Name: p.name, Type: p.tag})
	}
	if err := (entities.APIDocument{API: []entities.FunctionSpec{spec}}).Check(); err != nil {
		return fmt.Errorf("export %q: %w", name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api != "" || d.apiErr != nil {
		return fmt.Errorf("export %q: API already published", name)
	}
	if _, exists := d.exports[name]; exists {
		return fmt.Errorf("duplicate export: %q", name)
	}
	d.exports[name] = &export{spec: spec, handler: h}
	d.order = append(d.order, name)
	return nil
}

// ExportJSON registers a capability whose handler receives the decoded JSON
// argument text. The intermediate string handle is released before the
// handler runs.
func (d *Definition) ExportJSON(name string, ret entities.TypeTag, h JSONHandler, params ...ParamSpec) error {
	if h == nil {
		return fmt.Errorf("export %q: handler is nil", name)
	}
	return d.Export(name, ret, func(call *Call) (entities.Value, error) {
		args, err := call.Args().JSON()
		if err != nil {
			return entities.Void(), err
		}
		return h(call, args)
	}, params...)
}

// MustExport is Export that panics on error.
func (d *Definition) MustExport(name string, ret entities.TypeTag, h Handler, params ...ParamSpec) {
	if err := d.Export(name, ret, h, params...); err != nil {
		panic(err)
	}
}

// Name implements plugin_name.
func (d *Definition) Name() string { return d.def.Name }

// Version implements plugin_version.
func (d *Definition) Version() string { return d.def.Version }

// Author implements plugin_author.
func (d *Definition) Author() string { return d.def.Author }

// Description implements plugin_description.
func (d *Definition) Description() string { return d.def.Description }

// Document returns the typed capability schema in export order.
func (d *Definition) Document() entities.APIDocument {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc := entities.APIDocument{API: make([]entities.FunctionSpec, 0, len(d.order))}
	for _, name := range d.order {
		doc.API = append(doc.API, d.exports[name].spec)
	}
	return doc
}

// API implements plugin_api. The JSON is rendered once; exports registered
// afterwards are rejected.
func (d *Definition) API() string {
	d.apiOnce.Do(func() {
		data, err := d.Document().Marshal()
		d.mu.Lock()
		defer d.mu.Unlock()
		if err != nil {
			d.apiErr = err
			d.api = `{"API":[]}`
			return
		}
		d.api = string(data)
	})
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.api
}

// Descriptor returns the five metadata entry points as one value.
func (d *Definition) Descriptor() entities.DescriptorText {
	return entities.DescriptorText{
		Name:        d.Name(),
		Version:     d.Version(),
		Author:      d.Author(),
		Description: d.Description(),
		API:         d.API(),
	}
}

// Init implements plugin_init. It is a no-op returning 0 while the plugin
// is initialised; after a failed Init or an Uninit the hook runs again, as
// for a fresh load.
func (d *Definition) Init() int32 {
	d.hooks.Lock()
	defer d.hooks.Unlock()
	if d.Ready() {
		return 0
	}
	var status int32
	if d.def.Init != nil {
		status = d.def.Init()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if status != 0 {
		d.state = stateFailed
		return status
	}
	d.state = stateReady
	return 0
}

// Uninit implements plugin_uninit. It runs the hook only after a successful
// Init and only once.
func (d *Definition) Uninit() {
	d.hooks.Lock()
	defer d.hooks.Unlock()
	d.mu.Lock()
	wasReady := d.state == stateReady
	d.state = stateClosed
	d.mu.Unlock()
	if wasReady && d.def.Uninit != nil {
		d.def.Uninit()
	}
}

// Ready reports whether Init succeeded and Uninit has not run.
func (d *Definition) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state == stateReady
}

// Invoke runs the named capability against the host ABI of one call. A
// handler returning a value whose kind differs from the declared tag is an
// error; void functions always yield entities.Void().
func (d *Definition) Invoke(ctx context.Context, abi ports.HostABI, function string, bag entities.BagHandle) (v entities.Value, err error) {
	d.mu.RLock()
	exp, ok := d.exports[function]
	ready := d.state == stateReady
	d.mu.RUnlock()

	if !ok {
		return entities.Void(), fmt.Errorf("unknown function %q: %w", function, errors.NotFound.Err())
	}
	if !ready {
		return entities.Void(), &errors.LifecycleError{Plugin: d.def.Name, Stage: "call", Err: errors.ErrNotReady}
	}

	call := &Call{ctx: ctx, abi: abi, spec: exp.spec, bag: bag}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "plugin function panicked", "plugin", d.def.Name, "function", function, "panic", r)
			v, err = entities.Void(), &errors.PanicError{Value: r}
		}
	}()

	v, err = exp.handler(call)
	if err != nil {
		return entities.Void(), err
	}
	if exp.spec.ReturnType.IsVoid() {
		return entities.Void(), nil
	}
	if !exp.spec.ReturnType.Accepts(v.Kind()) {
		return entities.Void(), fmt.Errorf("function %q returned %s, declared %s: %w",
			function, v.Kind(), exp.spec.ReturnType, errors.KindMismatch.Err())
	}
	return v, nil
}
