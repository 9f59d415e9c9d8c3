package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/reglet-dev/plugabi/hostfuncs"
)

type pluginState uint8

const (
	pluginReady pluginState = iota
	pluginClosed
)

// Plugin is one loaded and initialised plugin instance.
type Plugin struct {
	module  ports.Module
	runtime *hostfuncs.Runtime
	config  *hostfuncs.ConfigStore
	logger  *slog.Logger
	desc    *entities.Descriptor
	source  entities.Source
	driver  string
	mu      sync.RWMutex
	state   pluginState
}

// Name returns the plugin name from its descriptor.
func (p *Plugin) Name() string { return p.desc.Name }

// Descriptor returns the validated descriptor read at load time.
func (p *Plugin) Descriptor() *entities.Descriptor { return p.desc }

// Source returns where the plugin was loaded from.
func (p *Plugin) Source() entities.Source { return p.source }

// Driver returns the name of the driver that opened the plugin.
func (p *Plugin) Driver() string { return p.driver }

// Call invokes a capability. Arguments are checked against the declared
// schema before the plugin runs; the call gets its own bag and session,
// both closed on every path.
func (p *Plugin) Call(ctx context.Context, function string, args ...entities.Argument) (entities.Value, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != pluginReady {
		return entities.Void(), p.callError(function,
			&errors.LifecycleError{Plugin: p.desc.Name, Stage: "call", Err: errors.ErrNotReady})
	}

	spec, ok := p.desc.Function(function)
	if !ok {
		return entities.Void(), p.callError(function, fmt.Errorf("unknown function: %w", errors.NotFound.Err()))
	}
	if err := CheckArguments(spec, args); err != nil {
		return entities.Void(), p.callError(function, err)
	}

	s, err := p.runtime.Begin(ctx, hostfuncs.CallOptions{
		Config: p.config,
		Info:   hostfuncs.CallInfo{Plugin: p.desc.Name, Function: function},
	}, args...)
	if err != nil {
		return entities.Void(), p.callError(function, err)
	}
	defer s.End()

	v, err := p.module.Invoke(s.Context(), ports.Invocation{ABI: s, Function: spec, Bag: s.Bag()})
	if err != nil {
		return entities.Void(), p.callError(function, err)
	}
	if spec.ReturnType.IsVoid() {
		return entities.Void(), nil
	}
	if !spec.ReturnType.Accepts(v.Kind()) {
		return entities.Void(), p.callError(function, fmt.Errorf("returned %s, declared %s: %w",
			v.Kind(), spec.ReturnType, errors.KindMismatch.Err()))
	}
	return v, nil
}

func (p *Plugin) callError(function string, err error) error {
	p.logger.Debug("plugin call failed", "function", function, "error", err)
	return &errors.CallError{Plugin: p.desc.Name, Function: function, Err: err}
}

// shutdown runs uninit at most once, waiting for in-flight calls, then
// closes the module.
func (p *Plugin) shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == pluginClosed {
		return nil
	}
	p.state = pluginClosed

	uerr := p.module.Uninit(ctx)
	if uerr != nil {
		p.logger.WarnContext(ctx, "plugin uninit failed", "error", uerr)
	}
	if err := p.module.Close(ctx); err != nil {
		return fmt.Errorf("failed to close plugin %s: %w", p.desc.Name, err)
	}
	return uerr
}

// CheckArguments validates host-supplied arguments against a function's
// declared parameters. Names must be unique; a declared name must carry a
// value of the declared tag's kind; undeclared names are only accepted by
// variadic functions or for out-of-band pointer and blob values.
func CheckArguments(spec entities.FunctionSpec, args []entities.Argument) error {
	seen := make(map[string]struct{}, len(args))
	for _, a := range args {
		if _, dup := seen[a.Name]; dup {
			return &errors.ArgumentError{Name: a.Name, Kind: a.Value.Kind(), Code: errors.InvalidArgument}
		}
		seen[a.Name] = struct{}{}

		decl, declared := spec.Argument(a.Name)
		switch {
		case declared && !decl.Type.Accepts(a.Value.Kind()):
			return fmt.Errorf("argument %q is %s, declared %s: %w",
				a.Name, a.Value.Kind(), decl.Type, errors.KindMismatch.Err())
		case declared:
		case spec.Variadic, a.Value.Kind().OutOfBand():
		default:
			return fmt.Errorf("argument %q is not declared: %w", a.Name, errors.InvalidArgument.Err())
		}
	}
	return nil
}
