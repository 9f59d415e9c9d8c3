package hostfuncs

import (
	"context"

	"github.com/reglet-dev/plugabi/domain/entities"
)

// HostContext wraps a context.Context with what middleware needs to know
// about one accessor invocation.
type HostContext interface {
	context.Context

	// EntryPoint returns the accessor entry point name, e.g. "argument_int32".
	EntryPoint() string

	// Kind returns the kind the accessor was asked for.
	Kind() entities.ValueKind

	// Call describes the plugin call the accessor runs in.
	Call() CallInfo
}

// CallInfo identifies one plugin call.
type CallInfo struct {
	Plugin   string
	Function string
}

type callInfoKey struct{}

// WithCallInfo attaches info to ctx.
func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the CallInfo attached to ctx.
func CallInfoFrom(ctx context.Context) (CallInfo, bool) {
	info, ok := ctx.Value(callInfoKey{}).(CallInfo)
	return info, ok
}

type hostContext struct {
	context.Context
	call CallInfo
	kind entities.ValueKind
}

// NewHostContext creates a HostContext for an accessor of kind.
func NewHostContext(ctx context.Context, kind entities.ValueKind) HostContext {
	info, _ := CallInfoFrom(ctx)
	return &hostContext{Context: ctx, kind: kind, call: info}
}

func (c *hostContext) EntryPoint() string       { return EntryPointName(c.kind) }
func (c *hostContext) Kind() entities.ValueKind { return c.kind }
func (c *hostContext) Call() CallInfo           { return c.call }

// EntryPointName returns the stable accessor name for kind.
func EntryPointName(kind entities.ValueKind) string {
	return "argument_" + kind.String()
}
