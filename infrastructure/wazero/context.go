package wazero

import (
	"context"

	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var (
	pluginNameKey = &contextKey{name: "plugin_name"}
	callStateKey  = &contextKey{name: "call_state"}
)

// callState is what host functions see of the call in progress. fault
// shadows the session register for failures of the memory bridge itself,
// which the session never observes.
type callState struct {
	abi   ports.HostABI
	fault errors.Code
}

func (c *callState) lastError() errors.Code {
	if c.fault != errors.OK {
		return c.fault
	}
	return c.abi.LastError()
}

func withCallState(ctx context.Context, abi ports.HostABI) context.Context {
	return context.WithValue(ctx, callStateKey, &callState{abi: abi})
}

func callStateFrom(ctx context.Context) *callState {
	c, _ := ctx.Value(callStateKey).(*callState)
	return c
}

// WithPluginName adds the plugin name to the context.
// Host functions use it to attribute guest log records.
func WithPluginName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, pluginNameKey, name)
}

// PluginNameFromContext retrieves the plugin name from the context.
func PluginNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(pluginNameKey).(string)
	return name, ok
}

// GetPluginName extracts the plugin name from context, falling back to the module name.
func GetPluginName(ctx context.Context, mod api.Module) string {
	if name, ok := PluginNameFromContext(ctx); ok {
		return name
	}
	return mod.Name()
}
