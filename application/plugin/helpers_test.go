package plugin_test

import (
	"context"
	"testing"

	"github.com/reglet-dev/plugabi/application/plugin"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/hostfuncs"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T, opts ...hostfuncs.RuntimeOption) *hostfuncs.Runtime {
	t.Helper()
	rt, err := hostfuncs.NewRuntime(opts...)
	require.NoError(t, err)
	return rt
}

func session(t *testing.T, rt *hostfuncs.Runtime, args ...entities.Argument) *hostfuncs.Session {
	t.Helper()
	s, err := rt.Begin(context.Background(), hostfuncs.CallOptions{Info: hostfuncs.CallInfo{Plugin: "demo", Function: "f"}}, args...)
	require.NoError(t, err)
	t.Cleanup(s.End)
	return s
}

func newCall(s *hostfuncs.Session) *plugin.Call {
	return plugin.NewCall(context.Background(), s, entities.FunctionSpec{Name: "f", ReturnType: entities.TagVoid}, s.Bag())
}

// faultyABI wraps a session and counts or fails selected bridge calls.
type faultyABI struct {
	*hostfuncs.Session
	failStringRead bool
	releases       int
	stringReads    int
}

func (f *faultyABI) StringRead(h entities.Handle) string {
	f.stringReads++
	if f.failStringRead {
		// Poison the register the way a failed host read would.
		f.Session.Release(entities.NullHandle)
		return ""
	}
	return f.Session.StringRead(h)
}

func (f *faultyABI) Release(h entities.Handle) errors.Code {
	f.releases++
	return f.Session.Release(h)
}

func mustDefine(t *testing.T, def plugin.PluginDef) *plugin.Definition {
	t.Helper()
	d, err := plugin.DefinePlugin(def)
	require.NoError(t, err)
	return d
}
