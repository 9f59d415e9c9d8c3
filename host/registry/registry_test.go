package registry_test

import (
	"context"
	"testing"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/reglet-dev/plugabi/host/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDriver struct {
	name string
	exts []string
}

func (d stubDriver) Name() string         { return d.name }
func (d stubDriver) Extensions() []string { return d.exts }
func (d stubDriver) Open(context.Context, entities.Source) (ports.Module, error) {
	return nil, nil
}

func TestRegistry_LookupAndForPath(t *testing.T) {
	r := registry.NewRegistry()
	require.NoError(t, r.Register(stubDriver{name: "wasm", exts: []string{".wasm"}}))
	require.NoError(t, r.Register(stubDriver{name: "goja", exts: []string{"js", ".mjs"}}))
	require.NoError(t, r.Register(stubDriver{name: "native"}))

	d, ok := r.Lookup("goja")
	require.True(t, ok)
	assert.Equal(t, "goja", d.Name())

	tests := []struct {
		path string
		want string
	}{
		{"plugins/demo.wasm", "wasm"},
		{"plugins/DEMO.WASM", "wasm"},
		{"script.js", "goja"},
		{"module.mjs", "goja"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d, ok := r.ForPath(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.Name())
		})
	}

	_, ok = r.ForPath("noext")
	assert.False(t, ok)
	_, ok = r.ForPath("lib.so")
	assert.False(t, ok)
	assert.Equal(t, []string{"goja", "native", "wasm"}, r.List())
}

func TestRegistry_StrictMode(t *testing.T) {
	r := registry.NewRegistry()
	require.NoError(t, r.Register(stubDriver{name: "wasm", exts: []string{".wasm"}}))
	assert.ErrorContains(t, r.Register(stubDriver{name: "wasm"}), "already registered")
	assert.ErrorContains(t, r.Register(stubDriver{name: "other", exts: []string{"wasm"}}), "already claimed")
	assert.Error(t, r.Register(stubDriver{}))

	lax := registry.NewRegistry(registry.WithStrictMode(false))
	require.NoError(t, lax.Register(stubDriver{name: "wasm", exts: []string{".wasm"}}))
	require.NoError(t, lax.Register(stubDriver{name: "wasm2", exts: []string{".wasm"}}))
	d, ok := lax.ForPath("x.wasm")
	require.True(t, ok)
	assert.Equal(t, "wasm2", d.Name())
}
