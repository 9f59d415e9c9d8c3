package wazero_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/examples/foo"
	"github.com/reglet-dev/plugabi/host"
	"github.com/reglet-dev/plugabi/hostfuncs"
	"github.com/reglet-dev/plugabi/infrastructure/wazero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFoo compiles examples/foo/wasm as a wasip1 reactor. The test is
// skipped when no toolchain able to target wasip1 is available.
func buildFoo(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds a WASM module")
	}
	gobin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}

	out := filepath.Join(t.TempDir(), "foo.wasm")
	cmd := exec.Command(gobin, "build", "-buildmode=c-shared", "-o", out, "./examples/foo/wasm")
	cmd.Dir = filepath.Join("..", "..")
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm")
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot build foo.wasm: %v\n%s", err, output)
	}
	return out
}

func TestFooModule(t *testing.T) {
	ctx := context.Background()
	path := buildFoo(t)

	d, err := wazero.NewDriver(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(ctx) })

	store := hostfuncs.NewConfigStore()
	require.NoError(t, store.SetText(foo.Name, "mode", "wasm"))
	m, err := host.NewManager(host.WithDriver(d), host.WithConfigStore(store))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(ctx) })

	p, err := m.Load(ctx, entities.Source{Location: path})
	require.NoError(t, err)
	assert.Equal(t, foo.Name, p.Descriptor().Name)
	assert.Equal(t, wazero.DriverName, p.Driver())

	tests := []struct {
		name     string
		function string
		args     []entities.Argument
		want     entities.Value
		wantErr  error
	}{
		{"int", "foo_int", []entities.Argument{entities.Arg("value", entities.Int32(21))}, entities.Int32(42), nil},
		{"uint", "foo_args", []entities.Argument{entities.Arg("arg1", entities.Uint32(7))}, entities.Uint32(7), nil},
		{"missing argument", "foo_args", nil, entities.Void(), errors.NotFound.Err()},
		{"greet", "foo_greet", []entities.Argument{
			entities.Arg("name", entities.String("bob")), entities.Arg("shout", entities.Bool(true)),
		}, entities.String("HELLO, BOB (FOO_GREET)"), nil},
		{"config", "foo_mode", nil, entities.String("wasm"), nil},
		{"void", "foo_void", nil, entities.Void(), nil},
		{"defaults", "foo_scale", []entities.Argument{entities.Arg("value", entities.Int32(4))}, entities.Int32(8), nil},
		{"json arguments", "foo_sum", []entities.Argument{
			entities.Arg("a", entities.Float64(1.5)), entities.Arg("b", entities.Int64(2)),
		}, entities.Float64(3.5), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := p.Call(ctx, tt.function, tt.args...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(v), "got %v", v)
		})
	}

	// Strings returned through handles and the JSON text are all released.
	assert.Zero(t, m.Runtime().Handles().Live())
}
