package wazero

import (
	"context"
	"testing"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
	"github.com/reglet-dev/plugabi/hostfuncs"
	"github.com/reglet-dev/plugabi/internal/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initModule exports plugin_init returning status and answer(bag) -> 42.
func initModule(status byte) []byte {
	return []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		// types: () -> i32, (i32) -> i64
		0x01, 0x0a, 0x02, 0x60, 0x00, 0x01, 0x7f, 0x60, 0x01, 0x7f, 0x01, 0x7e,
		// functions
		0x03, 0x03, 0x02, 0x00, 0x01,
		// exports
		0x07, 0x18, 0x02,
		0x0b, 'p', 'l', 'u', 'g', 'i', 'n', '_', 'i', 'n', 'i', 't', 0x00, 0x00,
		0x06, 'a', 'n', 's', 'w', 'e', 'r', 0x00, 0x01,
		// code: i32.const status; i64.const 42
		0x0a, 0x0b, 0x02,
		0x04, 0x00, 0x41, status, 0x0b,
		0x04, 0x00, 0x42, 0x2a, 0x0b,
	}
}

// lastErrorModule imports plugabi_host.last_error and exports check(bag) which
// returns it widened to i64.
var lastErrorModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0a, 0x02, 0x60, 0x00, 0x01, 0x7f, 0x60, 0x01, 0x7f, 0x01, 0x7e,
	0x02, 0x1b, 0x01,
	0x0c, 'p', 'l', 'u', 'g', 'a', 'b', 'i', '_', 'h', 'o', 's', 't',
	0x0a, 'l', 'a', 's', 't', '_', 'e', 'r', 'r', 'o', 'r', 0x00, 0x00,
	0x03, 0x02, 0x01, 0x01,
	0x07, 0x09, 0x01, 0x05, 'c', 'h', 'e', 'c', 'k', 0x00, 0x01,
	0x0a, 0x07, 0x01, 0x05, 0x00, 0x10, 0x00, 0xad, 0x0b,
}

func newDriver(t *testing.T) *Driver {
	t.Helper()
	ctx := context.Background()
	d, err := NewDriver(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(ctx) })
	return d
}

func TestDefaultAdapterConfig(t *testing.T) {
	cfg := defaultAdapterConfig()
	assert.Equal(t, abi.HostModule, cfg.ModuleName)
	assert.Equal(t, uint32(DefaultMaxRequestSize), cfg.MaxRequestSize)

	WithModuleName("custom_module")(&cfg)
	WithMaxRequestSize(2048)(&cfg)
	assert.Equal(t, "custom_module", cfg.ModuleName)
	assert.Equal(t, uint32(2048), cfg.MaxRequestSize)
}

func TestUnpackPtrLen(t *testing.T) {
	tests := []struct {
		packed uint64
		ptr    uint32
		length uint32
	}{
		{0, 0, 0},
		{abi.PackPtrLen(100, 50), 100, 50},
		{abi.PackPtrLen(0xFFFFFFFF, 0xFFFFFFFF), 0xFFFFFFFF, 0xFFFFFFFF},
		{7, 0, 0}, // null pointer with a length reads as empty
	}
	for _, tt := range tests {
		ptr, length := unpackPtrLen(tt.packed)
		assert.Equal(t, tt.ptr, ptr)
		assert.Equal(t, tt.length, length)
	}
}

func TestDriver_Init(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)
	assert.Equal(t, DriverName, d.Name())
	assert.Equal(t, []string{".wasm"}, d.Extensions())

	for _, status := range []byte{0, 3} {
		mod, err := d.OpenBytes(ctx, initModule(status))
		require.NoError(t, err)
		got, err := mod.Init(ctx)
		require.NoError(t, err)
		assert.Equal(t, int32(status), got)
		require.NoError(t, mod.Uninit(ctx), "missing plugin_uninit is not an error")
		require.NoError(t, mod.Close(ctx))
	}
}

func TestDriver_DescriptorRequiresExports(t *testing.T) {
	ctx := context.Background()
	mod, err := newDriver(t).OpenBytes(ctx, initModule(0))
	require.NoError(t, err)
	_, err = mod.Descriptor(ctx)
	assert.ErrorContains(t, err, "plugin_name")
}

func invocation(t *testing.T, name string, ret entities.TypeTag) (ports.Invocation, *hostfuncs.Session) {
	t.Helper()
	rt, err := hostfuncs.NewRuntime()
	require.NoError(t, err)
	s, err := rt.Begin(context.Background(), hostfuncs.CallOptions{})
	require.NoError(t, err)
	t.Cleanup(s.End)
	return ports.Invocation{ABI: s, Function: entities.FunctionSpec{Name: name, ReturnType: ret}, Bag: s.Bag()}, s
}

func TestModule_InvokeDirectExport(t *testing.T) {
	ctx := context.Background()
	mod, err := newDriver(t).OpenBytes(ctx, initModule(0))
	require.NoError(t, err)

	inv, _ := invocation(t, "answer", entities.TagLlong)
	v, err := mod.Invoke(ctx, inv)
	require.NoError(t, err)
	assert.True(t, entities.Int64(42).Equal(v))

	inv.Function.ReturnType = entities.TagVoid
	v, err = mod.Invoke(ctx, inv)
	require.NoError(t, err)
	assert.True(t, v.IsVoid())

	inv.Function.Name = "missing"
	_, err = mod.Invoke(ctx, inv)
	assert.ErrorIs(t, err, errors.NotFound.Err())
}

func TestModule_SessionTravelsInContext(t *testing.T) {
	ctx := context.Background()
	mod, err := newDriver(t).OpenBytes(ctx, lastErrorModule)
	require.NoError(t, err)

	inv, s := invocation(t, "check", entities.TagLlong)
	v, err := mod.Invoke(ctx, inv)
	require.NoError(t, err)
	assert.True(t, entities.Int64(int64(errors.OK)).Equal(v))

	// A failed fetch in this session is what the guest's last_error sees.
	s.ArgumentInt32(s.Bag(), "absent")
	v, err = mod.Invoke(ctx, inv)
	require.NoError(t, err)
	assert.True(t, entities.Int64(int64(errors.NotFound)).Equal(v))
}
