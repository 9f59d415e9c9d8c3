package goja_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/host"
	"github.com/reglet-dev/plugabi/hostfuncs"
	jsdriver "github.com/reglet-dev/plugabi/infrastructure/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoScript = `
var plugin_name = "jsdemo";
var plugin_version = "0.3.0";
function plugin_description() { return "JavaScript demo"; }
var plugin_api = {API: [
	{name: "greet", return_type: "string", arguments: [{name: "name", type: "string"}]},
	{name: "add", return_type: "int", arguments: [{name: "a", type: "int"}, {name: "b", type: "int"}]},
	{name: "total", return_type: "double", varargs: true},
	{name: "lastError", return_type: "int"},
	{name: "mode", return_type: "string"},
	{name: "spin", return_type: "void"},
	{name: "wrong", return_type: "int"}
]};

var inits = 0;
function plugin_init() { inits++; return 0; }

function greet(bag) { return "hello, " + host.argumentString(bag, "name"); }
function add(bag) { return host.argumentInt32(bag, "a") + host.argumentInt32(bag, "b"); }
function total(bag) {
	var args = host.arguments(bag);
	var t = 0;
	for (var k in args) { t += args[k]; }
	return t;
}
function lastError(bag) { host.argumentInt32(bag, "missing"); return host.lastError(); }
function mode(bag) { return host.config("app", "mode"); }
function spin(bag) { for (;;) {} }
function wrong(bag) { return "seven"; }
`

func loadDemo(t *testing.T) (*host.Manager, *host.Plugin) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "demo.js")
	require.NoError(t, os.WriteFile(path, []byte(demoScript), 0o644))

	store := hostfuncs.NewConfigStore()
	require.NoError(t, store.SetText("app", "mode", "scripted"))
	m, err := host.NewManager(host.WithDriver(jsdriver.NewDriver()), host.WithConfigStore(store))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(ctx) })

	p, err := m.Load(ctx, entities.Source{Location: path})
	require.NoError(t, err)
	return m, p
}

func TestDriver_Descriptor(t *testing.T) {
	_, p := loadDemo(t)
	desc := p.Descriptor()
	assert.Equal(t, "jsdemo", desc.Name)
	assert.Equal(t, "0.3.0", desc.Version)
	assert.Equal(t, "JavaScript demo", desc.Description)
	assert.Empty(t, desc.Author)
	assert.Len(t, desc.API.API, 7)
	assert.Equal(t, jsdriver.DriverName, p.Driver())
}

func TestDriver_Calls(t *testing.T) {
	ctx := context.Background()
	_, p := loadDemo(t)

	tests := []struct {
		name     string
		function string
		args     []entities.Argument
		want     entities.Value
	}{
		{"string accessor", "greet", []entities.Argument{entities.Arg("name", entities.String("js"))}, entities.String("hello, js")},
		{"int accessors", "add", []entities.Argument{
			entities.Arg("a", entities.Int32(40)), entities.Arg("b", entities.Int32(2)),
		}, entities.Int32(42)},
		{"json arguments", "total", []entities.Argument{
			entities.Arg("x", entities.Float64(1.5)), entities.Arg("y", entities.Int32(2)),
		}, entities.Float64(3.5)},
		{"last error register", "lastError", nil, entities.Int32(int32(errors.NotFound))},
		{"config", "mode", nil, entities.String("scripted")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := p.Call(ctx, tt.function, tt.args...)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(v), "got %v", v)
		})
	}
}

func TestDriver_ReturnKind(t *testing.T) {
	_, p := loadDemo(t)
	_, err := p.Call(context.Background(), "wrong")
	assert.ErrorIs(t, err, errors.KindMismatch.Err())
}

func TestDriver_Interrupt(t *testing.T) {
	_, p := loadDemo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Call(ctx, "spin")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The interpreter stays usable after an interrupted call.
	v, err := p.Call(context.Background(), "greet", entities.Arg("name", entities.String("again")))
	require.NoError(t, err)
	assert.True(t, entities.String("hello, again").Equal(v))
}

func TestDriver_OpenSourceErrors(t *testing.T) {
	ctx := context.Background()
	d := jsdriver.NewDriver()

	_, err := d.OpenSource(ctx, "broken.js", "function (")
	assert.ErrorContains(t, err, "failed to compile")

	_, err = d.OpenSource(ctx, "throws.js", `throw new Error("boom")`)
	assert.ErrorContains(t, err, "boom")

	m, err := d.OpenSource(ctx, "empty.js", `var plugin_version = "1";`)
	require.NoError(t, err)
	_, err = m.Descriptor(ctx)
	assert.ErrorContains(t, err, "plugin_name")
}

func TestDriver_HostOutsideCall(t *testing.T) {
	ctx := context.Background()
	m, err := jsdriver.NewDriver().OpenSource(ctx, "init.js", `function plugin_init() { return host.lastError(); }`)
	require.NoError(t, err)
	_, err = m.Init(ctx)
	assert.ErrorContains(t, err, "outside a call")
}

func TestDriver_Extensions(t *testing.T) {
	d := jsdriver.NewDriver()
	assert.Equal(t, "js", d.Name())
	assert.Equal(t, []string{".js"}, d.Extensions())
}
