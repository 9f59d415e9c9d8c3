package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plugctl(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	code = run(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestRun_Call(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("foo:\n  mode: cli\n"), 0o644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"declared kind", []string{"call", "native:foo", "foo_int", "value=21"}, "42\n"},
		{"greeting", []string{"call", "native:foo", "foo_greet", "name=bar", "shout=false"}, "hello, bar (foo_greet)\n"},
		{"explicit kinds", []string{"call", "native:foo", "foo_sum", "a:float64=1.5", "b:int64=2"}, "3.5\n"},
		{"void", []string{"call", "native:foo", "foo_void"}, "(void)\n"},
		{"optional arguments", []string{"call", "native:foo", "foo_scale", "value=4"}, "8\n"},
		{"config", []string{"-config", cfg, "call", "native:foo", "foo_mode"}, "cli\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, stderr := plugctl(t, tt.args...)
			require.Equal(t, exitOK, code, stderr)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRun_CallJSON(t *testing.T) {
	code, out, _ := plugctl(t, "-json", "call", "native:foo", "foo_args", "arg1=7")
	require.Equal(t, exitOK, code)
	var w entities.CallResultWire
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	v, err := w.Decode()
	require.NoError(t, err)
	assert.True(t, entities.Uint32(7).Equal(v))

	code, out, _ = plugctl(t, "-json", "call", "native:foo", "foo_int", "value=many")
	assert.Equal(t, exitError, code)
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	require.NotNil(t, w.Error)
	assert.NotEmpty(t, w.Error.Message)
}

func TestRun_Info(t *testing.T) {
	code, out, stderr := plugctl(t, "info", "native:foo")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, out, "name:        foo")
	assert.Contains(t, out, "int foo_int(value int)")
	assert.Contains(t, out, "double foo_sum(...)")

	code, out, _ = plugctl(t, "-json", "info", "native:foo")
	require.Equal(t, exitOK, code)
	var desc entities.Descriptor
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Equal(t, "1.0.0", desc.Version)
}

func TestRun_List(t *testing.T) {
	code, out, _ := plugctl(t, "list")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "native:  foo")
	for _, d := range []string{"wasm", "native", "js", "yaegi"} {
		assert.Contains(t, out, d)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"no command", nil, exitUsage, "usage"},
		{"unknown command", []string{"frob"}, exitUsage, "unknown command"},
		{"bad flag", []string{"-nope", "list"}, exitUsage, "nope"},
		{"bad level", []string{"-log-level", "loud", "list"}, exitUsage, "loud"},
		{"bad policy", []string{"-unknown-tags", "maybe", "list"}, exitError, "maybe"},
		{"call arity", []string{"call", "native:foo"}, exitUsage, "usage"},
		{"malformed argument", []string{"call", "native:foo", "foo_int", "value"}, exitError, "want name=value"},
		{"unknown kind", []string{"call", "native:foo", "foo_int", "value:huge=1"}, exitError, "unknown kind"},
		{"unknown plugin", []string{"info", "native:nobody"}, exitError, "nobody"},
		{"unknown function", []string{"call", "native:foo", "foo_nothing"}, exitError, "foo_nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := plugctl(t, tt.args...)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr, tt.stderr)
		})
	}
}

func TestParseArgument(t *testing.T) {
	spec := entities.FunctionSpec{
		Name:      "f",
		Arguments: []entities.ArgumentSpec{{Name: "n", Type: entities.TagChar}},
	}

	a, err := parseArgument(spec, "n=-5")
	require.NoError(t, err)
	assert.True(t, entities.Int8(-5).Equal(a.Value))

	a, err = parseArgument(spec, "s=a=b")
	require.NoError(t, err)
	assert.Equal(t, "s", a.Name)
	assert.True(t, entities.String("a=b").Equal(a.Value))

	_, err = parseArgument(spec, "n=300")
	assert.Error(t, err)
}
