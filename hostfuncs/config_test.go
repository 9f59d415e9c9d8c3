package hostfuncs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 8080
  ratio: 0.75
  debug: true
  name: demo
  quoted: "42"
empty: {}
`

func TestParseConfig(t *testing.T) {
	store, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "server"}, store.Blocks())

	tests := []struct {
		entry string
		want  entities.Value
	}{
		{"port", entities.Int64(8080)},
		{"ratio", entities.Float64(0.75)},
		{"debug", entities.Bool(true)},
		{"name", entities.String("demo")},
		{"quoted", entities.String("42")},
	}
	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			v, ok := store.Get("server", tt.entry)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(v), "want %v got %v", tt.want, v)
		})
	}

	_, ok := store.Get("empty", "x")
	assert.False(t, ok)
	_, ok = store.Get("nope", "x")
	assert.False(t, ok)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"not a mapping":  "- a\n- b\n",
		"block scalar":   "block: 1\n",
		"nested mapping": "block:\n  entry:\n    deep: 1\n",
		"bad yaml":       "block: [\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(data))
			assert.Error(t, err)
		})
	}

	store, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, store.Blocks())
}

func TestConfigStore_SetText(t *testing.T) {
	store, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	require.NoError(t, store.SetText("server", "port", "9000"))
	v, _ := store.Get("server", "port")
	assert.True(t, entities.Int64(9000).Equal(v))

	assert.Error(t, store.SetText("server", "debug", "yes please"))

	require.NoError(t, store.SetText("new", "entry", "text"))
	v, _ = store.Get("new", "entry")
	assert.Equal(t, entities.KindString, v.Kind())
}

func TestConfigStore_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugin.conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	store, err := LoadConfigFile(path)
	require.NoError(t, err)
	store.Set("server", "port", entities.Int64(1))
	require.NoError(t, store.Save())

	reloaded, err := LoadConfigFile(path)
	require.NoError(t, err)
	v, ok := reloaded.Get("server", "port")
	require.True(t, ok)
	assert.True(t, entities.Int64(1).Equal(v))
	v, _ = reloaded.Get("server", "debug")
	assert.True(t, entities.Bool(true).Equal(v))

	assert.Error(t, NewConfigStore().Save())
	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
