package plugin_test

import (
	"testing"

	"github.com/reglet-dev/plugabi/application/plugin"
	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/hostfuncs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString_ReadWriteRelease(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt)
	h := s.Grant(rt.Handles().NewString("hello"))

	str := plugin.NewString(s, h, entities.Owned)
	text, err := str.Read()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	require.NoError(t, str.Write("bye"))
	text, err = str.Read()
	require.NoError(t, err)
	assert.Equal(t, "bye", text)

	require.NoError(t, str.Release())
	assert.Zero(t, rt.Handles().Live())
}

func TestString_ReadAfterReleaseFails(t *testing.T) {
	rt := newRuntime(t)
	fake := &faultyABI{Session: session(t, rt)}
	str := plugin.NewString(fake, fake.Grant(rt.Handles().NewString("hello")), entities.Owned)

	_, err := str.Read()
	require.NoError(t, err)
	require.NoError(t, str.Release())

	_, err = str.Read()
	var herr *errors.HandleError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.InvalidHandle, herr.Code)

	err = str.Release()
	assert.ErrorIs(t, err, errors.InvalidHandle.Err())
	assert.Equal(t, 1, fake.releases, "second release must not reach the host")
	assert.Equal(t, 1, fake.stringReads, "read after release must not reach the host")
}

func TestString_StaleHandleAtHost(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt)
	h := s.Grant(rt.Handles().NewString("hello"))
	require.NoError(t, rt.Handles().Release(h))

	// A second wrapper around a handle the host already freed still fails
	// deterministically instead of returning stale data.
	_, err := plugin.NewString(s, h, entities.Borrowed).Read()
	assert.ErrorIs(t, err, errors.InvalidHandle.Err())
}

func TestString_BorrowedRelease(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt)
	h := s.Grant(rt.Handles().NewString("static"))
	t.Cleanup(func() { _ = rt.Handles().Release(h) })

	err := plugin.NewString(s, h, entities.Borrowed).Release()
	assert.ErrorIs(t, err, plugin.ErrBorrowed)
	assert.True(t, rt.Handles().Alive(h))
}

func TestObject_ReadReleasesIntermediate(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt)
	h := s.Grant(rt.Handles().NewObject(entities.Int32(42), nil))

	err := plugin.WithObject(s, h, entities.Owned, func(o *plugin.Object) error {
		text, err := o.Read()
		require.NoError(t, err)
		assert.Equal(t, "42", text)
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, rt.Handles().Live())
	s.End()
	assert.Zero(t, s.Leaked())
}

func TestObject_ReadReleasesIntermediateOnError(t *testing.T) {
	rt := newRuntime(t)
	fake := &faultyABI{Session: session(t, rt), failStringRead: true}
	h := fake.Session.Grant(rt.Handles().NewObject(entities.Int32(42), nil))

	obj := plugin.NewObject(fake, h, entities.Owned)
	_, err := obj.Read()
	require.Error(t, err)
	assert.Equal(t, 1, fake.releases, "intermediate string released on the error path")
	assert.Equal(t, 1, rt.Handles().Live(), "only the object itself is still held")

	require.NoError(t, obj.Release())
	assert.Zero(t, rt.Handles().Live())
}

func TestObject_Write(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt)
	var written entities.Value
	h := s.Grant(rt.Handles().NewObject(entities.Uint16(1), func(v entities.Value) error {
		written = v
		return nil
	}))

	obj := plugin.NewObject(s, h, entities.Owned)
	require.NoError(t, obj.Write("300"))
	assert.True(t, entities.Uint16(300).Equal(written))

	err := obj.Write("-1")
	assert.ErrorIs(t, err, errors.InvalidValue.Err())
	require.NoError(t, obj.Release())
	assert.ErrorIs(t, obj.Write("1"), errors.InvalidHandle.Err())
}

func TestWithString_JoinsErrors(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt)
	h := s.Grant(rt.Handles().NewString("x"))

	err := plugin.WithString(s, h, entities.Owned, func(str *plugin.String) error {
		require.NoError(t, str.Release())
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, err, errors.InvalidHandle.Err(), "deferred release of an already released handle is reported")
}

func TestWithString_ReleasesOnPanic(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt)
	h := s.Grant(rt.Handles().NewString("x"))

	assert.Panics(t, func() {
		_ = plugin.WithString(s, h, entities.Owned, func(*plugin.String) error { panic("boom") })
	})
	assert.False(t, rt.Handles().Alive(h))
}

func TestConfigFile(t *testing.T) {
	store, err := hostfuncs.ParseConfig([]byte("server:\n  port: 8080\n  name: edge\n"))
	require.NoError(t, err)
	rt := newRuntime(t, hostfuncs.WithConfigStore(store))
	s := session(t, rt)
	cfg := newCall(s).Config()

	port, err := cfg.Get("server", "port")
	require.NoError(t, err)
	assert.Equal(t, "8080", port)
	assert.Equal(t, "fallback", cfg.GetOr("server", "missing", "fallback"))

	_, err = cfg.Get("server", "missing")
	assert.ErrorIs(t, err, errors.NotFound.Err())

	require.NoError(t, cfg.Set("server", "port", "9090"))
	v, ok := store.Get("server", "port")
	require.True(t, ok)
	assert.True(t, entities.Int64(9090).Equal(v))
	assert.ErrorIs(t, cfg.Set("server", "port", "not a number"), errors.InvalidValue.Err())

	obj, err := cfg.Open("server", "name")
	require.NoError(t, err)
	require.NoError(t, obj.Write("core"))
	require.NoError(t, obj.Release())
	v, _ = store.Get("server", "name")
	assert.True(t, entities.String("core").Equal(v))

	assert.Zero(t, rt.Handles().Live())
}
