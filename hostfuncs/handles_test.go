package hostfuncs

import (
	stdErrors "errors"
	"testing"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTable_StringLifecycle(t *testing.T) {
	table := NewHandleTable()
	h := table.NewString("abc")
	assert.NotEqual(t, entities.NullHandle, h)
	assert.Equal(t, 1, table.Live())

	s, err := table.ReadString(h)
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	require.NoError(t, table.WriteString(h, "xyz"))
	s, _ = table.ReadString(h)
	assert.Equal(t, "xyz", s)

	require.NoError(t, table.Release(h))
	assert.Zero(t, table.Live())

	_, err = table.ReadString(h)
	var herr *errors.HandleError
	require.True(t, stdErrors.As(err, &herr))
	assert.Equal(t, errors.InvalidHandle, herr.Code)
	assert.Equal(t, "read", herr.Op)
}

func TestHandleTable_DoubleRelease(t *testing.T) {
	table := NewHandleTable()
	h := table.NewString("x")
	require.NoError(t, table.Release(h))

	err := table.Release(h)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.InvalidHandle.Err())
	assert.Zero(t, table.Live())
}

func TestHandleTable_SlotReuseDoesNotAlias(t *testing.T) {
	table := NewHandleTable()
	old := table.NewString("old")
	require.NoError(t, table.Release(old))

	fresh := table.NewString("new")
	assert.Equal(t, old.Slot(), fresh.Slot(), "slot is reused")
	assert.NotEqual(t, old, fresh)

	_, err := table.ReadString(old)
	assert.Error(t, err, "stale handle must not read the new value")
	require.Error(t, table.Release(old))

	s, err := table.ReadString(fresh)
	require.NoError(t, err)
	assert.Equal(t, "new", s)
}

func TestHandleTable_RetainRelease(t *testing.T) {
	table := NewHandleTable()
	h := table.NewString("shared")
	require.NoError(t, table.Retain(h))

	require.NoError(t, table.Release(h))
	assert.True(t, table.Alive(h))

	require.NoError(t, table.Release(h))
	assert.False(t, table.Alive(h))
	assert.Error(t, table.Retain(h))
}

func TestHandleTable_NullAndUnknown(t *testing.T) {
	table := NewHandleTable()
	_, err := table.ReadString(entities.NullHandle)
	assert.Error(t, err)
	_, err = table.ReadString(entities.NewHandle(42, 1))
	assert.Error(t, err)
	assert.False(t, table.Alive(entities.NullHandle))
}

func TestHandleTable_Objects(t *testing.T) {
	table := NewHandleTable()
	var hooked []entities.Value
	h := table.NewObject(entities.Bool(false), func(v entities.Value) error {
		hooked = append(hooked, v)
		return nil
	})

	sh, err := table.ObjectString(h)
	require.NoError(t, err)
	s, _ := table.ReadString(sh)
	assert.Equal(t, "false", s)
	assert.Equal(t, 2, table.Live())
	require.NoError(t, table.Release(sh))

	require.NoError(t, table.WriteObject(h, "true"))
	v, err := table.ReadObject(h)
	require.NoError(t, err)
	assert.True(t, entities.Bool(true).Equal(v))
	require.Len(t, hooked, 1)

	err = table.WriteObject(h, "perhaps")
	assert.ErrorIs(t, err, errors.InvalidValue.Err())
	require.Len(t, hooked, 1)

	require.NoError(t, table.Release(h))
	_, err = table.ObjectString(h)
	assert.ErrorIs(t, err, errors.InvalidHandle.Err())
}

func TestHandleTable_RejectingHook(t *testing.T) {
	table := NewHandleTable()
	h := table.NewObject(entities.Int64(1), func(entities.Value) error {
		return stdErrors.New("read-only")
	})

	assert.Error(t, table.WriteObject(h, "2"))
	v, _ := table.ReadObject(h)
	assert.True(t, entities.Int64(1).Equal(v))
}
