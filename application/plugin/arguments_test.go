package plugin_test

import (
	"testing"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArguments_Typed(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt,
		entities.Arg("i8", entities.Int8(-1)),
		entities.Arg("i16", entities.Int16(-2)),
		entities.Arg("i32", entities.Int32(-3)),
		entities.Arg("i64", entities.Int64(-4)),
		entities.Arg("u8", entities.Uint8(1)),
		entities.Arg("u16", entities.Uint16(2)),
		entities.Arg("u32", entities.Uint32(3)),
		entities.Arg("u64", entities.Uint64(4)),
		entities.Arg("f32", entities.Float32(0.5)),
		entities.Arg("f64", entities.Float64(0.25)),
		entities.Arg("b", entities.Bool(true)),
		entities.Arg("p", entities.Pointer(0x10)),
		entities.Arg("s", entities.String("text")),
		entities.Arg("blob", entities.Blob([]byte{9})),
	)
	args := newCall(s).Args()

	i8, err := args.Int8("i8")
	require.NoError(t, err)
	assert.Equal(t, int8(-1), i8)
	i16, err := args.Int16("i16")
	require.NoError(t, err)
	assert.Equal(t, int16(-2), i16)
	i32, err := args.Int32("i32")
	require.NoError(t, err)
	assert.Equal(t, int32(-3), i32)
	i64, err := args.Int64("i64")
	require.NoError(t, err)
	assert.Equal(t, int64(-4), i64)
	u8, err := args.Uint8("u8")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), u8)
	u16, err := args.Uint16("u16")
	require.NoError(t, err)
	assert.Equal(t, uint16(2), u16)
	u32, err := args.Uint32("u32")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), u32)
	u64, err := args.Uint64("u64")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), u64)
	f32, err := args.Float32("f32")
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), f32)
	f64, err := args.Float64("f64")
	require.NoError(t, err)
	assert.Equal(t, 0.25, f64)
	b, err := args.Bool("b")
	require.NoError(t, err)
	assert.True(t, b)
	p, err := args.Pointer("p")
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x10), p)
	str, err := args.String("s")
	require.NoError(t, err)
	assert.Equal(t, "text", str)
	blob, err := args.Blob("blob")
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, blob)

	v, err := args.Tagged("u32", entities.TagUint)
	require.NoError(t, err)
	assert.True(t, entities.Uint32(3).Equal(v))
}

func TestArguments_Arg1Present(t *testing.T) {
	s := session(t, newRuntime(t), entities.Arg("arg1", entities.Uint32(7)))
	got, err := newCall(s).Args().Uint32("arg1")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got)
	assert.Equal(t, errors.OK, s.LastError())
}

func TestArguments_Arg1Absent(t *testing.T) {
	s := session(t, newRuntime(t))
	_, err := newCall(s).Args().Uint32("arg1")

	var aerr *errors.ArgumentError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "arg1", aerr.Name)
	assert.Equal(t, entities.KindUint32, aerr.Kind)
	assert.Equal(t, errors.NotFound, aerr.Code)
	assert.ErrorIs(t, err, errors.NotFound.Err())
	assert.Equal(t, errors.NotFound, s.LastError())
}

func TestArguments_KindMismatch(t *testing.T) {
	s := session(t, newRuntime(t), entities.Arg("arg1", entities.Int32(7)))
	_, err := newCall(s).Args().Uint32("arg1")
	assert.ErrorIs(t, err, errors.KindMismatch.Err())
}

func TestArguments_Defaults(t *testing.T) {
	s := session(t, newRuntime(t), entities.Arg("n", entities.Int64(5)), entities.Arg("s", entities.String("x")))
	args := newCall(s).Args()

	assert.Equal(t, int64(5), args.Int64Or("n", 9))
	assert.Equal(t, int64(9), args.Int64Or("missing", 9))
	assert.Equal(t, int32(9), args.Int32Or("n", 9), "kind mismatch falls back")
	assert.Equal(t, "x", args.StringOr("s", "d"))
	assert.Equal(t, "d", args.StringOr("n", "d"))
	assert.Equal(t, int8(1), args.Int8Or("missing", 1))
	assert.Equal(t, int16(1), args.Int16Or("missing", 1))
	assert.Equal(t, uint8(1), args.Uint8Or("missing", 1))
	assert.Equal(t, uint16(1), args.Uint16Or("missing", 1))
	assert.Equal(t, uint32(1), args.Uint32Or("missing", 1))
	assert.Equal(t, uint64(1), args.Uint64Or("missing", 1))
	assert.Equal(t, float32(1), args.Float32Or("missing", 1))
	assert.Equal(t, float64(1), args.Float64Or("missing", 1))
	assert.True(t, args.BoolOr("missing", true))
}

func TestArguments_JSON(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt, entities.Arg("arg1", entities.Uint32(7)), entities.Arg("name", entities.String("bob")))

	js, err := newCall(s).Args().JSON()
	require.NoError(t, err)
	assert.Equal(t, `{"arg1":7,"name":"bob"}`, js.Raw())

	n, err := js.Uint64("arg1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)

	assert.Zero(t, rt.Handles().Live(), "owned argument text must be released")
	s.End()
	assert.Zero(t, s.Leaked())
}

func TestArguments_JSONEmptyBag(t *testing.T) {
	s := session(t, newRuntime(t))
	js, err := newCall(s).Args().JSON()
	require.NoError(t, err)
	fields, err := js.Fields()
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestArguments_StaleBag(t *testing.T) {
	rt := newRuntime(t)
	s := session(t, rt, entities.Arg("arg1", entities.Uint32(7)))
	c := newCall(s)
	s.End()

	_, err := c.Args().Uint32("arg1")
	assert.ErrorIs(t, err, errors.InvalidHandle.Err())

	_, err = c.Args().JSON()
	var herr *errors.HandleError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.InvalidHandle, herr.Code)
}
