package hostfuncs

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	panicking := func(HostContext, *ArgumentBag, string) (entities.Value, errors.Code) {
		panic("test panic")
	}

	wrapped := PanicRecoveryMiddleware(testLogger(&buf))(panicking)
	ctx := NewHostContext(context.Background(), entities.KindUint16)

	var (
		v    entities.Value
		code errors.Code
	)
	require.NotPanics(t, func() { v, code = wrapped(ctx, nil, "x") })
	assert.Equal(t, errors.Internal, code)
	assert.Equal(t, entities.KindUint16, v.Kind())
	assert.Contains(t, buf.String(), "accessor panicked")
	assert.Contains(t, buf.String(), "argument_uint16")
}

func TestPanicRecoveryMiddleware_NoPanic(t *testing.T) {
	normal := func(HostContext, *ArgumentBag, string) (entities.Value, errors.Code) {
		return entities.Int8(1), errors.OK
	}
	wrapped := PanicRecoveryMiddleware(nil)(normal)
	v, code := wrapped(NewHostContext(context.Background(), entities.KindInt8), nil, "x")
	assert.Equal(t, errors.OK, code)
	assert.True(t, entities.Int8(1).Equal(v))
}

func TestPanicRecovery_ThroughSession(t *testing.T) {
	var buf bytes.Buffer
	logger := testLogger(&buf)
	reg, err := NewAccessorRegistry(
		WithMiddleware(PanicRecoveryMiddleware(logger)),
		WithAccessor(entities.KindInt32, func(HostContext, *ArgumentBag, string) (entities.Value, errors.Code) {
			panic("host bug")
		}),
	)
	require.NoError(t, err)

	rt := newTestRuntime(t, WithAccessorRegistry(reg), WithLogger(logger))
	s := begin(t, rt, entities.Arg("x", entities.Int32(1)))

	assert.NotPanics(t, func() { s.ArgumentInt32(s.Bag(), "x") })
	assert.Equal(t, errors.Internal, s.LastError())
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	mw := LoggingMiddleware(testLogger(&buf))
	wrapped := mw(func(_ HostContext, bag *ArgumentBag, name string) (entities.Value, errors.Code) {
		return bag.Fetch(name, entities.KindString)
	})

	bag, _ := NewArgumentBag(entities.Arg("s", entities.String("v")))
	ctx := NewHostContext(WithCallInfo(context.Background(), CallInfo{Plugin: "demo", Function: "foo"}), entities.KindString)

	_, code := wrapped(ctx, bag, "s")
	assert.Equal(t, errors.OK, code)
	assert.Contains(t, buf.String(), "accessor call")
	assert.Contains(t, buf.String(), "plugin=demo")

	buf.Reset()
	_, code = wrapped(ctx, bag, "missing")
	assert.Equal(t, errors.NotFound, code)
	assert.Contains(t, buf.String(), "accessor fault")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "code=NOT_FOUND")

	// An info-level logger stays quiet for an absent optional argument.
	buf.Reset()
	quiet := LoggingMiddleware(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	_, code = quiet(func(_ HostContext, bag *ArgumentBag, name string) (entities.Value, errors.Code) {
		return bag.Fetch(name, entities.KindString)
	})(ctx, bag, "missing")
	assert.Equal(t, errors.NotFound, code)
	assert.Empty(t, buf.String())
}
