package hostfuncs

import (
	"context"
	"testing"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/stretchr/testify/assert"
)

func TestHostContext(t *testing.T) {
	base := WithCallInfo(context.Background(), CallInfo{Plugin: "demo", Function: "foo_args"})
	hc := NewHostContext(base, entities.KindFloat64)

	assert.Equal(t, "argument_float64", hc.EntryPoint())
	assert.Equal(t, entities.KindFloat64, hc.Kind())
	assert.Equal(t, CallInfo{Plugin: "demo", Function: "foo_args"}, hc.Call())
}

func TestHostContext_NoCallInfo(t *testing.T) {
	hc := NewHostContext(context.Background(), entities.KindBool)
	assert.Equal(t, CallInfo{}, hc.Call())

	_, ok := CallInfoFrom(context.Background())
	assert.False(t, ok)
}

func TestHostContext_PropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hc := NewHostContext(ctx, entities.KindInt8)
	cancel()
	<-hc.Done()
	assert.ErrorIs(t, hc.Err(), context.Canceled)
}
