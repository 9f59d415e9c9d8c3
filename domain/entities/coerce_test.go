package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		kind    ValueKind
		in      any
		want    Value
		wantErr bool
	}{
		{"int64 to int32", KindInt32, int64(42), Int32(42), false},
		{"whole float to int8", KindInt8, float64(-7), Int8(-7), false},
		{"int overflow", KindInt8, int64(300), Value{}, true},
		{"negative to unsigned", KindUint16, int64(-1), Value{}, true},
		{"fraction to int", KindInt64, 1.5, Value{}, true},
		{"large float to int", KindInt64, 1e21, Value{}, true},
		{"uint64 max", KindUint64, uint64(1<<64 - 1), Uint64(1<<64 - 1), false},
		{"int to double", KindFloat64, 3, Float64(3), false},
		{"float32", KindFloat32, float32(0.5), Float32(0.5), false},
		{"string", KindString, "hi", String("hi"), false},
		{"bytes to string", KindString, []byte("hi"), String("hi"), false},
		{"bytes to blob", KindBlob, []byte{1, 2}, Blob([]byte{1, 2}), false},
		{"bool", KindBool, true, Bool(true), false},
		{"value passthrough", KindInt16, Int16(9), Int16(9), false},
		{"value wrong kind", KindInt16, Int32(9), Value{}, true},
		{"string to int", KindInt32, "12", Value{}, true},
		{"number to string", KindString, 12, Value{}, true},
		{"number to bool", KindBool, 1, Value{}, true},
		{"nil", KindInt32, nil, Value{}, true},
		{"map", KindString, map[string]any{}, Value{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.kind, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}
