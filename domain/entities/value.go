package entities

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
)

// Value is an immutable tagged value. The zero Value is void.
type Value struct {
	kind ValueKind
	bits uint64 // integers, floats (IEEE bits), bools, pointers
	str  string
	blob []byte
}

// Void returns the void value returned by functions with a void tag.
func Void() Value { return Value{} }

func Int8(v int8) Value { return Value{kind: KindInt8, bits: uint64(int64(v))} }
func Int16(v int16) Value { return Value{kind: KindInt16, bits: uint64(int64(v))} }
func Int32(v int32) Value { return Value{kind: KindInt32, bits: uint64(int64(v))} }
func Int64(v int64) Value { return Value{kind: KindInt64, bits: uint64(v)} }
func Uint8(v uint8) Value { return Value{kind: KindUint8, bits: uint64(v)} }
func Uint16(v uint16) Value { return Value{kind: KindUint16, bits: uint64(v)} }
func Uint32(v uint32) Value { return Value{kind: KindUint32, bits: uint64(v)} }
func Uint64(v uint64) Value { return Value{kind: KindUint64, bits: v} }
func Float32(v float32) Value { return Value{kind: KindFloat32, bits: uint64(math.Float32bits(v))} }
func Float64(v float64) Value { return Value{kind: KindFloat64, bits: math.Float64bits(v)} }
func String(v string) Value { return Value{kind: KindString, str: v} }

// Pointer wraps an opaque address. Its target type is a contract between
// one plugin and one host and is never interpreted here.
func Pointer(v uintptr) Value { return Value{kind: KindPointer, bits: uint64(v)} }

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

// Blob copies b so the value stays immutable.
func Blob(b []byte) Value {
	c := make([]byte, len(b))
	copy(c, b)
	return Value{kind: KindBlob, blob: c}
}

// Zero returns the zero value of kind k.
func Zero(k ValueKind) Value {
	if k == KindBlob {
		return Value{kind: KindBlob, blob: []byte{}}
	}
	return Value{kind: k}
}

// Kind returns the storage kind. Void values report KindInvalid.
func (v Value) Kind() ValueKind { return v.kind }

// IsVoid reports whether v carries no value.
func (v Value) IsVoid() bool { return v.kind == KindInvalid }

func (v Value) AsInt8() (int8, bool) { return int8(v.bits), v.kind == KindInt8 }
func (v Value) AsInt16() (int16, bool) { return int16(v.bits), v.kind == KindInt16 }
func (v Value) AsInt32() (int32, bool) { return int32(v.bits), v.kind == KindInt32 }
func (v Value) AsInt64() (int64, bool) { return int64(v.bits), v.kind == KindInt64 }

func (v Value) AsUint8() (uint8, bool) { return uint8(v.bits), v.kind == KindUint8 }
func (v Value) AsUint16() (uint16, bool) { return uint16(v.bits), v.kind == KindUint16 }
func (v Value) AsUint32() (uint32, bool) { return uint32(v.bits), v.kind == KindUint32 }
func (v Value) AsUint64() (uint64, bool) { return v.bits, v.kind == KindUint64 }

func (v Value) AsFloat32() (float32, bool) {
	return math.Float32frombits(uint32(v.bits)), v.kind == KindFloat32
}

func (v Value) AsFloat64() (float64, bool) {
	return math.Float64frombits(v.bits), v.kind == KindFloat64
}

func (v Value) AsBool() (bool, bool) { return v.bits != 0, v.kind == KindBool }
func (v Value) AsPointer() (uintptr, bool) { return uintptr(v.bits), v.kind == KindPointer }
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsBlob returns a copy of the blob bytes.
func (v Value) AsBlob() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	c := make([]byte, len(v.blob))
	copy(c, v.blob)
	return c, true
}

// Bits returns the raw 64-bit payload of a scalar value: sign-extended
// integers, IEEE-754 bits for floats, 0/1 for booleans. It is the encoding
// used when scalars cross a WASM boundary.
func (v Value) Bits() uint64 { return v.bits }

// FromBits rebuilds a scalar value of kind k from its raw payload.
func FromBits(k ValueKind, bits uint64) (Value, error) {
	switch k {
	case KindInt8:
		return Int8(int8(bits)), nil
	case KindInt16:
		return Int16(int16(bits)), nil
	case KindInt32:
		return Int32(int32(bits)), nil
	case KindInt64:
		return Int64(int64(bits)), nil
	case KindUint8:
		return Uint8(uint8(bits)), nil
	case KindUint16:
		return Uint16(uint16(bits)), nil
	case KindUint32:
		return Uint32(uint32(bits)), nil
	case KindUint64:
		return Uint64(bits), nil
	case KindFloat32:
		return Float32(math.Float32frombits(uint32(bits))), nil
	case KindFloat64:
		return Float64(math.Float64frombits(bits)), nil
	case KindBool:
		return Bool(bits != 0), nil
	case KindPointer:
		return Pointer(uintptr(bits)), nil
	default:
		return Value{}, fmt.Errorf("kind %s has no scalar encoding", k)
	}
}

// String renders the value as text. Blobs are base64 encoded; void is "".
func (v Value) String() string {
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return strconv.FormatInt(int64(v.bits), 10)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return strconv.FormatUint(v.bits, 10)
	case KindFloat32:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(v.bits))), 'g', -1, 32)
	case KindFloat64:
		return strconv.FormatFloat(math.Float64frombits(v.bits), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.bits != 0)
	case KindPointer:
		return fmt.Sprintf("0x%x", v.bits)
	case KindString:
		return v.str
	case KindBlob:
		return base64.StdEncoding.EncodeToString(v.blob)
	default:
		return ""
	}
}

// ParseValue parses text produced by String back into a value of kind k.
func ParseValue(k ValueKind, text string) (Value, error) {
	var err error
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		var n int64
		if n, err = strconv.ParseInt(text, 10, bitSize(k)); err == nil {
			return FromBits(k, uint64(n))
		}
	case KindUint8, KindUint16, KindUint32, KindUint64:
		var n uint64
		if n, err = strconv.ParseUint(text, 10, bitSize(k)); err == nil {
			return FromBits(k, n)
		}
	case KindFloat32:
		var f float64
		if f, err = strconv.ParseFloat(text, 32); err == nil {
			return Float32(float32(f)), nil
		}
	case KindFloat64:
		var f float64
		if f, err = strconv.ParseFloat(text, 64); err == nil {
			return Float64(f), nil
		}
	case KindBool:
		var b bool
		if b, err = strconv.ParseBool(text); err == nil {
			return Bool(b), nil
		}
	case KindPointer:
		var n uint64
		if n, err = strconv.ParseUint(text, 0, 64); err == nil {
			return Pointer(uintptr(n)), nil
		}
	case KindString:
		return String(text), nil
	case KindBlob:
		var b []byte
		if b, err = base64.StdEncoding.DecodeString(text); err == nil {
			return Value{kind: KindBlob, blob: b}, nil
		}
	default:
		return Value{}, fmt.Errorf("cannot parse into kind %s", k)
	}
	return Value{}, fmt.Errorf("parse %q as %s: %w", text, k, err)
}

// Interface returns the value as a plain Go value, suitable for JSON
// encoding. Void yields nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return int64(v.bits)
	case KindUint8, KindUint16, KindUint32, KindUint64, KindPointer:
		return v.bits
	case KindFloat32:
		return float64(math.Float32frombits(uint32(v.bits)))
	case KindFloat64:
		return math.Float64frombits(v.bits)
	case KindBool:
		return v.bits != 0
	case KindString:
		return v.str
	case KindBlob:
		b, _ := v.AsBlob()
		return b
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.bits != o.bits || v.str != o.str {
		return false
	}
	if len(v.blob) != len(o.blob) {
		return false
	}
	for i := range v.blob {
		if v.blob[i] != o.blob[i] {
			return false
		}
	}
	return true
}

func bitSize(k ValueKind) int {
	switch k {
	case KindInt8, KindUint8:
		return 8
	case KindInt16, KindUint16:
		return 16
	case KindInt32, KindUint32:
		return 32
	default:
		return 64
	}
}
