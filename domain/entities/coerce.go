package entities

import (
	"fmt"
	"strconv"
)

// Coerce converts a dynamically typed Go value, as produced by script
// interpreters and JSON decoders, into a value of kind k. Numbers must fit
// the kind exactly; strings, booleans and numbers never convert into each
// other.
func Coerce(k ValueKind, x any) (Value, error) {
	switch x := x.(type) {
	case Value:
		if x.kind != k {
			return Value{}, fmt.Errorf("have %s, want %s", x.kind, k)
		}
		return x, nil
	case string:
		if k == KindString {
			return String(x), nil
		}
	case []byte:
		switch k {
		case KindBlob:
			return Blob(x), nil
		case KindString:
			return String(string(x)), nil
		}
	case bool:
		if k == KindBool {
			return Bool(x), nil
		}
	default:
		text, ok := numberText(x)
		if !ok {
			return Value{}, fmt.Errorf("cannot convert %T to %s", x, k)
		}
		if k == KindInvalid || k == KindBool || k == KindString || k == KindBlob {
			break
		}
		return ParseValue(k, text)
	}
	return Value{}, fmt.Errorf("cannot convert %T to %s", x, k)
}

func numberText(x any) (string, bool) {
	switch n := x.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), true
	case int8:
		return strconv.FormatInt(int64(n), 10), true
	case int16:
		return strconv.FormatInt(int64(n), 10), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint8:
		return strconv.FormatUint(uint64(n), 10), true
	case uint16:
		return strconv.FormatUint(uint64(n), 10), true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	case uintptr:
		return strconv.FormatUint(uint64(n), 10), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}
