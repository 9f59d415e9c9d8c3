package plugin

import (
	"bytes"
	"encoding/json"
	stdErrors "errors"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/reglet-dev/plugabi/domain/errors"
)

// JSONArguments is a well-formed JSON argument text. Shape is not checked
// at decode time; the typed getters report mismatches as *errors.ShapeError.
type JSONArguments struct {
	raw []byte
}

// DecodeArguments checks that text is well-formed JSON. Absent, empty and
// literal null input fail with errors.ErrNullInput; malformed input fails
// with *errors.ParseError.
func DecodeArguments(text *string) (*JSONArguments, error) {
	if text == nil {
		return nil, errors.ErrNullInput
	}
	trimmed := strings.TrimSpace(*text)
	if trimmed == "" || trimmed == "null" {
		return nil, errors.ErrNullInput
	}

	raw := []byte(trimmed)
	var shape json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		perr := &errors.ParseError{Err: err}
		var syn *json.SyntaxError
		if stdErrors.As(err, &syn) {
			perr.Offset = int(syn.Offset)
		}
		return nil, perr
	}
	return &JSONArguments{raw: raw}, nil
}

// Raw returns the JSON text.
func (a *JSONArguments) Raw() string { return string(a.raw) }

// Value decodes the whole document. Numbers decode as json.Number. Every
// call returns a fresh, structurally equal value.
func (a *JSONArguments) Value() (any, error) {
	dec := json.NewDecoder(bytes.NewReader(a.raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &errors.ParseError{Err: err}
	}
	return v, nil
}

// Decode unmarshals the document into out.
func (a *JSONArguments) Decode(out any) error {
	if err := json.Unmarshal(a.raw, out); err != nil {
		return &errors.ParseError{Err: err}
	}
	return nil
}

func (a *JSONArguments) lookup(want string, path []string) ([]byte, jsonparser.ValueType, error) {
	v, typ, _, err := jsonparser.Get(a.raw, path...)
	if err != nil || typ == jsonparser.NotExist {
		return nil, typ, &errors.ShapeError{Field: strings.Join(path, "."), Want: want}
	}
	return v, typ, nil
}

func mismatch(path []string, want string, got jsonparser.ValueType) error {
	return &errors.ShapeError{Field: strings.Join(path, "."), Want: want, Got: got.String()}
}

// Has reports whether path exists.
func (a *JSONArguments) Has(path ...string) bool {
	_, _, _, err := jsonparser.Get(a.raw, path...)
	return err == nil
}

// Int64 asserts that path holds an integer that fits int64.
func (a *JSONArguments) Int64(path ...string) (int64, error) {
	v, typ, err := a.lookup("int64", path)
	if err != nil {
		return 0, err
	}
	if typ != jsonparser.Number {
		return 0, mismatch(path, "int64", typ)
	}
	n, perr := jsonparser.ParseInt(v)
	if perr != nil {
		return 0, &errors.ShapeError{Field: strings.Join(path, "."), Want: "int64", Got: "number " + string(v)}
	}
	return n, nil
}

// Uint64 asserts that path holds a non-negative integer.
func (a *JSONArguments) Uint64(path ...string) (uint64, error) {
	v, typ, err := a.lookup("uint64", path)
	if err != nil {
		return 0, err
	}
	if typ != jsonparser.Number {
		return 0, mismatch(path, "uint64", typ)
	}
	n, perr := strconv.ParseUint(string(v), 10, 64)
	if perr != nil {
		return 0, &errors.ShapeError{Field: strings.Join(path, "."), Want: "uint64", Got: "number " + string(v)}
	}
	return n, nil
}

// Float64 asserts that path holds a number.
func (a *JSONArguments) Float64(path ...string) (float64, error) {
	v, typ, err := a.lookup("number", path)
	if err != nil {
		return 0, err
	}
	if typ != jsonparser.Number {
		return 0, mismatch(path, "number", typ)
	}
	f, perr := jsonparser.ParseFloat(v)
	if perr != nil {
		return 0, &errors.ShapeError{Field: strings.Join(path, "."), Want: "number", Got: "number " + string(v)}
	}
	return f, nil
}

// Bool asserts that path holds a boolean.
func (a *JSONArguments) Bool(path ...string) (bool, error) {
	v, typ, err := a.lookup("boolean", path)
	if err != nil {
		return false, err
	}
	if typ != jsonparser.Boolean {
		return false, mismatch(path, "boolean", typ)
	}
	return jsonparser.ParseBoolean(v)
}

// String asserts that path holds a string and returns it unescaped.
func (a *JSONArguments) String(path ...string) (string, error) {
	v, typ, err := a.lookup("string", path)
	if err != nil {
		return "", err
	}
	if typ != jsonparser.String {
		return "", mismatch(path, "string", typ)
	}
	return jsonparser.ParseString(v)
}

// Fields returns the keys of the top-level object in document order.
func (a *JSONArguments) Fields() ([]string, error) {
	_, typ, _, err := jsonparser.Get(a.raw)
	if err != nil {
		return nil, &errors.ParseError{Err: err}
	}
	if typ != jsonparser.Object {
		return nil, mismatch(nil, "object", typ)
	}
	var keys []string
	err = jsonparser.ObjectEach(a.raw, func(key, _ []byte, _ jsonparser.ValueType, _ int) error {
		k, kerr := jsonparser.ParseString(key)
		if kerr != nil {
			return kerr
		}
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return nil, &errors.ParseError{Err: err}
	}
	return keys, nil
}
