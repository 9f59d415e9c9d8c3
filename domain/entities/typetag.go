package entities

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TypeTag is one symbol of the closed vocabulary shared by hosts and plugins
// to describe argument and return types in a capability schema.
type TypeTag string

const (
	TagInt     TypeTag = "int"
	TagUint    TypeTag = "uint"
	TagSint    TypeTag = "sint"
	TagUsint   TypeTag = "usint"
	TagChar    TypeTag = "char"
	TagUchar   TypeTag = "uchar"
	TagLong    TypeTag = "long"
	TagUlong   TypeTag = "ulong"
	TagLlong   TypeTag = "llong"
	TagUllong  TypeTag = "ullong"
	TagFloat   TypeTag = "float"
	TagDouble  TypeTag = "double"
	TagBoolean TypeTag = "boolean"
	TagString  TypeTag = "string"
	TagVoid    TypeTag = "void"
)

// ErrUnknownTypeTag is returned when a tag is outside the vocabulary.
var ErrUnknownTypeTag = errors.New("unknown type tag")

// tagKinds maps each tag to its storage kind. void has none.
var tagKinds = map[TypeTag]ValueKind{
	TagChar:    KindInt8,
	TagUchar:   KindUint8,
	TagSint:    KindInt16,
	TagUsint:   KindUint16,
	TagInt:     KindInt32,
	TagUint:    KindUint32,
	TagLong:    KindInt32,
	TagUlong:   KindUint32,
	TagLlong:   KindInt64,
	TagUllong:  KindUint64,
	TagFloat:   KindFloat32,
	TagDouble:  KindFloat64,
	TagBoolean: KindBool,
	TagString:  KindString,
	TagVoid:    KindInvalid,
}

// AllTypeTags returns the vocabulary in its canonical order.
func AllTypeTags() []TypeTag {
	return []TypeTag{
		TagInt, TagUint, TagSint, TagUsint, TagChar, TagUchar,
		TagLong, TagUlong, TagLlong, TagUllong,
		TagFloat, TagDouble, TagBoolean, TagString, TagVoid,
	}
}

// ParseTypeTag validates s against the vocabulary. Lookup is exact and
// case-sensitive; nothing outside the vocabulary is guessed.
func ParseTypeTag(s string) (TypeTag, error) {
	t := TypeTag(s)
	if _, ok := tagKinds[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTypeTag, s)
	}
	return t, nil
}

// Valid reports whether t belongs to the vocabulary.
func (t TypeTag) Valid() bool {
	_, ok := tagKinds[t]
	return ok
}

// IsVoid reports whether t is the void tag.
func (t TypeTag) IsVoid() bool {
	return t == TagVoid
}

// Kind returns the storage kind for the tag. void and unknown tags yield
// KindInvalid.
func (t TypeTag) Kind() ValueKind {
	return tagKinds[t]
}

// Accepts reports whether a value of kind k satisfies the tag.
func (t TypeTag) Accepts(k ValueKind) bool {
	want, ok := tagKinds[t]
	return ok && want != KindInvalid && want == k
}

// TagForKind returns the canonical tag for a storage kind. Pointer and blob
// kinds have no tag.
func TagForKind(k ValueKind) (TypeTag, bool) {
	switch k {
	case KindInt8:
		return TagChar, true
	case KindUint8:
		return TagUchar, true
	case KindInt16:
		return TagSint, true
	case KindUint16:
		return TagUsint, true
	case KindInt32:
		return TagInt, true
	case KindUint32:
		return TagUint, true
	case KindInt64:
		return TagLlong, true
	case KindUint64:
		return TagUllong, true
	case KindFloat32:
		return TagFloat, true
	case KindFloat64:
		return TagDouble, true
	case KindBool:
		return TagBoolean, true
	case KindString:
		return TagString, true
	default:
		return "", false
	}
}

// MarshalJSON implements json.Marshaler. Unknown tags are not serialized.
func (t TypeTag) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTypeTag, string(t))
	}
	return json.Marshal(string(t))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TypeTag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTypeTag(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
