package entities

// ValueKind identifies how a value is stored inside an argument bag or an
// object handle. Accessors are keyed by kind.
type ValueKind uint8

const (
	// KindInvalid is the zero kind. No value is ever stored with it.
	KindInvalid ValueKind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindBool
	KindPointer
	KindString
	KindBlob
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindBool:    "bool",
	KindPointer: "pointer",
	KindString:  "string",
	KindBlob:    "blob",
}

// String returns the kind name. It is also the suffix of the accessor entry
// point for the kind (argument_<name>).
func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Valid reports whether k is one of the storable kinds.
func (k ValueKind) Valid() bool {
	return k > KindInvalid && k <= KindBlob
}

// OutOfBand reports whether values of this kind bypass the capability schema.
// Pointers and blobs have no type tag; their meaning is a contract between a
// specific host and a specific plugin.
func (k ValueKind) OutOfBand() bool {
	return k == KindPointer || k == KindBlob
}

// AllKinds returns every storable kind in declaration order.
func AllKinds() []ValueKind {
	kinds := make([]ValueKind, 0, len(kindNames)-1)
	for k := KindInt8; k <= KindBlob; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ParseValueKind converts a kind name back to a ValueKind.
func ParseValueKind(name string) (ValueKind, bool) {
	for k := KindInt8; k <= KindBlob; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return KindInvalid, false
}
