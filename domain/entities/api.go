package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidAPI is returned when a capability schema document is structurally
// wrong (missing names, duplicates, void parameters).
var ErrInvalidAPI = errors.New("invalid api document")

// TagPolicy decides what happens to functions whose schema uses a type tag
// outside the vocabulary.
type TagPolicy int

const (
	// RejectUnknownTags fails the whole document.
	RejectUnknownTags TagPolicy = iota
	// IgnoreUnknownTags drops the offending functions and reports them.
	IgnoreUnknownTags
)

func (p TagPolicy) String() string {
	if p == IgnoreUnknownTags {
		return "ignore"
	}
	return "reject"
}

// APIDocument is the typed form of the capability schema returned by
// plugin_api. It is converted to JSON only at the boundary.
type APIDocument struct {
	API []FunctionSpec `json:"API" validate:"dive" jsonschema:"required"`
}

// FunctionSpec describes one exported capability.
type FunctionSpec struct {
	Name       string         `json:"name" validate:"required" jsonschema:"required,minLength=1"`
	ReturnType TypeTag        `json:"return_type" validate:"required" jsonschema:"required,enum=int,enum=uint,enum=sint,enum=usint,enum=char,enum=uchar,enum=long,enum=ulong,enum=llong,enum=ullong,enum=float,enum=double,enum=boolean,enum=string,enum=void"`
	Arguments  []ArgumentSpec `json:"arguments,omitempty" validate:"dive"`
	// Variadic functions accept arguments beyond the declared ones.
	Variadic bool `json:"varargs,omitempty"`
}

// ArgumentSpec is one named, typed parameter.
type ArgumentSpec struct {
	Name string  `json:"name" validate:"required" jsonschema:"required,minLength=1"`
	Type TypeTag `json:"type" validate:"required" jsonschema:"required,enum=int,enum=uint,enum=sint,enum=usint,enum=char,enum=uchar,enum=long,enum=ulong,enum=llong,enum=ullong,enum=float,enum=double,enum=boolean,enum=string"`
}

// Argument returns the declared parameter with the given name.
func (f FunctionSpec) Argument(name string) (ArgumentSpec, bool) {
	for _, a := range f.Arguments {
		if a.Name == name {
			return a, true
		}
	}
	return ArgumentSpec{}, false
}

// rawFunction mirrors FunctionSpec with untyped tags so the document can be
// read before tags are checked.
type rawFunction struct {
	Name       string `json:"name"`
	ReturnType string `json:"return_type"`
	Arguments  []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"arguments"`
	Variadic bool `json:"varargs"`
}

// ParseAPIDocument decodes the JSON capability schema. Functions that use an
// unknown tag either fail the document or, under IgnoreUnknownTags, are
// dropped and their names returned.
func ParseAPIDocument(data []byte, policy TagPolicy) (APIDocument, []string, error) {
	var raw struct {
		API *[]rawFunction `json:"API"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return APIDocument{}, nil, fmt.Errorf("%w: %v", ErrInvalidAPI, err)
	}
	if raw.API == nil {
		return APIDocument{}, nil, fmt.Errorf("%w: missing API array", ErrInvalidAPI)
	}

	doc := APIDocument{API: make([]FunctionSpec, 0, len(*raw.API))}
	var dropped []string
	for i, rf := range *raw.API {
		fn, err := convertFunction(rf)
		if err != nil {
			if errors.Is(err, ErrUnknownTypeTag) && policy == IgnoreUnknownTags {
				dropped = append(dropped, rf.Name)
				continue
			}
			return APIDocument{}, nil, fmt.Errorf("API[%d]: %w", i, err)
		}
		doc.API = append(doc.API, fn)
	}
	if err := doc.Check(); err != nil {
		return APIDocument{}, nil, err
	}
	return doc, dropped, nil
}

func convertFunction(rf rawFunction) (FunctionSpec, error) {
	ret, err := ParseTypeTag(rf.ReturnType)
	if err != nil {
		return FunctionSpec{}, fmt.Errorf("function %q return type: %w", rf.Name, err)
	}
	fn := FunctionSpec{Name: rf.Name, ReturnType: ret, Variadic: rf.Variadic}
	for _, ra := range rf.Arguments {
		t, err := ParseTypeTag(ra.Type)
		if err != nil {
			return FunctionSpec{}, fmt.Errorf("function %q argument %q: %w", rf.Name, ra.Name, err)
		}
		fn.Arguments = append(fn.Arguments, ArgumentSpec{Name: ra.Name, Type: t})
	}
	return fn, nil
}

// Check verifies the structural rules every document must satisfy: function
// names are present and unique, argument names are present and unique per
// function, and void is only used as a return type.
func (d APIDocument) Check() error {
	seen := make(map[string]struct{}, len(d.API))
	for i, fn := range d.API {
		if fn.Name == "" {
			return fmt.Errorf("%w: API[%d] has no name", ErrInvalidAPI, i)
		}
		if _, dup := seen[fn.Name]; dup {
			return fmt.Errorf("%w: duplicate function %q", ErrInvalidAPI, fn.Name)
		}
		seen[fn.Name] = struct{}{}
		if !fn.ReturnType.Valid() {
			return fmt.Errorf("%w: function %q: %w", ErrInvalidAPI, fn.Name, ErrUnknownTypeTag)
		}

		args := make(map[string]struct{}, len(fn.Arguments))
		for _, a := range fn.Arguments {
			if a.Name == "" {
				return fmt.Errorf("%w: function %q has an unnamed argument", ErrInvalidAPI, fn.Name)
			}
			if _, dup := args[a.Name]; dup {
				return fmt.Errorf("%w: function %q declares %q twice", ErrInvalidAPI, fn.Name, a.Name)
			}
			args[a.Name] = struct{}{}
			if !a.Type.Valid() || a.Type.IsVoid() {
				return fmt.Errorf("%w: function %q argument %q has type %q", ErrInvalidAPI, fn.Name, a.Name, a.Type)
			}
		}
	}
	return nil
}

// Marshal serializes the document to the boundary JSON form.
func (d APIDocument) Marshal() ([]byte, error) {
	if d.API == nil {
		d.API = []FunctionSpec{}
	}
	return json.Marshal(d)
}

// Function returns the schema entry of the named function.
func (d APIDocument) Function(name string) (FunctionSpec, bool) {
	for _, fn := range d.API {
		if fn.Name == name {
			return fn, true
		}
	}
	return FunctionSpec{}, false
}

// FunctionNames returns the exported function names in sorted order.
func (d APIDocument) FunctionNames() []string {
	names := make([]string, 0, len(d.API))
	for _, fn := range d.API {
		names = append(names, fn.Name)
	}
	sort.Strings(names)
	return names
}

// FunctionArguments returns the declared parameters of the named function.
func (d APIDocument) FunctionArguments(name string) ([]ArgumentSpec, bool) {
	fn, ok := d.Function(name)
	if !ok {
		return nil, false
	}
	return fn.Arguments, true
}

// ReturnType returns the declared return tag of the named function.
func (d APIDocument) ReturnType(name string) (TypeTag, bool) {
	fn, ok := d.Function(name)
	if !ok {
		return "", false
	}
	return fn.ReturnType, true
}
