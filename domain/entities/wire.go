package entities

import "fmt"

// ContextWire identifies the call a guest-side record belongs to.
type ContextWire struct {
	Plugin   string `json:"plugin,omitempty"`
	Function string `json:"function,omitempty"`
}

// CallResultWire is the JSON record a WASM guest returns from plugin_call.
// Value holds the text form of the result (Value.String); void results
// carry no kind.
type CallResultWire struct {
	Error *ErrorDetail `json:"error,omitempty"`
	Kind  string       `json:"kind,omitempty"`
	Value string       `json:"value,omitempty"`
}

// ResultWire encodes v for plugin_call.
func ResultWire(v Value) CallResultWire {
	if v.IsVoid() {
		return CallResultWire{}
	}
	return CallResultWire{Kind: v.Kind().String(), Value: v.String()}
}

// Decode rebuilds the returned value. Records carrying an error must be
// checked by the caller first.
func (w CallResultWire) Decode() (Value, error) {
	if w.Kind == "" {
		return Void(), nil
	}
	k, ok := ParseValueKind(w.Kind)
	if !ok {
		return Void(), fmt.Errorf("unknown result kind %q", w.Kind)
	}
	return ParseValue(k, w.Value)
}
