package hostfuncs

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ArgumentBag is the set of named arguments for one call. Names are unique
// and looked up by exact, case-sensitive match. A bag is immutable once
// built.
type ArgumentBag struct {
	values *orderedmap.OrderedMap[string, entities.Value]
}

// NewArgumentBag builds a bag, rejecting empty and duplicate names.
func NewArgumentBag(args ...entities.Argument) (*ArgumentBag, error) {
	values := orderedmap.New[string, entities.Value](len(args))
	for _, a := range args {
		if a.Name == "" {
			return nil, fmt.Errorf("argument name cannot be empty")
		}
		if a.Value.IsVoid() {
			return nil, fmt.Errorf("argument %q has no value", a.Name)
		}
		if _, present := values.Set(a.Name, a.Value); present {
			return nil, fmt.Errorf("duplicate argument name: %q", a.Name)
		}
	}
	return &ArgumentBag{values: values}, nil
}

// Fetch looks up name and checks that it holds kind. The returned value is
// only meaningful when the code is OK.
func (b *ArgumentBag) Fetch(name string, kind entities.ValueKind) (entities.Value, errors.Code) {
	v, ok := b.values.Get(name)
	if !ok {
		return entities.Zero(kind), errors.NotFound
	}
	if v.Kind() != kind {
		return entities.Zero(kind), errors.KindMismatch
	}
	return v, errors.OK
}

// Get returns the stored value regardless of kind.
func (b *ArgumentBag) Get(name string) (entities.Value, bool) {
	return b.values.Get(name)
}

// Len returns the number of arguments.
func (b *ArgumentBag) Len() int {
	return b.values.Len()
}

// Names returns argument names in insertion order.
func (b *ArgumentBag) Names() []string {
	names := make([]string, 0, b.values.Len())
	for pair := b.values.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// ToJSON renders the bag as one JSON object in insertion order. This is the
// argument text handed to plugins that decode their arguments in one go.
func (b *ArgumentBag) ToJSON() ([]byte, error) {
	obj := orderedmap.New[string, any](b.values.Len())
	for pair := b.values.Oldest(); pair != nil; pair = pair.Next() {
		obj.Set(pair.Key, pair.Value.Interface())
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	return data, nil
}

// BagTable hands out bag handles for the duration of one call. Handles are
// never reused, so a handle kept past its call resolves to nothing.
type BagTable struct {
	bags map[entities.BagHandle]*ArgumentBag
	next entities.BagHandle
	mu   sync.RWMutex
}

// NewBagTable creates an empty table.
func NewBagTable() *BagTable {
	return &BagTable{bags: make(map[entities.BagHandle]*ArgumentBag)}
}

// Open registers bag and returns its handle.
func (t *BagTable) Open(bag *ArgumentBag) entities.BagHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	if t.next == 0 {
		t.next++
	}
	t.bags[t.next] = bag
	return t.next
}

// Close invalidates h. Closing an unknown handle is a no-op.
func (t *BagTable) Close(h entities.BagHandle) {
	t.mu.Lock()
	delete(t.bags, h)
	t.mu.Unlock()
}

// Lookup resolves h.
func (t *BagTable) Lookup(h entities.BagHandle) (*ArgumentBag, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.bags[h]
	return b, ok
}

// Len returns the number of open bags.
func (t *BagTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bags)
}
