package hostfuncs

import (
	"context"
	"fmt"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
)

// AccessorFunc fetches one argument of a fixed kind from bag. The value is
// only meaningful when the returned code is OK.
type AccessorFunc func(ctx HostContext, bag *ArgumentBag, name string) (entities.Value, errors.Code)

// AccessorRegistry is an immutable table of accessor entry points keyed by
// value kind. Once created via NewAccessorRegistry, accessors cannot be added
// or removed, so lookups during calls are lock-free.
type AccessorRegistry struct {
	accessors map[entities.ValueKind]AccessorFunc
	kinds     []entities.ValueKind // declaration order
}

type registryBuilder struct {
	accessors  map[entities.ValueKind]AccessorFunc
	middleware []Middleware
	errors     []error
}

// NewAccessorRegistry creates an immutable registry. Without options it
// serves every storable kind with the standard bag lookup.
//
// Example usage:
//
//	registry, err := NewAccessorRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware(), LoggingMiddleware(logger)),
//	    WithStandardAccessors(),
//	)
func NewAccessorRegistry(opts ...RegistryOption) (*AccessorRegistry, error) {
	b := &registryBuilder{
		accessors: make(map[entities.ValueKind]AccessorFunc),
	}
	if len(opts) == 0 {
		opts = []RegistryOption{WithStandardAccessors()}
	}
	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	r := &AccessorRegistry{accessors: make(map[entities.ValueKind]AccessorFunc, len(b.accessors))}
	for _, kind := range entities.AllKinds() {
		fn, ok := b.accessors[kind]
		if !ok {
			continue
		}
		// Apply middleware in reverse order so the first one wraps outermost.
		for i := len(b.middleware) - 1; i >= 0; i-- {
			fn = b.middleware[i](fn)
		}
		r.accessors[kind] = fn
		r.kinds = append(r.kinds, kind)
	}
	return r, nil
}

// Fetch dispatches to the accessor for kind. A kind without an accessor
// yields Unsupported.
func (r *AccessorRegistry) Fetch(ctx context.Context, kind entities.ValueKind, bag *ArgumentBag, name string) (entities.Value, errors.Code) {
	fn, ok := r.accessors[kind]
	if !ok {
		return entities.Zero(kind), errors.Unsupported
	}
	return fn(NewHostContext(ctx, kind), bag, name)
}

// Has reports whether kind has an accessor.
func (r *AccessorRegistry) Has(kind entities.ValueKind) bool {
	_, ok := r.accessors[kind]
	return ok
}

// Kinds returns the served kinds in declaration order.
func (r *AccessorRegistry) Kinds() []entities.ValueKind {
	out := make([]entities.ValueKind, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// Names returns the stable entry point names, one per served kind.
func (r *AccessorRegistry) Names() []string {
	names := make([]string, len(r.kinds))
	for i, k := range r.kinds {
		names[i] = EntryPointName(k)
	}
	return names
}

func (b *registryBuilder) addAccessor(kind entities.ValueKind, fn AccessorFunc) error {
	if !kind.Valid() {
		return fmt.Errorf("cannot register accessor for kind %s", kind)
	}
	if fn == nil {
		return fmt.Errorf("accessor for %s is nil", kind)
	}
	if _, exists := b.accessors[kind]; exists {
		return fmt.Errorf("duplicate accessor: %q", EntryPointName(kind))
	}
	b.accessors[kind] = fn
	return nil
}

// WithAccessor registers fn as the accessor for kind.
func WithAccessor(kind entities.ValueKind, fn AccessorFunc) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addAccessor(kind, fn); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithStandardAccessors registers the bag lookup for every storable kind.
func WithStandardAccessors() RegistryOption {
	return func(b *registryBuilder) {
		for _, kind := range entities.AllKinds() {
			k := kind
			fn := func(_ HostContext, bag *ArgumentBag, name string) (entities.Value, errors.Code) {
				return bag.Fetch(name, k)
			}
			if err := b.addAccessor(k, fn); err != nil {
				b.errors = append(b.errors, err)
			}
		}
	}
}

// WithMiddleware adds middleware to every accessor.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
