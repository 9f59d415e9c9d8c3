package hostfuncs

import (
	"sync"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
)

type slotKind uint8

const (
	slotFree slotKind = iota
	slotString
	slotObject
)

// WriteHook is called after an object's content changed, with the new value.
// Returning an error rejects the write and keeps the old value.
type WriteHook func(v entities.Value) error

type slot struct {
	onWrite    WriteHook
	text       string
	object     entities.Value
	refs       int32
	generation uint32
	kind       slotKind
}

// HandleTable owns every host-side string and object reachable by plugins.
// Entries are reference counted; a slot is freed when its count reaches zero
// and its generation is bumped, so released handles fail deterministically
// instead of aliasing a newer value.
type HandleTable struct {
	slots []slot
	free  []uint32
	live  int
	mu    sync.Mutex
}

// NewHandleTable creates an empty table. Slot 0 is reserved so that
// entities.NullHandle never resolves.
func NewHandleTable() *HandleTable {
	return &HandleTable{slots: make([]slot, 1)}
}

// NewString stores s and returns an owned handle with one reference.
func (t *HandleTable) NewString(s string) entities.Handle {
	return t.alloc(slot{kind: slotString, text: s})
}

// NewObject stores v and returns an owned handle with one reference.
// onWrite may be nil.
func (t *HandleTable) NewObject(v entities.Value, onWrite WriteHook) entities.Handle {
	return t.alloc(slot{kind: slotObject, object: v, onWrite: onWrite})
}

func (t *HandleTable) alloc(s slot) entities.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	s.refs = 1
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
		s.generation = t.slots[idx].generation
	} else {
		idx = uint32(len(t.slots))
		s.generation = 1
		t.slots = append(t.slots, slot{})
	}
	t.slots[idx] = s
	t.live++
	return entities.NewHandle(idx, s.generation)
}

// resolve returns the live slot for h. The caller holds t.mu.
func (t *HandleTable) resolve(op string, h entities.Handle) (*slot, error) {
	idx := h.Slot()
	if idx == 0 || int(idx) >= len(t.slots) {
		return nil, &errors.HandleError{Op: op, Handle: h, Code: errors.InvalidHandle}
	}
	s := &t.slots[idx]
	if s.kind == slotFree || s.generation != h.Generation() {
		return nil, &errors.HandleError{Op: op, Handle: h, Code: errors.InvalidHandle}
	}
	return s, nil
}

func (t *HandleTable) resolveKind(op string, h entities.Handle, want slotKind) (*slot, error) {
	s, err := t.resolve(op, h)
	if err != nil {
		return nil, err
	}
	if s.kind != want {
		return nil, &errors.HandleError{Op: op, Handle: h, Code: errors.KindMismatch}
	}
	return s, nil
}

// Retain adds a reference to h.
func (t *HandleTable) Retain(h entities.Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.resolve("retain", h)
	if err != nil {
		return err
	}
	s.refs++
	return nil
}

// Release drops one reference. Releasing a handle whose slot was already
// freed fails without touching any other entry.
func (t *HandleTable) Release(h entities.Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.resolve("release", h)
	if err != nil {
		return err
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	gen := s.generation + 1
	if gen == 0 {
		gen = 1
	}
	*s = slot{generation: gen}
	t.free = append(t.free, h.Slot())
	t.live--
	return nil
}

// ReadString returns a copy of a string handle's content.
func (t *HandleTable) ReadString(h entities.Handle) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.resolveKind("read", h, slotString)
	if err != nil {
		return "", err
	}
	return s.text, nil
}

// WriteString replaces a string handle's content in place.
func (t *HandleTable) WriteString(h entities.Handle, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.resolveKind("write", h, slotString)
	if err != nil {
		return err
	}
	s.text = text
	return nil
}

// ReadObject returns an object handle's value.
func (t *HandleTable) ReadObject(h entities.Handle) (entities.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.resolveKind("read", h, slotObject)
	if err != nil {
		return entities.Void(), err
	}
	return s.object, nil
}

// ObjectString renders an object as text into a new owned string handle.
// The caller must release the returned handle.
func (t *HandleTable) ObjectString(h entities.Handle) (entities.Handle, error) {
	v, err := t.ReadObject(h)
	if err != nil {
		return entities.NullHandle, err
	}
	return t.NewString(v.String()), nil
}

// WriteObject parses text as the object's current kind and stores it.
func (t *HandleTable) WriteObject(h entities.Handle, text string) error {
	t.mu.Lock()
	s, err := t.resolveKind("write", h, slotObject)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	kind, hook := s.object.Kind(), s.onWrite
	t.mu.Unlock()

	v, perr := entities.ParseValue(kind, text)
	if perr != nil {
		return &errors.HandleError{Op: "write", Handle: h, Code: errors.InvalidValue}
	}
	if hook != nil {
		if err := hook(v); err != nil {
			return &errors.HandleError{Op: "write", Handle: h, Code: errors.InvalidValue}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	s, err = t.resolveKind("write", h, slotObject)
	if err != nil {
		return err
	}
	s.object = v
	return nil
}

// Live returns the number of allocated entries. A non-zero count after all
// calls returned means a reference was never released.
func (t *HandleTable) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Alive reports whether h still resolves.
func (t *HandleTable) Alive(h entities.Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.resolve("", h)
	return err == nil
}
