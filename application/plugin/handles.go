package plugin

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/plugabi/domain/entities"
	"github.com/reglet-dev/plugabi/domain/errors"
	"github.com/reglet-dev/plugabi/domain/ports"
)

// ErrBorrowed is returned when Release is called on a borrowed handle.
var ErrBorrowed = stdErrors.New("handle is borrowed")

// noCopy is caught by go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// ref is the state shared by String and Object.
type ref struct {
	abi      ports.HostABI
	h        entities.Handle
	own      entities.Ownership
	released bool
}

func (r *ref) live(op string) error {
	if r.released || r.h == entities.NullHandle {
		return &errors.HandleError{Op: op, Handle: r.h, Code: errors.InvalidHandle}
	}
	return nil
}

func (r *ref) status(op string, code errors.Code) error {
	if code.Failed() {
		return &errors.HandleError{Op: op, Handle: r.h, Code: code}
	}
	return nil
}

func (r *ref) release() error {
	if r.own == entities.Borrowed {
		return fmt.Errorf("release %s: %w", r.h, ErrBorrowed)
	}
	if err := r.live("release"); err != nil {
		return err
	}
	r.released = true
	return r.status("release", r.abi.Release(r.h))
}

// String is a host string handle.
type String struct {
	_ noCopy
	ref
}

// NewString wraps h. Owned handles must be released exactly once.
func NewString(abi ports.HostABI, h entities.Handle, own entities.Ownership) *String {
	return &String{ref: ref{abi: abi, h: h, own: own}}
}

// Handle returns the raw handle.
func (s *String) Handle() entities.Handle { return s.h }

// Ownership reports whether the handle must be released.
func (s *String) Ownership() entities.Ownership { return s.own }

// Read returns a copy of the string content.
func (s *String) Read() (string, error) {
	if err := s.live("string_read"); err != nil {
		return "", err
	}
	text := s.abi.StringRead(s.h)
	if err := s.status("string_read", s.abi.LastError()); err != nil {
		return "", err
	}
	return text, nil
}

// Write replaces the string content in place.
func (s *String) Write(text string) error {
	if err := s.live("string_write"); err != nil {
		return err
	}
	return s.status("string_write", s.abi.StringWrite(s.h, text))
}

// Release drops the reference. A second call fails without reaching the
// host.
func (s *String) Release() error { return s.release() }

// Object is a host object handle.
type Object struct {
	_ noCopy
	ref
}

// NewObject wraps h. Owned handles must be released exactly once.
func NewObject(abi ports.HostABI, h entities.Handle, own entities.Ownership) *Object {
	return &Object{ref: ref{abi: abi, h: h, own: own}}
}

// Handle returns the raw handle.
func (o *Object) Handle() entities.Handle { return o.h }

// Ownership reports whether the handle must be released.
func (o *Object) Ownership() entities.Ownership { return o.own }

// Read returns the object's textual form. The intermediate string handle is
// released on every path.
func (o *Object) Read() (text string, err error) {
	if err := o.live("object_to_string"); err != nil {
		return "", err
	}
	sh := o.abi.ObjectToString(o.h)
	if err := o.status("object_to_string", o.abi.LastError()); err != nil {
		return "", err
	}
	err = WithString(o.abi, sh, entities.Owned, func(s *String) error {
		var rerr error
		text, rerr = s.Read()
		return rerr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// Write parses text in the object's kind and stores it.
func (o *Object) Write(text string) error {
	if err := o.live("object_write"); err != nil {
		return err
	}
	return o.status("object_write", o.abi.ObjectWrite(o.h, text))
}

// Release drops the reference. A second call fails without reaching the
// host.
func (o *Object) Release() error { return o.release() }

// WithString runs fn with a wrapper for h and releases an owned handle when
// fn returns, panics included. Errors from fn and from the release are
// joined.
func WithString(abi ports.HostABI, h entities.Handle, own entities.Ownership, fn func(*String) error) (err error) {
	s := NewString(abi, h, own)
	if own == entities.Owned {
		defer func() {
			if rerr := s.Release(); rerr != nil {
				err = stdErrors.Join(err, rerr)
			}
		}()
	}
	return fn(s)
}

// WithObject is WithString for object handles.
func WithObject(abi ports.HostABI, h entities.Handle, own entities.Ownership, fn func(*Object) error) (err error) {
	o := NewObject(abi, h, own)
	if own == entities.Owned {
		defer func() {
			if rerr := o.Release(); rerr != nil {
				err = stdErrors.Join(err, rerr)
			}
		}()
	}
	return fn(o)
}

// ConfigFile is the host configuration as seen from a plugin.
type ConfigFile struct {
	abi ports.HostABI
}

// Open returns an owned object handle for block/entry. The caller releases
// it, typically through WithObject or Object.Release.
func (c *ConfigFile) Open(block, entry string) (*Object, error) {
	h := c.abi.ConfigGet(block, entry)
	if code := c.abi.LastError(); code.Failed() {
		return nil, fmt.Errorf("config %s.%s: %w", block, entry, code.Err())
	}
	return NewObject(c.abi, h, entities.Owned), nil
}

// Get returns the text of block/entry.
func (c *ConfigFile) Get(block, entry string) (string, error) {
	h := c.abi.ConfigGet(block, entry)
	if code := c.abi.LastError(); code.Failed() {
		return "", fmt.Errorf("config %s.%s: %w", block, entry, code.Err())
	}
	var text string
	err := WithObject(c.abi, h, entities.Owned, func(o *Object) error {
		var rerr error
		text, rerr = o.Read()
		return rerr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// GetOr returns def when block/entry cannot be read.
func (c *ConfigFile) GetOr(block, entry, def string) string {
	text, err := c.Get(block, entry)
	if err != nil {
		return def
	}
	return text
}

// Set stores text under block/entry.
func (c *ConfigFile) Set(block, entry, text string) error {
	if code := c.abi.ConfigSet(block, entry, text); code.Failed() {
		return fmt.Errorf("config %s.%s: %w", block, entry, code.Err())
	}
	return nil
}
