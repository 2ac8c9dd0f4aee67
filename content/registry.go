package content

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

var (
	// ErrKindRequired indicates a section spec without a kind.
	ErrKindRequired = errors.New("section kind is required")
	// ErrKindRegistered indicates a duplicate section kind registration.
	ErrKindRegistered = errors.New("section kind already registered")
	// ErrConstructorRequired indicates a spec missing New or Default.
	ErrConstructorRequired = errors.New("section constructors are required")
	// ErrUnknownKind indicates a lookup for a kind nobody registered.
	ErrUnknownKind = errors.New("section kind is not registered")
)

// Kind identifies a section type, e.g. "hero" or "faq".
type Kind string

// Content is the payload of a section. Every section kind owns its own
// content schema; the registry maps a Kind to constructors for it.
type Content interface {
	Kind() Kind
	// Validate reports the first problem that would make the content
	// unrenderable or unsafe.
	Validate() error
	// Decode replaces the content with the values posted by the kind's
	// editor form.
	Decode(form url.Values) error
}

// Spec describes a section kind.
type Spec struct {
	Kind        Kind
	Label       string
	Description string
	// New returns an empty value used as a decoding target.
	New func() Content
	// Default returns the content inserted when an editor adds the section.
	Default func() Content
}

// Registry maps section kinds to their specs. The zero value is not usable;
// call NewRegistry.
type Registry struct {
	mu    sync.RWMutex
	specs map[Kind]Spec
	order []Kind
}

// NewRegistry creates an empty section registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[Kind]Spec)}
}

// Register adds a section kind.
func (r *Registry) Register(spec Spec) error {
	kind := Kind(strings.TrimSpace(string(spec.Kind)))
	if kind == "" {
		return ErrKindRequired
	}
	if spec.New == nil || spec.Default == nil {
		return fmt.Errorf("%w: %s", ErrConstructorRequired, kind)
	}
	spec.Kind = kind
	if spec.Label == "" {
		spec.Label = string(kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[kind]; ok {
		return fmt.Errorf("%w: %s", ErrKindRegistered, kind)
	}
	r.specs[kind] = spec
	r.order = append(r.order, kind)
	return nil
}

// Lookup returns the spec for kind.
func (r *Registry) Lookup(kind Kind) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[kind]
	return spec, ok
}

// Specs returns all registered specs in registration order.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.specs[k])
	}
	return out
}

// New returns an empty content value for kind.
func (r *Registry) New(kind Kind) (Content, error) {
	spec, ok := r.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return spec.New(), nil
}

// Default returns the default content for kind.
func (r *Registry) Default(kind Kind) (Content, error) {
	spec, ok := r.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return spec.Default(), nil
}

// builtin holds the kinds shipped with pagecraft plus anything added
// through Register.
var builtin = NewRegistry()

// Register adds a custom section kind to the package registry. It is meant
// to be called from init functions, before the server starts.
func Register(spec Spec) error {
	return builtin.Register(spec)
}

// Lookup returns the spec registered for kind in the package registry.
func Lookup(kind Kind) (Spec, bool) {
	return builtin.Lookup(kind)
}

// Specs lists the package registry in registration order.
func Specs() []Spec {
	return builtin.Specs()
}

// NewContent returns an empty value for kind from the package registry.
func NewContent(kind Kind) (Content, error) {
	return builtin.New(kind)
}

// DefaultContent returns the default value for kind from the package registry.
func DefaultContent(kind Kind) (Content, error) {
	return builtin.Default(kind)
}

func mustRegister(spec Spec) {
	if err := builtin.Register(spec); err != nil {
		panic(err)
	}
}
