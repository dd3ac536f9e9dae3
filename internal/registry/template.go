package registry

import (
	"fmt"
	"reflect"

	"github.com/vk/objectbus/internal/catalog"
)

// handlerKind is the role a declared function plays. Getters and setters are
// distinct declarations that bind to the same property member.
type handlerKind int

const (
	kindMethod handlerKind = iota
	kindSignal
	kindGetter
	kindSetter
)

// memberKind maps a handler role onto the member kind it resolves against.
func (k handlerKind) memberKind() catalog.Kind {
	switch k {
	case kindMethod:
		return catalog.KindMethod
	case kindSignal:
		return catalog.KindSignal
	default:
		return catalog.KindProperty
	}
}

// standIn is the temporary artifact produced by declaring a handler on a
// Template. It exists only between declaration and the completion of Bind.
type standIn struct {
	kind  handlerKind
	name  string
	iface string // optional explicit interface
	fn    any

	// Change-notification policy; meaningful on getter/setter stand-ins.
	noNotify       bool
	invalidateOnly bool
}

// Option adjusts a single handler declaration.
type Option func(*standIn)

// On names the interface the member is declared on. Usually the interface is
// auto-detected from the member name; it must be given explicitly when the
// name appears in more than one interface.
func On(iface string) Option {
	return func(s *standIn) { s.iface = iface }
}

// NoNotify disables the property-changed notification for writes to this
// property.
func NoNotify() Option {
	return func(s *standIn) { s.noNotify = true }
}

// InvalidateOnly makes the property-changed notification list the property
// as invalidated instead of carrying the new value.
func InvalidateOnly() Option {
	return func(s *standIn) { s.invalidateOnly = true }
}

// Template collects the handler declarations for one service object before
// they are compiled into a Binding.
type Template struct {
	cat      *catalog.Catalog
	standIns []*standIn
}

// NewTemplate creates an empty Template bound to a parsed catalog.
func NewTemplate(cat *catalog.Catalog) *Template {
	return &Template{cat: cat}
}

func (t *Template) declare(kind handlerKind, name string, fn any, opts []Option) *Template {
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		panic(fmt.Sprintf("handler for %s %q must be a function, got %T", kind.memberKind(), name, fn))
	}
	s := &standIn{kind: kind, name: name, fn: fn}
	for _, opt := range opts {
		opt(s)
	}
	t.standIns = append(t.standIns, s)
	return t
}

// Method declares the handler for a method member. The handler receives the
// declared in arguments positionally, may take a leading context.Context,
// and must return the declared out arguments (plus an optional trailing
// error).
func (t *Template) Method(name string, fn any, opts ...Option) *Template {
	return t.declare(kindMethod, name, fn, opts)
}

// Signal declares the emitter hook for a signal member. The hook receives
// the arguments passed to Emit; it may return nothing (the arguments are
// broadcast unchanged) or a same-length set of override values.
func (t *Template) Signal(name string, fn any, opts ...Option) *Template {
	return t.declare(kindSignal, name, fn, opts)
}

// Getter declares the read accessor for a property member.
func (t *Template) Getter(name string, fn any, opts ...Option) *Template {
	return t.declare(kindGetter, name, fn, opts)
}

// Setter declares the write accessor for a property member. A setter without
// a matching getter fails the bind; a property with only a getter is
// read-only.
func (t *Template) Setter(name string, fn any, opts ...Option) *Template {
	return t.declare(kindSetter, name, fn, opts)
}
