package registry

import (
	"sync/atomic"

	"github.com/vk/objectbus/internal/catalog"
)

// Property is the runtime descriptor of one bound property: its catalog
// metadata, the accessor functions, and the change-notification policy.
// The setter is nil for read-only properties; a write attempt must then fail
// without emitting any notification.
type Property struct {
	Desc *catalog.Property

	getter any
	setter any

	// Notify controls whether a successful write emits a property-changed
	// event at all; NotifyValue controls whether that event carries the new
	// value or just lists the property as invalidated.
	Notify      bool
	NotifyValue bool
}

// Getter returns the bound read accessor.
func (p *Property) Getter() any { return p.getter }

// Setter returns the bound write accessor, or nil for a read-only property.
func (p *Property) Setter() any { return p.setter }

// Writable reports whether the property has a bound setter.
func (p *Property) Writable() bool { return p.setter != nil }

type boundMethod struct {
	desc *catalog.Method
	fn   any
}

type boundSignal struct {
	desc *catalog.Signal
	hook any
}

// Binding is the immutable dispatch table produced by Template.Bind: every
// method, signal, and property of every interface in the catalog, each
// matched to exactly one handler. It never changes after Bind returns.
type Binding struct {
	cat *catalog.Catalog

	methods    map[string]map[string]*boundMethod
	signals    map[string]map[string]*boundSignal
	properties map[string]map[string]*Property

	registered atomic.Bool
}

// Catalog returns the catalog this binding was compiled against.
func (b *Binding) Catalog() *catalog.Catalog { return b.cat }

// Method looks up the descriptor and handler for one method.
func (b *Binding) Method(iface, name string) (*catalog.Method, any, bool) {
	m, ok := b.methods[iface][name]
	if !ok {
		return nil, nil, false
	}
	return m.desc, m.fn, true
}

// Signal looks up the descriptor and emitter hook for one signal.
func (b *Binding) Signal(iface, name string) (*catalog.Signal, any, bool) {
	s, ok := b.signals[iface][name]
	if !ok {
		return nil, nil, false
	}
	return s.desc, s.hook, true
}

// Property looks up the descriptor for one property.
func (b *Binding) Property(iface, name string) (*Property, bool) {
	p, ok := b.properties[iface][name]
	return p, ok
}

// Claim marks the binding as registered on a connection. It succeeds exactly
// once; registration of an already-claimed binding must be rejected.
func (b *Binding) Claim() bool {
	return b.registered.CompareAndSwap(false, true)
}
