// Package catalog turns an interface manifest into immutable per-interface
// member tables plus the cross-interface name-uniqueness maps that let
// handler declarations omit their interface when the member name is
// unambiguous. Parsing is one-shot; a Catalog never changes after
// construction.
package catalog

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/objectbus/internal/transport"
)

// Kind distinguishes the three member kinds of an interface.
type Kind int

const (
	KindMethod Kind = iota
	KindSignal
	KindProperty
)

// String returns the lower-case noun used in error messages.
func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindSignal:
		return "signal"
	case KindProperty:
		return "property"
	}
	return "member"
}

// Arg is a named, typed argument of a method or signal.
type Arg struct {
	Name string
	Type cty.Type
}

// Method is the descriptor of one declared method.
type Method struct {
	Name      string
	Interface string
	In        []Arg
	Out       []Arg
}

// Signal is the descriptor of one declared signal.
type Signal struct {
	Name      string
	Interface string
	Args      []Arg
}

// Property is the descriptor of one declared property.
type Property struct {
	Name      string
	Interface string
	Type      cty.Type
	Writable  bool
}

// Interface holds the member tables of one parsed interface.
type Interface struct {
	Name       string
	Methods    map[string]*Method
	Signals    map[string]*Signal
	Properties map[string]*Property
}

// Has reports whether the interface declares a member of the given kind.
func (i *Interface) Has(kind Kind, name string) bool {
	switch kind {
	case KindMethod:
		_, ok := i.Methods[name]
		return ok
	case KindSignal:
		_, ok := i.Signals[name]
		return ok
	case KindProperty:
		_, ok := i.Properties[name]
		return ok
	}
	return false
}

// Catalog is the parsed form of one interface manifest.
type Catalog struct {
	interfaces map[string]*Interface
	order      []string

	// Per kind: bare member name → owning interface, or nil when the name
	// appears in two or more interfaces and is therefore ambiguous.
	unique map[Kind]map[string]*Interface
}

// Interface returns the named interface, or nil if the manifest did not
// declare it.
func (c *Catalog) Interface(name string) *Interface {
	return c.interfaces[name]
}

// InterfaceNames returns the interface names in declaration order.
func (c *Catalog) InterfaceNames() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Owner consults the uniqueness map for one member kind. The second return
// reports whether the name is declared anywhere at all; a nil interface with
// ok=true means the name is ambiguous (declared in two or more interfaces).
func (c *Catalog) Owner(kind Kind, name string) (*Interface, bool) {
	iface, ok := c.unique[kind][name]
	return iface, ok
}

// reservedInterfaces are provided by the transport layer and must not be
// declared by an author manifest.
var reservedInterfaces = map[string]struct{}{
	transport.PropertiesInterface: {},
	transport.PeerInterface:       {},
}

func (c *Catalog) addInterface(iface *Interface) error {
	if _, reserved := reservedInterfaces[iface.Name]; reserved {
		return fmt.Errorf("interface %s is reserved and always provided by the transport layer; remove it from the manifest", iface.Name)
	}
	if _, exists := c.interfaces[iface.Name]; exists {
		return fmt.Errorf("interface %s is declared more than once", iface.Name)
	}
	c.interfaces[iface.Name] = iface
	c.order = append(c.order, iface.Name)

	record := func(kind Kind, name string) {
		if _, seen := c.unique[kind][name]; seen {
			c.unique[kind][name] = nil
		} else {
			c.unique[kind][name] = iface
		}
	}
	for name := range iface.Methods {
		record(KindMethod, name)
	}
	for name := range iface.Signals {
		record(KindSignal, name)
	}
	for name := range iface.Properties {
		record(KindProperty, name)
	}
	return nil
}
