package registry

import (
	"fmt"
	"sort"

	"github.com/vk/objectbus/internal/catalog"
)

// member identifies one (interface, member name) pair.
type member struct {
	iface string
	name  string
}

// Bind compiles the collected declarations into an immutable Binding. It
// fails if any declaration cannot be resolved to exactly one catalog member,
// if two declarations resolve to the same member, or if any catalog member
// is left without a handler. The returned Binding is the only artifact that
// survives; the stand-ins are discarded.
func (t *Template) Bind() (*Binding, error) {
	b := &Binding{
		cat:        t.cat,
		methods:    make(map[string]map[string]*boundMethod),
		signals:    make(map[string]map[string]*boundSignal),
		properties: make(map[string]map[string]*Property),
	}

	// Working sets of catalog members not yet matched to a handler, per kind.
	unassigned := map[catalog.Kind]map[member]struct{}{
		catalog.KindMethod:   {},
		catalog.KindSignal:   {},
		catalog.KindProperty: {},
	}
	for _, ifaceName := range t.cat.InterfaceNames() {
		iface := t.cat.Interface(ifaceName)
		for name := range iface.Methods {
			unassigned[catalog.KindMethod][member{ifaceName, name}] = struct{}{}
		}
		for name := range iface.Signals {
			unassigned[catalog.KindSignal][member{ifaceName, name}] = struct{}{}
		}
		for name := range iface.Properties {
			unassigned[catalog.KindProperty][member{ifaceName, name}] = struct{}{}
		}
	}

	// Properties for which one accessor has been seen but not yet its
	// counterpart.
	open := map[member]*standIn{}

	for _, s := range t.standIns {
		ifaceName, err := t.resolveInterface(s)
		if err != nil {
			return nil, err
		}

		kind := s.kind.memberKind()
		id := member{ifaceName, s.name}
		if _, ok := unassigned[kind][id]; !ok {
			return nil, fmt.Errorf("%s %s has a handler but is either not declared in the manifest or has multiple handlers in the template", kind, s.name)
		}

		switch s.kind {
		case kindMethod:
			desc := t.cat.Interface(ifaceName).Methods[s.name]
			if b.methods[ifaceName] == nil {
				b.methods[ifaceName] = make(map[string]*boundMethod)
			}
			b.methods[ifaceName][s.name] = &boundMethod{desc: desc, fn: s.fn}
			delete(unassigned[catalog.KindMethod], id)

		case kindSignal:
			desc := t.cat.Interface(ifaceName).Signals[s.name]
			if b.signals[ifaceName] == nil {
				b.signals[ifaceName] = make(map[string]*boundSignal)
			}
			b.signals[ifaceName][s.name] = &boundSignal{desc: desc, hook: s.fn}
			delete(unassigned[catalog.KindSignal], id)

		case kindGetter, kindSetter:
			counterpart, isOpen := open[id]
			if !isOpen {
				open[id] = s
				continue
			}
			// Two getters or two setters is a conflict; a getter+setter pair
			// is accepted in either declaration order.
			if counterpart.kind == s.kind {
				return nil, fmt.Errorf("property %s has multiple getters and/or setters defined", s.name)
			}
			getter, setter := s, counterpart
			if s.kind == kindSetter {
				getter, setter = counterpart, s
			}
			b.addProperty(ifaceName, getter, setter)
			delete(open, id)
			delete(unassigned[catalog.KindProperty], id)
		}
	}

	// A property with only a getter is read-only; a setter with no getter is
	// meaningless and rejected.
	for id, s := range open {
		if s.kind == kindSetter {
			return nil, fmt.Errorf("missing getter for property %s of interface %s", id.name, id.iface)
		}
		b.addProperty(id.iface, s, nil)
		delete(unassigned[catalog.KindProperty], id)
	}

	// Completion check: partial implementations are rejected at bind time,
	// not at first call.
	for _, kind := range []catalog.Kind{catalog.KindMethod, catalog.KindSignal, catalog.KindProperty} {
		if len(unassigned[kind]) > 0 {
			id := firstMember(unassigned[kind])
			noun := "handler"
			if kind == catalog.KindProperty {
				noun = "getter"
			}
			return nil, fmt.Errorf("missing %s for %s %s of interface %s", noun, kind, id.name, id.iface)
		}
	}

	t.standIns = nil
	return b, nil
}

// MustBind is Bind, panicking on failure. A bind error always indicates a
// mismatch between the manifest and the handler declarations that must be
// fixed in code.
func (t *Template) MustBind() *Binding {
	b, err := t.Bind()
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Binding) addProperty(ifaceName string, getter, setter *standIn) {
	desc := b.cat.Interface(ifaceName).Properties[getter.name]
	p := &Property{
		Desc:        desc,
		getter:      getter.fn,
		Notify:      !getter.noNotify,
		NotifyValue: !getter.invalidateOnly,
	}
	if setter != nil {
		p.setter = setter.fn
		if setter.noNotify {
			p.Notify = false
		}
		if setter.invalidateOnly {
			p.NotifyValue = false
		}
	}
	if b.properties[ifaceName] == nil {
		b.properties[ifaceName] = make(map[string]*Property)
	}
	b.properties[ifaceName][getter.name] = p
}

// resolveInterface picks the owning interface for one stand-in: the explicit
// interface when given, otherwise the unique owner of the member name.
func (t *Template) resolveInterface(s *standIn) (string, error) {
	kind := s.kind.memberKind()

	ifaceName := s.iface
	if ifaceName == "" {
		owner, declared := t.cat.Owner(kind, s.name)
		if !declared {
			return "", fmt.Errorf("%s %s is not defined in any interface", kind, s.name)
		}
		if owner == nil {
			return "", fmt.Errorf("interface for %s %s could not be auto-detected: the %s is defined in multiple interfaces, specify the interface name explicitly", kind, s.name, kind)
		}
		ifaceName = owner.Name
	}

	iface := t.cat.Interface(ifaceName)
	if iface == nil {
		return "", fmt.Errorf("interface %s is not defined in the manifest", ifaceName)
	}
	if !iface.Has(kind, s.name) {
		return "", fmt.Errorf("%s %s is not defined for interface %s", kind, s.name, ifaceName)
	}
	return ifaceName, nil
}

// firstMember returns the lexicographically first member of a working set so
// that completion-check errors are deterministic.
func firstMember(set map[member]struct{}) member {
	ids := make([]member, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].iface != ids[j].iface {
			return ids[i].iface < ids[j].iface
		}
		return ids[i].name < ids[j].name
	})
	return ids[0]
}
