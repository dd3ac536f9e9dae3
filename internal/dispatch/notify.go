package dispatch

import (
	"context"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/objectbus/internal/catalog"
	"github.com/vk/objectbus/internal/ctxlog"
	"github.com/vk/objectbus/internal/registry"
	"github.com/vk/objectbus/internal/transport"
)

// Emit invokes the bound emitter hook for a signal and broadcasts it from
// this object's path. The hook receives the given arguments; if it returns a
// same-length set of values they override what is broadcast, and returning a
// different number of values panics. An empty iface is resolved through the
// catalog's uniqueness map, the same way handler declarations are.
//
// Emission is fire-and-forget: Emit returns once the transport has accepted
// the broadcast, without awaiting delivery.
func (o *Object) Emit(ctx context.Context, iface, name string, args ...any) error {
	if iface == "" {
		owner, declared := o.binding.Catalog().Owner(catalog.KindSignal, name)
		if !declared {
			return fmt.Errorf("signal %s is not defined in any interface", name)
		}
		if owner == nil {
			return fmt.Errorf("interface for signal %s could not be auto-detected: the signal is defined in multiple interfaces, specify the interface name explicitly", name)
		}
		iface = owner.Name
	}

	desc, hook, ok := o.binding.Signal(iface, name)
	if !ok {
		return fmt.Errorf("signal %s is not defined for interface %s", name, iface)
	}
	if len(args) != len(desc.Args) {
		panic(fmt.Sprintf("signal %s takes %d arguments, got %d", name, len(desc.Args), len(args)))
	}

	values := runEmitterHook(ctx, hook, args)

	wire := make([]cty.Value, 0, len(desc.Args))
	for i, v := range values {
		wv, err := wireGoValue(v, desc.Args[i].Type)
		if err != nil {
			return fmt.Errorf("signal %s, argument %s: %w", name, desc.Args[i].Name, err)
		}
		wire = append(wire, wv)
	}

	return o.conn.EmitSignal(ctx, o.path, iface, name, wire)
}

// runEmitterHook calls the user's emitter hook with the original arguments
// and decides what gets broadcast: the hook's override values when it
// returns any, the original arguments otherwise. An override of the wrong
// length is a fatal internal-consistency error.
func runEmitterHook(ctx context.Context, hook any, args []any) []any {
	hv := reflect.ValueOf(hook)
	ht := hv.Type()

	offset := 0
	if ht.NumIn() > 0 && ht.In(0) == ctxType {
		offset = 1
	}
	if ht.NumIn() != len(args)+offset {
		panic(fmt.Sprintf("signal emitter hook %s takes %d arguments but was given %d", ht, ht.NumIn()-offset, len(args)))
	}

	params := make([]reflect.Value, 0, ht.NumIn())
	if offset == 1 {
		params = append(params, reflect.ValueOf(ctx))
	}
	for i, arg := range args {
		target := ht.In(i + offset)
		av := reflect.ValueOf(arg)
		if !av.IsValid() {
			av = reflect.Zero(target)
		} else if av.Type() != target && av.Type().ConvertibleTo(target) {
			av = av.Convert(target)
		}
		params = append(params, av)
	}

	results := hv.Call(params)
	if len(results) == 0 {
		return args
	}
	if len(results) != len(args) {
		panic("signal emitter returned an invalid number of arguments")
	}
	overrides := make([]any, len(results))
	for i, r := range results {
		overrides[i] = r.Interface()
	}
	return overrides
}

// wireGoValue marshals one Go value to a declared wire type.
func wireGoValue(v any, ty cty.Type) (cty.Value, error) {
	if v == nil {
		return cty.NullVal(ty), nil
	}
	return wireValue(reflect.ValueOf(v), ty)
}

// PropertiesChanged announces that the named properties of one interface
// changed for reasons other than going through their own setters. Every name
// is validated against the interface before anything is emitted; an unknown
// name fails with no partial emission. Each property's own notification
// policy is respected independently, and everything is batched into a single
// event: changed-with-value properties in one list, invalidated ones in the
// other.
//
// Callers must not pair this with a setter-triggered notification for the
// same change, which would double-emit.
func (o *Object) PropertiesChanged(ctx context.Context, iface string, names ...string) error {
	if o.binding.Catalog().Interface(iface) == nil {
		return fmt.Errorf("interface %s is not defined in the manifest", iface)
	}

	resolved := make([]*propertyRef, 0, len(names))
	for _, name := range names {
		p, ok := o.binding.Property(iface, name)
		if !ok {
			return fmt.Errorf("property %s is not defined for interface %s", name, iface)
		}
		resolved = append(resolved, &propertyRef{name: name, prop: p})
	}

	changed := map[string]cty.Value{}
	var invalidated []string
	for _, ref := range resolved {
		if !ref.prop.Notify {
			continue
		}
		if !ref.prop.NotifyValue {
			invalidated = append(invalidated, ref.name)
			continue
		}
		value, err := o.readProperty(ctx, iface, ref.prop)
		if err != nil {
			return fmt.Errorf("property %s: %w", ref.name, err)
		}
		changed[ref.name] = value
	}

	if len(changed) == 0 && len(invalidated) == 0 {
		// Every requested property opted out of notification.
		return nil
	}
	o.emitPropertiesChanged(ctx, iface, changed, invalidated)
	return nil
}

// emitPropertiesChanged broadcasts one PropertiesChanged event on the
// reserved properties interface. Failures are logged, not returned: the
// write that triggered the notification has already succeeded.
func (o *Object) emitPropertiesChanged(ctx context.Context, iface string, changed map[string]cty.Value, invalidated []string) {
	args := []cty.Value{
		cty.StringVal(iface),
		changedValue(changed),
		invalidatedValue(invalidated),
	}
	err := o.conn.EmitSignal(ctx, o.path, transport.PropertiesInterface, transport.PropertiesChangedSignal, args)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to emit PropertiesChanged.", "path", o.path, "interface", iface, "error", err)
	}
}

func changedValue(changed map[string]cty.Value) cty.Value {
	if len(changed) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(changed)
}

func invalidatedValue(invalidated []string) cty.Value {
	if len(invalidated) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, 0, len(invalidated))
	for _, name := range invalidated {
		vals = append(vals, cty.StringVal(name))
	}
	return cty.ListVal(vals)
}

type propertyRef struct {
	name string
	prop *registry.Property
}
