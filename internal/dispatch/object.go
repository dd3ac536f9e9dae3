// Package dispatch is the runtime half of the binding compiler: it attaches
// a compiled Binding to a live transport connection at one object path and
// routes every inbound method call, property read, and property write to the
// bound handler, marshaling values at the boundary. Outbound it emits
// declared signals and property-changed notifications.
//
// A handler failure during dispatch is converted into a protocol-level error
// reply carrying the interface name and the failure message; the object
// keeps serving subsequent calls. Internal-consistency violations (handler
// arity that contradicts the declaration) panic instead, because they mean
// the service's own code is broken rather than that a caller sent bad input.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/objectbus/internal/catalog"
	"github.com/vk/objectbus/internal/ctxlog"
	"github.com/vk/objectbus/internal/registry"
	"github.com/vk/objectbus/internal/transport"
)

// Object is one bound service object serving dispatch on a connection.
type Object struct {
	binding *registry.Binding
	conn    transport.Connection
	path    string
}

// Register attaches a compiled binding to a connection at the given object
// path and begins serving dispatch for it. Each binding can be registered
// exactly once; a second attempt is an error.
func Register(ctx context.Context, conn transport.Connection, path string, b *registry.Binding) (*Object, error) {
	if !b.Claim() {
		return nil, errors.New("Register can only be called once for a binding")
	}

	o := &Object{binding: b, conn: conn, path: path}
	handlers := transport.Handlers{
		Call:        o.handleCall,
		GetProperty: o.handleGet,
		SetProperty: o.handleSet,
	}
	for _, ifaceName := range b.Catalog().InterfaceNames() {
		if err := conn.RegisterObject(path, ifaceName, handlers); err != nil {
			return nil, fmt.Errorf("failed to register %s at %s: %w", ifaceName, path, err)
		}
	}

	ctxlog.FromContext(ctx).Debug("Object registered.", "path", path, "interfaces", b.Catalog().InterfaceNames())
	return o, nil
}

// Path returns the object path this object was registered at.
func (o *Object) Path() string { return o.path }

// handleCall dispatches one inbound method call.
func (o *Object) handleCall(ctx context.Context, iface, method string, args []cty.Value) ([]cty.Value, error) {
	desc, fn, ok := o.binding.Method(iface, method)
	if !ok {
		return nil, transport.NewCallError(iface, "unknown method %s", method)
	}
	if len(args) != len(desc.In) {
		return nil, transport.NewCallError(iface, "method %s takes %d arguments, got %d", method, len(desc.In), len(args))
	}

	results, err := invokeWire(ctx, fn, desc.In, args)
	if err != nil {
		return nil, asCallError(iface, err)
	}

	out, err := wireValues(results, desc.Out)
	if err != nil {
		return nil, asCallError(iface, err)
	}
	return out, nil
}

// handleGet dispatches one inbound property read.
func (o *Object) handleGet(ctx context.Context, iface, property string) (cty.Value, error) {
	p, ok := o.binding.Property(iface, property)
	if !ok {
		return cty.NilVal, transport.NewCallError(iface, "unknown property %s", property)
	}

	return o.readProperty(ctx, iface, p)
}

// handleSet dispatches one inbound property write. A write to a read-only
// property fails without invoking anything and without any notification.
// After a successful write the property-changed notification is emitted
// according to the property's own policy.
func (o *Object) handleSet(ctx context.Context, iface, property string, value cty.Value) error {
	p, ok := o.binding.Property(iface, property)
	if !ok {
		return transport.NewCallError(iface, "unknown property %s", property)
	}
	if !p.Writable() {
		return transport.NewCallError(iface, "property %s is read-only", property)
	}

	// Convert up front so the notification below carries the value as the
	// declared type, not the caller's raw encoding of it.
	converted, err := convert.Convert(value, p.Desc.Type)
	if err != nil {
		return transport.NewCallError(iface, "property %s: %s", property, err)
	}

	declared := []catalog.Arg{{Name: property, Type: p.Desc.Type}}
	if _, err := invokeWire(ctx, p.Setter(), declared, []cty.Value{converted}); err != nil {
		return asCallError(iface, err)
	}

	if p.Notify {
		changed := map[string]cty.Value{}
		var invalidated []string
		if p.NotifyValue {
			changed[property] = converted
		} else {
			invalidated = append(invalidated, property)
		}
		o.emitPropertiesChanged(ctx, iface, changed, invalidated)
	}
	return nil
}

// readProperty invokes a bound getter and wraps the result to the declared
// wire type. A getter that returns anything but one value contradicts its
// declaration and panics inside wireValues.
func (o *Object) readProperty(ctx context.Context, iface string, p *registry.Property) (cty.Value, error) {
	results, err := invokeWire(ctx, p.Getter(), nil, nil)
	if err != nil {
		return cty.NilVal, asCallError(iface, err)
	}
	out, err := wireValues(results, []catalog.Arg{{Name: p.Desc.Name, Type: p.Desc.Type}})
	if err != nil {
		return cty.NilVal, asCallError(iface, err)
	}
	return out[0], nil
}

// asCallError converts a handler failure into the protocol error reply,
// tagged with the interface the call was addressed to.
func asCallError(iface string, err error) error {
	var ce *transport.CallError
	if errors.As(err, &ce) {
		return ce
	}
	return &transport.CallError{Interface: iface, Message: err.Error()}
}
