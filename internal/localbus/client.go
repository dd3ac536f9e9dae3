package localbus

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/objectbus/internal/transport"
)

// Call invokes a method on the object at path. The reserved interfaces are
// answered by the bus itself; everything else is routed to the registered
// call closure on the dispatch goroutine.
func (b *Bus) Call(ctx context.Context, path, iface, method string, args ...cty.Value) ([]cty.Value, error) {
	if iface == transport.PeerInterface || iface == transport.PropertiesInterface {
		return b.callReserved(ctx, path, iface, method, args)
	}

	h, err := b.lookup(path, iface)
	if err != nil {
		return nil, err
	}

	var out []cty.Value
	var callErr error
	err = b.run(ctx, func() {
		out, callErr = h.Call(ctx, iface, method, args)
	})
	if err != nil {
		return nil, err
	}
	return out, callErr
}

// GetProperty reads one property of the object at path.
func (b *Bus) GetProperty(ctx context.Context, path, iface, property string) (cty.Value, error) {
	h, err := b.lookup(path, iface)
	if err != nil {
		return cty.NilVal, err
	}

	var value cty.Value
	var getErr error
	err = b.run(ctx, func() {
		value, getErr = h.GetProperty(ctx, iface, property)
	})
	if err != nil {
		return cty.NilVal, err
	}
	return value, getErr
}

// SetProperty writes one property of the object at path.
func (b *Bus) SetProperty(ctx context.Context, path, iface, property string, value cty.Value) error {
	h, err := b.lookup(path, iface)
	if err != nil {
		return err
	}

	var setErr error
	err = b.run(ctx, func() {
		setErr = h.SetProperty(ctx, iface, property, value)
	})
	if err != nil {
		return err
	}
	return setErr
}

// callReserved answers the transport-provided interfaces. Properties.Get and
// Properties.Set take the target interface name as their first argument and
// route to that interface's registered property closures.
func (b *Bus) callReserved(ctx context.Context, path, iface, method string, args []cty.Value) ([]cty.Value, error) {
	switch {
	case iface == transport.PeerInterface && method == "Ping":
		return nil, nil

	case iface == transport.PropertiesInterface && method == "Get":
		if len(args) != 2 || args[0].Type() != cty.String || args[1].Type() != cty.String {
			return nil, transport.NewCallError(iface, "Get takes (interface, property) string arguments")
		}
		value, err := b.GetProperty(ctx, path, args[0].AsString(), args[1].AsString())
		if err != nil {
			return nil, err
		}
		return []cty.Value{value}, nil

	case iface == transport.PropertiesInterface && method == "Set":
		if len(args) != 3 || args[0].Type() != cty.String || args[1].Type() != cty.String {
			return nil, transport.NewCallError(iface, "Set takes (interface, property, value) arguments")
		}
		return nil, b.SetProperty(ctx, path, args[0].AsString(), args[1].AsString(), args[2])
	}
	return nil, transport.NewCallError(iface, "unknown method %s", method)
}
