// Package transport defines the minimal connection boundary the dispatch
// runtime depends on. A Connection registers an object path + interface name
// with three closures (method call, property get, property set) and offers a
// broadcast primitive for signals. Everything else about the transport (its
// event loop, peers, delivery) is the transport's own business.
package transport

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Reserved interface names. These are always provided by the transport layer
// itself and must never appear in an author-supplied interface manifest.
const (
	PropertiesInterface = "objectbus.Properties"
	PeerInterface       = "objectbus.Peer"
)

// PropertiesChangedSignal is the name of the broadcast emitted on
// PropertiesInterface when one or more properties of an object change.
// Its arguments are: interface name, object of changed name → new value,
// list of invalidated property names.
const PropertiesChangedSignal = "PropertiesChanged"

// CallFunc handles one inbound method call.
type CallFunc func(ctx context.Context, iface, method string, args []cty.Value) ([]cty.Value, error)

// GetFunc handles one inbound property read.
type GetFunc func(ctx context.Context, iface, property string) (cty.Value, error)

// SetFunc handles one inbound property write.
type SetFunc func(ctx context.Context, iface, property string, value cty.Value) error

// Handlers bundles the three closures registered for one path + interface.
type Handlers struct {
	Call        CallFunc
	GetProperty GetFunc
	SetProperty SetFunc
}

// Connection is the surface the dispatch runtime needs from a transport.
type Connection interface {
	// RegisterObject attaches the handlers for one interface of the object
	// at path. Registering the same path + interface twice is an error.
	RegisterObject(path, iface string, h Handlers) error

	// EmitSignal broadcasts a named signal with typed arguments from the
	// given path and interface. Delivery is fire-and-forget.
	EmitSignal(ctx context.Context, path, iface, signal string, args []cty.Value) error
}
