// Package localbus is an in-process message bus implementing the transport
// boundary. Inbound operations (method calls, property reads and writes) are
// executed one at a time on a single dispatch goroutine, so registered
// handlers never run concurrently with each other; handlers must return
// promptly and must not call back into the bus synchronously. Signal
// broadcast is fire-and-forget through a separate delivery goroutine.
//
// The bus itself provides the two reserved interfaces: objectbus.Peer (Ping)
// and objectbus.Properties (Get/Set routed to the registered property
// closures of the addressed interface).
package localbus

import (
	"context"
	"errors"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/objectbus/internal/transport"
)

// ErrClosed is returned for any operation against a closed bus.
var ErrClosed = errors.New("localbus: bus is closed")

// Signal is one broadcast event as seen by a subscriber.
type Signal struct {
	Path      string
	Interface string
	Name      string
	Args      []cty.Value
}

type objectKey struct {
	path  string
	iface string
}

// Bus is a loopback transport connection.
type Bus struct {
	mu      sync.Mutex
	objects map[objectKey]transport.Handlers
	subs    map[int]func(Signal)
	nextSub int

	events    chan func()
	signals   chan Signal
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a bus and starts its dispatch and delivery goroutines.
func New() *Bus {
	b := &Bus{
		objects: make(map[objectKey]transport.Handlers),
		subs:    make(map[int]func(Signal)),
		events:  make(chan func()),
		signals: make(chan Signal, 64),
		done:    make(chan struct{}),
	}
	go b.dispatchLoop()
	go b.deliveryLoop()
	return b
}

// Close stops both loops. In-flight waiters receive ErrClosed.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Bus) dispatchLoop() {
	for {
		select {
		case job := <-b.events:
			job()
		case <-b.done:
			return
		}
	}
}

func (b *Bus) deliveryLoop() {
	for {
		select {
		case sig := <-b.signals:
			b.mu.Lock()
			subs := make([]func(Signal), 0, len(b.subs))
			for _, fn := range b.subs {
				subs = append(subs, fn)
			}
			b.mu.Unlock()
			for _, fn := range subs {
				fn(sig)
			}
		case <-b.done:
			return
		}
	}
}

// RegisterObject implements transport.Connection. Registering the same
// path + interface combination twice is an error.
func (b *Bus) RegisterObject(path, iface string, h transport.Handlers) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := objectKey{path, iface}
	if _, exists := b.objects[key]; exists {
		return errors.New("localbus: " + iface + " is already registered at " + path)
	}
	b.objects[key] = h
	return nil
}

// EmitSignal implements transport.Connection. The broadcast is queued for
// asynchronous delivery; the emitter does not await it.
func (b *Bus) EmitSignal(_ context.Context, path, iface, signal string, args []cty.Value) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case b.signals <- Signal{Path: path, Interface: iface, Name: signal, Args: args}:
		return nil
	case <-b.done:
		return ErrClosed
	}
}

// Subscribe registers a callback for every broadcast signal on the bus and
// returns a cancel function. The callback runs on the delivery goroutine.
func (b *Bus) Subscribe(fn func(Signal)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

func (b *Bus) lookup(path, iface string) (transport.Handlers, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.objects[objectKey{path, iface}]
	if !ok {
		return transport.Handlers{}, transport.NewCallError(iface, "no object registered at %s", path)
	}
	return h, nil
}

// run executes one job on the dispatch goroutine and waits for it.
func (b *Bus) run(ctx context.Context, job func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		job()
		close(ran)
	}
	select {
	case b.events <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-b.done:
		return ErrClosed
	}
}
