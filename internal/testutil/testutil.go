// Package testutil provides shared helpers for package tests: an inline
// manifest parser and a recording transport connection.
package testutil

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/objectbus/internal/catalog"
	"github.com/vk/objectbus/internal/transport"
)

// MustParseCatalog parses an inline manifest and fails the test on error.
func MustParseCatalog(t *testing.T, src string) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse(src)
	require.NoError(t, err)
	return cat
}

// EmittedSignal is one broadcast recorded by a RecordingConn.
type EmittedSignal struct {
	Path      string
	Interface string
	Name      string
	Args      []cty.Value
}

// RecordingConn is a transport.Connection test double: it stores every
// registration and every emitted signal for later assertions.
type RecordingConn struct {
	mu       sync.Mutex
	handlers map[string]transport.Handlers
	signals  []EmittedSignal
}

// NewRecordingConn creates an empty recording connection.
func NewRecordingConn() *RecordingConn {
	return &RecordingConn{handlers: make(map[string]transport.Handlers)}
}

func (c *RecordingConn) key(path, iface string) string {
	return path + "\x00" + iface
}

// RegisterObject implements transport.Connection.
func (c *RecordingConn) RegisterObject(path, iface string, h transport.Handlers) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[c.key(path, iface)] = h
	return nil
}

// EmitSignal implements transport.Connection.
func (c *RecordingConn) EmitSignal(_ context.Context, path, iface, signal string, args []cty.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = append(c.signals, EmittedSignal{Path: path, Interface: iface, Name: signal, Args: args})
	return nil
}

// Handlers returns the closures registered for one path + interface.
func (c *RecordingConn) Handlers(t *testing.T, path, iface string) transport.Handlers {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handlers[c.key(path, iface)]
	require.True(t, ok, "no handlers registered for %s at %s", iface, path)
	return h
}

// Registered reports whether a path + interface combination was registered.
func (c *RecordingConn) Registered(path, iface string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[c.key(path, iface)]
	return ok
}

// Signals returns a copy of every recorded broadcast.
func (c *RecordingConn) Signals() []EmittedSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]EmittedSignal(nil), c.signals...)
}

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}
