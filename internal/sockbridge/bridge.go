// Package sockbridge forwards every signal broadcast on a local bus to a
// socket.io endpoint, so external observers can watch the bus without
// speaking its in-process protocol. Forwarding is one-way and best-effort:
// a dropped connection never affects dispatch.
package sockbridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/objectbus/internal/ctxlog"
	"github.com/vk/objectbus/internal/localbus"
)

// Config describes the endpoint the bridge connects to.
type Config struct {
	URL                string
	Namespace          string
	EventName          string // socket.io event name; defaults to "signal"
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
}

// Bridge is a running bus-to-socket.io forwarder.
type Bridge struct {
	io     *socket.Socket
	cancel func()
}

// Start connects to the socket.io endpoint and subscribes to the bus. It
// returns once the connection is established or the timeout expires.
func Start(ctx context.Context, bus *localbus.Bus, cfg Config) (*Bridge, error) {
	logger := ctxlog.FromContext(ctx).With("component", "sockbridge", "url", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	eventName := cfg.EventName
	if eventName == "" {
		eventName = "signal"
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	var isConnected atomic.Bool
	connected := make(chan error, 1)

	io.On(types.EventName("connect"), func(...any) {
		if isConnected.CompareAndSwap(false, true) {
			logger.Info("Connected to signal endpoint.", "namespace", cfg.Namespace, "sid", io.Id())
			connected <- nil
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		if isConnected.Load() {
			return
		}
		if err, ok := errs[0].(error); ok {
			connected <- err
		} else {
			connected <- fmt.Errorf("connect_error: %v", errs[0])
		}
	})

	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URL, err)
		}
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out connecting to %s", cfg.URL)
	case <-ctx.Done():
		io.Disconnect()
		return nil, ctx.Err()
	}

	cancel := bus.Subscribe(func(sig localbus.Signal) {
		payload, err := encodeSignal(sig)
		if err != nil {
			logger.Warn("Failed to encode signal, dropping.", "signal", sig.Name, "error", err)
			return
		}
		io.Emit(eventName, payload)
	})

	return &Bridge{io: io, cancel: cancel}, nil
}

// Close unsubscribes from the bus and disconnects the socket.
func (b *Bridge) Close() {
	b.cancel()
	b.io.Disconnect()
}

// encodeSignal renders one bus signal as a JSON-friendly map. Each argument
// is serialized with its own type, so the receiver can decode values without
// out-of-band schema knowledge.
func encodeSignal(sig localbus.Signal) (map[string]any, error) {
	args := make([]any, 0, len(sig.Args))
	for _, arg := range sig.Args {
		raw, err := ctyjson.Marshal(arg, arg.Type())
		if err != nil {
			return nil, err
		}
		args = append(args, string(raw))
	}
	return map[string]any{
		"path":      sig.Path,
		"interface": sig.Interface,
		"signal":    sig.Name,
		"args":      args,
	}, nil
}
