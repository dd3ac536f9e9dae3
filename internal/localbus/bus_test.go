package localbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/objectbus/internal/localbus"
	"github.com/vk/objectbus/internal/transport"
)

const testPath = "/com/example/Test"

// counterHandlers is a minimal registered object: one method that doubles a
// number, and a single string property.
func counterHandlers(property *cty.Value) transport.Handlers {
	return transport.Handlers{
		Call: func(ctx context.Context, iface, method string, args []cty.Value) ([]cty.Value, error) {
			if method != "Double" {
				return nil, transport.NewCallError(iface, "unknown method %s", method)
			}
			doubled := args[0].Multiply(cty.NumberIntVal(2))
			return []cty.Value{doubled}, nil
		},
		GetProperty: func(ctx context.Context, iface, prop string) (cty.Value, error) {
			return *property, nil
		},
		SetProperty: func(ctx context.Context, iface, prop string, value cty.Value) error {
			*property = value
			return nil
		},
	}
}

func newTestBus(t *testing.T) (*localbus.Bus, *cty.Value) {
	t.Helper()
	b := localbus.New()
	t.Cleanup(b.Close)

	property := cty.StringVal("initial")
	require.NoError(t, b.RegisterObject(testPath, "com.example.Test", counterHandlers(&property)))
	return b, &property
}

func TestCall_RoundTrip(t *testing.T) {
	t.Parallel()
	b, _ := newTestBus(t)

	out, err := b.Call(context.Background(), testPath, "com.example.Test", "Double", cty.NumberIntVal(21))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].RawEquals(cty.NumberIntVal(42)))
}

func TestCall_HandlerErrorPassesThrough(t *testing.T) {
	t.Parallel()
	b, _ := newTestBus(t)

	_, err := b.Call(context.Background(), testPath, "com.example.Test", "Vanish")
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Message, "unknown method Vanish")
}

func TestCall_UnregisteredObject(t *testing.T) {
	t.Parallel()
	b, _ := newTestBus(t)

	_, err := b.Call(context.Background(), "/nowhere", "com.example.Test", "Double", cty.NumberIntVal(1))
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Message, "no object registered at /nowhere")
}

func TestRegisterObject_DuplicateFails(t *testing.T) {
	t.Parallel()
	b, property := newTestBus(t)

	err := b.RegisterObject(testPath, "com.example.Test", counterHandlers(property))
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered")

	// Same path, different interface is fine.
	require.NoError(t, b.RegisterObject(testPath, "com.example.Other", counterHandlers(property)))
}

func TestGetSetProperty(t *testing.T) {
	t.Parallel()
	b, _ := newTestBus(t)
	ctx := context.Background()

	value, err := b.GetProperty(ctx, testPath, "com.example.Test", "Anything")
	require.NoError(t, err)
	require.True(t, value.RawEquals(cty.StringVal("initial")))

	require.NoError(t, b.SetProperty(ctx, testPath, "com.example.Test", "Anything", cty.StringVal("updated")))

	value, err = b.GetProperty(ctx, testPath, "com.example.Test", "Anything")
	require.NoError(t, err)
	require.True(t, value.RawEquals(cty.StringVal("updated")))
}

func TestReserved_Ping(t *testing.T) {
	t.Parallel()
	b, _ := newTestBus(t)

	// Ping is answered by the bus itself, even for paths with no object.
	out, err := b.Call(context.Background(), "/nowhere", transport.PeerInterface, "Ping")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestReserved_PropertiesGetSet(t *testing.T) {
	t.Parallel()
	b, _ := newTestBus(t)
	ctx := context.Background()

	out, err := b.Call(ctx, testPath, transport.PropertiesInterface, "Get",
		cty.StringVal("com.example.Test"), cty.StringVal("Anything"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].RawEquals(cty.StringVal("initial")))

	_, err = b.Call(ctx, testPath, transport.PropertiesInterface, "Set",
		cty.StringVal("com.example.Test"), cty.StringVal("Anything"), cty.StringVal("via reserved"))
	require.NoError(t, err)

	out, err = b.Call(ctx, testPath, transport.PropertiesInterface, "Get",
		cty.StringVal("com.example.Test"), cty.StringVal("Anything"))
	require.NoError(t, err)
	require.True(t, out[0].RawEquals(cty.StringVal("via reserved")))
}

func TestReserved_BadArguments(t *testing.T) {
	t.Parallel()
	b, _ := newTestBus(t)
	ctx := context.Background()

	_, err := b.Call(ctx, testPath, transport.PropertiesInterface, "Get", cty.NumberIntVal(1))
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)

	_, err = b.Call(ctx, testPath, transport.PropertiesInterface, "GetAll")
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Message, "unknown method GetAll")
}

func TestSubscribe_ReceivesBroadcasts(t *testing.T) {
	t.Parallel()
	b, _ := newTestBus(t)

	received := make(chan localbus.Signal, 1)
	cancel := b.Subscribe(func(sig localbus.Signal) {
		received <- sig
	})
	defer cancel()

	args := []cty.Value{cty.StringVal("payload")}
	require.NoError(t, b.EmitSignal(context.Background(), testPath, "com.example.Test", "Changed", args))

	select {
	case sig := <-received:
		require.Equal(t, testPath, sig.Path)
		require.Equal(t, "com.example.Test", sig.Interface)
		require.Equal(t, "Changed", sig.Name)
		require.Len(t, sig.Args, 1)
		require.True(t, sig.Args[0].RawEquals(cty.StringVal("payload")))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the broadcast")
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	t.Parallel()
	b, _ := newTestBus(t)

	received := make(chan localbus.Signal, 8)
	cancel := b.Subscribe(func(sig localbus.Signal) {
		received <- sig
	})
	cancel()

	require.NoError(t, b.EmitSignal(context.Background(), testPath, "com.example.Test", "Changed", nil))

	select {
	case <-received:
		t.Fatal("received a broadcast after cancelling the subscription")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClosedBus(t *testing.T) {
	t.Parallel()
	b := localbus.New()
	property := cty.StringVal("x")
	require.NoError(t, b.RegisterObject(testPath, "com.example.Test", counterHandlers(&property)))
	b.Close()

	_, err := b.Call(context.Background(), testPath, "com.example.Test", "Double", cty.NumberIntVal(1))
	require.ErrorIs(t, err, localbus.ErrClosed)

	err = b.EmitSignal(context.Background(), testPath, "com.example.Test", "Changed", nil)
	require.ErrorIs(t, err, localbus.ErrClosed)
}
