package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/objectbus/internal/dispatch"
	"github.com/vk/objectbus/internal/registry"
	"github.com/vk/objectbus/internal/testutil"
	"github.com/vk/objectbus/internal/transport"
)

const echoManifest = `
	interface "com.example.Echo" {
		method "Echo" {
			in "message" {
				type = string
			}
			out "reply" {
				type = string
			}
		}

		method "Fail" {}

		method "Stats" {
			out "count" {
				type = number
			}
			out "label" {
				type = string
			}
		}

		signal "Pinged" {
			arg "count" {
				type = number
			}
		}

		property "Greeting" {
			type   = string
			access = "readwrite"
		}

		property "Muted" {
			type   = bool
			access = "readwrite"
		}

		property "Cache" {
			type   = string
			access = "readwrite"
		}

		property "Limit" {
			type   = number
			access = "readwrite"
		}

		property "Version" {
			type = string
		}
	}
`

const (
	echoIface = "com.example.Echo"
	echoPath  = "/com/example/Echo"
)

// echoState is the receiver the test handlers close over.
type echoState struct {
	greeting string
	muted    bool
	cache    string
	limit    int64
}

func echoBinding(t *testing.T, state *echoState) *registry.Binding {
	t.Helper()
	cat := testutil.MustParseCatalog(t, echoManifest)
	b, err := registry.NewTemplate(cat).
		Method("Echo", func(ctx context.Context, message string) string { return message + "!" }).
		Method("Fail", func() error { return errors.New("boom") }).
		Method("Stats", func() (int64, string) { return 2, "ok" }).
		Signal("Pinged", func(count int64) int64 { return count * 2 }).
		Getter("Greeting", func() string { return state.greeting }).
		Setter("Greeting", func(v string) { state.greeting = v }).
		Getter("Muted", func() bool { return state.muted }, registry.NoNotify()).
		Setter("Muted", func(v bool) { state.muted = v }).
		Getter("Cache", func() string { return state.cache }, registry.InvalidateOnly()).
		Setter("Cache", func(v string) { state.cache = v }).
		Getter("Limit", func() int64 { return state.limit }).
		Setter("Limit", func(v int64) { state.limit = v }).
		Getter("Version", func() string { return "1.0" }).
		Bind()
	require.NoError(t, err)
	return b
}

func setupEchoObject(t *testing.T) (*dispatch.Object, *testutil.RecordingConn, *echoState) {
	t.Helper()
	state := &echoState{greeting: "hello"}
	conn := testutil.NewRecordingConn()
	obj, err := dispatch.Register(context.Background(), conn, echoPath, echoBinding(t, state))
	require.NoError(t, err)
	return obj, conn, state
}

func TestRegister_AttachesEveryInterface(t *testing.T) {
	t.Parallel()
	obj, conn, _ := setupEchoObject(t)

	require.Equal(t, echoPath, obj.Path())
	require.True(t, conn.Registered(echoPath, echoIface))
}

func TestRegister_OnlyOncePerBinding(t *testing.T) {
	t.Parallel()
	state := &echoState{}
	b := echoBinding(t, state)
	conn := testutil.NewRecordingConn()

	_, err := dispatch.Register(context.Background(), conn, echoPath, b)
	require.NoError(t, err)

	_, err = dispatch.Register(context.Background(), conn, "/another/path", b)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Register can only be called once for a binding")
}

func TestCall_Echo(t *testing.T) {
	t.Parallel()
	_, conn, _ := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	out, err := h.Call(context.Background(), echoIface, "Echo", []cty.Value{cty.StringVal("hi")})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].RawEquals(cty.StringVal("hi!")))
}

func TestCall_MultipleOutArguments(t *testing.T) {
	t.Parallel()
	_, conn, _ := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	out, err := h.Call(context.Background(), echoIface, "Stats", nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, out[0].RawEquals(cty.NumberIntVal(2)))
	require.True(t, out[1].RawEquals(cty.StringVal("ok")))
}

func TestCall_UnknownMethod(t *testing.T) {
	t.Parallel()
	_, conn, _ := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	_, err := h.Call(context.Background(), echoIface, "Vanish", nil)
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, echoIface, ce.Interface)
	require.Contains(t, ce.Message, "unknown method Vanish")
}

func TestCall_WrongArgumentCount(t *testing.T) {
	t.Parallel()
	_, conn, _ := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	_, err := h.Call(context.Background(), echoIface, "Echo", nil)
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Message, "method Echo takes 1 arguments, got 0")
}

func TestCall_ArgumentConversionFailure(t *testing.T) {
	t.Parallel()
	_, conn, _ := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	_, err := h.Call(context.Background(), echoIface, "Echo", []cty.Value{cty.ListValEmpty(cty.String)})
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Message, "argument message")
}

func TestCall_HandlerErrorDoesNotPoisonObject(t *testing.T) {
	t.Parallel()
	_, conn, _ := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	_, err := h.Call(context.Background(), echoIface, "Fail", nil)
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, echoIface, ce.Interface)
	require.Equal(t, "boom", ce.Message)

	// The object keeps serving after a handler failure.
	out, err := h.Call(context.Background(), echoIface, "Echo", []cty.Value{cty.StringVal("still here")})
	require.NoError(t, err)
	require.True(t, out[0].RawEquals(cty.StringVal("still here!")))
}

func TestGetProperty(t *testing.T) {
	t.Parallel()
	_, conn, _ := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	value, err := h.GetProperty(context.Background(), echoIface, "Greeting")
	require.NoError(t, err)
	require.True(t, value.RawEquals(cty.StringVal("hello")))

	_, err = h.GetProperty(context.Background(), echoIface, "Nope")
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Message, "unknown property Nope")
}

func TestSetProperty_NotifiesWithValue(t *testing.T) {
	t.Parallel()
	_, conn, state := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	err := h.SetProperty(context.Background(), echoIface, "Greeting", cty.StringVal("hey"))
	require.NoError(t, err)
	require.Equal(t, "hey", state.greeting)

	sigs := conn.Signals()
	require.Len(t, sigs, 1)
	require.Equal(t, echoPath, sigs[0].Path)
	require.Equal(t, transport.PropertiesInterface, sigs[0].Interface)
	require.Equal(t, transport.PropertiesChangedSignal, sigs[0].Name)
	require.Len(t, sigs[0].Args, 3)
	require.True(t, sigs[0].Args[0].RawEquals(cty.StringVal(echoIface)))
	require.True(t, sigs[0].Args[1].RawEquals(cty.ObjectVal(map[string]cty.Value{
		"Greeting": cty.StringVal("hey"),
	})))
	require.True(t, sigs[0].Args[2].RawEquals(cty.ListValEmpty(cty.String)))
}

func TestSetProperty_NotifiesDeclaredType(t *testing.T) {
	t.Parallel()
	_, conn, state := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	// A convertible write lands as the declared type, and the notification
	// carries the converted value rather than the caller's raw encoding.
	err := h.SetProperty(context.Background(), echoIface, "Limit", cty.StringVal("7"))
	require.NoError(t, err)
	require.EqualValues(t, 7, state.limit)

	sigs := conn.Signals()
	require.Len(t, sigs, 1)
	require.True(t, sigs[0].Args[1].RawEquals(cty.ObjectVal(map[string]cty.Value{
		"Limit": cty.NumberIntVal(7),
	})))

	// An inconvertible write fails before the setter runs and notifies
	// nothing further.
	err = h.SetProperty(context.Background(), echoIface, "Limit", cty.ListValEmpty(cty.String))
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)
	require.Len(t, conn.Signals(), 1)
	require.EqualValues(t, 7, state.limit)
}

func TestSetProperty_InvalidateOnly(t *testing.T) {
	t.Parallel()
	_, conn, state := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	err := h.SetProperty(context.Background(), echoIface, "Cache", cty.StringVal("warm"))
	require.NoError(t, err)
	require.Equal(t, "warm", state.cache)

	sigs := conn.Signals()
	require.Len(t, sigs, 1)
	require.True(t, sigs[0].Args[1].RawEquals(cty.EmptyObjectVal))
	require.True(t, sigs[0].Args[2].RawEquals(cty.ListVal([]cty.Value{cty.StringVal("Cache")})))
}

func TestSetProperty_NoNotify(t *testing.T) {
	t.Parallel()
	_, conn, state := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	err := h.SetProperty(context.Background(), echoIface, "Muted", cty.True)
	require.NoError(t, err)
	require.True(t, state.muted)
	require.Empty(t, conn.Signals())
}

func TestSetProperty_ReadOnly(t *testing.T) {
	t.Parallel()
	_, conn, _ := setupEchoObject(t)
	h := conn.Handlers(t, echoPath, echoIface)

	err := h.SetProperty(context.Background(), echoIface, "Version", cty.StringVal("2.0"))
	var ce *transport.CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Message, "property Version is read-only")

	// A rejected write must not notify.
	require.Empty(t, conn.Signals())
}

func TestEmit_HookOverridesArguments(t *testing.T) {
	t.Parallel()
	obj, conn, _ := setupEchoObject(t)

	// The interface is auto-detected; the Pinged hook doubles the count.
	err := obj.Emit(context.Background(), "", "Pinged", int64(3))
	require.NoError(t, err)

	sigs := conn.Signals()
	require.Len(t, sigs, 1)
	require.Equal(t, echoIface, sigs[0].Interface)
	require.Equal(t, "Pinged", sigs[0].Name)
	require.Len(t, sigs[0].Args, 1)
	require.True(t, sigs[0].Args[0].RawEquals(cty.NumberIntVal(6)))
}

func TestEmit_UnknownSignal(t *testing.T) {
	t.Parallel()
	obj, _, _ := setupEchoObject(t)

	err := obj.Emit(context.Background(), "", "Vanished")
	require.Error(t, err)
	require.Contains(t, err.Error(), "signal Vanished is not defined in any interface")

	err = obj.Emit(context.Background(), "com.example.Echo", "Vanished")
	require.Error(t, err)
	require.Contains(t, err.Error(), "signal Vanished is not defined for interface com.example.Echo")
}

func TestEmit_WrongArityPanics(t *testing.T) {
	t.Parallel()
	obj, _, _ := setupEchoObject(t)

	require.Panics(t, func() {
		_ = obj.Emit(context.Background(), "", "Pinged")
	})
}

func TestPropertiesChanged_BatchesPolicies(t *testing.T) {
	t.Parallel()
	obj, conn, state := setupEchoObject(t)
	state.greeting = "howdy"
	state.cache = "stale"

	// Greeting notifies with value, Cache is invalidate-only, Muted opted
	// out entirely; everything lands in a single event.
	err := obj.PropertiesChanged(context.Background(), echoIface, "Greeting", "Cache", "Muted")
	require.NoError(t, err)

	sigs := conn.Signals()
	require.Len(t, sigs, 1)
	require.Equal(t, transport.PropertiesInterface, sigs[0].Interface)
	require.True(t, sigs[0].Args[0].RawEquals(cty.StringVal(echoIface)))
	require.True(t, sigs[0].Args[1].RawEquals(cty.ObjectVal(map[string]cty.Value{
		"Greeting": cty.StringVal("howdy"),
	})))
	require.True(t, sigs[0].Args[2].RawEquals(cty.ListVal([]cty.Value{cty.StringVal("Cache")})))
}

func TestPropertiesChanged_UnknownNameEmitsNothing(t *testing.T) {
	t.Parallel()
	obj, conn, _ := setupEchoObject(t)

	err := obj.PropertiesChanged(context.Background(), echoIface, "Greeting", "Nope")
	require.Error(t, err)
	require.Contains(t, err.Error(), "property Nope is not defined for interface com.example.Echo")
	require.Empty(t, conn.Signals())

	err = obj.PropertiesChanged(context.Background(), "com.example.Ghost", "Greeting")
	require.Error(t, err)
	require.Contains(t, err.Error(), "interface com.example.Ghost is not defined in the manifest")
	require.Empty(t, conn.Signals())
}

func TestPropertiesChanged_AllOptedOut(t *testing.T) {
	t.Parallel()
	obj, conn, _ := setupEchoObject(t)

	err := obj.PropertiesChanged(context.Background(), echoIface, "Muted")
	require.NoError(t, err)
	require.Empty(t, conn.Signals())
}
