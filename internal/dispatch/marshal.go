package dispatch

import (
	"context"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/objectbus/internal/catalog"
)

var (
	ctxType      = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType      = reflect.TypeOf((*error)(nil)).Elem()
	ctyValueType = reflect.TypeOf(cty.Value{})
)

// invokeWire calls a handler function with wire arguments. Each wire value
// is first converted to its declared type and then unmarshaled into the
// corresponding handler parameter; a parameter of type cty.Value receives
// the converted value as-is. The handler may take a leading context.Context
// and may return a trailing error, which is split off and returned
// separately. A handler whose parameter count does not match the declaration
// is a programming error and panics.
func invokeWire(ctx context.Context, fn any, declared []catalog.Arg, args []cty.Value) ([]reflect.Value, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()

	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == ctxType {
		offset = 1
	}
	if ft.NumIn() != len(declared)+offset {
		panic(fmt.Sprintf("handler %s takes %d arguments but the declaration has %d", ft, ft.NumIn()-offset, len(declared)))
	}

	params := make([]reflect.Value, 0, ft.NumIn())
	if offset == 1 {
		params = append(params, reflect.ValueOf(ctx))
	}
	for i, arg := range args {
		converted, err := convert.Convert(arg, declared[i].Type)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", declared[i].Name, err)
		}
		target := ft.In(i + offset)
		if target == ctyValueType {
			params = append(params, reflect.ValueOf(converted))
			continue
		}
		ptr := reflect.New(target)
		if err := gocty.FromCtyValue(converted, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("argument %s: %w", declared[i].Name, err)
		}
		params = append(params, ptr.Elem())
	}

	results := fv.Call(params)
	if ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errType {
		errv := results[ft.NumOut()-1]
		results = results[:ft.NumOut()-1]
		if !errv.IsNil() {
			return results, errv.Interface().(error)
		}
	}
	return results, nil
}

// wireValue marshals one handler result to its declared wire type. Declared
// types are enforced: a Go value that cannot represent the declared type is
// an error, not a silent pass-through.
func wireValue(v reflect.Value, ty cty.Type) (cty.Value, error) {
	if v.Type() == ctyValueType {
		return convert.Convert(v.Interface().(cty.Value), ty)
	}
	return gocty.ToCtyValue(v.Interface(), ty)
}

// wireValues marshals an ordered result list against the declared out
// arguments. A result count that differs from the declaration indicates the
// service's own code is broken, so it panics rather than producing a
// protocol reply.
func wireValues(results []reflect.Value, declared []catalog.Arg) ([]cty.Value, error) {
	if len(results) != len(declared) {
		panic(fmt.Sprintf("handler returned %d values but the declaration has %d out arguments", len(results), len(declared)))
	}
	out := make([]cty.Value, 0, len(declared))
	for i, r := range results {
		wv, err := wireValue(r, declared[i].Type)
		if err != nil {
			return nil, fmt.Errorf("out argument %s: %w", declared[i].Name, err)
		}
		out = append(out, wv)
	}
	return out, nil
}
