package script

import (
	"fmt"
	"reflect"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
)

func toStarlark(v any) (starlark.Value, error) {
	switch v := v.(type) {

	case nil:
		return starlark.None, nil
	case starlark.Value:
		return v, nil

	case bool:
		return starlark.Bool(v), nil

	case string:
		return starlark.String(v), nil
	case []byte:
		return starlark.Bytes(v), nil

	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case uint64:
		return starlark.MakeUint64(v), nil

	case float32:
		return starlark.Float(v), nil
	case float64:
		return starlark.Float(v), nil

	case *html.Node:
		return elementStruct(v), nil
	case *dom.Event:
		return eventStruct(v)

	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil

	case map[string]any:
		d := starlark.NewDict(len(v))
		for k, val := range v {
			sv, err := toStarlark(val)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	}

	value := reflect.ValueOf(v)
	switch value.Kind() {

	case reflect.Bool:
		return starlark.Bool(value.Bool()), nil
	case reflect.String:
		return starlark.String(value.String()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(value.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return starlark.MakeUint64(value.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return starlark.Float(value.Float()), nil

	case reflect.Slice, reflect.Array:
		elems := make([]starlark.Value, value.Len())
		for i := range value.Len() {
			sv, err := toStarlark(value.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil

	case reflect.Map:
		d := starlark.NewDict(value.Len())
		iter := value.MapRange()
		for iter.Next() {
			k, err := toStarlark(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			val, err := toStarlark(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(k, val); err != nil {
				return nil, err
			}
		}
		return d, nil

	case reflect.Struct:
		typ := value.Type()
		d := starlark.NewDict(value.NumField())
		for i := range value.NumField() {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			val, err := toStarlark(value.Field(i).Interface())
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(field.Name), val); err != nil {
				return nil, err
			}
		}
		return d, nil

	case reflect.Pointer, reflect.Interface:
		elem := value.Elem()
		if !elem.IsValid() {
			return starlark.None, nil
		}
		return toStarlark(elem.Interface())
	}

	return nil, fmt.Errorf("script: unsupported type for starlark: %T", v)
}

func elementStruct(n *html.Node) starlark.Value {
	if n == nil {
		return starlark.None
	}
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"id":    starlark.String(dom.AttrOr(n, "id", "")),
		"tag":   starlark.String(dom.Tag(n)),
		"value": starlark.String(dom.Value(n)),
		"text":  starlark.String(dom.TextContent(n)),
	})
}

func eventStruct(ev *dom.Event) (starlark.Value, error) {
	detail, err := toStarlark(ev.Detail)
	if err != nil {
		return nil, err
	}
	value := ""
	if ev.Target != nil {
		value = dom.Value(ev.Target)
	}
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"type":   starlark.String(ev.Type),
		"key":    starlark.String(ev.Key),
		"value":  starlark.String(value),
		"target": elementStruct(ev.Target),
		"detail": detail,
	}), nil
}

func fromStarlark(v starlark.Value) any {
	switch v := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(v)
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i
		}
		return v.String()
	case starlark.Float:
		return float64(v)
	case starlark.String:
		return string(v)
	case starlark.Bytes:
		return []byte(v)
	case *starlark.List:
		out := make([]any, v.Len())
		for i := range v.Len() {
			out[i] = fromStarlark(v.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = fromStarlark(e)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key := item[0].String()
			if s, ok := item[0].(starlark.String); ok {
				key = string(s)
			}
			out[key] = fromStarlark(item[1])
		}
		return out
	case *starlarkstruct.Struct:
		d := make(starlark.StringDict)
		v.ToStringDict(d)
		out := make(map[string]any, len(d))
		for k, val := range d {
			out[k] = fromStarlark(val)
		}
		return out
	}
	return v.String()
}
