package script

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"slices"
	"time"

	"github.com/dukex/reportgen/pkg/models"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// ToStarlark converts a Go value into its Starlark counterpart. Maps become
// dicts, slices become lists, time.Time becomes a time value and nil becomes None.
// A json.Number becomes an int unless its literal has a fraction or an exponent.
func ToStarlark(v any) (starlark.Value, error) {
	switch value := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return value, nil
	case bool:
		return starlark.Bool(value), nil
	case string:
		return starlark.String(value), nil
	case []byte:
		return starlark.Bytes(value), nil
	case int:
		return starlark.MakeInt(value), nil
	case int32:
		return starlark.MakeInt64(int64(value)), nil
	case int64:
		return starlark.MakeInt64(value), nil
	case uint64:
		return starlark.MakeUint64(value), nil
	case *big.Int:
		return starlark.MakeBigInt(value), nil
	case json.Number:
		return ToStarlark(models.NormalizeNumbers(value))
	case float32:
		return starlark.Float(value), nil
	case float64:
		return starlark.Float(value), nil
	case time.Time:
		return starlarktime.Time(value), nil
	case time.Duration:
		return starlarktime.Duration(value), nil
	case map[string]any:
		dict := starlark.NewDict(len(value))

		keys := make([]string, 0, len(value))
		for key := range value {
			keys = append(keys, key)
		}

		slices.Sort(keys)

		for _, key := range keys {
			item, err := ToStarlark(value[key])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}

			if err := dict.SetKey(starlark.String(key), item); err != nil {
				return nil, err
			}
		}

		return dict, nil
	case []any:
		items := make([]starlark.Value, 0, len(value))

		for i, elem := range value {
			item, err := ToStarlark(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}

			items = append(items, item)
		}

		return starlark.NewList(items), nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}

		return ToStarlark(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}

		converted := make(map[string]any, rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			converted[iter.Key().String()] = iter.Value().Interface()
		}

		return ToStarlark(converted)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return starlark.MakeUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return starlark.Float(rv.Float()), nil
	}

	return nil, fmt.Errorf("cannot convert %T to a script value", v)
}

// FromStarlark converts a Starlark value into plain Go values suitable for JSON
// encoding and template rendering. Dict keys must be strings.
func FromStarlark(v starlark.Value) (any, error) {
	switch value := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(value), nil
	case starlark.String:
		return string(value), nil
	case starlark.Bytes:
		return string(value), nil
	case starlark.Int:
		if i, ok := value.Int64(); ok {
			return i, nil
		}

		return new(big.Int).Set(value.BigInt()), nil
	case starlark.Float:
		return float64(value), nil
	case starlarktime.Time:
		return time.Time(value), nil
	case starlarktime.Duration:
		return time.Duration(value).String(), nil
	case *starlark.Dict:
		converted := make(map[string]any, value.Len())

		for _, item := range value.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("dict key %s is not a string", item[0].String())
			}

			elem, err := FromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}

			converted[key] = elem
		}

		return converted, nil
	case starlark.Indexable:
		converted := make([]any, 0, value.Len())

		for i := range value.Len() {
			elem, err := FromStarlark(value.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}

			converted = append(converted, elem)
		}

		return converted, nil
	}

	return nil, fmt.Errorf("cannot convert script value of type %s", v.Type())
}
