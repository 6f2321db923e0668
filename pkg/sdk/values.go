package sdk

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is the runtime representation of an object literal. Keys keep
// insertion order, which JSON.stringify and the builders rely on.
type Object = orderedmap.OrderedMap[string, any]

// NewObject creates an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// UndefinedType is the type of Undefined.
type UndefinedType struct{}

// Undefined is the runtime value of `undefined`, distinct from null (nil).
var Undefined = UndefinedType{}

func (UndefinedType) String() string { return "undefined" }

// MarshalJSON encodes undefined as null when it leaks into host JSON.
func (UndefinedType) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// IsNullish reports whether v is null or undefined.
func IsNullish(v any) bool {
	if v == nil {
		return true
	}
	_, ok := v.(UndefinedType)
	return ok
}

// ToNative converts interpreter values into plain Go data: Objects become
// map[string]any, arrays are copied recursively and undefined becomes nil.
// Host values are returned unchanged.
func ToNative(v any) any {
	switch val := v.(type) {
	case *Object:
		if val == nil {
			return nil
		}
		out := make(map[string]any, val.Len())
		for pair := val.Oldest(); pair != nil; pair = pair.Next() {
			if _, skip := pair.Value.(UndefinedType); skip {
				continue
			}
			out[pair.Key] = ToNative(pair.Value)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ToNative(item)
		}
		return out
	case UndefinedType:
		return nil
	default:
		return v
	}
}

// FromNative converts plain Go data into interpreter values. Maps become
// Objects with keys in sorted order so conversion is deterministic.
func FromNative(v any) any {
	switch val := v.(type) {
	case map[string]any:
		obj := NewObject()
		for _, k := range sortedKeys(val) {
			obj.Set(k, FromNative(val[k]))
		}
		return obj
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = FromNative(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

// Lookup reads key from an Object, returning Undefined when absent.
func Lookup(obj *Object, key string) any {
	if obj == nil {
		return Undefined
	}
	if v, ok := obj.Get(key); ok {
		return v
	}
	return Undefined
}
