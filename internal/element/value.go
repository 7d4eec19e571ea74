package element

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Value is a sealed interface over the attribute value types an element may
// carry. Only Null, String, Int, Float, Bool, Array and Object implement it.
type Value interface {
	attrValue()
}

// Null is an explicit JSON null (e.g. an unset link or roundness).
type Null struct{}

func (Null) attrValue() {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string attribute.
type String string

func (String) attrValue() {}

// Int is an integer attribute. Always int64.
type Int int64

func (Int) attrValue() {}

// Float is a finite, non-integral number attribute (e.g. a fractional
// coordinate). Decoding turns integral numbers inside the int64 range into
// Int, so a value keeps its type through canonical encoding.
type Float float64

func (Float) attrValue() {}

// MarshalJSON implements json.Marshaler using the canonical number form.
func (f Float) MarshalJSON() ([]byte, error) {
	s, err := formatFloat(float64(f))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Bool is a boolean attribute.
type Bool bool

func (Bool) attrValue() {}

// Array is an ordered list of attribute values (e.g. arrow points).
type Array []Value

func (Array) attrValue() {}

// Object maps attribute names to values.
// Iterate with SortedKeys for deterministic output.
type Object map[string]Value

func (Object) attrValue() {}

// SortedKeys returns the keys in canonical (UTF-16 code unit) order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sortCanonical(keys)
	return keys
}

// Clone returns a deep copy of the object.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case Array:
		out := make(Array, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case Object:
		return val.Clone()
	default:
		return v
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (obj *Object) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	if _, isNull := v.(Null); isNull {
		*obj = nil
		return nil
	}
	o, ok := v.(Object)
	if !ok {
		return fmt.Errorf("attrs: expected object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (arr *Array) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	a, ok := v.(Array)
	if !ok {
		return fmt.Errorf("expected array, got %T", v)
	}
	*arr = a
	return nil
}

// ParseValue decodes a single JSON value into a Value.
// Integral numbers inside the int64 range become Int, other numbers Float.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// FromGo converts decoded Go data (from encoding/json with UseNumber, or
// from YAML) into a Value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		if !strings.ContainsAny(string(val), ".eE") {
			if n, err := val.Int64(); err == nil {
				return Int(n), nil
			}
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number out of range: %s", val)
		}
		return numberValue(f)
	case float64:
		return numberValue(val)
	case float32:
		return numberValue(float64(val))
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type: %T", v)
	}
}

// numberValue narrows a decoded float to Int when it is integral and fits
// in int64.
func numberValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("number is not finite: %v", f)
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return Int(int64(f)), nil
	}
	return Float(f), nil
}
