package canon

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// FixedPointScale is the scale applied to fractional quantities before they
// may enter a hash pre-image. A probability of 0.25 is stored as 250000.
const FixedPointScale int64 = 1_000_000

// Value is a sealed interface over the value kinds allowed in a canonical
// record: Null, String, Int, Bool, Array and Object.
// There is no float kind.
type Value interface {
	canonValue()
}

// Null is the JSON null value.
type Null struct{}

func (Null) canonValue() {}

// MarshalJSON lets values embedded in ordinary JSON responses encode null as
// null rather than as an empty object.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a UTF-8 string value.
type String string

func (String) canonValue() {}

// Int is an integer value. Always int64, never float64.
type Int int64

func (Int) canonValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) canonValue() {}

// Array is an ordered list of values. Order is significant.
type Array []Value

func (Array) canonValue() {}

// Object maps field names to values. Use SortedKeys for deterministic
// iteration.
type Object map[string]Value

func (Object) canonValue() {}

// SortedKeys returns the object's keys in canonical order.
// Go string comparison is byte-wise, which is exactly UTF-8 byte order (and
// code point order, which is what the ledger-writing side sorts by).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a deep copy of the object.
func (obj Object) Clone() Object {
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case Object:
		return val.Clone()
	case Array:
		arr := make(Array, len(val))
		for i, elem := range val {
			arr[i] = cloneValue(elem)
		}
		return arr
	default:
		return v
	}
}

// FixedPoint converts a fractional quantity to its pre-scaled integer form,
// round(f * FixedPointScale). Rounds half away from zero.
// Returns an error for NaN, infinities and values that overflow int64.
func FixedPoint(f float64) (Int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("fixed point: non-finite value %v", f)
	}
	scaled := math.Round(f * float64(FixedPointScale))
	if scaled >= math.MaxInt64 || scaled < math.MinInt64 {
		return 0, fmt.Errorf("fixed point: %v overflows int64 after scaling", f)
	}
	return Int(int64(scaled)), nil
}

// FromGo converts a plain Go value into a canonical Value.
// Accepted: nil, Value, string, bool, all integer kinds, json.Number (integral
// only), []any, map[string]any, map[string]string. Floats are rejected.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUnsigned(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUnsigned(val)
	case json.Number:
		return numberToInt(string(val))
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in canonical records: %v (convert with FixedPoint)", val)
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
	case map[string]string:
		obj := make(Object, len(val))
		for k, elem := range val {
			obj[k] = String(elem)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical records: %T", v)
	}
}

func fromUnsigned(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d out of int64 range", u)
	}
	return Int(int64(u)), nil
}
