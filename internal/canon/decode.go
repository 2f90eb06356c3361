package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Decode parses JSON into a canonical Value with strict validation.
// Numbers must be integral and fit int64; fractional or exponent forms are
// rejected because they cannot appear in a hash pre-image. JSON null decodes
// to Null. Trailing data after the first value is an error.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode canonical value: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode canonical value: trailing data after JSON value")
	}

	return FromGo(raw)
}

// DecodeObject is like Decode but requires the top-level value to be an object.
func DecodeObject(data []byte) (Object, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("decode canonical object: top-level value is %T, not an object", v)
	}
	return obj, nil
}

// numberToInt converts a json.Number literal to Int, rejecting floats.
func numberToInt(s string) (Value, error) {
	if strings.ContainsAny(s, ".eE") {
		return nil, fmt.Errorf("floats are forbidden in canonical records: %s", s)
	}
	n, err := json.Number(s).Int64()
	if err != nil {
		return nil, fmt.Errorf("number out of int64 range: %s", s)
	}
	return Int(n), nil
}
