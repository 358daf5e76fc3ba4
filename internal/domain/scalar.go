package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var errNotScalar = errors.New("value must be a string, boolean or number")

// Scalar holds a JSON scalar: a string, a boolean, a number, or null.
// The zero value is null.
type Scalar struct {
	value any
}

// StringScalar wraps a string.
func StringScalar(s string) Scalar { return Scalar{value: s} }

// BoolScalar wraps a boolean.
func BoolScalar(b bool) Scalar { return Scalar{value: b} }

// NumberScalar wraps a number literal such as "3" or "2.5".
func NumberScalar(n string) Scalar { return Scalar{value: json.Number(n)} }

// IsNull reports whether no value is held.
func (s Scalar) IsNull() bool { return s.value == nil }

// Text returns the held string, if the scalar is a string.
func (s Scalar) Text() (string, bool) {
	v, ok := s.value.(string)
	return v, ok
}

// Bool returns the held boolean, if the scalar is a boolean.
func (s Scalar) Bool() (bool, bool) {
	v, ok := s.value.(bool)
	return v, ok
}

// Truthy reports whether the scalar is boolean true or the string "true".
func (s Scalar) Truthy() bool {
	switch v := s.value.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// Normalize renders the value the way answers are stored: booleans as
// "true"/"false", numbers as their literal, strings unchanged.
func (s Scalar) Normalize() string {
	switch v := s.value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	}
	return ""
}

func (s Scalar) String() string {
	if s.IsNull() {
		return "null"
	}
	return s.Normalize()
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if s.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch v.(type) {
	case nil, string, bool, json.Number:
		s.value = v
		return nil
	default:
		return fmt.Errorf("%w, got %s", errNotScalar, bytes.TrimSpace(data))
	}
}
