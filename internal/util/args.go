// Package util provides argument coercion and validation helpers for the
// loosely-typed argument maps that travel inside coordination messages.
// Values may arrive as native Go types (in-process transport) or as the
// types encoding/json produces (float64 numbers, map[string]any), so every
// accessor accepts both.
package util

import (
	"fmt"
	"strconv"
)

// ValidationError reports a single argument that failed validation, with
// enough detail for the caller to return a structured error result.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// Int64Arg extracts an integer argument, coercing JSON numbers and numeric
// strings.
func Int64Arg(args map[string]any, key string) (int64, error) {
	raw, ok := args[key]
	if !ok {
		return 0, &ValidationError{Field: key, Message: "required field is missing"}
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, &ValidationError{Field: key, Value: raw, Message: "expected an integer"}
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, &ValidationError{Field: key, Value: raw, Message: "expected an integer"}
		}
		return n, nil
	default:
		return 0, &ValidationError{Field: key, Value: raw, Message: fmt.Sprintf("expected an integer, got %T", raw)}
	}
}

// IntArg is Int64Arg narrowed to int.
func IntArg(args map[string]any, key string) (int, error) {
	n, err := Int64Arg(args, key)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// OptionalIntArg returns def when the key is absent or nil.
func OptionalIntArg(args map[string]any, key string, def int) (int, error) {
	if raw, ok := args[key]; !ok || raw == nil {
		return def, nil
	}
	return IntArg(args, key)
}

// StringArg extracts a string argument.
func StringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", &ValidationError{Field: key, Message: "required field is missing"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Field: key, Value: raw, Message: fmt.Sprintf("expected a string, got %T", raw)}
	}
	return s, nil
}

// OptionalStringArg returns def when the key is absent or nil.
func OptionalStringArg(args map[string]any, key, def string) (string, error) {
	if raw, ok := args[key]; !ok || raw == nil {
		return def, nil
	}
	return StringArg(args, key)
}

// BoolArg extracts a boolean argument, defaulting to false when absent.
func BoolArg(args map[string]any, key string) (bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, &ValidationError{Field: key, Value: raw, Message: fmt.Sprintf("expected a boolean, got %T", raw)}
	}
	return b, nil
}

// StringMapArg extracts a string-to-string map, coercing map[string]any
// values produced by JSON decoding.
func StringMapArg(args map[string]any, key string) (map[string]string, error) {
	raw, ok := args[key]
	if !ok {
		return nil, &ValidationError{Field: key, Message: "required field is missing"}
	}
	switch v := raw.(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &ValidationError{Field: key + "." + k, Value: item, Message: "expected a string value"}
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, &ValidationError{Field: key, Value: raw, Message: fmt.Sprintf("expected an object, got %T", raw)}
	}
}

// Int64SliceArg extracts an integer list argument, coercing []any slices
// produced by JSON decoding.
func Int64SliceArg(args map[string]any, key string) ([]int64, error) {
	raw, ok := args[key]
	if !ok {
		return nil, &ValidationError{Field: key, Message: "required field is missing"}
	}
	switch v := raw.(type) {
	case []int64:
		out := make([]int64, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]int64, 0, len(v))
		for i, item := range v {
			n, err := Int64Arg(map[string]any{key: item}, key)
			if err != nil {
				return nil, &ValidationError{Field: fmt.Sprintf("%s[%d]", key, i), Value: item, Message: "expected an integer"}
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, &ValidationError{Field: key, Value: raw, Message: fmt.Sprintf("expected a list, got %T", raw)}
	}
}

// OneOf reports whether value is contained in allowed.
func OneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}
