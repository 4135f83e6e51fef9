// Package utils provides small helpers for argument maps and token counting.
package utils

import "fmt"

// SafeAssert performs a type assertion and reports success.
func SafeAssert[T any](value any) (T, bool) {
	if v, ok := value.(T); ok {
		return v, true
	}
	var zero T
	return zero, false
}

// GetMapField gets a field from a map[string]any and asserts its type.
func GetMapField[T any](m map[string]any, key string) (T, error) {
	var zero T
	value, exists := m[key]
	if !exists {
		return zero, fmt.Errorf("field '%s' not found", key)
	}
	if typed, ok := SafeAssert[T](value); ok {
		return typed, nil
	}
	return zero, fmt.Errorf("field '%s' expected type %T, got %T", key, zero, value)
}

// GetMapFieldOr gets a field with a default when it is missing or mistyped.
func GetMapFieldOr[T any](m map[string]any, key string, defaultValue T) T {
	if value, err := GetMapField[T](m, key); err == nil {
		return value
	}
	return defaultValue
}

// OptionalString returns a pointer to the string field, or nil when absent.
// A present field of the wrong type is an error.
func OptionalString(m map[string]any, key string) (*string, error) {
	value, exists := m[key]
	if !exists || value == nil {
		return nil, nil //nolint:nilnil // absent is not an error
	}
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("field '%s' expected type string, got %T", key, value)
	}
	return &s, nil
}
