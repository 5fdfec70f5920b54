// Package normalization maps free-form configuration input onto closed sets
// of string enum values.
package normalization

import (
	"slices"
	"strings"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
)

// Enum is a closed set of canonical values plus accepted spellings. Input is
// compared case-insensitively with surrounding space trimmed; "-" and "_" are
// interchangeable.
type Enum[T ~string] struct {
	field   string
	lookup  map[string]T
	allowed []T
}

// NewEnum builds an enum for field from its canonical values.
func NewEnum[T ~string](field string, values ...T) *Enum[T] {
	e := &Enum[T]{field: field, lookup: make(map[string]T, len(values))}
	for _, v := range values {
		e.lookup[canonical(string(v))] = v
		e.allowed = append(e.allowed, v)
	}
	return e
}

// Alias accepts spelling as another name for value.
func (e *Enum[T]) Alias(spelling string, value T) *Enum[T] {
	e.lookup[canonical(spelling)] = value
	return e
}

// Lookup returns the canonical value for raw.
func (e *Enum[T]) Lookup(raw string) (T, bool) {
	v, ok := e.lookup[canonical(raw)]
	return v, ok
}

// Parse is Lookup with a validation error naming the allowed values.
func (e *Enum[T]) Parse(raw string) (T, error) {
	if v, ok := e.Lookup(raw); ok {
		return v, nil
	}
	var zero T
	return zero, errors.ValidationError("unknown "+e.field).
		WithContext("value", raw).
		WithContext("allowed", e.Values()).
		Build()
}

// Values returns the canonical values in declaration order.
func (e *Enum[T]) Values() []T {
	return slices.Clone(e.allowed)
}

func canonical(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}
