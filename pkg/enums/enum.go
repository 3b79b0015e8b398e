// Package enums holds the string enums mirrored by Postgres enum types.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// valueSet is the closed list of values for one enum type.
type valueSet[T ~string] struct {
	kind   string
	values []T
}

func newValueSet[T ~string](kind string, values ...T) valueSet[T] {
	return valueSet[T]{kind: kind, values: values}
}

func (s valueSet[T]) contains(v T) bool { return slices.Contains(s.values, v) }

// parse lowercases and trims raw before matching.
func (s valueSet[T]) parse(raw string) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	if s.contains(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", s.kind, raw)
}
