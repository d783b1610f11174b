// Package enums holds the closed string sets stored in enum-like columns.
package enums

import (
	"fmt"
	"slices"
)

// parse returns value as a T when it is one of known.
func parse[T ~string](known []T, kind, value string) (T, error) {
	if v := T(value); slices.Contains(known, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
