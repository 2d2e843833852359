// Package utils holds small parsing helpers shared by the HTTP handlers and
// the CLI.
package utils

import (
	"cmp"
	"strconv"
	"strings"
)

// AtoiDefault parses s as a base-10 int after trimming spaces, returning def
// when s is blank or malformed.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Clamp bounds v to [lo, hi]. lo must not exceed hi.
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// ResultLimit parses a requested result count, defaulting to def and
// bounding it to [1, ceiling].
func ResultLimit(s string, def, ceiling int) int {
	return Clamp(AtoiDefault(s, def), 1, ceiling)
}
