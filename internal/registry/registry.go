// Package registry looks up trademark cases in the registry authority. A
// lookup has exactly three outcomes: a snapshot, ErrNotFound, or
// ErrUnavailable (a retryable failure of the registry itself).
package registry

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

var (
	// ErrNotFound reports that the registry has no case with that number.
	ErrNotFound = errors.New("registry: case not found")
	// ErrUnavailable reports a registry failure; callers may retry.
	ErrUnavailable = errors.New("registry: unavailable")
	// ErrInvalidNumber reports a malformed case number.
	ErrInvalidNumber = errors.New("registry: invalid case number")
)

// MinNumberLen is the shortest case number accepted for lookup.
const MinNumberLen = 5

// Gateway is implemented by registry backends.
type Gateway interface {
	Search(ctx context.Context, number string) (*domain.CaseSnapshot, error)
}

// NormalizeNumber strips spaces, dots, dashes and slashes from a user-typed
// case number and checks the result is a digit string of at least
// MinNumberLen characters.
func NormalizeNumber(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '-' || r == '/':
		default:
			return "", ErrInvalidNumber
		}
	}
	if b.Len() < MinNumberLen {
		return "", ErrInvalidNumber
	}
	return b.String(), nil
}
