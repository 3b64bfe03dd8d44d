package core

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

var ErrIdentifierExhausted = errors.New("could not generate a unique identifier")

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// StringPtr returns nil for empty strings.
func StringPtr(s string) *string {
	s = CleanString(s)
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// SameStringPtr reports whether both optional references point to the same value (or are both unset).
func SameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// GenerateUnique calls gen until exists reports the candidate as free, at most `attempts` times.
// The storage unique index stays the final guard against a concurrent writer winning the race.
func GenerateUnique(ctx context.Context, attempts int, gen func() string, exists func(ctx context.Context, candidate string) (bool, error)) (string, error) {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		candidate := gen()
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "checking identifier uniqueness")
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrIdentifierExhausted
}
