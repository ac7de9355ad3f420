// Package slug builds and validates the URL slugs of registry components
// and tags.
package slug

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrExhausted is returned by Unique when every suffix it tried is taken.
var ErrExhausted = errors.New("slug: no free suffix")

// MaxLength is the longest slug accepted.
const MaxLength = 64

// maxAttempts bounds the suffix search of Unique.
const maxAttempts = 100

var validPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Make converts free text to a slug: lower case ASCII letters and digits
// separated by single hyphens. "My Button!" becomes "my-button".
func Make(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range norm.NFKD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingDash = true
		}
	}
	out := b.String()
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], "-")
	}
	return out
}

// Valid reports whether s is a well-formed slug.
func Valid(s string) bool {
	return len(s) <= MaxLength && validPattern.MatchString(s)
}

// AvailableFunc reports whether a slug is free.
type AvailableFunc func(ctx context.Context, slug string) (bool, error)

// Unique returns base if available, else the first free of base-1,
// base-2, and so on.
func Unique(ctx context.Context, base string, available AvailableFunc) (string, error) {
	candidate := base
	for i := 1; i <= maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ok, err := available(ctx, candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return "", ErrExhausted
}
