// Package fracindex implements an ordered key space for storyboard frames.
//
// Keys are base-62 digit strings read as fractions in (0, 1); lexicographic
// byte order equals numeric order because the digit alphabet is ASCII-sorted
// and no key ends with the zero digit. A key can always be synthesized
// strictly between two neighbors, above the highest, or below the lowest,
// without touching any other key.
package fracindex

import (
	"errors"
	"strings"
)

const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// maxKeyLen bounds key growth. Reaching it means the precision of the key
// space is exhausted at that position and the caller must refuse the move.
const maxKeyLen = 128

// Valid reports whether k is a well-formed key: nonempty, within the length
// bound, every byte a known digit, and no trailing zero digit.
func Valid(k string) bool {
	if k == "" || len(k) > maxKeyLen {
		return false
	}
	for i := 0; i < len(k); i++ {
		if strings.IndexByte(digits, k[i]) < 0 {
			return false
		}
	}
	return k[len(k)-1] != digits[0]
}

// KeyBetween returns a key strictly between a and b. Requires Valid(a),
// Valid(b) and a < b.
func KeyBetween(a, b string) (string, error) {
	if !Valid(a) || !Valid(b) {
		return "", invalidKeyError{a: a, b: b}
	}
	if a >= b {
		return "", invalidKeyError{a: a, b: b}
	}
	return finish(midpoint(a, b))
}

// KeyAbove returns a key strictly greater than a. An empty a yields the
// initial key for an empty sequence.
func KeyAbove(a string) (string, error) {
	if a != "" && !Valid(a) {
		return "", invalidKeyError{a: a}
	}
	return finish(midpoint(a, ""))
}

// KeyBelow returns a key strictly less than a.
func KeyBelow(a string) (string, error) {
	if !Valid(a) {
		return "", invalidKeyError{a: a}
	}
	return finish(midpoint("", a))
}

func finish(k string) (string, error) {
	if len(k) > maxKeyLen {
		return "", keyExhaustedError{}
	}
	return k, nil
}

// midpoint returns a string strictly between a and b, where an empty a is
// the low bound and an empty b is the high bound. Inputs are valid keys (or
// suffixes of valid keys) with a < b.
func midpoint(a, b string) string {
	if b != "" {
		// Strip the longest common prefix; the answer shares it.
		n := 0
		for n < len(a) && n < len(b) && a[n] == b[n] {
			n++
		}
		if n > 0 {
			return b[:n] + midpoint(a[n:], b[n:])
		}
	}
	da := 0
	if a != "" {
		da = strings.IndexByte(digits, a[0])
	}
	db := len(digits)
	if b != "" {
		db = strings.IndexByte(digits, b[0])
	}
	switch {
	case db-da > 1:
		return string(digits[(da+db)/2])
	case db == da:
		// Only reachable with a == "" and b starting at the zero digit:
		// descend into b.
		return string(digits[db]) + midpoint("", b[1:])
	case len(b) > 1:
		// b's first digit is exactly one above a's: it already sits
		// strictly between a and b.
		return b[:1]
	default:
		return string(digits[da]) + midpoint(suffix(a), "")
	}
}

func suffix(a string) string {
	if a == "" {
		return ""
	}
	return a[1:]
}

// invalidKeyError reports malformed or misordered inputs.
type invalidKeyError struct{ a, b string }

func (e invalidKeyError) Error() string {
	if e.b != "" {
		return "fracindex: invalid key pair " + e.a + " .. " + e.b
	}
	return "fracindex: invalid key " + e.a
}

// IsInvalidKey reports whether err came from malformed or misordered keys.
func IsInvalidKey(err error) bool {
	var target invalidKeyError
	return errors.As(err, &target)
}

// keyExhaustedError signals the key space ran out of precision.
type keyExhaustedError struct{}

func (keyExhaustedError) Error() string { return "fracindex: key space exhausted" }

// IsExhausted reports whether err indicates key-space exhaustion.
func IsExhausted(err error) bool {
	var target keyExhaustedError
	return errors.As(err, &target)
}
