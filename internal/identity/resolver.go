// Package identity canonicalizes participant identifiers and derives the
// shared conversation key for a two-party call. Both call legs run the same
// derivation independently, so everything here must be pure and symmetric.
package identity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidIdentifier is returned for identifiers that are empty or do not
// match an accepted canonical form. A malformed identifier must never reach
// key derivation: an empty canonical segment would produce a double-delimiter
// key that silently fails room matching.
var ErrInvalidIdentifier = errors.New("invalid participant identifier")

// countryPrefix is prepended to local 8-digit numbers.
const countryPrefix = "65"

// keyPrefix starts every conversation key.
const keyPrefix = "room-"

// Canonicalize normalizes a phone-like identifier to its digit-only canonical
// form. Accepted inputs, after stripping whitespace, hyphens, parentheses and
// a leading plus sign:
//
//   - 8 digits starting with 8 or 9 (local form): country prefix is prepended
//   - 10 digits starting with the country prefix: returned unchanged
//
// Anything else is rejected with ErrInvalidIdentifier rather than passed
// through, so two differently formatted inputs for the same number can never
// canonicalize to different keys.
func Canonicalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '-' || r == '(' || r == ')':
			// separator, dropped
		default:
			return "", fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidIdentifier, r, raw)
		}
	}

	digits := b.String()
	switch {
	case digits == "":
		return "", fmt.Errorf("%w: no digits in %q", ErrInvalidIdentifier, raw)
	case len(digits) == 8 && (digits[0] == '8' || digits[0] == '9'):
		return countryPrefix + digits, nil
	case len(digits) == 10 && strings.HasPrefix(digits, countryPrefix):
		return digits, nil
	default:
		return "", fmt.Errorf("%w: unrecognized form %q", ErrInvalidIdentifier, digits)
	}
}

// DeriveKey computes the conversation key shared by two participants.
// The key is symmetric: DeriveKey(a, b) == DeriveKey(b, a) for all valid
// inputs, so either side of a call derives it without coordination.
func DeriveKey(rawA, rawB string) (string, error) {
	a, err := Canonicalize(rawA)
	if err != nil {
		return "", err
	}
	b, err := Canonicalize(rawB)
	if err != nil {
		return "", err
	}

	pair := []string{a, b}
	sort.Strings(pair)
	return keyPrefix + pair[0] + "-" + pair[1], nil
}

// SpeakerLabel maps a participant to a stable two-valued label within a
// conversation. The label follows the participant's position in the sorted
// key, not call order, so repeated calls always yield the same label.
func SpeakerLabel(conversationKey, participantID string) string {
	canonical, err := Canonicalize(participantID)
	if err != nil {
		canonical = participantID
	}

	rest := strings.TrimPrefix(conversationKey, keyPrefix)
	if first, _, ok := strings.Cut(rest, "-"); ok && first == canonical {
		return "A"
	}
	return "B"
}
