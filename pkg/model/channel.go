package model

import "strings"

// DefaultChannelOrder replaces any channel order that is not a permutation of
// R, G and B.
const DefaultChannelOrder = "RGB"

// ValidChannelOrder reports whether s contains exactly one R, one G and one B.
func ValidChannelOrder(s string) bool {
	if len(s) != 3 {
		return false
	}
	var seen [3]bool
	for i := 0; i < len(s); i++ {
		var idx int
		switch s[i] {
		case 'R':
			idx = 0
		case 'G':
			idx = 1
		case 'B':
			idx = 2
		default:
			return false
		}
		if seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

// NormalizeChannelOrder returns s if it is valid and DefaultChannelOrder
// otherwise.
func NormalizeChannelOrder(s string) string {
	if ValidChannelOrder(s) {
		return s
	}
	return DefaultChannelOrder
}

// SanitizeChannelOrder upper-cases s and drops every character other than R,
// G and B, keeping at most three. The result still needs validation.
func SanitizeChannelOrder(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if b.Len() == 3 {
			break
		}
		if r == 'R' || r == 'G' || r == 'B' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaxDigits is the maximum length of a numeric input field.
const MaxDigits = 3

// SanitizeDigits drops non-digit characters from s and keeps at most
// MaxDigits of them.
func SanitizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == MaxDigits {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
