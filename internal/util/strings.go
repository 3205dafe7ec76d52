package util

import "strings"

// NormalizeToken lowercases s and trims surrounding whitespace and punctuation
// so "Go," and " go" compare equal.
func NormalizeToken(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), " .,;:!?()[]{}\"'")
}

// Truncate shortens s to at most n runes, appending "…" when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
