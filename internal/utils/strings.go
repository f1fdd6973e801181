package utils

import (
	"strings"
)

// TrimOrEmpty normalizes user input without turning nil into "nil".
func TrimOrEmpty(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeSpace collapses repeated whitespace into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeCode upper-cases and trims enum-like input ("credit_card " -> "CREDIT_CARD").
func NormalizeCode(s string) string {
	return strings.ToUpper(NormalizeSpace(s))
}
