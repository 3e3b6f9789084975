package utils

import (
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// SanitizeString removes control characters other than tab and newline and
// trims surrounding whitespace.
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// SanitizeLine is SanitizeString for single-line values such as actor names
// and search terms. Line breaks and tabs collapse to a single space.
func SanitizeLine(s string) string {
	return strings.Join(strings.Fields(SanitizeString(s)), " ")
}
