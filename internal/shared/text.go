package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName composes the text to NFC, trims it and collapses internal
// whitespace runs to single spaces.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
