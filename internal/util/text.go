package util

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the NFKC form of s.
func Normalize(s string) string {
	return norm.NFKC.String(s)
}

// Fold returns a caseless form of s suitable for comparisons.
func Fold(s string) string {
	// cases.Caser carries state and is not safe for concurrent use.
	return cases.Fold().String(Normalize(s))
}

// ContainsFold reports whether substr occurs in s, ignoring case.
// An empty substr matches everything.
func ContainsFold(s, substr string) bool {
	return strings.Contains(Fold(s), Fold(substr))
}
