package util

import (
	"math/rand/v2"
	"strings"
)

// RandomChars returns n characters drawn uniformly from the byte range
// [base, base+span). The source is math/rand and is not suitable for key
// material that must resist an attacker.
func RandomChars(n int, base byte, span int) string {
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		sb.WriteByte(base + byte(RandomIntn(span)))
	}
	return sb.String()
}

// RandomIntn returns a pseudo-random int in [0, max).
func RandomIntn(max int) int {
	return rand.IntN(max)
}

// RandomUint64 returns a pseudo-random uint64.
func RandomUint64() uint64 {
	return rand.Uint64()
}
