package model

import (
	"hash/crc32"
	"strings"
	"unicode"
)

// Slugify lowercases s and collapses every run of non-alphanumeric
// characters into a single hyphen. Leading and trailing hyphens are dropped.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// CanonicalID derives the canonical integer id of a provider item from its
// native id (IEEE CRC-32). Different native ids may collide; collisions are
// not detected.
func CanonicalID(nativeID string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(nativeID)))
}
