// Package hash produces stable fingerprints of post body text for change
// detection. The fingerprint is a 32-bit FNV-1a-style mix, not a
// cryptographic digest.
package hash

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

const offsetBasis = 0x811c9dc5

// Normalize collapses all whitespace runs to single spaces and trims the
// result. Whitespace-only differences therefore never change a fingerprint.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Fingerprint returns an 8-hex-digit fingerprint of the normalized text.
// The mix runs over UTF-16 code units so that fingerprints line up with
// records produced by the original widget.
func Fingerprint(text string) string {
	var h uint32 = offsetBasis
	for _, unit := range utf16.Encode([]rune(Normalize(text))) {
		h ^= uint32(unit)
		h = h + h<<1 + h<<4 + h<<7 + h<<8 + h<<24
	}
	return fmt.Sprintf("%08x", h)
}
