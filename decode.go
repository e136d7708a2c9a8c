package serialmon

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// decodeLine converts raw line bytes to text, substituting U+FFFD for
// malformed byte sequences instead of failing, then trims surrounding
// whitespace. Garbled serial input must never take the monitor down.
func decodeLine(b []byte) string {
	out, _, err := transform.Bytes(runes.ReplaceIllFormed(), b)
	if err != nil {
		// ReplaceIllFormed does not error; keep the raw bytes if it ever does.
		out = b
	}
	return strings.TrimSpace(string(out))
}
