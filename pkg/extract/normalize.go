package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeText converts a raw chunk to text and collapses every run of
// whitespace (newlines included) into a single space. Invalid UTF-8 is
// replaced with U+FFFD instead of failing.
func NormalizeText(chunk []byte) string {
	if len(chunk) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(chunk))
	inSpace := false
	for len(chunk) > 0 {
		r, size := utf8.DecodeRune(chunk)
		chunk = chunk[size:]
		if unicode.IsSpace(r) {
			if !inSpace {
				sb.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		// DecodeRune reports invalid bytes as RuneError with size 1.
		sb.WriteRune(r)
	}
	return sb.String()
}

// splitIncomplete separates a trailing, not yet complete UTF-8 sequence from
// the rest of b so it can be completed by the next chunk.
func splitIncomplete(b []byte) (complete, rest []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		c := b[i]
		if c < utf8.RuneSelf {
			return b, nil
		}
		if utf8.RuneStart(c) {
			if utf8.FullRune(b[i:]) {
				return b, nil
			}
			return b[:i], b[i:]
		}
	}
	return b, nil
}
