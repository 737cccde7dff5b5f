package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	// entityPattern matches named, decimal and hex character references.
	entityPattern = regexp.MustCompile(`&(?:([a-zA-Z][a-zA-Z0-9]*)|#([0-9]+)|#[xX]([0-9a-fA-F]+));`)

	// stripPolicy removes every tag. Policies are safe for concurrent use
	// once built.
	stripPolicy = bluemonday.StrictPolicy()
)

// DecodeText decodes percent-encoding, then HTML character references, and
// trims surrounding whitespace. Failures are local: a field with malformed
// percent-encoding is left undecoded.
func DecodeText(s string) string {
	return strings.TrimSpace(DecodeEntities(DecodePercent(s)))
}

// DecodePercent resolves %XX escapes. '+' is kept as-is. The input is
// returned unchanged when it contains an invalid escape.
func DecodePercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// DecodeEntities resolves HTML character references. Unknown names are left
// untouched and out-of-range numeric references are dropped.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	matches := entityPattern.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		last = m[1]
		entity := s[m[0]:m[1]]
		switch {
		case m[2] >= 0:
			sb.WriteString(decodeNamed(entity))
		case m[4] >= 0:
			sb.WriteString(decodeCode(s[m[4]:m[5]], 10))
		case m[6] >= 0:
			sb.WriteString(decodeCode(s[m[6]:m[7]], 16))
		}
	}
	sb.WriteString(s[last:])
	return sb.String()
}

func decodeNamed(entity string) string {
	decoded := html.UnescapeString(entity)
	// UnescapeString also resolves legacy prefixes such as "&ampfoo;" into
	// "&foo;"; only accept a decoding that consumed the whole reference.
	if decoded == entity || (decoded != ";" && strings.HasSuffix(decoded, ";")) {
		return entity
	}
	return decoded
}

func decodeCode(digits string, base int) string {
	n, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return ""
	}
	r := rune(n)
	if r == 0 || !utf8.ValidRune(r) {
		return ""
	}
	return string(r)
}

// StripMarkup removes inline tags from text, keeping the text content.
func StripMarkup(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	// The sanitizer escapes the text it keeps; undo that.
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}
