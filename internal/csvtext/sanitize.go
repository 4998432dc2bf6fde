package csvtext

import (
	"strings"
	"unicode/utf8"
)

// Sanitize replaces invalid UTF-8 byte sequences with the Unicode
// replacement character. Uploaded files are assumed UTF-8 but field devices
// occasionally emit Latin-1 or truncated multibyte sequences; replacing the
// bad bytes keeps the rest of the file importable.
func Sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune('\uFFFD')
			i++
		} else {
			b.WriteRune(r)
			i += size
		}
	}

	return b.String()
}
