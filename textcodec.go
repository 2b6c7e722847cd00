package mdict

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	textunicode "golang.org/x/text/encoding/unicode"
)

// isUTF8 reports whether enc is the UTF-8 encoding, the branch point
// spec.md §4.4 uses to pick a 1-byte or 2-byte NUL terminator and a
// 1-unit or 2-unit text size.
func isUTF8(enc encoding.Encoding) bool {
	return enc == textunicode.UTF8
}

// decodeText decodes b under enc, the payload/key-text encoding
// declared by the header (spec.md §4.1).
func decodeText(b []byte, enc encoding.Encoding) (string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func toLower(s string) string {
	return strings.ToLower(s)
}

func isLowerLetter(r rune) bool {
	return unicode.IsLower(r)
}
