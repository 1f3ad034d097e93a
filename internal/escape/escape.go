// Package escape decodes backslash notation for control input sent to a
// terminal, so callers can type keys such as Ctrl+C as plain text.
package escape

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var simple = map[byte]byte{
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'a':  0x07,
	'b':  0x08,
	'f':  0x0c,
	'v':  0x0b,
	'e':  0x1b,
	'0':  0x00,
	'\\': '\\',
}

// Decode expands escape sequences in s:
//
//	\n \r \t \a \b \f \v  the usual C escapes
//	\e                    ESC (0x1b)
//	\0                    NUL
//	\\                    a literal backslash
//	\xNN                  one byte in hex, e.g. \x03 for Ctrl+C
//	\^X                   caret notation, e.g. \^C for Ctrl+C, \^[ for ESC
//
// Any other escaped character stands for itself.
func Decode(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 == len(s) {
			return "", fmt.Errorf("dangling backslash at offset %d", i)
		}

		next := s[i+1]
		if v, ok := simple[next]; ok {
			b.WriteByte(v)
			i += 2
			continue
		}

		switch next {
		case 'x':
			if i+4 > len(s) {
				return "", fmt.Errorf("short \\x escape at offset %d", i)
			}
			v, err := strconv.ParseUint(s[i+2:i+4], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad \\x escape %q at offset %d", s[i:i+4], i)
			}
			b.WriteByte(byte(v))
			i += 4
		case '^':
			if i+3 > len(s) {
				return "", fmt.Errorf("short \\^ escape at offset %d", i)
			}
			v, err := caret(s[i+2])
			if err != nil {
				return "", fmt.Errorf("offset %d: %w", i, err)
			}
			b.WriteByte(v)
			i += 3
		default:
			r, size := utf8.DecodeRuneInString(s[i+1:])
			b.WriteRune(r)
			i += 1 + size
		}
	}

	return b.String(), nil
}

// caret maps the character after ^ to its control code: ^@ is NUL, ^A..^Z are
// 0x01..0x1a and ^? is DEL.
func caret(c byte) (byte, error) {
	if c == '?' {
		return 0x7f, nil
	}
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < '@' || c > '_' {
		return 0, fmt.Errorf("no control character for ^%c", c)
	}
	return c - '@', nil
}
