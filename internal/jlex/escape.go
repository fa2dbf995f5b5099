package jlex

import (
	"unicode/utf16"
	"unicode/utf8"
)

// decodeUnicodeEscape reads the 4 hex digits of a \uXXXX escape at
// src[pos:pos+4] and, if it is the high half of a surrogate pair,
// consumes the immediately following \uXXXX low half as well so the two
// combine into a single rune instead of two independently-decoded
// replacement characters. It returns the decoded rune and the number of
// bytes consumed from src starting at pos (4, or 10 when a pair was
// combined).
func decodeUnicodeEscape(src []byte, pos int) (rune, int, error) {
	if pos+4 > len(src) {
		return 0, 0, errMalformed(pos, "incomplete Unicode escape")
	}
	v, err := parseHex4(src[pos : pos+4])
	if err != nil {
		return utf8.RuneError, 4, nil
	}
	r1 := rune(v)
	if !utf16.IsSurrogate(r1) {
		return r1, 4, nil
	}
	// r1 is a surrogate half; look for a following \uXXXX to pair with.
	next := pos + 4
	if next+6 > len(src) || src[next] != '\\' || src[next+1] != 'u' {
		return utf8.RuneError, 4, nil
	}
	v2, err := parseHex4(src[next+2 : next+6])
	if err != nil {
		return utf8.RuneError, 4, nil
	}
	r2 := rune(v2)
	combined := utf16.DecodeRune(r1, r2)
	if combined == utf8.RuneError {
		// r2 was not a valid low surrogate for r1; leave it for the next
		// iteration to interpret on its own.
		return utf8.RuneError, 4, nil
	}
	return combined, 10, nil
}

func parseHex4(digits []byte) (int, error) {
	var v int
	for _, b := range digits {
		v <<= 4
		switch {
		case '0' <= b && b <= '9':
			v += int(b - '0')
		case 'a' <= b && b <= 'f':
			v += int(b-'a') + 10
		case 'A' <= b && b <= 'F':
			v += int(b-'A') + 10
		default:
			return 0, errMalformed(0, "invalid hex digit %q", b)
		}
	}
	return v, nil
}

func appendRune(dst []byte, r rune) []byte {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	return append(dst, buf[:n]...)
}
