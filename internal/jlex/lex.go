// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

// Package jlex implements a stateless, allocation-free JSON token lexer
// over a byte slice. Unlike a scanner bound to an io.Reader, every
// function here operates on a single []byte window and reports whether
// the token it was asked to recognize is fully visible inside that
// window. A caller that owns a growable or refillable window (see
// jiter.Tokenizer) retries on an EndOfBuffer error after fetching more bytes;
// jlex itself never blocks and never reads past the slice it is given.
package jlex

import (
	"fmt"

	"go4.org/mem"
)

// Peek classifies the next JSON value without consuming it.
type Peek byte

// Constants defining the valid Peek values.
const (
	PeekNone   Peek = iota // buffer too short to classify
	PeekObject             // "{"
	PeekArray              // "["
	PeekString             // `"`
	PeekTrue
	PeekFalse
	PeekNull
	PeekNumber
	PeekInvalid // byte present but not a valid value start
)

// ErrorKind classifies why a jlex function failed.
type ErrorKind int

// Constants defining the valid ErrorKind values.
const (
	_ ErrorKind = iota

	// EndOfBuffer means the token was not yet fully visible in the
	// supplied slice; the caller should fetch more bytes (if any remain
	// in the underlying source) and retry from the same start position.
	EndOfBuffer

	// Malformed means the bytes present are not valid JSON at this
	// position, and more input would not fix it.
	Malformed

	// WrongType means the bytes present are well-formed JSON, but not of
	// the type the caller asked a Known* function to assume.
	WrongType
)

func (k ErrorKind) String() string {
	switch k {
	case EndOfBuffer:
		return "end of buffer"
	case Malformed:
		return "malformed"
	case WrongType:
		return "wrong type"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by jlex functions.
type Error struct {
	Kind ErrorKind
	Pos  int // offset within the slice passed to the failing call
	msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Pos, e.msg)
}

// IsEndOfBuffer reports whether err is a jlex *Error with Kind ==
// EndOfBuffer.
func IsEndOfBuffer(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == EndOfBuffer
}

func errEOB(pos int) error { return &Error{Kind: EndOfBuffer, Pos: pos, msg: "need more input"} }

func errMalformed(pos int, format string, args ...any) error {
	return &Error{Kind: Malformed, Pos: pos, msg: fmt.Sprintf(format, args...)}
}

func errWrongType(pos int, format string, args ...any) error {
	return &Error{Kind: WrongType, Pos: pos, msg: fmt.Sprintf(format, args...)}
}

// NewWrongTypeError builds a WrongType *Error for callers outside this
// package (such as jiter) that detect a type mismatch using information
// jlex itself doesn't have, e.g. that a syntactically valid number has a
// fractional part where an integer was required.
func NewWrongTypeError(pos int, format string, args ...any) error {
	return errWrongType(pos, format, args...)
}

// NewMalformedError builds a Malformed *Error for callers outside this
// package.
func NewMalformedError(pos int, format string, args ...any) error {
	return errMalformed(pos, format, args...)
}

// PeekAt classifies buf[pos], the first byte of the next value, without
// consuming anything. It does not skip whitespace; callers are expected
// to have already done so.
func PeekAt(buf []byte, pos int) (Peek, error) {
	if pos >= len(buf) {
		return PeekNone, errEOB(pos)
	}
	switch c := buf[pos]; {
	case c == '{':
		return PeekObject, nil
	case c == '[':
		return PeekArray, nil
	case c == '"':
		return PeekString, nil
	case c == 't':
		return PeekTrue, nil
	case c == 'f':
		return PeekFalse, nil
	case c == 'n':
		return PeekNull, nil
	case isNumStart(c):
		return PeekNumber, nil
	default:
		return PeekInvalid, nil
	}
}

// SkipWhitespace returns the offset of the first non-whitespace byte at
// or after pos, or an EndOfBuffer error if the window ends before one
// is found.
func SkipWhitespace(buf []byte, pos int) (int, error) {
	i := pos
	for i < len(buf) && isSpace(buf[i]) {
		i++
	}
	if i >= len(buf) {
		return i, errEOB(i)
	}
	return i, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNumStart(c byte) bool { return c == '-' || isDigit(c) }
func isDigit(c byte) bool    { return '0' <= c && c <= '9' }
func isExpStart(c byte) bool { return c == '-' || c == '+' || isDigit(c) }

func isHexDigit(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// ConsumeLiteral matches a fixed literal (true/false/null) starting at
// pos against want. It returns the offset just past the literal, or an
// EndOfBuffer error if buf doesn't yet hold enough bytes to tell, or a
// Malformed error if the bytes present don't match.
func ConsumeLiteral(buf []byte, pos int, want string) (int, error) {
	end := pos + len(want)
	if end > len(buf) {
		// Not enough bytes buffered yet to know either way, unless what
		// is present already disagrees with want.
		have := buf[pos:]
		if !mem.B(have).Equal(mem.S(want[:len(have)])) {
			return pos, errMalformed(pos, "does not match literal %q", want)
		}
		return pos, errEOB(pos)
	}
	if !mem.B(buf[pos:end]).Equal(mem.S(want)) {
		return pos, errMalformed(pos, "does not match literal %q", want)
	}
	return end, nil
}

// ConsumeNumber scans a JSON number starting at pos and returns the
// offset just past it. Because a number has no closing delimiter, the
// caller cannot tell from jlex alone whether the number actually ends at
// end or is merely cut off by the edge of buf; when end == len(buf) the
// caller must treat the result as provisional and confirm it by trying
// to read more input (see jiter's eager-consume handling).
func ConsumeNumber(buf []byte, pos int) (end int, isFloat bool, err error) {
	i := pos
	if i >= len(buf) {
		return pos, false, errEOB(pos)
	}
	if buf[i] == '-' {
		i++
		if i >= len(buf) {
			return pos, false, errEOB(i)
		}
		if !isDigit(buf[i]) {
			return pos, false, errMalformed(i, "expected digit after sign")
		}
	} else if !isDigit(buf[i]) {
		return pos, false, errMalformed(i, "expected digit or sign")
	}

	intStart := i
	for i < len(buf) && isDigit(buf[i]) {
		i++
	}
	if i == intStart {
		return pos, false, errMalformed(i, "expected digit")
	}
	if hasExtraLeadingZeroes(buf[pos:i]) {
		return pos, false, errMalformed(pos, "extra leading zeroes")
	}
	if i >= len(buf) {
		return i, false, nil
	}

	if buf[i] == '.' {
		isFloat = true
		i++
		fracStart := i
		for i < len(buf) && isDigit(buf[i]) {
			i++
		}
		if i == fracStart {
			if i >= len(buf) {
				return pos, false, errEOB(i)
			}
			return pos, false, errMalformed(i, "expected digit after decimal point")
		}
	}

	if i < len(buf) && (buf[i] == 'e' || buf[i] == 'E') {
		isFloat = true
		i++
		if i >= len(buf) {
			return pos, false, errEOB(i)
		}
		if !isExpStart(buf[i]) {
			return pos, false, errMalformed(i, "expected sign or digit after exponent")
		}
		if buf[i] == '-' || buf[i] == '+' {
			i++
		}
		expStart := i
		for i < len(buf) && isDigit(buf[i]) {
			i++
		}
		if i == expStart {
			if i >= len(buf) {
				return pos, false, errEOB(i)
			}
			return pos, false, errMalformed(i, "expected exponent digit")
		}
	}

	return i, isFloat, nil
}

// hasExtraLeadingZeroes reports whether the digits in buf have redundant
// leading zeroes, which JSON disallows: 0, 0.1, -1.0 are OK; 01, -01.2
// are not.
func hasExtraLeadingZeroes(buf []byte) bool {
	if len(buf) > 0 && buf[0] == '-' {
		buf = buf[1:]
	}
	return len(buf) > 1 && buf[0] == '0'
}

// ConsumePunct consumes a single expected self-delimiting punctuation
// byte (one of "{}[],:") at pos and returns the offset just past it.
func ConsumePunct(buf []byte, pos int, want byte) (int, error) {
	if pos >= len(buf) {
		return pos, errEOB(pos)
	}
	if buf[pos] != want {
		return pos, errWrongType(pos, "expected %q, got %q", want, buf[pos])
	}
	return pos + 1, nil
}

// ConsumeStringRaw scans a quoted JSON string starting at the opening
// quote (buf[pos] must be '"') and returns the offsets of the content
// between the quotes (exclusive of both quotes) and the offset just past
// the closing quote. It validates escape syntax and control characters
// but does not decode escapes; use DecodeStringContent for that. It does
// not require the string to be free of backslash escapes; callers that
// need to stream long strings through a bounded window use
// FindStringSegmentEnd instead, to avoid needing the whole string
// buffered at once.
func ConsumeStringRaw(buf []byte, pos int) (contentStart, contentEnd, end int, err error) {
	if pos >= len(buf) || buf[pos] != '"' {
		return 0, 0, 0, errMalformed(pos, "expected opening quote")
	}
	i := pos + 1
	contentStart = i
	for {
		if i >= len(buf) {
			return 0, 0, 0, errEOB(i)
		}
		c := buf[i]
		if c == '"' {
			return contentStart, i, i + 1, nil
		}
		if c == '\\' {
			i++
			if i >= len(buf) {
				return 0, 0, 0, errEOB(i)
			}
			switch buf[i] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
				i++
			case 'u':
				i++
				end := i + 4
				if end > len(buf) {
					return 0, 0, 0, errEOB(i)
				}
				for ; i < end; i++ {
					if !isHexDigit(buf[i]) {
						return 0, 0, 0, errMalformed(i, "invalid hex digit in \\u escape")
					}
				}
			default:
				return 0, 0, 0, errMalformed(i, "invalid escape %q", buf[i])
			}
			continue
		}
		if c < 0x20 {
			return 0, 0, 0, errMalformed(i, "unescaped control byte %#02x", c)
		}
		i++
	}
}

// FindStringSegmentEnd scans forward from pos (which must be inside an
// open string, not at its opening quote) looking for the closing quote
// or the edge of the buffer, whichever comes first. It returns the
// offset of a safe segment boundary: either the closing quote's offset
// (closed == true) or an offset that does not split a multi-byte UTF-8
// sequence or an in-progress backslash escape (closed == false), so the
// caller can emit buf[pos:boundary] now and resume scanning after a
// refill without losing any information.
func FindStringSegmentEnd(buf []byte, pos int) (boundary int, closed bool, err error) {
	i := pos
	for i < len(buf) {
		c := buf[i]
		if c == '"' {
			return i, true, nil
		}
		if c == '\\' {
			// An escape starting before the end of the buffer: if there
			// isn't room to see the whole escape, back off to before the
			// backslash; otherwise validate and step past it.
			escLen, ok := escapeLength(buf, i)
			if !ok {
				if i == pos {
					// Not even one extra byte to look at: must refill.
					return pos, false, errEOB(i)
				}
				return i, false, nil
			}
			if i+escLen > len(buf) {
				if i == pos {
					return pos, false, errEOB(i)
				}
				return i, false, nil
			}
			i += escLen
			continue
		}
		if c < 0x20 {
			return 0, false, errMalformed(i, "unescaped control byte %#02x", c)
		}
		i++
	}
	if i == pos {
		return pos, false, errEOB(i)
	}
	// Back off to before the lead byte of a trailing multi-byte UTF-8
	// sequence, so the whole sequence goes out with the next segment.
	if buf[i-1] >= 0x80 {
		for i > pos && !isUTF8LeadingByte(buf[i-1]) {
			i--
		}
		if i > pos {
			i--
		}
	}
	if i == pos {
		return pos, false, errEOB(i)
	}
	return i, false, nil
}

// escapeLength reports the total length of the escape sequence starting
// at buf[i] (which must be '\\'), including the backslash itself, or
// false if there isn't yet enough buffered to tell (e.g. a bare
// backslash at the very end of buf, or a "\u" with fewer than 4 hex
// digits visible). A high-surrogate "\uXXXX" that is followed by a
// second "\u" escape is measured together with it (12 bytes), so the two
// halves of a surrogate pair always land in the same segment.
func escapeLength(buf []byte, i int) (int, bool) {
	if i+1 >= len(buf) {
		return 0, false
	}
	if buf[i+1] == 'u' {
		if i+6 > len(buf) {
			return 0, false
		}
		if v, err := parseHex4(buf[i+2 : i+6]); err == nil && 0xD800 <= v && v < 0xDC00 {
			switch {
			case i+7 > len(buf), buf[i+6] == '\\' && i+8 > len(buf):
				return 0, false
			case buf[i+6] == '\\' && buf[i+7] == 'u':
				if i+12 > len(buf) {
					return 0, false
				}
				return 12, true
			}
		}
		return 6, true
	}
	return 2, true
}

func isUTF8LeadingByte(c byte) bool { return c&0xC0 != 0x80 }

// DecodeStringContent decodes the JSON escape sequences in src (the raw
// bytes between a string's quotes, as returned by ConsumeStringRaw) into
// its unescaped UTF-8 form. \uXXXX surrogate pairs are combined into a
// single rune; an unpaired surrogate or a \u escape with invalid hex
// digits is replaced by the Unicode replacement rune, mirroring how
// textual JSON decoders commonly handle it rather than failing the whole
// document. Any other invalid escape, and an escape cut off by the end
// of src, is reported as a Malformed error.
func DecodeStringContent(src []byte) ([]byte, error) {
	dec := make([]byte, 0, len(src))
	i := 0
	for i < len(src) {
		c := src[i]
		if c != '\\' {
			dec = append(dec, c)
			i++
			continue
		}
		i++
		if i >= len(src) {
			return nil, errMalformed(i, "incomplete escape sequence")
		}
		switch src[i] {
		case '"', '\\', '/':
			dec = append(dec, src[i])
			i++
		case 'b':
			dec = append(dec, '\b')
			i++
		case 'f':
			dec = append(dec, '\f')
			i++
		case 'n':
			dec = append(dec, '\n')
			i++
		case 'r':
			dec = append(dec, '\r')
			i++
		case 't':
			dec = append(dec, '\t')
			i++
		case 'u':
			i++
			r, n, err := decodeUnicodeEscape(src, i)
			if err != nil {
				return nil, err
			}
			dec = appendRune(dec, r)
			i += n
		default:
			return nil, errMalformed(i, "invalid escape %q", src[i])
		}
	}
	return dec, nil
}
