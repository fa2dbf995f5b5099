// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

// Package jiter implements a pull-style JSON tokenizer over a bounded
// byte window fed by an io.Reader. It wraps the stateless slice lexer in
// internal/jlex with a refill loop: whenever the lexer reports that a
// token's end is not yet visible, Tokenizer reclaims consumed space in
// its window, reads more bytes from the underlying reader, and retries
// — transparently handling tokens of any length through bounded memory.
package jiter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olpa/streaming-json/internal/jlex"
	"github.com/olpa/streaming-json/streambuf"
)

// Peek classifies the next JSON value without consuming it.
type Peek = jlex.Peek

// Constants re-exporting jlex's Peek values under the jiter package.
const (
	PeekNone    = jlex.PeekNone
	PeekObject  = jlex.PeekObject
	PeekArray   = jlex.PeekArray
	PeekString  = jlex.PeekString
	PeekTrue    = jlex.PeekTrue
	PeekFalse   = jlex.PeekFalse
	PeekNull    = jlex.PeekNull
	PeekNumber  = jlex.PeekNumber
	PeekInvalid = jlex.PeekInvalid
)

// ErrorKind classifies why a Tokenizer operation failed.
type ErrorKind int

// Constants defining the valid ErrorKind values.
const (
	_ ErrorKind = iota

	// Malformed means the input is not valid JSON at the reported index.
	Malformed

	// WrongType means a Known* call was made against a value that
	// turned out not to be of the assumed type.
	WrongType

	// EndOfInput means the underlying reader is exhausted and no more
	// of the requested token can ever arrive.
	EndOfInput

	// IOError wraps an error returned by the underlying io.Reader.
	IOError
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case WrongType:
		return "wrong type"
	case EndOfInput:
		return "end of input"
	case IOError:
		return "I/O error"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by Tokenizer methods.
type Error struct {
	Index int // absolute byte offset within the whole input stream
	Kind  ErrorKind
	err   error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s at byte %d: %v", e.Kind, e.Index, e.err)
	}
	return fmt.Sprintf("%s at byte %d", e.Kind, e.Index)
}

// Unwrap returns the underlying error, if any, so errors.Is/As see
// through to wrapped I/O errors.
func (e *Error) Unwrap() error { return e.err }

// Tokenizer reads JSON tokens from a streambuf.Buffer, refilling it on
// demand as tokens run up against the edge of the currently buffered
// window.
type Tokenizer struct {
	buf *streambuf.Buffer
	pos int // offset within buf.Buf of the next unconsumed byte
}

// New returns a Tokenizer reading from r through a window backed by buf.
func New(r io.Reader, buf []byte) *Tokenizer {
	return NewFromBuffer(streambuf.New(r, buf))
}

// NewFromBuffer returns a Tokenizer reading from an already-constructed
// streambuf.Buffer, which may already hold buffered bytes.
func NewFromBuffer(b *streambuf.Buffer) *Tokenizer {
	return &Tokenizer{buf: b}
}

// CurrentIndex returns the absolute byte offset of the next unconsumed
// byte within the whole input stream.
func (t *Tokenizer) CurrentIndex() int { return int(t.buf.NShiftedOut) + t.pos }

// ErrorPosition returns the best-effort line/column of the given
// absolute byte index. If index falls before the currently buffered
// window (i.e. its surrounding bytes have already scrolled out), the
// position of the start of the window is returned instead of an exact
// answer, since that text is gone.
func (t *Tokenizer) ErrorPosition(index int) streambuf.LineCol {
	rel := index - int(t.buf.NShiftedOut)
	if rel <= 0 {
		return t.buf.ShiftedPosition()
	}
	return t.buf.PositionAt(rel)
}

func (t *Tokenizer) errAt(kind ErrorKind, err error) *Error {
	return &Error{Index: t.CurrentIndex(), Kind: kind, err: err}
}

func wrapLexErr(idx int, err error) *Error {
	e, ok := err.(*jlex.Error)
	if !ok {
		return &Error{Index: idx, Kind: IOError, err: err}
	}
	switch e.Kind {
	case jlex.WrongType:
		return &Error{Index: idx, Kind: WrongType, err: e}
	default:
		return &Error{Index: idx, Kind: Malformed, err: e}
	}
}

// retryParse calls parse against the tokenizer's currently buffered
// window, refilling and retrying on a jlex end-of-buffer error. When
// eager is true, a successful parse whose end lands exactly at the edge
// of the buffered window is treated as provisional: more input is
// fetched to confirm the token doesn't continue, exactly as a number
// like "123" can't be told apart from "12345" until something past the
// "123" is actually seen. A genuine zero-byte read from the underlying
// reader finalizes whatever the last attempt produced, success or
// error — that is the only way a token is allowed to end flush against
// true end of input.
func retryParse[T any](t *Tokenizer, eager bool, parse func(buf []byte, pos int) (T, int, error)) (T, error) {
	for {
		val, newPos, err := parse(t.buf.Buf[:t.buf.NBytes], t.pos)
		if err == nil {
			if !eager || newPos < t.buf.NBytes {
				t.pos = newPos
				return val, nil
			}
			// Landed exactly at the edge of the window: might be cut
			// short. Fall through to fetch more and retry.
		} else if !jlex.IsEndOfBuffer(err) {
			return val, wrapLexErr(t.CurrentIndex(), err)
		}

		t.buf.Shift(0, t.pos)
		t.pos = 0
		if t.buf.NBytes >= len(t.buf.Buf) {
			// Reclaiming consumed space didn't help: the token in
			// progress is simply longer than the window's capacity.
			var zero T
			return zero, t.errAt(IOError, fmt.Errorf("token exceeds buffer capacity of %d bytes", len(t.buf.Buf)))
		}
		n, rerr := t.buf.ReadMore()
		if rerr != nil {
			var zero T
			return zero, t.errAt(IOError, rerr)
		}
		if n == 0 {
			// True end of input: whatever the last attempt produced now
			// stands as final.
			if err == nil {
				t.pos = newPos
				return val, nil
			}
			if jlex.IsEndOfBuffer(err) {
				var zero T
				return zero, t.errAt(EndOfInput, err)
			}
			return val, wrapLexErr(t.CurrentIndex(), err)
		}
	}
}

// ensureByte refills the window, if necessary, until at least one
// unconsumed byte is buffered, or reports EndOfInput if the underlying
// reader is exhausted first.
func (t *Tokenizer) ensureByte() error {
	_, err := retryParse(t, false, func(buf []byte, pos int) (struct{}, int, error) {
		_, err := jlex.PeekAt(buf, pos)
		return struct{}{}, pos, err
	})
	return err
}

func (t *Tokenizer) skipWS() error {
	_, err := retryParse(t, false, func(buf []byte, pos int) (struct{}, int, error) {
		p, err := jlex.SkipWhitespace(buf, pos)
		return struct{}{}, p, err
	})
	return err
}

func (t *Tokenizer) consumeByte(want byte) error {
	_, err := retryParse(t, false, func(buf []byte, pos int) (struct{}, int, error) {
		p, err := jlex.ConsumePunct(buf, pos, want)
		return struct{}{}, p, err
	})
	return err
}

// Peek classifies the next value after skipping whitespace, without
// consuming anything.
func (t *Tokenizer) Peek() (Peek, error) {
	if err := t.skipWS(); err != nil {
		return PeekNone, err
	}
	return retryParse(t, false, func(buf []byte, pos int) (Peek, int, error) {
		pk, err := jlex.PeekAt(buf, pos)
		return pk, pos, err
	})
}

// NextNull consumes a "null" literal.
func (t *Tokenizer) NextNull() error {
	if err := t.skipWS(); err != nil {
		return err
	}
	return t.KnownNull()
}

// KnownNull consumes a "null" literal, assuming the caller has already
// peeked and confirmed it.
func (t *Tokenizer) KnownNull() error {
	_, err := retryParse(t, false, func(buf []byte, pos int) (struct{}, int, error) {
		p, err := jlex.ConsumeLiteral(buf, pos, "null")
		return struct{}{}, p, err
	})
	return err
}

// NextBool consumes a "true" or "false" literal.
func (t *Tokenizer) NextBool() (bool, error) {
	if err := t.skipWS(); err != nil {
		return false, err
	}
	return t.KnownBool()
}

// KnownBool consumes a "true" or "false" literal, assuming the caller
// has already peeked and confirmed it.
func (t *Tokenizer) KnownBool() (bool, error) {
	return retryParse(t, false, func(buf []byte, pos int) (bool, int, error) {
		if pos < len(buf) && buf[pos] == 't' {
			p, err := jlex.ConsumeLiteral(buf, pos, "true")
			return true, p, err
		}
		p, err := jlex.ConsumeLiteral(buf, pos, "false")
		return false, p, err
	})
}

// NextStr reads a bounded-length string value and decodes its escapes.
// For strings whose length is not known in advance, use WriteLongStr
// instead so the whole value need not fit inside the buffered window.
func (t *Tokenizer) NextStr() (string, error) {
	if err := t.skipWS(); err != nil {
		return "", err
	}
	return t.KnownStr()
}

// KnownStr reads a bounded-length string value, assuming the caller has
// already peeked and confirmed a string follows.
func (t *Tokenizer) KnownStr() (string, error) {
	return retryParse(t, false, func(buf []byte, pos int) (string, int, error) {
		cs, ce, end, err := jlex.ConsumeStringRaw(buf, pos)
		if err != nil {
			return "", pos, err
		}
		dec, err := jlex.DecodeStringContent(buf[cs:ce])
		if err != nil {
			return "", pos, err
		}
		return string(dec), end, nil
	})
}

// NextBytes reads a bounded-length string value without decoding its
// escapes, returning the raw bytes between the quotes.
func (t *Tokenizer) NextBytes() ([]byte, error) {
	if err := t.skipWS(); err != nil {
		return nil, err
	}
	return t.KnownBytes()
}

// KnownBytes reads a bounded-length string's raw undecoded bytes,
// assuming the caller has already peeked and confirmed a string
// follows.
func (t *Tokenizer) KnownBytes() ([]byte, error) {
	return retryParse(t, false, func(buf []byte, pos int) ([]byte, int, error) {
		cs, ce, end, err := jlex.ConsumeStringRaw(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		return append([]byte(nil), buf[cs:ce]...), end, nil
	})
}

// NextInt reads an integer-valued number.
func (t *Tokenizer) NextInt() (int64, error) {
	if err := t.skipWS(); err != nil {
		return 0, err
	}
	return t.KnownInt()
}

// KnownInt reads an integer-valued number, assuming the caller has
// already peeked and confirmed a number follows. It fails with
// WrongType if the number has a fractional or exponent part.
func (t *Tokenizer) KnownInt() (int64, error) {
	return retryParse(t, true, func(buf []byte, pos int) (int64, int, error) {
		end, isFloat, err := jlex.ConsumeNumber(buf, pos)
		if err != nil {
			return 0, pos, err
		}
		if isFloat {
			return 0, pos, jlex.NewWrongTypeError(pos, "expected integer, got number with fraction or exponent")
		}
		n, perr := strconv.ParseInt(string(buf[pos:end]), 10, 64)
		if perr != nil {
			return 0, pos, jlex.NewMalformedError(pos, "invalid integer literal: %v", perr)
		}
		return n, end, nil
	})
}

// NextFloat reads a number of either integer or floating-point form as
// a float64.
func (t *Tokenizer) NextFloat() (float64, error) {
	if err := t.skipWS(); err != nil {
		return 0, err
	}
	return t.KnownFloat()
}

// KnownFloat reads a number of either integer or floating-point form,
// assuming the caller has already peeked and confirmed a number
// follows.
func (t *Tokenizer) KnownFloat() (float64, error) {
	return retryParse(t, true, func(buf []byte, pos int) (float64, int, error) {
		end, _, err := jlex.ConsumeNumber(buf, pos)
		if err != nil {
			return 0, pos, err
		}
		f, perr := strconv.ParseFloat(string(buf[pos:end]), 64)
		if perr != nil {
			return 0, pos, jlex.NewMalformedError(pos, "invalid number literal: %v", perr)
		}
		return f, end, nil
	})
}

// NextNumberText reads a number's raw decimal text without converting
// it, leaving the caller free to choose a representation (this is what
// scan.CopyAtom uses to pass numbers through byte-for-byte).
func (t *Tokenizer) NextNumberText() ([]byte, error) {
	if err := t.skipWS(); err != nil {
		return nil, err
	}
	return t.KnownNumberText()
}

// KnownNumberText reads a number's raw decimal text, assuming the
// caller has already peeked and confirmed a number follows.
func (t *Tokenizer) KnownNumberText() ([]byte, error) {
	return retryParse(t, true, func(buf []byte, pos int) ([]byte, int, error) {
		end, _, err := jlex.ConsumeNumber(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		return append([]byte(nil), buf[pos:end]...), end, nil
	})
}

// NextArray begins reading an array, consuming its opening "[". It
// returns the Peek of the first element and ok == true if the array is
// non-empty (in which case the "]" is not yet consumed), or ok == false
// if the array is empty (in which case "]" has already been consumed).
func (t *Tokenizer) NextArray() (Peek, bool, error) {
	if err := t.skipWS(); err != nil {
		return PeekNone, false, err
	}
	return t.KnownArray()
}

// KnownArray begins reading an array, assuming the caller has already
// peeked and confirmed an array follows.
func (t *Tokenizer) KnownArray() (Peek, bool, error) {
	if err := t.consumeByte('['); err != nil {
		return PeekNone, false, err
	}
	if err := t.skipWS(); err != nil {
		return PeekNone, false, err
	}
	if err := t.ensureByte(); err != nil {
		return PeekNone, false, err
	}
	if t.buf.Buf[t.pos] == ']' {
		if err := t.consumeByte(']'); err != nil {
			return PeekNone, false, err
		}
		return PeekNone, false, nil
	}
	pk, err := jlex.PeekAt(t.buf.Buf[:t.buf.NBytes], t.pos)
	if err != nil {
		return PeekNone, false, wrapLexErr(t.CurrentIndex(), err)
	}
	return pk, true, nil
}

// ArrayStep advances past the separator following an array element. It
// returns the Peek of the next element and ok == true if there is one,
// or ok == false once the closing "]" has been consumed.
func (t *Tokenizer) ArrayStep() (Peek, bool, error) {
	if err := t.skipWS(); err != nil {
		return PeekNone, false, err
	}
	if err := t.ensureByte(); err != nil {
		return PeekNone, false, err
	}
	switch t.buf.Buf[t.pos] {
	case ',':
		if err := t.consumeByte(','); err != nil {
			return PeekNone, false, err
		}
		if err := t.skipWS(); err != nil {
			return PeekNone, false, err
		}
		if err := t.ensureByte(); err != nil {
			return PeekNone, false, err
		}
		pk, err := jlex.PeekAt(t.buf.Buf[:t.buf.NBytes], t.pos)
		if err != nil {
			return PeekNone, false, wrapLexErr(t.CurrentIndex(), err)
		}
		return pk, true, nil
	case ']':
		if err := t.consumeByte(']'); err != nil {
			return PeekNone, false, err
		}
		return PeekNone, false, nil
	default:
		return PeekNone, false, t.errAt(Malformed, fmt.Errorf("expected ',' or ']'"))
	}
}

// NextObject begins reading an object, consuming its opening "{". It
// returns the first key and ok == true if the object is non-empty (the
// caller must then read the key's value and call NextKey for
// subsequent members), or ok == false if the object is empty.
func (t *Tokenizer) NextObject() (string, bool, error) {
	if err := t.skipWS(); err != nil {
		return "", false, err
	}
	return t.KnownObject()
}

// KnownObject begins reading an object, assuming the caller has already
// peeked and confirmed an object follows.
func (t *Tokenizer) KnownObject() (string, bool, error) {
	if err := t.consumeByte('{'); err != nil {
		return "", false, err
	}
	if err := t.skipWS(); err != nil {
		return "", false, err
	}
	if err := t.ensureByte(); err != nil {
		return "", false, err
	}
	if t.buf.Buf[t.pos] == '}' {
		if err := t.consumeByte('}'); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	key, err := t.KnownStr()
	if err != nil {
		return "", false, err
	}
	if err := t.skipWS(); err != nil {
		return "", false, err
	}
	if err := t.consumeByte(':'); err != nil {
		return "", false, err
	}
	return key, true, nil
}

// NextKey advances past the separator following an object member's
// value. It returns the next key and ok == true if there is one, or
// ok == false once the closing "}" has been consumed.
func (t *Tokenizer) NextKey() (string, bool, error) {
	if err := t.skipWS(); err != nil {
		return "", false, err
	}
	if err := t.ensureByte(); err != nil {
		return "", false, err
	}
	switch t.buf.Buf[t.pos] {
	case ',':
		if err := t.consumeByte(','); err != nil {
			return "", false, err
		}
		if err := t.skipWS(); err != nil {
			return "", false, err
		}
	case '}':
		if err := t.consumeByte('}'); err != nil {
			return "", false, err
		}
		return "", false, nil
	default:
		return "", false, t.errAt(Malformed, fmt.Errorf("expected ',' or '}'"))
	}
	key, err := t.KnownStr()
	if err != nil {
		return "", false, err
	}
	if err := t.skipWS(); err != nil {
		return "", false, err
	}
	if err := t.consumeByte(':'); err != nil {
		return "", false, err
	}
	return key, true, nil
}

// NextSkip consumes and discards the next value of any kind, descending
// into nested arrays and objects as needed.
func (t *Tokenizer) NextSkip() error {
	if err := t.skipWS(); err != nil {
		return err
	}
	return t.KnownSkip()
}

// KnownSkip consumes and discards the next value of any kind, assuming
// the caller has already peeked (or doesn't care) what kind it is.
func (t *Tokenizer) KnownSkip() error {
	pk, err := retryParse(t, false, func(buf []byte, pos int) (Peek, int, error) {
		pk, err := jlex.PeekAt(buf, pos)
		return pk, pos, err
	})
	if err != nil {
		return err
	}
	switch pk {
	case PeekString:
		return t.WriteLongBytes(io.Discard)
	case PeekNull:
		return t.KnownNull()
	case PeekTrue, PeekFalse:
		_, err := t.KnownBool()
		return err
	case PeekNumber:
		_, err := t.KnownNumberText()
		return err
	case PeekArray:
		_, ok, err := t.KnownArray()
		if err != nil {
			return err
		}
		for ok {
			if err := t.KnownSkip(); err != nil {
				return err
			}
			_, ok, err = t.ArrayStep()
			if err != nil {
				return err
			}
		}
		return nil
	case PeekObject:
		_, ok, err := t.KnownObject()
		if err != nil {
			return err
		}
		for ok {
			if err := t.NextSkip(); err != nil {
				return err
			}
			_, ok, err = t.NextKey()
			if err != nil {
				return err
			}
		}
		return nil
	default:
		return t.errAt(Malformed, fmt.Errorf("unrecognized value"))
	}
}

// Finish verifies that nothing but whitespace follows the last value
// read, all the way to true end of input.
func (t *Tokenizer) Finish() error {
	t.buf.Shift(0, t.pos)
	t.pos = 0
	pos, ok, err := t.buf.SkipWhitespace(t.pos)
	if err != nil {
		return t.errAt(IOError, err)
	}
	if ok {
		t.pos = pos
		return t.errAt(Malformed, fmt.Errorf("unexpected trailing content"))
	}
	return nil
}
