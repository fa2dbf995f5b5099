// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

// Package streambuf implements a fixed-size byte window over an
// io.Reader, supporting the refill/shift/skip-whitespace operations a
// streaming tokenizer needs to read arbitrarily long input through
// bounded memory.
//
// A Buffer never grows. Callers fill it with ReadMore, consume from the
// front, and reclaim consumed space with Shift, which copies the
// unconsumed tail down to the start of the window. Bytes that scroll out
// of the window are gone for good; Buffer only tracks how many of them
// there were and where the line breaks among them fell, so callers can
// still report accurate positions after the window has moved on.
package streambuf

import "io"

// LineCol is a 1-based line and column position.
type LineCol struct {
	Line   int
	Column int
}

// Buffer is a fixed-capacity byte window fed by an io.Reader.
type Buffer struct {
	r io.Reader

	// Buf is the fixed-size backing array. Buf[:NBytes] holds the bytes
	// currently buffered and not yet shifted out.
	Buf []byte

	// NBytes is the number of valid bytes at the front of Buf.
	NBytes int

	// NShiftedOut is the total number of bytes ever discarded by Shift,
	// i.e. the absolute offset of Buf[0] in the overall input stream.
	NShiftedOut int64

	// posShifted is the line/column of the byte immediately following
	// the last shifted-out byte (i.e. the position represented by
	// Buf[0]).
	posShifted LineCol
}

// New returns a Buffer that reads from r into buf, a caller-owned fixed
// window. buf must be large enough to hold the longest atomic token the
// caller expects to tokenize without a pass-through mechanism (numbers,
// literals, and short strings); long strings and raw byte values are
// streamed through the window in segments instead.
func New(r io.Reader, buf []byte) *Buffer {
	return &Buffer{
		r:          r,
		Buf:        buf,
		posShifted: LineCol{Line: 1, Column: 1},
	}
}

// Cap reports the fixed capacity of the window.
func (b *Buffer) Cap() int { return len(b.Buf) }

// ReadMore reads as many additional bytes as are available into the
// unused tail of the window and appends them to the buffered region. It
// returns the number of bytes read. A return of 0 with a nil error means
// the underlying reader is exhausted (true end of input); ReadMore never
// returns io.EOF itself, since end of input is not an error condition
// for a streaming tokenizer.
func (b *Buffer) ReadMore() (int, error) {
	if b.NBytes >= len(b.Buf) {
		return 0, nil
	}
	n, err := b.r.Read(b.Buf[b.NBytes:])
	b.NBytes += n
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// Shift discards the bytes in [toPos, fromPos), leaves the bytes in
// [0, toPos) in place, and moves the bytes in [fromPos, NBytes) down to
// start at toPos, so subsequent reads can append after the surviving
// tail. toPos must be <= fromPos.
func (b *Buffer) Shift(toPos, fromPos int) {
	if fromPos > toPos {
		b.countNewlines(b.Buf[toPos:fromPos])
		b.NShiftedOut += int64(fromPos - toPos)
	}
	tail := b.NBytes - fromPos
	copy(b.Buf[toPos:toPos+tail], b.Buf[fromPos:b.NBytes])
	b.NBytes = toPos + tail
}

func (b *Buffer) countNewlines(discarded []byte) {
	for _, c := range discarded {
		if c == '\n' {
			b.posShifted.Line++
			b.posShifted.Column = 1
		} else {
			b.posShifted.Column++
		}
	}
}

// ShiftedPosition returns the line/column of the byte at Buf[0].
func (b *Buffer) ShiftedPosition() LineCol { return b.posShifted }

// PositionAt returns the line/column of the byte at the given offset
// within the currently buffered window.
func (b *Buffer) PositionAt(pos int) LineCol {
	lc := b.posShifted
	for i := 0; i < pos && i < b.NBytes; i++ {
		if b.Buf[i] == '\n' {
			lc.Line++
			lc.Column = 1
		} else {
			lc.Column++
		}
	}
	return lc
}

// SkipWhitespace advances past any run of ASCII JSON whitespace starting
// at pos, refilling and shifting the window as needed, and returns the
// position of the first non-whitespace byte. It returns ok == false if
// input is exhausted before a non-whitespace byte is found.
func (b *Buffer) SkipWhitespace(pos int) (int, bool, error) {
	i := pos
	for {
		for i < b.NBytes && isSpace(b.Buf[i]) {
			i++
		}
		if i < b.NBytes {
			// Found a non-whitespace byte: normalize it back to pos so
			// callers always see whitespace-free data starting at pos.
			b.Shift(pos, i)
			return pos, true, nil
		}
		// Ran out of buffered bytes while still skipping whitespace.
		b.Shift(pos, b.NBytes)
		n, err := b.ReadMore()
		if err != nil {
			return pos, false, err
		}
		if n == 0 {
			return pos, false, nil
		}
		i = pos
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
