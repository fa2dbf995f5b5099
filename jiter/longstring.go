package jiter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/olpa/streaming-json/internal/jlex"
)

// WriteLongBytes copies a string value's raw, undecoded bytes (the
// quotes themselves excluded) to w, refilling the window as many times
// as necessary. Unlike KnownBytes, the string need not fit inside the
// buffered window at once. It assumes the current position is at the
// value's opening quote, and consumes through the closing quote.
func (t *Tokenizer) WriteLongBytes(w io.Writer) error {
	return t.writeLong(w, func(segment []byte) ([]byte, error) { return segment, nil })
}

// WriteLongStr copies a string value's decoded contents to w, the same
// way WriteLongBytes does for the raw bytes. Escape sequences are
// decoded segment by segment; FindStringSegmentEnd guarantees no segment
// boundary splits an escape or a multi-byte UTF-8 sequence, so decoding
// each segment independently produces the same result as decoding the
// whole string at once.
func (t *Tokenizer) WriteLongStr(w io.Writer) error {
	return t.writeLong(w, jlex.DecodeStringContent)
}

func (t *Tokenizer) writeLong(w io.Writer, transform func([]byte) ([]byte, error)) error {
	if err := t.skipWS(); err != nil {
		return err
	}
	if err := t.consumeByte('"'); err != nil {
		return err
	}
	for {
		buf := t.buf.Buf[:t.buf.NBytes]
		boundary, closed, err := jlex.FindStringSegmentEnd(buf, t.pos)
		if err != nil && !jlex.IsEndOfBuffer(err) {
			return wrapLexErr(t.CurrentIndex(), err)
		}
		if boundary > t.pos {
			out, terr := transform(buf[t.pos:boundary])
			if terr != nil {
				return wrapLexErr(t.CurrentIndex(), terr)
			}
			if _, werr := w.Write(out); werr != nil {
				return t.errAt(IOError, werr)
			}
		}
		if closed {
			t.pos = boundary + 1
			return nil
		}

		t.buf.Shift(0, boundary)
		t.pos = 0
		n, rerr := t.buf.ReadMore()
		if rerr != nil {
			return t.errAt(IOError, rerr)
		}
		if n == 0 {
			return t.errAt(EndOfInput, fmt.Errorf("unterminated string"))
		}
	}
}

// SkipLiteralToken attempts to match tok starting at the current
// position, without first skipping whitespace (callers that want
// whitespace tolerance should skip it themselves first). It reports
// found == true and consumes tok if it matches. A short read at true end
// of input — not enough bytes ever arrive to decide — is reported as
// found == false rather than as an error, matching the original
// skip_literal_token behavior this is based on: it lets scan detect the
// end of a token stream like an SSE "[DONE]" sentinel without treating
// ordinary end of input as a failure.
func (t *Tokenizer) SkipLiteralToken(tok []byte) (bool, error) {
	for {
		buf := t.buf.Buf[:t.buf.NBytes]
		if t.pos+len(tok) <= len(buf) {
			if bytes.Equal(buf[t.pos:t.pos+len(tok)], tok) {
				t.pos += len(tok)
				return true, nil
			}
			return false, nil
		}
		// Not enough bytes yet to know: what's present must still be a
		// prefix of tok, or it's definitely not a match.
		have := buf[t.pos:]
		if !bytes.Equal(have, tok[:len(have)]) {
			return false, nil
		}
		t.buf.Shift(0, t.pos)
		t.pos = 0
		n, rerr := t.buf.ReadMore()
		if rerr != nil {
			return false, t.errAt(IOError, rerr)
		}
		if n == 0 {
			return false, nil
		}
	}
}

// LookaheadN ensures at least n bytes are buffered starting at the
// current position, refilling as needed, and returns them without
// consuming them. It fails with EndOfInput if fewer than n bytes are
// ever available.
func (t *Tokenizer) LookaheadN(n int) ([]byte, error) {
	for {
		buf := t.buf.Buf[:t.buf.NBytes]
		if t.pos+n <= len(buf) {
			return buf[t.pos : t.pos+n], nil
		}
		if n > len(t.buf.Buf) {
			return nil, t.errAt(IOError, fmt.Errorf("lookahead of %d bytes exceeds buffer capacity", n))
		}
		t.buf.Shift(0, t.pos)
		t.pos = 0
		r, rerr := t.buf.ReadMore()
		if rerr != nil {
			return nil, t.errAt(IOError, rerr)
		}
		if r == 0 {
			return nil, t.errAt(EndOfInput, fmt.Errorf("fewer than %d bytes remain", n))
		}
	}
}

// LookaheadWhile returns the maximal run of bytes starting at the
// current position for which pred holds, without consuming them,
// refilling the window as needed while pred keeps holding. It fails if
// the run would need to grow past the edge of the buffer's fixed
// capacity to determine its true extent.
func (t *Tokenizer) LookaheadWhile(pred func(byte) bool) ([]byte, error) {
	for {
		buf := t.buf.Buf[:t.buf.NBytes]
		i := t.pos
		for i < len(buf) && pred(buf[i]) {
			i++
		}
		if i < len(buf) {
			// A disqualifying byte was found: the run's extent is final.
			return buf[t.pos:i], nil
		}
		// pred held all the way to the edge of what's buffered; find out
		// whether there's more.
		if t.buf.NBytes-t.pos >= len(t.buf.Buf) {
			return nil, t.errAt(IOError, fmt.Errorf("lookahead run exceeds buffer capacity"))
		}
		t.buf.Shift(0, t.pos)
		t.pos = 0
		n, rerr := t.buf.ReadMore()
		if rerr != nil {
			return nil, t.errAt(IOError, rerr)
		}
		if n == 0 {
			return t.buf.Buf[:t.buf.NBytes], nil
		}
	}
}
