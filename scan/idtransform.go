// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package scan

import (
	"bytes"
	"fmt"
	"io"

	"github.com/olpa/streaming-json/jiter"
)

// CopyAtom copies the atomic value t is currently positioned on (string,
// number, boolean, or null) to dst byte-for-byte: strings are copied
// with their surrounding quotes and escapes intact, numbers with their
// original decimal text. It advances t past the value.
func CopyAtom(dst *bytes.Buffer, t *jiter.Tokenizer) error {
	peeked, err := t.Peek()
	if err != nil {
		return err
	}
	switch peeked {
	case jiter.PeekString:
		dst.WriteByte('"')
		if err := t.WriteLongBytes(dst); err != nil {
			return err
		}
		dst.WriteByte('"')
		return nil
	case jiter.PeekNull:
		if err := t.KnownNull(); err != nil {
			return err
		}
		dst.WriteString("null")
		return nil
	case jiter.PeekTrue, jiter.PeekFalse:
		b, err := t.KnownBool()
		if err != nil {
			return err
		}
		if b {
			dst.WriteString("true")
		} else {
			dst.WriteString("false")
		}
		return nil
	case jiter.PeekNumber:
		num, err := t.KnownNumberText()
		if err != nil {
			return err
		}
		dst.Write(num)
		return nil
	default:
		return fmt.Errorf("CopyAtom: unhandled peek %v", peeked)
	}
}

// seqPos tracks where idState is within the comma/colon bookkeeping of
// the container it is currently writing into.
type seqPos int

const (
	seqAtBeginning seqPos = iota
	seqInMiddle
)

type idState struct {
	w          io.Writer
	seq        seqPos
	afterKey   bool // the last thing written was "key": ; no separator due
	isTopLevel bool
	writeErr   error
}

// writeSeq writes whatever separator belongs before the next value: a
// space between top-level documents, a comma between siblings in the
// same container, or nothing at the start of a container or right after
// a "key": has just been written.
func (s *idState) writeSeq() {
	if s.writeErr != nil {
		return
	}
	if s.afterKey {
		s.afterKey = false
		return
	}
	switch s.seq {
	case seqAtBeginning:
		s.seq = seqInMiddle
	case seqInMiddle:
		if s.isTopLevel {
			s.write([]byte(" "))
		} else {
			s.write([]byte(","))
		}
	}
}

func (s *idState) write(b []byte) {
	if s.writeErr != nil {
		return
	}
	_, s.writeErr = s.w.Write(b)
}

// IdentityTransform returns a FindAction/FindEndAction pair that copy
// every value Scan walks through to w unchanged, collapsing whitespace
// to a single canonical form (a space between top-level documents, the
// minimal punctuation inside objects and arrays). It is the baseline,
// no-op transform: driving Scan with the returned pair reproduces the
// input's structure byte-for-byte modulo whitespace, which makes it a
// convenient smoke test for Scan itself and a starting point for
// callers that only want to intercept a handful of keys.
func IdentityTransform(w io.Writer) (FindAction, FindEndAction) {
	st := &idState{w: w, seq: seqAtBeginning, isTopLevel: true}

	findAction := func(name []byte, ctx ContextIter) Action {
		st.isTopLevel = ctx.Len() < 2
		switch {
		case bytes.Equal(name, PseudoAtom):
			return idOnAtom(st)
		case bytes.Equal(name, PseudoObject):
			return idOnStruct(st, '{')
		case bytes.Equal(name, PseudoArray):
			return idOnStruct(st, '[')
		case name == nil:
			// A real object key, already pushed as the innermost frame.
			if keyName, ok := ctx.First(); ok && !bytes.Equal(keyName, PseudoTop) && !bytes.Equal(keyName, PseudoArray) {
				key := append([]byte(nil), keyName...)
				return idOnKey(st, key)
			}
			return nil
		default:
			return nil
		}
	}

	findEndAction := func(name []byte, _ ContextIter) EndAction {
		switch {
		case bytes.Equal(name, PseudoObject):
			return idOnStructEnd(st, '}')
		case bytes.Equal(name, PseudoArray):
			return idOnStructEnd(st, ']')
		default:
			return nil
		}
	}

	return findAction, findEndAction
}

func idOnKey(st *idState, key []byte) Action {
	return func(_ *jiter.Tokenizer, _ any) StreamOp {
		st.writeSeq()
		st.write([]byte{'"'})
		st.write(key)
		st.write([]byte{'"', ':'})
		st.afterKey = true
		if st.writeErr != nil {
			return OpErr(st.writeErr)
		}
		return None()
	}
}

func idOnAtom(st *idState) Action {
	return func(t *jiter.Tokenizer, _ any) StreamOp {
		st.writeSeq()
		if st.writeErr != nil {
			return OpErr(st.writeErr)
		}
		var buf bytes.Buffer
		if err := CopyAtom(&buf, t); err != nil {
			return OpErr(err)
		}
		st.write(buf.Bytes())
		if st.writeErr != nil {
			return OpErr(st.writeErr)
		}
		return ValueConsumed()
	}
}

func idOnStruct(st *idState, open byte) Action {
	return func(_ *jiter.Tokenizer, _ any) StreamOp {
		st.writeSeq()
		st.write([]byte{open})
		if st.writeErr != nil {
			return OpErr(st.writeErr)
		}
		st.seq = seqAtBeginning
		return None()
	}
}

func idOnStructEnd(st *idState, close byte) EndAction {
	return func(_ any) error {
		st.seq = seqInMiddle
		st.write([]byte{close})
		return st.writeErr
	}
}
