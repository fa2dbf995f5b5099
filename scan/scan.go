// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

// Package scan implements a structural JSON scanner: it walks a
// jiter.Tokenizer end to end, mirrors the enclosing path of keys and
// structural positions in a pool.Pool, and dispatches caller-supplied
// callbacks at the moment it is positioned on a key's value or on a
// structural position (top level, object, array, atom). Callbacks may
// consume the value themselves or let Scan skip over it; either way Scan
// keeps the context path and the tokenizer in lockstep.
package scan

import (
	"fmt"
	"io"

	"github.com/olpa/streaming-json/jiter"
	"github.com/olpa/streaming-json/pool"
)

// Kind classifies why Scan failed.
type Kind int

// Constants defining the valid Kind values.
const (
	_ Kind = iota
	KindTokenizer       // a jiter.Error propagated unchanged in meaning
	KindAction          // a callback returned OpError
	KindNestingExceeded // the context pool ran out of frames
	KindUnbalancedJSON  // input ended with open containers still pending
	KindInternal        // an invariant Scan relies on did not hold
)

func (k Kind) String() string {
	switch k {
	case KindTokenizer:
		return "tokenizer error"
	case KindAction:
		return "action error"
	case KindNestingExceeded:
		return "nesting exceeded"
	case KindUnbalancedJSON:
		return "unbalanced json"
	case KindInternal:
		return "internal error"
	default:
		return "unknown scan error"
	}
}

// Error is the concrete error type returned by Scan.
type Error struct {
	Index int
	Kind  Kind
	err   error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s at byte %d: %v", e.Kind, e.Index, e.err)
	}
	return fmt.Sprintf("%s at byte %d", e.Kind, e.Index)
}

// Unwrap exposes the wrapped error so errors.Is/As see through to the
// tokenizer error or callback error Scan wrapped.
func (e *Error) Unwrap() error { return e.err }

func wrapErr(idx int, kind Kind, err error) *Error {
	return &Error{Index: idx, Kind: kind, err: err}
}

// DefaultMaxNesting is the nesting cap Options uses when MaxNesting is
// left at its zero value.
const DefaultMaxNesting = 20

// Options configures Scan's behavior.
type Options struct {
	// SSETokens are byte literals tried, via jiter's SkipLiteralToken,
	// whenever Scan is at the top level (or one array level below it,
	// exactly 2 frames deep) and the next byte does not begin a JSON
	// value. This tolerates server-sent-events framing like "data: "
	// prefixes and a bare "[DONE]" sentinel interleaved with JSON.
	SSETokens [][]byte

	// StopEarly, if true, makes Scan return as soon as the first
	// top-level value has been fully dispatched, instead of continuing
	// to read further top-level values until true end of input.
	StopEarly bool

	// MaxNesting caps how many frames the context path may hold at
	// once. Zero means DefaultMaxNesting.
	MaxNesting int
}

// frameState is the associated header Scan stores alongside each
// context-path frame's name, per the slice pool's "associated value"
// mechanism. It records enough about the frame's container kind to
// resume correctly after a callback returns ValueConsumed.
type frameState struct {
	isObject    bool
	isArray     bool
	isElemBegin bool
}

// position tracks where the dispatch loop is within the frame it is
// currently processing.
type position int

const (
	posTop position = iota
	posObjectBegin
	posObjectMiddle
	posObjectBetweenKV
	posArrayBegin
	posArrayMiddle
)

// Scan walks t from its current position to end of input (or, with
// Options.StopEarly, through the first top-level value), dispatching
// findAction/findEndAction at each key and structural position. ctx is
// the caller's working buffer for the context path; its capacity bounds
// the nesting depth Scan can represent, independent of Options.MaxNesting
// (whichever limit is smaller governs).
func Scan(findAction FindAction, findEndAction FindEndAction, t *jiter.Tokenizer, baton any, ctx *pool.Pool, opts Options) error {
	maxNesting := opts.MaxNesting
	if maxNesting == 0 {
		maxNesting = DefaultMaxNesting
	}

	if _, err := pool.PushAssoc(ctx, frameState{}, PseudoTop); err != nil {
		return wrapErr(t.CurrentIndex(), KindNestingExceeded, err)
	}

	pos := posTop
	progressed := false

	for {
		if progressed && opts.StopEarly && pos == posTop {
			pool.PopAssoc[frameState](ctx)
			return nil
		}
		progressed = true

		if pos == posObjectBegin || pos == posObjectMiddle {
			next, err := handleObject(findAction, findEndAction, t, baton, ctx, pos, maxNesting)
			if err != nil {
				return err
			}
			pos = next
			continue
		}

		if pos == posArrayBegin || pos == posArrayMiddle {
			peeked, next, more, err := handleArray(findAction, findEndAction, t, baton, ctx, pos, maxNesting)
			if err != nil {
				return err
			}
			if !more {
				pos = next
				continue
			}
			pos = posArrayMiddle
			if err := dispatchValue(findAction, findEndAction, t, baton, ctx, &pos, peeked, opts); err != nil {
				return err
			}
			continue
		}

		peeked, err := t.Peek()
		if err != nil {
			if jerr, ok := err.(*jiter.Error); ok && jerr.Kind == jiter.EndOfInput {
				if pos != posTop {
					return wrapErr(t.CurrentIndex(), KindUnbalancedJSON, nil)
				}
				if ferr := t.Finish(); ferr != nil {
					return wrapErr(t.CurrentIndex(), KindInternal, fmt.Errorf("not at true end of input when EndOfInput was already reported: %w", ferr))
				}
				pool.PopAssoc[frameState](ctx)
				return nil
			}
			return wrapErr(t.CurrentIndex(), KindTokenizer, err)
		}

		if pos == posObjectBetweenKV {
			pos = posObjectMiddle
		}

		if peeked == jiter.PeekArray {
			pos = posArrayBegin
			continue
		}
		if peeked == jiter.PeekObject {
			pos = posObjectBegin
			continue
		}

		if err := dispatchValue(findAction, findEndAction, t, baton, ctx, &pos, peeked, opts); err != nil {
			return err
		}
	}
}

// handleObject advances through a single step of an object: dispatching
// the begin-action on first entry, the previous key's end-action on
// subsequent entries, then finding the next key (or the object's end).
// It leaves the context stack exactly as handleArray does: balanced
// across the whole object's lifetime.
func handleObject(findAction FindAction, findEndAction FindEndAction, t *jiter.Tokenizer, baton any, ctx *pool.Pool, pos position, maxNesting int) (position, error) {
	if pos == posObjectBegin {
		if action := findAction(PseudoObject, newContextIter(ctx)); action != nil {
			op := action(t, baton)
			switch op.Kind {
			case OpError:
				return 0, wrapErr(t.CurrentIndex(), KindAction, op.Err)
			case OpValueConsumed:
				return topPosition(ctx, t)
			}
		}
	}

	if pos != posObjectBegin {
		end := findEndAction(nil, newContextIter(ctx))
		if _, _, ok := pool.PopAssoc[frameState](ctx); !ok {
			return 0, wrapErr(t.CurrentIndex(), KindInternal, fmt.Errorf("context stack empty ending previous object key"))
		}
		if end != nil {
			if err := end(baton); err != nil {
				return 0, wrapErr(t.CurrentIndex(), KindAction, err)
			}
		}
	}

	var key string
	var hasKey bool
	var err error
	if pos == posObjectBegin {
		key, hasKey, err = t.NextObject()
	} else {
		key, hasKey, err = t.NextKey()
	}
	if err != nil {
		return 0, wrapErr(t.CurrentIndex(), KindTokenizer, err)
	}

	if !hasKey {
		if end := findEndAction(PseudoObject, newContextIter(ctx)); end != nil {
			if err := end(baton); err != nil {
				return 0, wrapErr(t.CurrentIndex(), KindAction, err)
			}
		}
		return topPosition(ctx, t)
	}

	if ctx.Len() >= maxNesting {
		return 0, wrapErr(t.CurrentIndex(), KindNestingExceeded, fmt.Errorf("nesting depth %d exceeds limit %d", ctx.Len()+1, maxNesting))
	}
	if _, err := pool.PushAssoc(ctx, frameState{isObject: true}, []byte(key)); err != nil {
		return 0, wrapErr(t.CurrentIndex(), KindNestingExceeded, err)
	}

	if action := findAction(nil, newContextIter(ctx)); action != nil {
		op := action(t, baton)
		switch op.Kind {
		case OpError:
			return 0, wrapErr(t.CurrentIndex(), KindAction, op.Err)
		case OpValueConsumed:
			return posObjectMiddle, nil
		}
	}

	return posObjectBetweenKV, nil
}

// handleArray advances through a single step of an array, mirroring
// handleObject's shape. It returns the next value's Peek and more==true
// if there is one to dispatch, or more==false once the array has ended
// (in which case next is the position resumed from the stack).
func handleArray(findAction FindAction, findEndAction FindEndAction, t *jiter.Tokenizer, baton any, ctx *pool.Pool, pos position, maxNesting int) (peeked jiter.Peek, next position, more bool, err error) {
	if pos == posArrayBegin {
		if action := findAction(PseudoArray, newContextIter(ctx)); action != nil {
			op := action(t, baton)
			switch op.Kind {
			case OpError:
				return 0, 0, false, wrapErr(t.CurrentIndex(), KindAction, op.Err)
			case OpValueConsumed:
				p, rerr := topPosition(ctx, t)
				return 0, p, false, rerr
			}
		}
		if ctx.Len() >= maxNesting {
			return 0, 0, false, wrapErr(t.CurrentIndex(), KindNestingExceeded, fmt.Errorf("nesting depth %d exceeds limit %d", ctx.Len()+1, maxNesting))
		}
		if _, perr := pool.PushAssoc(ctx, frameState{isArray: true}, PseudoArray); perr != nil {
			return 0, 0, false, wrapErr(t.CurrentIndex(), KindNestingExceeded, perr)
		}
	}

	var pk jiter.Peek
	var ok bool
	if pos == posArrayBegin {
		pk, ok, err = t.KnownArray()
	} else {
		pk, ok, err = t.ArrayStep()
	}
	if err != nil {
		return 0, 0, false, wrapErr(t.CurrentIndex(), KindTokenizer, err)
	}

	if !ok {
		if _, _, popOk := pool.PopAssoc[frameState](ctx); !popOk {
			return 0, 0, false, wrapErr(t.CurrentIndex(), KindInternal, fmt.Errorf("context stack empty ending array"))
		}
		if end := findEndAction(PseudoArray, newContextIter(ctx)); end != nil {
			if eerr := end(baton); eerr != nil {
				return 0, 0, false, wrapErr(t.CurrentIndex(), KindAction, eerr)
			}
		}
		p, rerr := topPosition(ctx, t)
		return 0, p, false, rerr
	}

	return pk, posArrayMiddle, true, nil
}

// dispatchValue handles an atomic value (or, for SSE tolerance, a
// non-value token) at the current position: it runs the atom action if
// one matches, otherwise skips the value with the tokenizer directly.
// Once a JSON value has been consumed either way, the matching #atom end
// action, if any, runs.
func dispatchValue(findAction FindAction, findEndAction FindEndAction, t *jiter.Tokenizer, baton any, ctx *pool.Pool, pos *position, peeked jiter.Peek, opts Options) error {
	endAtom := func() error {
		if end := findEndAction(PseudoAtom, newContextIter(ctx)); end != nil {
			if err := end(baton); err != nil {
				return wrapErr(t.CurrentIndex(), KindAction, err)
			}
		}
		return nil
	}

	if action := findAction(PseudoAtom, newContextIter(ctx)); action != nil {
		op := action(t, baton)
		switch op.Kind {
		case OpError:
			return wrapErr(t.CurrentIndex(), KindAction, op.Err)
		case OpValueConsumed:
			return endAtom()
		}
	}

	if isBasicValue(peeked) {
		if err := skipBasicValue(t, peeked); err != nil {
			return err
		}
		return endAtom()
	}

	// Not a recognized JSON value: only acceptable at the top level, or
	// one array level deep (the "[DONE]" sentinel shape), and only if
	// one of the configured SSE tokens matches.
	if *pos == posTop || (*pos == posArrayMiddle && ctx.Len() == 2) {
		for _, tok := range opts.SSETokens {
			found, err := t.SkipLiteralToken(tok)
			if err != nil {
				return wrapErr(t.CurrentIndex(), KindTokenizer, err)
			}
			if found {
				return nil
			}
		}
	}

	return wrapErr(t.CurrentIndex(), KindTokenizer, fmt.Errorf("unhandled value of kind %v", peeked))
}

func isBasicValue(pk jiter.Peek) bool {
	switch pk {
	case jiter.PeekString, jiter.PeekNull, jiter.PeekTrue, jiter.PeekFalse, jiter.PeekNumber:
		return true
	default:
		return false
	}
}

func skipBasicValue(t *jiter.Tokenizer, pk jiter.Peek) error {
	var err error
	switch pk {
	case jiter.PeekString:
		err = t.WriteLongBytes(io.Discard)
	case jiter.PeekNull:
		err = t.KnownNull()
	case jiter.PeekTrue, jiter.PeekFalse:
		_, err = t.KnownBool()
	case jiter.PeekNumber:
		_, err = t.KnownNumberText()
	default:
		return wrapErr(t.CurrentIndex(), KindInternal, fmt.Errorf("skipBasicValue called with non-basic peek %v", pk))
	}
	if err != nil {
		return wrapErr(t.CurrentIndex(), KindTokenizer, err)
	}
	return nil
}

// topPosition resumes the position a frame had before it was entered, by
// reading the frameState of whatever is now on top of the context stack.
// The contract Scan maintains throughout is that the stack's state after
// any frame ends is identical to its state before that frame began.
func topPosition(ctx *pool.Pool, t *jiter.Tokenizer) (position, error) {
	top, _, ok := pool.TopAssoc[frameState](ctx)
	if !ok {
		return 0, wrapErr(t.CurrentIndex(), KindInternal, fmt.Errorf("context stack empty"))
	}
	switch {
	case top.isArray:
		return posArrayMiddle, nil
	case top.isObject:
		return posObjectMiddle, nil
	default:
		return posTop, nil
	}
}
