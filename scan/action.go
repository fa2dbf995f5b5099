// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package scan

import "github.com/olpa/streaming-json/jiter"

// StreamOpKind classifies what a callback asked the scanner to do next.
type StreamOpKind int

// Constants defining the valid StreamOpKind values.
const (
	// OpNone means the scanner should consume the current value itself
	// (descend into it if it's an object or array, or skip it if it's
	// atomic).
	OpNone StreamOpKind = iota

	// OpValueConsumed means the callback already read the value; the
	// scanner must not read it again.
	OpValueConsumed

	// OpError means the callback failed; Scan aborts with Err.
	OpError
)

// StreamOp is the tri-state result a Action returns to Scan.
type StreamOp struct {
	Kind StreamOpKind
	Err  error
}

// None reports that Scan should consume the current value itself.
func None() StreamOp { return StreamOp{Kind: OpNone} }

// ValueConsumed reports that the callback has already consumed the value.
func ValueConsumed() StreamOp { return StreamOp{Kind: OpValueConsumed} }

// OpErr wraps err as a StreamOp reporting failure.
func OpErr(err error) StreamOp { return StreamOp{Kind: OpError, Err: err} }

// Action is invoked when Scan is positioned on the value of a key or
// structural position matched by a FindAction. It may read the value
// through t, or leave it untouched for Scan to skip.
type Action func(t *jiter.Tokenizer, baton any) StreamOp

// EndAction is invoked after the value matched by a FindEndAction has
// been fully consumed or walked.
type EndAction func(baton any) error

// FindAction decides whether name, in the enclosing path given by ctx,
// has a callback. It returns nil if no callback applies. name is one of
// the pseudo-names PseudoObject, PseudoArray or PseudoAtom, or nil for a
// real object key, in which case the key is the innermost frame of ctx
// (ctx.First). PseudoTop is never passed as name.
type FindAction func(name []byte, ctx ContextIter) Action

// FindEndAction is the end-dispatch counterpart of FindAction, invoked
// with the same name and ctx after the matched value has been walked.
type FindEndAction func(name []byte, ctx ContextIter) EndAction
