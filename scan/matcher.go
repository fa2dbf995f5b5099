// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package scan

import (
	"bytes"

	"github.com/olpa/streaming-json/pool"
)

// Pseudo-names occupy a context-path slot where no real JSON key exists.
// They are byte-literals starting with '#' so they never collide with an
// actual key (JSON key bytes are never required to avoid '#', but by
// convention keys that would collide are not expected in practice; Scan
// does not special-case a real key spelled "#top").
var (
	PseudoTop    = []byte("#top")
	PseudoObject = []byte("#object")
	PseudoArray  = []byte("#array")
	PseudoAtom   = []byte("#atom")
)

// ContextIter iterates a Scan context path from innermost (the frame
// directly enclosing the node currently being matched, or, for a real
// object key, the key's own frame) to outermost (the root "#top" frame). It is backed by the same pool.Pool Scan uses to
// track nesting, so constructing one is free; it never copies the path.
type ContextIter struct {
	ctx *pool.Pool
}

func newContextIter(ctx *pool.Pool) ContextIter { return ContextIter{ctx: ctx} }

// Len reports the number of frames currently on the context path.
func (c ContextIter) Len() int { return c.ctx.Len() }

// IsEmpty reports whether the context path is empty.
func (c ContextIter) IsEmpty() bool { return c.ctx.Len() == 0 }

// First returns the innermost frame's name, the same one a single step
// of All would yield. It reports ok == false for an empty context.
func (c ContextIter) First() (name []byte, ok bool) {
	_, data, ok := pool.TopAssoc[frameState](c.ctx)
	return data, ok
}

// All returns a range-over-func iterator yielding each frame's name,
// innermost first.
func (c ContextIter) All() func(yield func([]byte) bool) {
	return func(yield func([]byte) bool) {
		for _, name := range pool.IterAssocRev[frameState](c.ctx) {
			if !yield(name) {
				return
			}
		}
	}
}

// PathMatch reports whether names matches the context path one for one,
// innermost first: names[0] is compared against ctx's first (innermost)
// frame, names[1] against the next, and so on. An empty names always
// matches. Extra frames past len(names) are ignored, so PathMatch
// expresses "ancestor path starts with exactly these names" rather than
// "the whole path is exactly these names".
func PathMatch(names [][]byte, ctx ContextIter) bool {
	i := 0
	matched := true
	ctx.All()(func(name []byte) bool {
		if i >= len(names) {
			return false
		}
		if !bytes.Equal(names[i], name) {
			matched = false
			return false
		}
		i++
		return true
	})
	if i < len(names) {
		return false
	}
	return matched
}
