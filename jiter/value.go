// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package jiter

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/olpa/streaming-json/internal/jlex"
)

// ValueKind classifies the shape of a decoded Value.
type ValueKind int

// Constants defining the valid ValueKind values.
const (
	_ ValueKind = iota
	ValueNull
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValueArray
	ValueObject
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueString:
		return "string"
	case ValueArray:
		return "array"
	case ValueObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is a single key-value pair of a decoded Value of ValueObject kind.
type Member struct {
	Key   string
	Value Value
}

// Value is a fully decoded JSON value: the tree-shaped alternative to
// walking a document with Next*/Known* one token at a time. Only the
// field matching Kind is meaningful; the others are left zero.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Array  []Value
	Object []Member
}

// NextValue reads and fully decodes the next value of any kind,
// descending into nested arrays and objects as needed.
func (t *Tokenizer) NextValue() (Value, error) {
	if err := t.skipWS(); err != nil {
		return Value{}, err
	}
	return t.KnownValue()
}

// KnownValue reads and fully decodes the next value of any kind,
// assuming the caller has already peeked (or doesn't care) what kind it
// is. Numbers are decoded as ValueInt when their text has no fractional
// or exponent part and fits in an int64, and as ValueFloat otherwise.
func (t *Tokenizer) KnownValue() (Value, error) {
	pk, err := retryParse(t, false, func(buf []byte, pos int) (Peek, int, error) {
		pk, err := jlex.PeekAt(buf, pos)
		return pk, pos, err
	})
	if err != nil {
		return Value{}, err
	}
	switch pk {
	case PeekNull:
		if err := t.KnownNull(); err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueNull}, nil
	case PeekTrue, PeekFalse:
		b, err := t.KnownBool()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueBool, Bool: b}, nil
	case PeekString:
		s, err := t.KnownStr()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueString, Str: s}, nil
	case PeekNumber:
		return t.knownNumberValue()
	case PeekArray:
		return t.knownArrayValue()
	case PeekObject:
		return t.knownObjectValue()
	default:
		return Value{}, t.errAt(Malformed, fmt.Errorf("unrecognized value"))
	}
}

func (t *Tokenizer) knownNumberValue() (Value, error) {
	text, err := t.KnownNumberText()
	if err != nil {
		return Value{}, err
	}
	if !bytes.ContainsAny(text, ".eE") {
		if n, perr := strconv.ParseInt(string(text), 10, 64); perr == nil {
			return Value{Kind: ValueInt, Int: n}, nil
		}
	}
	f, perr := strconv.ParseFloat(string(text), 64)
	if perr != nil {
		return Value{}, t.errAt(Malformed, fmt.Errorf("invalid number literal: %v", perr))
	}
	return Value{Kind: ValueFloat, Float: f}, nil
}

func (t *Tokenizer) knownArrayValue() (Value, error) {
	_, ok, err := t.KnownArray()
	if err != nil {
		return Value{}, err
	}
	var elems []Value
	for ok {
		v, err := t.KnownValue()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
		_, ok, err = t.ArrayStep()
		if err != nil {
			return Value{}, err
		}
	}
	return Value{Kind: ValueArray, Array: elems}, nil
}

func (t *Tokenizer) knownObjectValue() (Value, error) {
	key, ok, err := t.KnownObject()
	if err != nil {
		return Value{}, err
	}
	var members []Member
	for ok {
		v, err := t.NextValue()
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: v})
		key, ok, err = t.NextKey()
		if err != nil {
			return Value{}, err
		}
	}
	return Value{Kind: ValueObject, Object: members}, nil
}
