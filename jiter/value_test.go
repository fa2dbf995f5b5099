package jiter

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNextValueScalars(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  Value
	}{
		{"null", Value{Kind: ValueNull}},
		{"true", Value{Kind: ValueBool, Bool: true}},
		{"false", Value{Kind: ValueBool, Bool: false}},
		{`"hi"`, Value{Kind: ValueString, Str: "hi"}},
		{"42", Value{Kind: ValueInt, Int: 42}},
		{"-7", Value{Kind: ValueInt, Int: -7}},
		{"3.5", Value{Kind: ValueFloat, Float: 3.5}},
		{"1e3", Value{Kind: ValueFloat, Float: 1000}},
	} {
		tok := newTokenizer(tc.input)
		got, err := tok.NextValue()
		if err != nil {
			t.Fatalf("NextValue(%q): unexpected error: %v", tc.input, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("NextValue(%q) mismatch (-want +got):\n%s", tc.input, diff)
		}
	}
}

func TestNextValueNested(t *testing.T) {
	const input = `{"name":"Ann","age":30,"tags":["a","b"],"meta":{"x":1,"y":null}}`
	tok := newTokenizer(input)
	got, err := tok.NextValue()
	if err != nil {
		t.Fatalf("NextValue: unexpected error: %v", err)
	}

	want := Value{Kind: ValueObject, Object: []Member{
		{Key: "name", Value: Value{Kind: ValueString, Str: "Ann"}},
		{Key: "age", Value: Value{Kind: ValueInt, Int: 30}},
		{Key: "tags", Value: Value{Kind: ValueArray, Array: []Value{
			{Kind: ValueString, Str: "a"},
			{Kind: ValueString, Str: "b"},
		}}},
		{Key: "meta", Value: Value{Kind: ValueObject, Object: []Member{
			{Key: "x", Value: Value{Kind: ValueInt, Int: 1}},
			{Key: "y", Value: Value{Kind: ValueNull}},
		}}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NextValue nested mismatch (-want +got):\n%s", diff)
	}

	if err := tok.Finish(); err != nil {
		t.Errorf("Finish: unexpected error: %v", err)
	}
}

func TestNextValueEmptyContainers(t *testing.T) {
	tok := newTokenizer(`{"a":[],"b":{}}`)
	got, err := tok.NextValue()
	if err != nil {
		t.Fatalf("NextValue: unexpected error: %v", err)
	}
	want := Value{Kind: ValueObject, Object: []Member{
		{Key: "a", Value: Value{Kind: ValueArray}},
		{Key: "b", Value: Value{Kind: ValueObject}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NextValue mismatch (-want +got):\n%s", diff)
	}
}

func TestNextValueAcrossSmallChunks(t *testing.T) {
	const input = `{"a":[1,2,3],"b":"hello world"}`
	tok := New(oneByteReader{r: strings.NewReader(input)}, make([]byte, 16))
	got, err := tok.NextValue()
	if err != nil {
		t.Fatalf("NextValue: unexpected error: %v", err)
	}
	want := Value{Kind: ValueObject, Object: []Member{
		{Key: "a", Value: Value{Kind: ValueArray, Array: []Value{
			{Kind: ValueInt, Int: 1},
			{Kind: ValueInt, Int: 2},
			{Kind: ValueInt, Int: 3},
		}}},
		{Key: "b", Value: Value{Kind: ValueString, Str: "hello world"}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NextValue mismatch (-want +got):\n%s", diff)
	}
}
