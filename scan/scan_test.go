package scan

import (
	"bytes"
	"strings"
	"testing"

	"github.com/olpa/streaming-json/jiter"
	"github.com/olpa/streaming-json/pool"
)

// oneByteReader serves its wrapped bytes one at a time, exercising the
// scanner's refill loop through jiter on every single byte boundary.
type oneByteReader struct{ s string }

func (o *oneByteReader) Read(p []byte) (int, error) {
	if len(o.s) == 0 {
		return 0, nil
	}
	n := copy(p, o.s[:1])
	o.s = o.s[1:]
	return n, nil
}

func newScanTokenizer(input string, bufSize int) *jiter.Tokenizer {
	return jiter.New(strings.NewReader(input), make([]byte, bufSize))
}

func noAction([]byte, ContextIter) Action       { return nil }
func noEndAction([]byte, ContextIter) EndAction { return nil }
func newCtx(t *testing.T, maxSlices int) *pool.Pool {
	t.Helper()
	p, err := pool.New(make([]byte, 4096), maxSlices)
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	return p
}

// TestScanCountsFrames drives a small object with a nested array through
// a 16-byte buffer with no callbacks, checking that the context path
// reaches the expected maximum nesting and returns to empty once the
// whole document has been walked.
func TestScanCountsFrames(t *testing.T) {
	input := `{"name":"John Doe","age":43,"phones":["+44 1234567","+44 2345678"]}`
	tok := newScanTokenizer(input, 16)
	ctx := newCtx(t, 32)

	dispatches := 0
	maxDepth := 0
	findAction := func(name []byte, c ContextIter) Action {
		dispatches++
		if d := c.Len(); d > maxDepth {
			maxDepth = d
		}
		return nil
	}

	if err := Scan(findAction, noEndAction, tok, nil, ctx, Options{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if err := tok.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if maxDepth != 3 {
		t.Errorf("max depth = %d, want 3 (top -> phones -> array)", maxDepth)
	}
	if !ctx.IsEmpty() {
		t.Errorf("ctx.IsEmpty() = false after scan, want the context path fully unwound")
	}
	if dispatches == 0 {
		t.Error("expected at least one findAction dispatch")
	}
}

// TestScanDispatchOrdering verifies that begin(K) precedes any dispatch
// inside K's value, which precedes end(K), and that every begin has a
// matching end in LIFO order.
func TestScanDispatchOrdering(t *testing.T) {
	input := `{"a":{"b":1,"c":2},"d":3}`
	tok := newScanTokenizer(input, 8)
	ctx := newCtx(t, 32)

	var events []string
	findAction := func(name []byte, c ContextIter) Action {
		if name != nil {
			return nil // real key: record on the End side using ctx.First
		}
		key, _ := c.First()
		events = append(events, "begin:"+string(key))
		return nil
	}
	findEndAction := func(name []byte, c ContextIter) EndAction {
		if name != nil {
			return nil
		}
		// The context path still holds the ending frame at this point;
		// snapshot its key now rather than inside the returned closure,
		// which runs after Scan has already popped the frame.
		key, _ := c.First()
		ending := append([]byte(nil), key...)
		return func(any) error {
			events = append(events, "end:"+string(ending))
			return nil
		}
	}

	if err := Scan(findAction, findEndAction, tok, nil, ctx, Options{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []string{"begin:a", "begin:b", "end:b", "begin:c", "end:c", "end:a", "begin:d", "end:d"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

// TestScanValueConsumed verifies that a callback which reads the value
// itself with WriteLongStr and returns ValueConsumed keeps Scan from
// also trying to skip that value.
func TestScanValueConsumed(t *testing.T) {
	input := `{"message":{"role":"user","content":"hello world"}}`
	tok := newScanTokenizer(input, 16)
	ctx := newCtx(t, 32)

	var got string
	findAction := func(name []byte, c ContextIter) Action {
		if name != nil {
			return nil
		}
		key, ok := c.First()
		if !ok || string(key) != "content" {
			return nil
		}
		parent, ok := parentName(c)
		if !ok || string(parent) != "message" {
			return nil
		}
		return func(t *jiter.Tokenizer, baton any) StreamOp {
			var buf bytes.Buffer
			if err := t.WriteLongStr(&buf); err != nil {
				return OpErr(err)
			}
			got = buf.String()
			return ValueConsumed()
		}
	}

	if err := Scan(findAction, noEndAction, tok, nil, ctx, Options{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got != "hello world" {
		t.Errorf("consumed content = %q, want %q", got, "hello world")
	}
}

// parentName returns the name of the frame directly enclosing the
// innermost one, i.e. the second frame the iterator yields.
func parentName(c ContextIter) ([]byte, bool) {
	i := 0
	var name []byte
	found := false
	c.All()(func(n []byte) bool {
		if i == 1 {
			name = n
			found = true
			return false
		}
		i++
		return true
	})
	return name, found
}

// TestScanPathMatch verifies that path_match only fires a callback when
// the enclosing path matches exactly, e.g. "content" nested in "message"
// but not a same-named "content" elsewhere.
func TestScanPathMatch(t *testing.T) {
	input := `{"content":"top","message":{"content":"nested"}}`
	tok := newScanTokenizer(input, 16)
	ctx := newCtx(t, 32)

	var matched []string
	findAction := func(name []byte, c ContextIter) Action {
		if name != nil {
			return nil
		}
		if !PathMatch([][]byte{[]byte("content"), []byte("message")}, c) {
			return nil
		}
		return func(t *jiter.Tokenizer, baton any) StreamOp {
			s, err := t.NextStr()
			if err != nil {
				return OpErr(err)
			}
			matched = append(matched, s)
			return ValueConsumed()
		}
	}

	if err := Scan(findAction, noEndAction, tok, nil, ctx, Options{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(matched) != 1 || matched[0] != "nested" {
		t.Errorf("matched = %v, want [nested]", matched)
	}
}

// TestScanNestingExceeded verifies that nesting deeper than MaxNesting
// fails with KindNestingExceeded.
func TestScanNestingExceeded(t *testing.T) {
	var sb strings.Builder
	depth := 25
	for i := 0; i < depth; i++ {
		sb.WriteString(`{"a":`)
	}
	sb.WriteString("1")
	for i := 0; i < depth; i++ {
		sb.WriteString("}")
	}

	tok := newScanTokenizer(sb.String(), 32)
	ctx := newCtx(t, 64)

	err := Scan(noAction, noEndAction, tok, nil, ctx, Options{MaxNesting: 20})
	if err == nil {
		t.Fatal("Scan: got nil error, want NestingExceeded")
	}
	serr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type %T, want *scan.Error", err)
	}
	if serr.Kind != KindNestingExceeded {
		t.Errorf("Kind = %v, want KindNestingExceeded", serr.Kind)
	}
}

// TestScanUnterminatedString verifies that a string left unterminated at
// true end of input surfaces as a tokenizer error, not a hang or panic.
func TestScanUnterminatedString(t *testing.T) {
	input := `{"x": "unterminated`
	tok := newScanTokenizer(input, 64)
	ctx := newCtx(t, 32)

	err := Scan(noAction, noEndAction, tok, nil, ctx, Options{})
	if err == nil {
		t.Fatal("Scan: got nil error, want a tokenizer error")
	}
	serr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type %T, want *scan.Error", err)
	}
	if serr.Kind != KindTokenizer {
		t.Errorf("Kind = %v, want KindTokenizer", serr.Kind)
	}
}

// TestScanSSEInterleave verifies that with SSETokens configured, a
// "data: ...\n\n"-framed stream produces the same callback sequence as
// the inlined JSON objects alone.
func TestScanSSEInterleave(t *testing.T) {
	sse := "data: {\"n\":1}\n\ndata: {\"n\":2}\n\ndata: [DONE]\n"
	plain := `{"n":1}{"n":2}`

	run := func(input string, sseTokens [][]byte) []int {
		tok := jiter.New(&oneByteReader{s: input}, make([]byte, 32))
		ctx := newCtx(t, 32)
		var got []int
		findAction := func(name []byte, c ContextIter) Action {
			if name != nil {
				return nil
			}
			key, ok := c.First()
			if !ok || string(key) != "n" {
				return nil
			}
			return func(t *jiter.Tokenizer, baton any) StreamOp {
				n, err := t.NextInt()
				if err != nil {
					return OpErr(err)
				}
				got = append(got, int(n))
				return ValueConsumed()
			}
		}
		if err := Scan(findAction, noEndAction, tok, nil, ctx, Options{SSETokens: sseTokens}); err != nil {
			t.Fatalf("Scan(%q): %v", input, err)
		}
		return got
	}

	// "DONE" is configured without its surrounding brackets: the '[' and
	// ']' of the "[DONE]" sentinel parse as an ordinary (if empty of real
	// values) array, and only the bare word in between needs the literal
	// skip - matching how the corpus this is grounded on lists its own
	// SSE tokens as ["data:", "DONE"], not ["data:", "[DONE]"].
	gotSSE := run(sse, [][]byte{[]byte("data:"), []byte("DONE")})
	gotPlain := run(plain, nil)

	if len(gotSSE) != len(gotPlain) {
		t.Fatalf("SSE result = %v, plain result = %v", gotSSE, gotPlain)
	}
	for i := range gotPlain {
		if gotSSE[i] != gotPlain[i] {
			t.Errorf("index %d: SSE = %d, plain = %d", i, gotSSE[i], gotPlain[i])
		}
	}
}

// TestScanStopEarly verifies that Options.StopEarly returns after the
// first top-level value without reading a second one.
func TestScanStopEarly(t *testing.T) {
	input := `{"a":1}{"b":2}`
	tok := newScanTokenizer(input, 16)
	ctx := newCtx(t, 32)

	seen := map[string]bool{}
	findAction := func(name []byte, c ContextIter) Action {
		if name != nil {
			return nil
		}
		if key, ok := c.First(); ok {
			seen[string(key)] = true
		}
		return nil
	}

	if err := Scan(findAction, noEndAction, tok, nil, ctx, Options{StopEarly: true}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !seen["a"] || seen["b"] {
		t.Errorf("seen = %v, want only a", seen)
	}
}

// TestScanArrayElementCallbacks verifies that the #array pseudoname is
// dispatched once, when the array begins (not once per element), and
// that the elements are skipped when no callback claims them.
func TestScanArrayElementCallbacks(t *testing.T) {
	input := `[1,2,3]`
	tok := newScanTokenizer(input, 16)
	ctx := newCtx(t, 32)

	arrayBegins := 0
	findAction := func(name []byte, c ContextIter) Action {
		if bytes.Equal(name, PseudoArray) {
			arrayBegins++
		}
		return nil
	}

	if err := Scan(findAction, noEndAction, tok, nil, ctx, Options{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if err := tok.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if arrayBegins != 1 {
		t.Errorf("array begin dispatches = %d, want 1", arrayBegins)
	}
}

// TestScanRoundTripIdentity drives Scan with IdentityTransform and checks
// the output reproduces the input's structure and values.
func TestScanRoundTripIdentity(t *testing.T) {
	input := `{"a":1,"b":[true,false,null,"x"],"c":{}}`
	tok := newScanTokenizer(input, 8)
	ctx := newCtx(t, 32)

	var out bytes.Buffer
	findAction, findEndAction := IdentityTransform(&out)

	if err := Scan(findAction, findEndAction, tok, nil, ctx, Options{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := `{"a":1,"b":[true,false,null,"x"],"c":{}}`
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

// TestScanCallbackError verifies that a callback returning an error
// aborts the scan and the error is wrapped as ActionError-equivalent
// KindAction, carrying the current byte index.
func TestScanCallbackError(t *testing.T) {
	input := `{"a":1,"b":2}`
	tok := newScanTokenizer(input, 16)
	ctx := newCtx(t, 32)

	sentinel := errBoom
	calls := 0
	findAction := func(name []byte, c ContextIter) Action {
		if name != nil {
			return nil
		}
		key, ok := c.First()
		if !ok || string(key) != "b" {
			return nil
		}
		return func(*jiter.Tokenizer, any) StreamOp {
			calls++
			return OpErr(sentinel)
		}
	}

	err := Scan(findAction, noEndAction, tok, nil, ctx, Options{})
	if err == nil {
		t.Fatal("Scan: got nil error, want ActionError")
	}
	serr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type %T, want *scan.Error", err)
	}
	if serr.Kind != KindAction {
		t.Errorf("Kind = %v, want KindAction", serr.Kind)
	}
	if serr.Unwrap() != sentinel {
		t.Errorf("Unwrap() = %v, want %v", serr.Unwrap(), sentinel)
	}
	if calls != 1 {
		t.Errorf("callback invoked %d times, want 1", calls)
	}
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
