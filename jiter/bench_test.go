package jiter

import (
	"strings"
	"testing"
)

// BenchmarkScanSmallBuffer walks a moderately nested document through a
// window much smaller than the document itself, exercising the
// refill/shift retry loop on nearly every token.
func BenchmarkScanSmallBuffer(b *testing.B) {
	const doc = `{"name":"John Doe","age":43,"married":true,"phones":["+44 1234567","+44 2345678"],"address":{"city":"London","zip":"E1 6AN"}}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tok := New(strings.NewReader(doc), make([]byte, 16))
		if err := walkValue(tok); err != nil {
			b.Fatalf("walkValue: %v", err)
		}
	}
}

// BenchmarkWriteLongStr measures the pass-through path for a string much
// longer than the tokenizer's window.
func BenchmarkWriteLongStr(b *testing.B) {
	long := `"` + strings.Repeat("a", 8192) + `"`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tok := New(strings.NewReader(long), make([]byte, 64))
		if err := tok.WriteLongStr(discard{}); err != nil {
			b.Fatalf("WriteLongStr: %v", err)
		}
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func walkValue(t *Tokenizer) error {
	pk, err := t.Peek()
	if err != nil {
		return err
	}
	switch pk {
	case PeekObject:
		key, ok, err := t.KnownObject()
		if err != nil {
			return err
		}
		for ok {
			_ = key
			if err := walkValue(t); err != nil {
				return err
			}
			key, ok, err = t.NextKey()
			if err != nil {
				return err
			}
		}
		return nil
	case PeekArray:
		_, ok, err := t.KnownArray()
		if err != nil {
			return err
		}
		for ok {
			if err := walkValue(t); err != nil {
				return err
			}
			_, ok, err = t.ArrayStep()
			if err != nil {
				return err
			}
		}
		return nil
	default:
		return t.KnownSkip()
	}
}
