package stream

import (
	"slices"
	"testing"
)

func feedAll(b *LineBuffer, chunks ...string) []string {
	var out []string
	for _, chunk := range chunks {
		for _, line := range b.Feed([]byte(chunk)) {
			out = append(out, string(line))
		}
	}
	if rest, ok := b.Flush(); ok {
		out = append(out, string(rest))
	}
	return out
}

func TestLineBuffer(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
	}{
		{"split record", []string{`{"a":1}` + "\n" + `{"b`, `":2}` + "\n", `{"c":3}`}, []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}},
		{"no trailing partial", []string{"one\ntwo\n"}, []string{"one", "two"}},
		{"byte at a time", []string{"a", "b", "\n", "c"}, []string{"ab", "c"}},
		{"blank lines kept", []string{"a\n\nb\n"}, []string{"a", "", "b"}},
		{"crlf kept", []string{"a\r\nb\r\n"}, []string{"a\r", "b\r"}},
		{"newline only chunk", []string{"partial", "\n"}, []string{"partial"}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feedAll(&LineBuffer{}, tt.chunks...)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// TestLineBuffer_MultibyteSplit verifies a rune split across chunks is
// reassembled intact.
func TestLineBuffer_MultibyteSplit(t *testing.T) {
	text := []byte("prix: 12€\n")
	euro := len("prix: 12") + 1 // inside the three-byte euro sign

	got := feedAll(&LineBuffer{}, string(text[:euro]), string(text[euro:]))
	if len(got) != 1 || got[0] != "prix: 12€" {
		t.Errorf("got %q", got)
	}
}

func TestLineBuffer_Pending(t *testing.T) {
	var b LineBuffer
	b.Feed([]byte("abc\nde"))
	if b.Pending() != 2 {
		t.Errorf("Expected 2 pending bytes, got %d", b.Pending())
	}
	if _, ok := b.Flush(); !ok || b.Pending() != 0 {
		t.Error("Expected flush to drain the buffer")
	}
	if _, ok := b.Flush(); ok {
		t.Error("Expected second flush to be empty")
	}
}
