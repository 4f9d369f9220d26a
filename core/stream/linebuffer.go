package stream

import "bytes"

// LineBuffer splits incrementally delivered bytes into lines. It works on
// raw bytes, so a multi-byte character split across two chunks is only seen
// once both halves have arrived.
type LineBuffer struct {
	partial []byte
}

// Feed appends chunk and returns every line it completed, without the
// trailing '\n'. The returned slices are owned by the caller.
func (b *LineBuffer) Feed(chunk []byte) [][]byte {
	last := bytes.LastIndexByte(chunk, '\n')
	if last < 0 {
		b.partial = append(b.partial, chunk...)
		return nil
	}

	complete := make([]byte, 0, len(b.partial)+last)
	complete = append(complete, b.partial...)
	complete = append(complete, chunk[:last]...)
	b.partial = append(b.partial[:0], chunk[last+1:]...)

	return bytes.Split(complete, []byte{'\n'})
}

// Flush returns the unterminated remainder, if it is not empty, and resets
// the buffer.
func (b *LineBuffer) Flush() ([]byte, bool) {
	if len(b.partial) == 0 {
		return nil, false
	}
	rest := bytes.Clone(b.partial)
	b.partial = b.partial[:0]
	return rest, true
}

// Pending is the size of the buffered partial line.
func (b *LineBuffer) Pending() int {
	return len(b.partial)
}
