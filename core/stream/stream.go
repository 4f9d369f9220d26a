package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/leofalp/docflow/internal/utils"
	"github.com/leofalp/docflow/providers/observability"
)

const (
	// DefaultMaxLineSize bounds a single line (10 MiB). A longer line ends
	// the stream with ErrLineTooLong.
	DefaultMaxLineSize = 10 * 1024 * 1024

	readBufferSize = 32 * 1024
)

// ErrLineTooLong is returned when a line grows past the maximum line size
// without a newline.
var ErrLineTooLong = errors.New("stream line exceeds maximum size")

// Option configures a Stream.
type Option func(*Stream)

// WithMaxLineSize overrides DefaultMaxLineSize.
func WithMaxLineSize(size int) Option {
	return func(s *Stream) {
		if size > 0 {
			s.maxLineSize = size
		}
	}
}

// Stream is a pull iterator of DecodedEvents over a response body. Events
// come out in the order their bytes arrived. It is not safe for concurrent
// consumers; Close may be called from any goroutine.
type Stream struct {
	ctx         context.Context
	body        io.ReadCloser
	decoder     Decoder
	maxLineSize int

	lines   LineBuffer
	pending [][]byte
	readBuf []byte
	done    bool

	events    int
	malformed int

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a Stream reading body. The stream owns body and closes it when
// it ends, fails, or is closed.
func New(ctx context.Context, body io.ReadCloser, decoder Decoder, opts ...Option) *Stream {
	if ctx == nil {
		ctx = context.Background()
	}
	if compiled, err := decoder.Compile(); err == nil {
		decoder = compiled
	}
	s := &Stream{
		ctx:         ctx,
		body:        body,
		decoder:     decoder,
		maxLineSize: DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next event. It returns io.EOF once the body is exhausted
// and every buffered line has been decoded. A read failure, a cancelled
// context or an oversized line is returned once; later calls return io.EOF.
func (s *Stream) Next() (DecodedEvent, error) {
	if s.closed.Load() && !s.done {
		// Closed by the caller before the end: drop what is buffered.
		s.done = true
		s.pending = nil
	}

	for {
		for len(s.pending) > 0 {
			line := s.pending[0]
			s.pending = s.pending[1:]
			if event, ok := s.decoder.DecodeLine(line); ok {
				s.events++
				if event.Err != nil {
					s.malformed++
				}
				return event, nil
			}
			if len(bytes.TrimSpace(line)) > 0 {
				s.malformed++
			}
		}

		if s.done {
			_ = s.Close()
			return DecodedEvent{}, io.EOF
		}

		if err := s.ctx.Err(); err != nil {
			return DecodedEvent{}, s.fail(err)
		}

		if s.readBuf == nil {
			s.readBuf = make([]byte, readBufferSize)
		}
		n, err := s.body.Read(s.readBuf)
		if n > 0 {
			lines := s.lines.Feed(s.readBuf[:n])
			if s.lines.Pending() > s.maxLineSize || longest(lines) > s.maxLineSize {
				return DecodedEvent{}, s.fail(fmt.Errorf("%w (%d bytes)", ErrLineTooLong, s.maxLineSize))
			}
			s.pending = append(s.pending, lines...)
		}

		switch {
		case err == io.EOF:
			if rest, ok := s.lines.Flush(); ok {
				s.pending = append(s.pending, rest)
			}
			s.done = true
		case err != nil:
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return DecodedEvent{}, s.fail(fmt.Errorf("failed to read stream: %w", err))
		}
	}
}

// fail ends the stream and returns err for the caller to report.
func (s *Stream) fail(err error) error {
	s.done = true
	s.pending = nil
	_ = s.Close()
	return err
}

// Close releases the body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if span := observability.SpanFromContext(s.ctx); span != nil {
			span.SetAttributes(
				observability.Int(observability.AttrStreamEvents, s.events),
				observability.Int(observability.AttrStreamMalformed, s.malformed),
			)
		}
		if s.body != nil {
			s.closeErr = s.body.Close()
		}
	})
	return s.closeErr
}

// Iter returns the stream as a range-over-func sequence. The body is closed
// when the loop ends, including on break. An error is yielded at most once
// and ends the sequence.
func (s *Stream) Iter() iter.Seq2[DecodedEvent, error] {
	return func(yield func(DecodedEvent, error) bool) {
		defer utils.CloseWithLog(s)
		for {
			event, err := s.Next()
			if err == io.EOF {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the stream. On error it returns the events decoded so far
// together with the error.
func (s *Stream) Collect() ([]DecodedEvent, error) {
	var events []DecodedEvent
	for event, err := range s.Iter() {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// Stats reports how many events were yielded and how many lines were
// malformed (skipped or tagged) so far.
func (s *Stream) Stats() (events, malformed int) {
	return s.events, s.malformed
}

// Records is a typed view of a JSON stream. Events that are malformed,
// textual, or do not unmarshal into T are skipped.
func Records[T any](s *Stream) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for event, err := range s.Iter() {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if event.Kind != EventJSON || event.Err != nil {
				continue
			}
			var record T
			if json.Unmarshal(event.Value, &record) != nil {
				continue
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func longest(lines [][]byte) int {
	size := 0
	for _, line := range lines {
		size = max(size, len(line))
	}
	return size
}
