package slogobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Handler is a slog.Handler writing either FormatCompact or FormatJSON.
type Handler struct {
	format Format
	level  slog.Leveler
	output io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	prefix string
}

// HandlerOptions configures a Handler. Zero values mean FormatCompact, INFO
// and os.Stderr.
type HandlerOptions struct {
	Format Format
	Level  slog.Leveler
	Output io.Writer
}

// NewHandler creates a Handler.
func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	h := &Handler{
		format: opts.Format,
		level:  opts.Level,
		output: opts.Output,
		mu:     &sync.Mutex{},
	}
	if h.format == "" {
		h.format = FormatCompact
	}
	if h.level == nil {
		h.level = slog.LevelInfo
	}
	if h.output == nil {
		h.output = os.Stderr
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, attr := range h.attrs {
		attrs[attr.Key] = attrValue(attr.Value)
	}
	r.Attrs(func(attr slog.Attr) bool {
		attrs[h.prefix+attr.Key] = attrValue(attr.Value)
		return true
	})

	var line []byte
	var err error
	if h.format == FormatJSON {
		line, err = h.jsonLine(r, attrs)
	} else {
		line, err = h.compactLine(r, attrs)
	}
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.output.Write(line)
	return err
}

// WithAttrs and WithGroup share the mutex so derived handlers never
// interleave writes on the same output.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, attr := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.prefix + attr.Key, Value: attr.Value})
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *Handler) compactLine(r slog.Record, attrs map[string]any) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format("2006-01-02 15:04:05")...)
	buf = append(buf, fmt.Sprintf(" %5s ", levelString(r.Level))...)
	buf = append(buf, r.Message...)
	if len(attrs) > 0 {
		encoded, err := json.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode log attributes: %w", err)
		}
		buf = append(buf, " → "...)
		buf = append(buf, encoded...)
	}
	return append(buf, '\n'), nil
}

func (h *Handler) jsonLine(r slog.Record, attrs map[string]any) ([]byte, error) {
	attrs["time"] = r.Time.Format("2006-01-02T15:04:05.000Z07:00")
	attrs["level"] = levelString(r.Level)
	attrs["msg"] = r.Message
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode log record: %w", err)
	}
	return append(encoded, '\n'), nil
}

// attrValue makes values JSON friendly: errors and durations become strings.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.Any()
}
