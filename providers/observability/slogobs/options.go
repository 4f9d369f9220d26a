package slogobs

import (
	"io"
	"log/slog"
)

// Option configures New.
type Option func(*options)

type options struct {
	format Format
	level  slog.Leveler
	output io.Writer
	logger *slog.Logger
}

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(o *options) { o.format = format }
}

// WithLevel sets the minimum level.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) { o.level = level }
}

// WithOutput sets where records are written.
func WithOutput(output io.Writer) Option {
	return func(o *options) { o.output = output }
}

// WithLogger uses logger as is. Format, level and output are then ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}
