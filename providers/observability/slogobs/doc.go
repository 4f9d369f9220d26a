// Package slogobs provides an observability.Provider backed by log/slog.
//
// Spans, span events, counters and histograms are all written as log
// records, so a CLI or a small service gets request tracing without an
// external collector. [New] reads DOCFLOW_LOG_FORMAT and DOCFLOW_LOG_LEVEL
// (falling back to LOG_FORMAT and LOG_LEVEL) unless [WithFormat],
// [WithLevel] or [WithLogger] say otherwise.
package slogobs
