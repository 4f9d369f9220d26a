// Package observability defines the tracing, metrics and logging interfaces
// used by the docflow client, together with the attribute keys and span,
// event and metric names they record under.
//
// [Provider] composes [Tracer], [Metrics] and [Logger] into one injectable
// dependency. The client stores the active [Provider] and [Span] in the
// request context with [ContextWithObserver] and [ContextWithSpan]; lower
// layers such as the request builder read them back with
// [ObserverFromContext] and [SpanFromContext] or simply call [AddEvent].
//
// Names live in semconv.go so every layer reports the same keys.
package observability
