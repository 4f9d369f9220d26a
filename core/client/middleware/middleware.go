package middleware

import (
	"context"
	"net/http"
)

// DoFunc performs one HTTP round trip. The innermost DoFunc of a chain is
// usually (*http.Client).Do.
type DoFunc func(*http.Request) (*http.Response, error)

// Middleware wraps a DoFunc to add behavior before and/or after the call.
type Middleware func(next DoFunc) DoFunc

// Chain wraps base with middlewares so that middlewares[0] is the outermost
// layer: it runs first on the way in and last on the way out. Nil entries are
// skipped.
func Chain(base DoFunc, middlewares ...Middleware) DoFunc {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

type attemptKey struct{}

// WithAttempt records the 0-based transport attempt number in ctx. The retry
// middleware sets it on every request it forwards.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// AttemptFromContext returns the attempt number set by the retry middleware,
// or 0 when the request did not go through it.
func AttemptFromContext(ctx context.Context) int {
	attempt, _ := ctx.Value(attemptKey{}).(int)
	return attempt
}
