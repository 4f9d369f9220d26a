package middleware

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// NewRateLimitMiddleware creates a Middleware that waits for a token from a
// token bucket refilled at requestsPerSecond with the given burst before every
// attempt. Waiting honours the request context. A requestsPerSecond <= 0
// disables limiting.
func NewRateLimitMiddleware(requestsPerSecond float64, burst int) Middleware {
	if requestsPerSecond <= 0 {
		return nil
	}
	return NewLimiterMiddleware(rate.NewLimiter(rate.Limit(requestsPerSecond), max(burst, 1)))
}

// NewLimiterMiddleware is NewRateLimitMiddleware for a caller-owned limiter,
// which lets several clients share one budget.
func NewLimiterMiddleware(limiter *rate.Limiter) Middleware {
	return func(next DoFunc) DoFunc {
		return func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
			return next(req)
		}
	}
}
