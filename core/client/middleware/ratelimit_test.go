package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func noContent(*http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: 204, Body: http.NoBody}, nil
}

// TestRateLimitMiddleware_SpacesRequests verifies that calls beyond the burst
// wait for a token.
func TestRateLimitMiddleware_SpacesRequests(t *testing.T) {
	do := Chain(noContent, NewRateLimitMiddleware(20, 1))

	start := time.Now()
	for range 3 {
		if _, err := do(newRequest(t, context.Background(), http.MethodGet, "")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Two waits of 50ms each after the initial token.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected calls to be spaced out, took %v", elapsed)
	}
}

// TestRateLimitMiddleware_HonoursContext verifies that waiting stops when the
// request context ends.
func TestRateLimitMiddleware_HonoursContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow()
	do := Chain(noContent, NewLimiterMiddleware(limiter))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := do(newRequest(t, ctx, http.MethodGet, ""))
	if err == nil {
		t.Fatal("expected wait error")
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("unexpected cancellation error: %v", err)
	}
}

// TestRateLimitMiddleware_Disabled verifies that a non-positive rate yields no
// middleware and Chain skips it.
func TestRateLimitMiddleware_Disabled(t *testing.T) {
	mw := NewRateLimitMiddleware(0, 5)
	if mw != nil {
		t.Fatal("expected nil middleware for a zero rate")
	}
	do := Chain(noContent, mw)
	if _, err := do(newRequest(t, context.Background(), http.MethodGet, "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
