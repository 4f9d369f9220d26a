package middleware

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/leofalp/docflow/core/apierror"
	"github.com/leofalp/docflow/core/content"
	"github.com/leofalp/docflow/internal/utils"
	"github.com/leofalp/docflow/providers/observability"
)

// NoRetries disables retrying when used as RetryConfig.MaxRetries. The zero
// value means "use the default".
const NoRetries = -1

// errorBodyLimit bounds how much of a discarded error response is kept for
// the terminal error.
const errorBodyLimit = 64 * 1024

// RetryConfig holds the tuning parameters for the retry middleware. Zero values
// are replaced with the defaults documented below when NewRetryMiddleware is called.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the first failure.
	// A value of 3 means the transport is called at most 4 times (1 original + 3 retries).
	// Use NoRetries to attempt exactly once.
	// Default: 3.
	MaxRetries int

	// InitialBackoff is the wait duration before the first retry attempt.
	// Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff and any Retry-After value.
	// Default: 30s.
	MaxBackoff time.Duration

	// BackoffFactor is the exponential growth multiplier applied to InitialBackoff
	// on successive retries (backoff = min(InitialBackoff * BackoffFactor^attempt, MaxBackoff)).
	// Default: 2.0.
	BackoffFactor float64

	// JitterFraction adds random noise to the computed backoff in the range
	// [0, JitterFraction * backoff].
	// Default: 0.1 (10% jitter).
	JitterFraction float64

	// RetryableStatusFunc reports whether a response status should be retried.
	// Default: 429 and every 5xx.
	RetryableStatusFunc func(status int) bool

	// EligibleFunc reports whether a request may be sent more than once.
	// Default: idempotent methods, or any request with an Idempotency-Key header.
	// Requests whose body cannot be replayed are never retried.
	EligibleFunc func(*http.Request) bool

	// OnRetry, when set, is called before each retry with the 1-based retry
	// number, the error that triggered it and the delay about to be slept.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func defaultRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// IdempotentRequest is the default EligibleFunc.
func IdempotentRequest(req *http.Request) bool {
	if req.Header.Get("Idempotency-Key") != "" {
		return true
	}
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete,
		http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// applyRetryDefaults fills in zero-valued fields in config with sensible defaults.
func applyRetryDefaults(config *RetryConfig) {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}

	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}

	if config.BackoffFactor == 0 {
		config.BackoffFactor = 2.0
	}

	if config.JitterFraction == 0 {
		config.JitterFraction = 0.1
	}

	if config.RetryableStatusFunc == nil {
		config.RetryableStatusFunc = defaultRetryableStatus
	}

	if config.EligibleFunc == nil {
		config.EligibleFunc = IdempotentRequest
	}
}

// computeBackoff returns the backoff duration for the given attempt (0-indexed).
// backoff = min(InitialBackoff * BackoffFactor^attempt, MaxBackoff) + jitter
func computeBackoff(config RetryConfig, attempt int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}

	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter is intentional
	return time.Duration(base + jitter)
}

// retryAfter parses a Retry-After header given either as seconds or as an
// HTTP date.
func retryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	value := header.Get("Retry-After")
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return max(time.Duration(seconds)*time.Second, 0), true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}

// NewRetryMiddleware returns a Middleware that retries transport errors and
// retryable statuses for eligible requests, with exponential backoff and
// jitter. Zero-valued fields in config are replaced with safe defaults (see
// RetryConfig documentation).
//
// Each attempt is sent with the same headers, Idempotency-Key included, and a
// fresh body obtained from GetBody. Responses that trigger a retry are
// drained and closed. Once the budget is spent the middleware returns
// *apierror.MaxRetriesExceeded wrapping the last classified error.
//
// Ineligible requests are passed through once and their outcome is returned
// untouched. A failure caused by the caller's own context is never retried.
func NewRetryMiddleware(config RetryConfig) Middleware {
	applyRetryDefaults(&config)

	return func(next DoFunc) DoFunc {
		return func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			eligible := config.EligibleFunc(req) && replayable(req)

			var lastErr error
			for attempt := 0; ; attempt++ {
				attemptReq, err := prepareAttempt(req, attempt)
				if err != nil {
					return nil, err
				}

				response, err := next(attemptReq)

				var delay time.Duration
				switch {
				case err != nil:
					if !eligible || ctx.Err() != nil {
						return nil, err
					}
					lastErr = &apierror.TransportError{Method: req.Method, URL: req.URL.String(), Cause: err}
					delay = computeBackoff(config, attempt)

				case eligible && config.RetryableStatusFunc(response.StatusCode):
					body, _ := utils.ReadLimited(response.Body, errorBodyLimit)
					utils.DrainAndClose(response.Body)
					lastErr = content.CheckStatus(response, body)
					if lastErr == nil {
						lastErr = fmt.Errorf("retryable status %d", response.StatusCode)
					}
					delay = computeBackoff(config, attempt)
					if after, ok := retryAfter(response.Header, time.Now()); ok {
						delay = min(after, config.MaxBackoff)
					}

				default:
					return response, nil
				}

				if attempt >= config.MaxRetries {
					return nil, &apierror.MaxRetriesExceeded{Attempts: attempt + 1, LastErr: lastErr}
				}

				observability.AddEvent(ctx, observability.EventRetryScheduled,
					observability.Int(observability.AttrRetryAttempt, attempt+1),
					observability.Int(observability.AttrRetryMaxRetries, config.MaxRetries),
					observability.Duration(observability.AttrRetryDelay, delay),
					observability.Error(lastErr),
				)
				if observer := observability.ObserverFromContext(ctx); observer != nil {
					observer.Counter(observability.MetricClientRetryCount).Add(ctx, 1,
						observability.String(observability.AttrHTTPMethod, req.Method),
					)
				}
				if config.OnRetry != nil {
					config.OnRetry(attempt+1, lastErr, delay)
				}

				if err := sleep(ctx, delay); err != nil {
					return nil, err
				}
			}
		}
	}
}

// replayable reports whether the request body can be sent again.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// prepareAttempt tags the request with its attempt number and, for retries,
// gives it a fresh copy of the body.
func prepareAttempt(req *http.Request, attempt int) (*http.Request, error) {
	ctx := WithAttempt(req.Context(), attempt)
	if attempt == 0 {
		return req.WithContext(ctx), nil
	}

	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		clone.Body = body
	}
	return clone, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
