// Package middleware provides built-in middleware implementations for the
// docflow client. Each middleware wraps a [DoFunc], the function that performs
// one HTTP round trip, and is passed to client.WithMiddleware.
//
// # Available Middleware
//
//   - [NewRetryMiddleware]: Retries transport errors, 5xx and 429 responses
//     for idempotent requests with exponential backoff and jitter.
//
//   - [NewTimeoutMiddleware]: Adds one deadline covering the whole
//     request/response cycle, stream bodies included.
//
//   - [NewLoggingMiddleware]: Emits structured slog log entries before and after
//     every attempt, with three verbosity levels (Minimal, Standard, Verbose).
//
//   - [NewMetricsMiddleware]: Records Prometheus counters and histograms.
//
//   - [NewRateLimitMiddleware]: Waits on a token bucket before every attempt.
//
// # Usage
//
//	metrics, err := middleware.NewMetricsMiddleware(middleware.MetricsConfig{
//	    Registerer: prometheus.DefaultRegisterer,
//	})
//	if err != nil {
//	    return err
//	}
//	c, err := client.New(cfg,
//	    client.WithMiddleware(
//	        middleware.NewRateLimitMiddleware(5, 10),
//	        metrics,
//	    ),
//	)
//
// The client installs Timeout, Retry and Logging itself. User middlewares sit
// inside them, so they run once per attempt:
//
//	Timeout → Retry → Logging → RateLimit → Metrics → Transport
//
// [Chain] composes middlewares outermost-first: the first entry is the
// outermost wrapper, meaning it runs first on the way in and last on the way
// out.
package middleware
