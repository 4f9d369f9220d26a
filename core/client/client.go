package client

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/leofalp/docflow/core/client/middleware"
	"github.com/leofalp/docflow/core/config"
	"github.com/leofalp/docflow/providers/observability"
)

// Middleware wraps one HTTP round trip. See package middleware.
type Middleware = middleware.Middleware

// Client issues docflow API requests. It holds the immutable configuration,
// the pooled *http.Client and the middleware chain, and is safe for
// concurrent use. Per-call state never outlives the call.
type Client struct {
	config             config.Config
	httpClient         *http.Client
	observer           observability.Provider
	autoIdempotencyKey bool
	do                 middleware.DoFunc
}

// ClientOptions collects the functional options passed to New.
type ClientOptions struct {
	// HTTPClient performs the transport call. Default: a new http.Client
	// without its own timeout; the configured timeout is applied per call.
	HTTPClient *http.Client

	// Middlewares run inside the built-in timeout, retry and logging layers,
	// so they see every attempt.
	Middlewares []Middleware

	// Logger enables the logging middleware at LogLevel.
	Logger   *slog.Logger
	LogLevel middleware.LogLevel

	// Observer receives one span per call plus request metrics.
	Observer observability.Provider

	// AutoIdempotencyKey assigns a key to keyless non-idempotent requests.
	AutoIdempotencyKey bool

	// Retry tunes the backoff. MaxRetries always comes from the config.
	Retry *middleware.RetryConfig
}

// WithHTTPClient sets the transport client.
func WithHTTPClient(httpClient *http.Client) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.HTTPClient = httpClient
	}
}

// WithMiddleware appends middlewares to the chain. The first one given is the
// outermost among them.
func WithMiddleware(middlewares ...Middleware) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Middlewares = append(o.Middlewares, middlewares...)
	}
}

// WithLogger logs every attempt at LogLevelStandard, or at the level given.
func WithLogger(logger *slog.Logger, level ...middleware.LogLevel) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Logger = logger
		o.LogLevel = middleware.LogLevelStandard
		if len(level) > 0 {
			o.LogLevel = level[0]
		}
	}
}

// WithObserver reports a span, metrics and logs for every call.
func WithObserver(observer observability.Provider) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Observer = observer
	}
}

// WithAutoIdempotencyKey makes the client assign a fresh Idempotency-Key to
// every POST or PATCH that has none, once per logical call. Such requests
// become retryable.
func WithAutoIdempotencyKey() func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.AutoIdempotencyKey = true
	}
}

// WithRetryConfig tunes backoff and the retry predicates.
func WithRetryConfig(retry middleware.RetryConfig) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Retry = &retry
	}
}

// New validates cfg and builds a Client. cfg is copied; later changes to it
// have no effect.
//
// The chain is, outermost first:
//
//	Timeout → Retry → Logging → user middlewares → transport
func New(cfg config.Config, opts ...func(*ClientOptions)) (*Client, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	options := &ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	retry := middleware.RetryConfig{}
	if options.Retry != nil {
		retry = *options.Retry
	}
	retry.MaxRetries = cfg.MaxRetries
	if retry.MaxRetries == 0 {
		retry.MaxRetries = middleware.NoRetries
	}

	chain := []Middleware{
		middleware.NewTimeoutMiddleware(cfg.Timeout),
		middleware.NewRetryMiddleware(retry),
	}
	if options.Logger != nil {
		chain = append(chain, middleware.NewLoggingMiddleware(options.Logger, options.LogLevel))
	}
	chain = append(chain, options.Middlewares...)

	return &Client{
		config:             cfg,
		httpClient:         httpClient,
		observer:           options.Observer,
		autoIdempotencyKey: options.AutoIdempotencyKey,
		do:                 middleware.Chain(httpClient.Do, chain...),
	}, nil
}

// Config returns a copy of the client configuration.
func (c *Client) Config() config.Config {
	return c.config
}
