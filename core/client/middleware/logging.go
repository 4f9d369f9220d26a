package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/leofalp/docflow/internal/utils"
)

// LogLevel controls how much detail the logging middleware emits per request.
type LogLevel int

const (
	// LogLevelMinimal logs only the method, URL, status and duration.
	// Use this when you want lightweight audit trails without noise.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard logs everything in Minimal plus the attempt number,
	// content type, content length and server request id. This is the
	// recommended default for most applications.
	LogLevelStandard

	// LogLevelVerbose logs everything in Standard plus the request body and
	// the response body, each truncated to 500 characters. The response body
	// is logged when the caller closes it.
	//
	// WARNING: DO NOT use LogLevelVerbose in production. It will log raw
	// document payloads, which may contain sensitive user data, secrets, or PII.
	// It is intended solely for local debugging and development.
	LogLevelVerbose
)

// truncateLen is the maximum content length included in verbose log output.
const truncateLen = 500

// NewLoggingMiddleware creates a Middleware that emits structured slog log
// entries before and after every transport attempt.
//
// The logger parameter must not be nil. Use slog.Default() if you have not
// configured a custom logger.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) Middleware {
	return func(next DoFunc) DoFunc {
		return func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			logger.InfoContext(ctx, "http request",
				buildRequestAttrs(req, level)...,
			)

			start := time.Now()
			response, err := next(req)
			elapsed := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "http request failed",
					slog.String("method", req.Method),
					slog.String("url", req.URL.String()),
					slog.Duration("duration", elapsed),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			logger.InfoContext(ctx, "http request completed",
				buildResponseAttrs(req, response, elapsed, level)...,
			)

			if level >= LogLevelVerbose && response.Body != nil {
				response.Body = &loggedBody{
					ReadCloser: response.Body,
					logger:     logger,
					request:    req,
				}
			}
			return response, nil
		}
	}
}

// buildRequestAttrs returns slog attributes for an outgoing request,
// expanding detail according to the requested verbosity level.
func buildRequestAttrs(req *http.Request, level LogLevel) []any {
	attrs := []any{
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
	}

	if level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("attempt", AttemptFromContext(req.Context())))
		if key := req.Header.Get("Idempotency-Key"); key != "" {
			attrs = append(attrs, slog.String("idempotency_key", key))
		}
	}

	if level >= LogLevelVerbose && req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			data, _ := utils.ReadLimited(body, truncateLen+1)
			utils.CloseWithLog(body)
			attrs = append(attrs, slog.String("request_body", utils.TruncateBytes(data, truncateLen)))
		}
	}

	return attrs
}

// buildResponseAttrs returns slog attributes for a received response,
// expanding detail according to the requested verbosity level.
func buildResponseAttrs(req *http.Request, response *http.Response, elapsed time.Duration, level LogLevel) []any {
	attrs := []any{
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Int("status", response.StatusCode),
		slog.Duration("duration", elapsed),
	}

	if level >= LogLevelStandard {
		attrs = append(attrs,
			slog.Int("attempt", AttemptFromContext(req.Context())),
			slog.String("content_type", response.Header.Get("Content-Type")),
			slog.Int64("content_length", response.ContentLength),
		)
		if id := response.Header.Get("X-Request-Id"); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
	}

	return attrs
}

// loggedBody keeps the first bytes read from a response body and logs them
// once the body is closed.
type loggedBody struct {
	io.ReadCloser
	logger  *slog.Logger
	request *http.Request

	captured bytes.Buffer
	total    int
	once     sync.Once
}

func (b *loggedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.total += n
		if room := truncateLen - b.captured.Len(); room > 0 {
			b.captured.Write(p[:min(n, room)])
		}
	}
	return n, err
}

func (b *loggedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() {
		text := b.captured.String()
		if b.total > truncateLen {
			text += "... (truncated)"
		}
		b.logger.InfoContext(b.request.Context(), "http response body",
			slog.String("method", b.request.Method),
			slog.String("url", b.request.URL.String()),
			slog.Int("bytes_read", b.total),
			slog.String("response_body", text),
		)
	})
	return err
}
