package middleware

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// NewTimeoutMiddleware creates a Middleware that enforces one deadline on the
// whole request/response cycle.
//
// The context is wrapped with context.WithTimeout before calling next, but
// the cancel function is NOT deferred. It runs when the call fails or, on
// success, when the caller closes the response body. The timeout therefore
// covers reading a streamed body too, not just the time to receive headers.
//
// If the caller supplies a context that already has a shorter deadline, that
// shorter deadline wins as per normal context semantics. A timeout <= 0
// returns a pass-through middleware.
func NewTimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next DoFunc) DoFunc {
		if timeout <= 0 {
			return next
		}
		return func(req *http.Request) (*http.Response, error) {
			ctx, cancel := context.WithTimeout(req.Context(), timeout)

			response, err := next(req.WithContext(ctx))
			if err != nil {
				cancel()
				return nil, err
			}

			response.Body = &cancelOnClose{ReadCloser: response.Body, cancel: cancel}
			return response, nil
		}
	}
}

// cancelOnClose releases the deadline context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.once.Do(c.cancel)
	return err
}
