package client

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/leofalp/docflow/core/apierror"
	"github.com/leofalp/docflow/core/request"
	"github.com/leofalp/docflow/internal/utils"
	"github.com/leofalp/docflow/providers/observability"
)

// callObserver reports one logical call: a span from the moment the call
// enters Issue until its outcome is known, plus request metrics and a log
// entry. For streamed responses the outcome is known when the body is closed.
// A nil observer turns every method into a no-op.
type callObserver struct {
	observer observability.Provider
	span     observability.Span
	timer    *utils.Timer
	method   string
	url      string
}

// startCall starts the span and enriches the context so the request builder,
// the retry middleware and the stream can attach events to it.
func (c *Client) startCall(ctx context.Context, prepared request.PreparedRequest) (context.Context, *callObserver) {
	method := strings.ToUpper(prepared.Method)
	if method == "" {
		method = "GET"
	}
	call := &callObserver{observer: c.observer, timer: utils.NewTimer(), method: method, url: prepared.URL}
	if c.observer == nil {
		return ctx, call
	}

	ctx, call.span = c.observer.StartSpan(ctx, observability.SpanClientRequest,
		observability.String(observability.AttrHTTPMethod, method),
		observability.String(observability.AttrHTTPURL, prepared.URL),
		observability.Bool(observability.AttrRequestStream, prepared.Stream),
		observability.Bool(observability.AttrRequestIdempotent, prepared.IdempotencyKey != ""),
	)
	ctx = observability.ContextWithSpan(ctx, call.span)
	ctx = observability.ContextWithObserver(ctx, c.observer)

	if prepared.IdempotencyKey != "" {
		call.span.SetAttributes(observability.String(observability.AttrIdempotencyKey, prepared.IdempotencyKey))
	}

	c.observer.Debug(ctx, "docflow request",
		observability.String(observability.AttrHTTPMethod, method),
		observability.String(observability.AttrHTTPURL, prepared.URL),
	)
	return ctx, call
}

// succeed records the success path and ends the span.
func (o *callObserver) succeed(ctx context.Context, status int) {
	if o.observer == nil {
		return
	}
	elapsed := o.timer.Stop()

	o.observer.Histogram(observability.MetricClientRequestDuration).Record(ctx, elapsed.Seconds(),
		observability.String(observability.AttrHTTPMethod, o.method),
	)
	o.observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "success"),
		observability.String(observability.AttrHTTPMethod, o.method),
	)

	o.span.SetAttributes(observability.Int(observability.AttrHTTPStatusCode, status))
	o.observer.Info(ctx, "docflow request completed",
		observability.String(observability.AttrHTTPMethod, o.method),
		observability.String(observability.AttrHTTPURL, o.url),
		observability.Int(observability.AttrHTTPStatusCode, status),
		observability.Duration(observability.AttrDuration, elapsed),
	)

	o.span.SetStatus(observability.StatusOK, "success")
	o.span.End()
}

// fail records the error path and ends the span.
func (o *callObserver) fail(ctx context.Context, err error) {
	if o.observer == nil {
		return
	}
	elapsed := o.timer.Stop()

	o.span.RecordError(err)
	o.span.SetAttributes(observability.String(observability.AttrErrorType, errorType(err)))
	if status := apierror.StatusCode(err); status != 0 {
		o.span.SetAttributes(observability.Int(observability.AttrHTTPStatusCode, status))
	}
	o.span.SetStatus(observability.StatusError, "docflow request failed")
	o.span.End()

	o.observer.Error(ctx, "docflow request failed",
		observability.Error(err),
		observability.String(observability.AttrHTTPMethod, o.method),
		observability.String(observability.AttrHTTPURL, o.url),
		observability.Duration(observability.AttrDuration, elapsed),
	)

	o.observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "error"),
		observability.String(observability.AttrHTTPMethod, o.method),
	)
	o.observer.Counter(observability.MetricClientErrorCount).Add(ctx, 1,
		observability.String(observability.AttrErrorType, errorType(err)),
	)
}

// wrapStreamBody defers the success record until the stream body is closed,
// so the span covers the whole stream.
func (o *callObserver) wrapStreamBody(ctx context.Context, status int, body io.ReadCloser) io.ReadCloser {
	if o.observer == nil {
		return body
	}
	return &observedBody{ReadCloser: body, end: func() { o.succeed(ctx, status) }}
}

type observedBody struct {
	io.ReadCloser
	end  func()
	once sync.Once
}

func (b *observedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.end)
	return err
}

// errorType is a short label for metrics and span attributes.
func errorType(err error) string {
	switch typed := err.(type) {
	case *apierror.ValidationError:
		return "validation"
	case *apierror.APIError:
		return string(typed.Kind)
	case *apierror.DecodeError:
		return string(typed.Kind)
	case *apierror.TransportError:
		if typed.Timeout() {
			return "timeout"
		}
		return "transport"
	case *apierror.MaxRetriesExceeded:
		return "max_retries_exceeded"
	default:
		if status := apierror.StatusCode(err); status != 0 {
			return strconv.Itoa(status)
		}
		return "other"
	}
}
