package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leofalp/docflow/core/apierror"
	"github.com/leofalp/docflow/core/content"
	"github.com/leofalp/docflow/core/request"
	"github.com/leofalp/docflow/core/stream"
	"github.com/leofalp/docflow/internal/jsonschema"
	"github.com/leofalp/docflow/internal/utils"
	"github.com/leofalp/docflow/providers/observability"
)

// Result is the outcome of one logical call. Exactly one of Payload and
// Stream is set.
type Result struct {
	StatusCode int
	Header     http.Header
	Kind       content.Kind

	// Payload is the decoded body of a non-streamed response.
	Payload *content.Payload
	// Events are the decoded records of a JSON stream body read in full by a
	// non-streamed call. Malformed lines follow the same rules as a Stream.
	Events []stream.DecodedEvent
	// Stream is the open event stream of a streamed response. The caller
	// must drain or close it.
	Stream *stream.Stream
}

// Close releases the stream, if any.
func (r *Result) Close() error {
	if r == nil || r.Stream == nil {
		return nil
	}
	return r.Stream.Close()
}

// IssueOption customizes a single call.
type IssueOption func(*issueOptions)

type issueOptions struct {
	schema        *jsonschema.Schema
	decode        []content.Option
	stream        []stream.Option
	keepMalformed bool
}

// WithSchema validates JSON payloads, and every record of a JSON stream,
// against schema.
func WithSchema(schema *jsonschema.Schema) IssueOption {
	return func(o *issueOptions) {
		o.schema = schema
	}
}

// WithDecodeOptions passes options to content.Decode, for example
// content.WithJSONRepair.
func WithDecodeOptions(opts ...content.Option) IssueOption {
	return func(o *issueOptions) {
		o.decode = append(o.decode, opts...)
	}
}

// WithStreamOptions passes options to stream.New, for example
// stream.WithMaxLineSize.
func WithStreamOptions(opts ...stream.Option) IssueOption {
	return func(o *issueOptions) {
		o.stream = append(o.stream, opts...)
	}
}

// WithKeepMalformed yields malformed stream lines as events with Err set
// instead of skipping them.
func WithKeepMalformed() IssueOption {
	return func(o *issueOptions) {
		o.keepMalformed = true
	}
}

func buildIssueOptions(opts []IssueOption) issueOptions {
	var options issueOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Issue is the single entry point for every API call. It builds the request,
// runs it through the middleware chain and classifies the response:
//
//   - With RaiseForStatus, a status >= 400 becomes *apierror.ValidationError
//     (422) or *apierror.APIError.
//   - When prepared.Stream is set and the response is NDJSON or text, the
//     Result carries an open Stream.
//   - Otherwise the body is read and decoded by content type. A 2xx JSON
//     payload is validated against the WithSchema schema; a JSON stream body
//     is split into Events with every record checked against it.
//
// Transport failures come back as *apierror.TransportError, exhausted retries
// as *apierror.MaxRetriesExceeded.
func (c *Client) Issue(ctx context.Context, prepared request.PreparedRequest, opts ...IssueOption) (*Result, error) {
	return c.issue(ctx, prepared, buildIssueOptions(opts))
}

// Do issues a non-streamed call.
func (c *Client) Do(ctx context.Context, prepared request.PreparedRequest, opts ...IssueOption) (*Result, error) {
	prepared.Stream = false
	return c.Issue(ctx, prepared, opts...)
}

// Stream issues a streamed call and returns its event stream. Non-2xx
// statuses are always errors, and a response that cannot be streamed is a
// bad content type.
func (c *Client) Stream(ctx context.Context, prepared request.PreparedRequest, opts ...IssueOption) (*stream.Stream, error) {
	prepared.Stream = true
	prepared.RaiseForStatus = true

	result, err := c.Issue(ctx, prepared, opts...)
	if err != nil {
		return nil, err
	}
	if result.Stream == nil {
		return nil, notStreamable(result)
	}
	return result.Stream, nil
}

func (c *Client) issue(ctx context.Context, prepared request.PreparedRequest, options issueOptions) (*Result, error) {
	if c.autoIdempotencyKey && needsIdempotencyKey(prepared) {
		prepared.IdempotencyKey = request.NewIdempotencyKey()
	}

	ctx, call := c.startCall(ctx, prepared)

	result, err := c.roundTrip(ctx, prepared, options, call)
	if err != nil {
		call.fail(ctx, err)
		return nil, err
	}
	if result.Stream == nil {
		call.succeed(ctx, result.StatusCode)
	}
	return result, nil
}

func (c *Client) roundTrip(ctx context.Context, prepared request.PreparedRequest, options issueOptions, call *callObserver) (*Result, error) {
	req, err := request.Build(ctx, c.config, prepared)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, transportError(req, err)
	}

	contentType := resp.Header.Get(request.HeaderContentType)
	result := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Kind:       content.Negotiate(contentType),
	}
	observability.AddEvent(ctx, observability.EventResponseReceived,
		observability.Int(observability.AttrHTTPStatusCode, resp.StatusCode),
		observability.String(observability.AttrHTTPContentType, contentType),
		observability.String(observability.AttrResponseContentKind, string(result.Kind)),
	)

	if prepared.Stream && result.Kind.Streamable() && resp.StatusCode < 300 {
		mode := stream.ModeJSON
		if result.Kind == content.KindText {
			mode = stream.ModeText
		}
		decoder := stream.Decoder{Mode: mode, Schema: options.schema, KeepMalformed: options.keepMalformed}
		body := call.wrapStreamBody(ctx, resp.StatusCode, resp.Body)
		result.Stream = stream.New(ctx, body, decoder, options.stream...)

		observability.AddEvent(ctx, observability.EventStreamOpened,
			observability.String(observability.AttrResponseContentKind, mode.String()),
		)
		return result, nil
	}

	defer utils.CloseWithLog(resp.Body)
	data, err := utils.ReadLimited(resp.Body, utils.MaxResponseBodySize)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, transportError(req, ctxErr)
		}
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if prepared.RaiseForStatus {
		if err := content.CheckStatus(resp, data); err != nil {
			return nil, err
		}
	}

	payload, err := content.Decode(contentType, data, options.decode...)
	if err != nil {
		return nil, err
	}
	switch {
	case payload.Kind == content.KindJSONStream:
		decoder := stream.Decoder{Mode: stream.ModeJSON, Schema: options.schema, KeepMalformed: options.keepMalformed}
		events, err := stream.New(ctx, io.NopCloser(bytes.NewReader(data)), decoder, options.stream...).Collect()
		if err != nil {
			return nil, err
		}
		result.Events = events
	case resp.StatusCode < 300:
		if err := content.Validate(payload, options.schema); err != nil {
			return nil, err
		}
	}
	result.Payload = payload

	observability.AddEvent(ctx, observability.EventPayloadDecoded,
		observability.Int(observability.AttrHTTPResponseBodySize, len(data)),
		observability.Bool(observability.AttrPayloadRepaired, payload.Repaired),
	)
	return result, nil
}

// transportError wraps err unless it already is one of the runtime's typed
// errors.
func transportError(req *http.Request, err error) error {
	var exceeded *apierror.MaxRetriesExceeded
	var transport *apierror.TransportError
	if errors.As(err, &exceeded) || errors.As(err, &transport) {
		return err
	}
	return &apierror.TransportError{Method: req.Method, URL: req.URL.String(), Cause: err}
}

func needsIdempotencyKey(prepared request.PreparedRequest) bool {
	if prepared.IdempotencyKey != "" {
		return false
	}
	for name, value := range prepared.Headers {
		if strings.EqualFold(name, request.HeaderIdempotencyKey) && value != "" {
			return false
		}
	}
	switch strings.ToUpper(prepared.Method) {
	case http.MethodPost, http.MethodPatch:
		return true
	}
	return false
}

func notStreamable(result *Result) error {
	contentType := result.Header.Get(request.HeaderContentType)
	var raw []byte
	if result.Payload != nil {
		raw = result.Payload.Raw
	}
	return &apierror.DecodeError{
		Kind:        apierror.DecodeBadContentType,
		ContentType: contentType,
		Message:     "expected a streamed response",
		Payload:     raw,
	}
}
