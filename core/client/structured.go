package client

import (
	"context"
	"iter"
	"reflect"

	"github.com/leofalp/docflow/core/content"
	"github.com/leofalp/docflow/core/request"
	"github.com/leofalp/docflow/core/stream"
	"github.com/leofalp/docflow/internal/jsonschema"
)

// Send issues a non-streamed call and decodes the payload into T.
//
// The payload is validated against the schema generated from T (or the one
// given with WithSchema) before it is unmarshaled; a mismatch is returned as
// *apierror.DecodeError with Kind DecodeShape and the zero T. A T of string
// or []byte reads text and binary payloads as-is. Non-2xx statuses are always
// errors.
//
// Example:
//
//	type Extraction struct {
//	    ID     string `json:"id"`
//	    Status string `json:"status" jsonschema:"enum=pending,enum=done"`
//	}
//
//	extraction, err := client.Send[Extraction](ctx, c, request.PreparedRequest{
//	    Method: "GET",
//	    URL:    "/v1/extractions/" + id,
//	})
func Send[T any](ctx context.Context, c *Client, prepared request.PreparedRequest, opts ...IssueOption) (T, error) {
	prepared.Stream = false
	prepared.RaiseForStatus = true

	options := buildIssueOptions(opts)
	schema := options.schema
	if schema == nil {
		schema = schemaFor[T]()
	}
	options.schema = nil

	var zero T
	result, err := c.issue(ctx, prepared, options)
	if err != nil {
		return zero, err
	}
	return content.As[T](result.Payload, schema)
}

// StreamRecords issues a streamed call and yields every JSON record that
// matches the schema generated from T. Malformed lines and records that do
// not match are skipped; Stats on the underlying stream counts them. A read
// failure is yielded once and ends the sequence. Breaking out of the loop
// closes the response body.
//
// Example:
//
//	records, err := client.StreamRecords[PageResult](ctx, c, prepared)
//	if err != nil {
//	    return err
//	}
//	for page, err := range records {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(page.Number)
//	}
func StreamRecords[T any](ctx context.Context, c *Client, prepared request.PreparedRequest, opts ...IssueOption) (iter.Seq2[T, error], error) {
	prepared.Stream = true
	prepared.RaiseForStatus = true

	options := buildIssueOptions(opts)
	if options.schema == nil {
		options.schema = schemaFor[T]()
	}
	options.keepMalformed = false

	result, err := c.issue(ctx, prepared, options)
	if err != nil {
		return nil, err
	}
	if result.Stream == nil {
		return nil, notStreamable(result)
	}
	return stream.Records[T](result.Stream), nil
}

// schemaFor returns the schema generated from T, or nil for string and
// []byte, which accept any payload.
func schemaFor[T any]() *jsonschema.Schema {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.String || (t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8) {
		return nil
	}
	return jsonschema.GenerateJSONSchema[T]()
}
