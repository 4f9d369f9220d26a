package content

import (
	"bytes"
	"encoding/json"
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leofalp/docflow/core/apierror"
	"github.com/leofalp/docflow/internal/jsonschema"
	"github.com/leofalp/docflow/internal/utils"
)

// Payload is a decoded response body.
type Payload struct {
	Kind        Kind
	ContentType string

	// Raw is the body as decoded. For JSON it differs from the wire bytes
	// only when the body had to be repaired.
	Raw []byte
	// Value is the decoded JSON value for KindJSON: map[string]any, []any,
	// string, float64, bool or nil.
	Value any
	// Text is the body for KindText, converted to markdown for HTML when
	// requested.
	Text string

	Repaired bool
}

// Unmarshal decodes the raw JSON payload into v.
func (p *Payload) Unmarshal(v any) error {
	return json.Unmarshal(p.Raw, v)
}

// Option configures Decode.
type Option func(*decodeOptions)

type decodeOptions struct {
	repairJSON     bool
	htmlToMarkdown bool
}

// WithJSONRepair makes Decode repair malformed JSON bodies (single quotes,
// trailing commas, truncated tails) before giving up.
func WithJSONRepair() Option {
	return func(o *decodeOptions) { o.repairJSON = true }
}

// WithHTMLToMarkdown converts text/html bodies to markdown.
func WithHTMLToMarkdown() Option {
	return func(o *decodeOptions) { o.htmlToMarkdown = true }
}

// Decode turns body into a Payload according to contentType. Only a JSON
// body that fails to parse is an error; unknown content types come back as
// KindRaw unchanged.
func Decode(contentType string, body []byte, opts ...Option) (*Payload, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	payload := &Payload{
		Kind:        Negotiate(contentType),
		ContentType: contentType,
		Raw:         body,
	}

	switch payload.Kind {
	case KindJSON:
		if len(bytes.TrimSpace(body)) == 0 {
			return payload, nil
		}
		var value any
		if o.repairJSON {
			fixed, err := utils.UnmarshalLenient(body, &value)
			if err != nil {
				return nil, badContentType(contentType, body, "invalid JSON", err)
			}
			payload.Repaired = !bytes.Equal(fixed, body)
			payload.Raw = fixed
		} else if err := json.Unmarshal(body, &value); err != nil {
			return nil, badContentType(contentType, body, "invalid JSON", err)
		}
		payload.Value = value

	case KindText:
		payload.Text = string(body)
		if o.htmlToMarkdown && MediaType(contentType) == "text/html" {
			markdown, err := htmltomarkdown.ConvertString(payload.Text)
			if err != nil {
				return nil, badContentType(contentType, body, "failed to convert HTML to markdown", err)
			}
			payload.Text = markdown
		}
	}
	return payload, nil
}

// Validate checks a decoded JSON payload against schema. A nil schema
// accepts any payload. A non-JSON payload is a bad content type; a JSON value
// that does not match is a shape error.
func Validate(payload *Payload, schema *jsonschema.Schema) error {
	if schema == nil {
		return nil
	}
	if payload == nil || payload.Kind != KindJSON {
		contentType := ""
		var raw []byte
		if payload != nil {
			contentType, raw = payload.ContentType, payload.Raw
		}
		return badContentType(contentType, raw, "expected a JSON payload", nil)
	}
	if err := jsonschema.Validate(schema, payload.Value); err != nil {
		return &apierror.DecodeError{
			Kind:        apierror.DecodeShape,
			ContentType: payload.ContentType,
			Message:     err.Error(),
			Payload:     payload.Raw,
			Cause:       err,
		}
	}
	return nil
}

// As validates payload against schema and unmarshals it into a T. Text and
// raw payloads can be read as string or []byte. On any error the zero T is
// returned.
func As[T any](payload *Payload, schema *jsonschema.Schema) (T, error) {
	var out T
	if payload == nil {
		return out, badContentType("", nil, "empty payload", nil)
	}

	if payload.Kind != KindJSON && schema == nil {
		switch target := any(&out).(type) {
		case *string:
			if payload.Kind == KindText {
				*target = payload.Text
			} else {
				*target = string(payload.Raw)
			}
			return out, nil
		case *[]byte:
			*target = payload.Raw
			return out, nil
		}
	}

	if err := Validate(payload, schema); err != nil {
		return out, err
	}
	if payload.Kind != KindJSON {
		return out, badContentType(payload.ContentType, payload.Raw, "expected a JSON payload", nil)
	}
	if err := json.Unmarshal(payload.Raw, &out); err != nil {
		var zero T
		return zero, &apierror.DecodeError{
			Kind:        apierror.DecodeShape,
			ContentType: payload.ContentType,
			Message:     fmt.Sprintf("cannot decode into %T", out),
			Payload:     payload.Raw,
			Cause:       err,
		}
	}
	return out, nil
}

func badContentType(contentType string, body []byte, message string, cause error) *apierror.DecodeError {
	return &apierror.DecodeError{
		Kind:        apierror.DecodeBadContentType,
		ContentType: contentType,
		Message:     message,
		Payload:     body,
		Cause:       cause,
	}
}
