package request

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/leofalp/docflow/core/config"
	"github.com/leofalp/docflow/providers/observability"
)

// Header names set by Build.
const (
	HeaderAuthorization      = "Authorization"
	HeaderContentType        = "Content-Type"
	HeaderAccept             = "Accept"
	HeaderUserAgent          = "User-Agent"
	HeaderIdempotencyKey     = "Idempotency-Key"
	HeaderIdempotencyRefresh = "Idempotency-ForceRefresh"
)

const (
	ContentTypeJSON        = "application/json"
	ContentTypeOctetStream = "application/octet-stream"

	acceptJSON       = "application/json"
	acceptStream     = "application/stream+json, text/plain"
	defaultFileField = "file"
)

// ErrAmbiguousBody is returned when a request carries both a JSON body and
// multipart content.
var ErrAmbiguousBody = errors.New("request has both a JSON body and form fields or files")

// File is one multipart file part.
type File struct {
	// Field is the form field name. Defaults to "file".
	Field    string
	Filename string
	Content  []byte
	// ContentType defaults to the type registered for the filename's
	// extension, then to application/octet-stream.
	ContentType string
}

// PreparedRequest describes one outgoing call. At most one of JSONBody and
// FormFields/Files may be set.
type PreparedRequest struct {
	Method string
	// URL is a path relative to the base URL, or an absolute http(s) URL.
	URL string
	// Query values that are nil (or nil pointers) are dropped. Slices are
	// encoded as repeated keys.
	Query map[string]any
	// Headers overlay the client defaults. Empty values remove a header.
	Headers map[string]string

	JSONBody   any
	FormFields map[string]any
	Files      []File

	IdempotencyKey string
	ForceRefresh   bool

	// RaiseForStatus makes non-2xx responses errors. Facades set it to true
	// unless they want to inspect error bodies themselves.
	RaiseForStatus bool
	// Stream asks for a streamed response body.
	Stream bool
}

// Multipart reports whether the request is encoded as multipart/form-data.
func (p PreparedRequest) Multipart() bool {
	return len(p.Files) > 0 || len(p.FormFields) > 0
}

// Validate checks the invariants Build relies on.
func (p PreparedRequest) Validate() error {
	if p.Multipart() && p.JSONBody != nil {
		return ErrAmbiguousBody
	}
	if strings.TrimSpace(p.URL) == "" {
		return errors.New("request url is required")
	}
	return nil
}

// NewIdempotencyKey returns a random key suitable for the Idempotency-Key
// header.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// Build creates the *http.Request for prepared using the client-wide
// defaults in cfg. It does not mutate prepared.
func Build(ctx context.Context, cfg config.Config, prepared PreparedRequest) (*http.Request, error) {
	if err := prepared.Validate(); err != nil {
		return nil, err
	}

	method := strings.ToUpper(prepared.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := JoinURL(cfg.BaseURL, prepared.URL, prepared.Query)
	if err != nil {
		return nil, err
	}

	headers := buildHeaders(cfg, prepared)

	var body []byte
	encoding := "none"
	switch {
	case prepared.Multipart():
		var contentType string
		body, contentType, err = encodeMultipart(prepared.FormFields, prepared.Files)
		if err != nil {
			return nil, err
		}
		headers.Set(HeaderContentType, contentType)
		encoding = "multipart"
	case prepared.JSONBody != nil:
		body, err = json.Marshal(prepared.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		encoding = "json"
	default:
		headers.Del(HeaderContentType)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// A *bytes.Reader body gives the request a GetBody for replays.
	req.Header = headers

	observability.AddEvent(ctx, observability.EventRequestPrepared,
		observability.String(observability.AttrHTTPMethod, method),
		observability.String(observability.AttrHTTPURL, target),
		observability.String(observability.AttrRequestEncoding, encoding),
		observability.Int(observability.AttrHTTPRequestBodySize, len(body)),
		observability.Int(observability.AttrRequestFilesCount, len(prepared.Files)),
		observability.Bool(observability.AttrRequestStream, prepared.Stream),
	)
	return req, nil
}

// JoinURL joins base and path with exactly one slash and appends the encoded
// query. An absolute path is used as is.
func JoinURL(base, path string, query map[string]any) (string, error) {
	var joined string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		joined = path
	} else {
		joined = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	}

	u, err := url.Parse(joined)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", joined, err)
	}

	encoded, err := EncodeQuery(query)
	if err != nil {
		return "", err
	}
	if encoded != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&" + encoded
		} else {
			u.RawQuery = encoded
		}
	}
	return u.String(), nil
}

// EncodeQuery encodes params in sorted key order. Nil values and nil
// pointers are dropped, slices become repeated keys, and maps or structs
// are JSON-encoded.
func EncodeQuery(params map[string]any) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	values := url.Values{}
	for key, value := range params {
		v, ok := deref(value)
		if !ok {
			continue
		}
		if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
			if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
				values.Add(key, string(v.Bytes()))
				continue
			}
			for i := 0; i < v.Len(); i++ {
				item, ok := deref(v.Index(i).Interface())
				if !ok {
					continue
				}
				s, err := formatValue(item)
				if err != nil {
					return "", fmt.Errorf("query parameter %q: %w", key, err)
				}
				values.Add(key, s)
			}
			continue
		}
		s, err := formatValue(v)
		if err != nil {
			return "", fmt.Errorf("query parameter %q: %w", key, err)
		}
		values.Set(key, s)
	}
	// url.Values.Encode sorts by key.
	return values.Encode(), nil
}

// deref follows pointers and interfaces. It reports false for nil.
func deref(value any) (reflect.Value, bool) {
	if value == nil {
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, true
}

func formatValue(v reflect.Value) (string, error) {
	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(v.Interface()), nil
	}
	if marshaler, ok := v.Interface().(encoding.TextMarshaler); ok {
		text, err := marshaler.MarshalText()
		if err != nil {
			return "", err
		}
		return string(text), nil
	}
	if stringer, ok := v.Interface().(fmt.Stringer); ok {
		return stringer.String(), nil
	}
	encoded, err := json.Marshal(v.Interface())
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func buildHeaders(cfg config.Config, prepared PreparedRequest) http.Header {
	headers := http.Header{}
	if cfg.APIKey != "" {
		headers.Set(HeaderAuthorization, "Bearer "+cfg.APIKey)
	}
	headers.Set(HeaderContentType, ContentTypeJSON)
	if prepared.Stream {
		headers.Set(HeaderAccept, acceptStream)
	} else {
		headers.Set(HeaderAccept, acceptJSON)
	}
	if cfg.UserAgent != "" {
		headers.Set(HeaderUserAgent, cfg.UserAgent)
	}
	for name, value := range cfg.ProviderHeaders() {
		headers.Set(name, value)
	}

	// Caller headers go first in sorted order, then the idempotency fields,
	// so the typed fields win over a same-named header.
	for _, name := range slices.Sorted(maps.Keys(prepared.Headers)) {
		setOrDelete(headers, name, prepared.Headers[name])
	}
	if prepared.IdempotencyKey != "" {
		headers.Set(HeaderIdempotencyKey, prepared.IdempotencyKey)
	}
	if prepared.ForceRefresh {
		headers.Set(HeaderIdempotencyRefresh, "true")
	}
	return headers
}

// setOrDelete sets name, or removes it when value is blank.
func setOrDelete(headers http.Header, name, value string) {
	if strings.TrimSpace(value) == "" {
		headers.Del(name)
		return
	}
	headers.Set(name, value)
}

// encodeMultipart writes fields in sorted key order followed by files, and
// returns the body with its boundary content type.
func encodeMultipart(fields map[string]any, files []File) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v, ok := deref(fields[key])
		if !ok {
			continue
		}
		var value string
		if v.Kind() == reflect.String {
			value = v.String()
		} else {
			encoded, err := json.Marshal(v.Interface())
			if err != nil {
				return nil, "", fmt.Errorf("form field %q: %w", key, err)
			}
			value = string(encoded)
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %q: %w", key, err)
		}
	}

	for i, file := range files {
		field := file.Field
		if field == "" {
			field = defaultFileField
		}
		filename := file.Filename
		if filename == "" {
			filename = fmt.Sprintf("file%d", i)
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(field), escapeQuotes(filename)))
		header.Set(HeaderContentType, fileContentType(file))

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part %q: %w", filename, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write file part %q: %w", filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func fileContentType(file File) string {
	if file.ContentType != "" {
		return file.ContentType
	}
	if byExt := mime.TypeByExtension(filepath.Ext(file.Filename)); byExt != "" {
		return byExt
	}
	return ContentTypeOctetStream
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
