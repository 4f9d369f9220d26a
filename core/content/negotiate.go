package content

import (
	"mime"
	"strings"
)

// Kind is the decode path selected for a response.
type Kind string

const (
	KindJSON       Kind = "json"
	KindJSONStream Kind = "json_stream"
	KindText       Kind = "text"
	KindRaw        Kind = "raw"
)

// Negotiate maps a Content-Type header to a Kind:
//
//	application/json, application/*+json           -> KindJSON
//	application/stream+json, application/x-ndjson,
//	application/jsonl                               -> KindJSONStream
//	text/*                                          -> KindText
//	anything else, including an empty header        -> KindRaw
func Negotiate(contentType string) Kind {
	mediaType := MediaType(contentType)
	switch mediaType {
	case "application/stream+json", "application/x-ndjson", "application/jsonl":
		return KindJSONStream
	case "application/json":
		return KindJSON
	}
	switch {
	case strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json"):
		return KindJSON
	case strings.HasPrefix(mediaType, "text/"):
		return KindText
	default:
		return KindRaw
	}
}

// MediaType returns the lower-cased media type of a Content-Type header
// without parameters. Malformed parameters are ignored.
func MediaType(contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// Streamable reports whether kind can be handed to a line decoder.
func (k Kind) Streamable() bool {
	return k == KindJSONStream || k == KindText
}
