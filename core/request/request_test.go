package request

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/leofalp/docflow/core/config"
	"github.com/leofalp/docflow/providers/observability"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = "https://api.example.com/v1/"
	return cfg
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		path  string
		query map[string]any
		want  string
	}{
		{"slashes on both sides", "https://api.example.com/v1/", "/documents", nil, "https://api.example.com/v1/documents"},
		{"no slashes", "https://api.example.com/v1", "documents", nil, "https://api.example.com/v1/documents"},
		{"absolute url kept", "https://api.example.com", "https://files.example.com/x?a=1", map[string]any{"b": 2}, "https://files.example.com/x?a=1&b=2"},
		{"query sorted", "https://api.example.com", "/jobs", map[string]any{"z": "last", "a": "first"}, "https://api.example.com/jobs?a=first&z=last"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinURL(tt.base, tt.path, tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("JoinURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestEncodeQuery_DropsNilValues verifies absent parameters never reach the
// wire, including typed nil pointers.
func TestEncodeQuery_DropsNilValues(t *testing.T) {
	var missing *string
	limit := 10
	got, err := EncodeQuery(map[string]any{
		"cursor":   nil,
		"filter":   missing,
		"limit":    &limit,
		"archived": false,
		"tag":      []string{"a", "b"},
		"since":    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		"meta":     map[string]int{"k": 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "archived=false&limit=10&meta=%7B%22k%22%3A1%7D&since=2026-01-02T03%3A04%3A05Z&tag=a&tag=b"
	if got != want {
		t.Errorf("EncodeQuery() = %q, want %q", got, want)
	}
}

// TestBuild_JSONBody verifies that a request without files or form fields is
// JSON-encoded and carries no multipart boundary.
func TestBuild_JSONBody(t *testing.T) {
	req, err := Build(context.Background(), testConfig(), PreparedRequest{
		Method:   "post",
		URL:      "/extract",
		JSONBody: map[string]any{"document": "doc_1", "pages": []int{1, 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Errorf("Expected POST, got %s", req.Method)
	}
	if req.URL.String() != "https://api.example.com/v1/extract" {
		t.Errorf("Unexpected URL %s", req.URL)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
	if strings.Contains(req.Header.Get("Content-Type"), "boundary") {
		t.Error("Did not expect a multipart boundary")
	}

	body, _ := io.ReadAll(req.Body)
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Expected JSON body, got %q: %v", body, err)
	}
	if decoded["document"] != "doc_1" {
		t.Errorf("Unexpected body %s", body)
	}

	if req.GetBody == nil {
		t.Fatal("Expected GetBody for replay")
	}
	replay, err := req.GetBody()
	if err != nil {
		t.Fatalf("GetBody: %v", err)
	}
	replayed, _ := io.ReadAll(replay)
	if string(replayed) != string(body) {
		t.Errorf("Expected identical replay, got %q", replayed)
	}
}

func TestBuild_DefaultHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAIAPIKey = "sk-openai"
	cfg.XAIAPIKey = "xai-key"

	req, err := Build(context.Background(), cfg, PreparedRequest{
		Method:         http.MethodPost,
		URL:            "runs",
		JSONBody:       map[string]string{"a": "b"},
		IdempotencyKey: "key-1",
		ForceRefresh:   true,
		Headers: map[string]string{
			"X-Trace":        "abc",
			"User-Agent":     "",
			"OpenAI-Api-Key": "sk-override",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"Authorization":            "Bearer sk-test",
		"Accept":                   "application/json",
		"Content-Type":             "application/json",
		"Openai-Api-Key":           "sk-override",
		"Xai-Api-Key":              "xai-key",
		"X-Trace":                  "abc",
		"Idempotency-Key":          "key-1",
		"Idempotency-Forcerefresh": "true",
	}
	for name, value := range want {
		if got := req.Header.Get(name); got != value {
			t.Errorf("Header %s = %q, want %q", name, got, value)
		}
	}
	if _, ok := req.Header["User-Agent"]; ok {
		t.Error("Expected empty User-Agent override to drop the header")
	}
	if req.Header.Get("Anthropic-Api-Key") != "" {
		t.Error("Did not expect a header for an unset provider key")
	}
}

// TestBuild_IdempotencyFieldsWinOverHeaders verifies the typed fields take
// precedence over a same-named caller header whatever its casing.
func TestBuild_IdempotencyFieldsWinOverHeaders(t *testing.T) {
	for range 20 {
		req, err := Build(context.Background(), testConfig(), PreparedRequest{
			Method:         http.MethodPost,
			URL:            "runs",
			IdempotencyKey: "from-field",
			ForceRefresh:   true,
			Headers: map[string]string{
				"idempotency-key":          "from-header",
				"IDEMPOTENCY-FORCEREFRESH": "false",
				"X-A":                      "1",
				"x-b":                      "2",
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := req.Header.Values("Idempotency-Key"); len(got) != 1 || got[0] != "from-field" {
			t.Fatalf("Idempotency-Key = %v, want [from-field]", got)
		}
		if got := req.Header.Get("Idempotency-ForceRefresh"); got != "true" {
			t.Fatalf("Idempotency-ForceRefresh = %q, want true", got)
		}
	}
}

func TestBuild_NoBody(t *testing.T) {
	req, err := Build(context.Background(), testConfig(), PreparedRequest{URL: "documents/doc_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != http.MethodGet {
		t.Errorf("Expected default GET, got %s", req.Method)
	}
	if req.Body != nil && req.Body != http.NoBody {
		t.Error("Expected no body")
	}
	if req.Header.Get("Content-Type") != "" {
		t.Error("Did not expect Content-Type without a body")
	}
}

func TestBuild_StreamAccept(t *testing.T) {
	req, err := Build(context.Background(), testConfig(), PreparedRequest{URL: "runs/1/events", Stream: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.Header.Get("Accept"); got != "application/stream+json, text/plain" {
		t.Errorf("Unexpected Accept %q", got)
	}
}

// TestBuild_Multipart verifies fields and files round-trip through a
// multipart reader and that the static JSON content type is replaced.
func TestBuild_Multipart(t *testing.T) {
	req, err := Build(context.Background(), testConfig(), PreparedRequest{
		Method: http.MethodPost,
		URL:    "/documents",
		FormFields: map[string]any{
			"name":    "invoice",
			"options": map[string]bool{"ocr": true},
			"skip":    nil,
		},
		Files: []File{
			{Filename: "scan.pdf", Content: []byte("%PDF-1.7")},
			{Field: "attachment", Filename: "notes.bin", Content: []byte{0, 1, 2}, ContentType: "application/x-notes"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("Invalid Content-Type: %v", err)
	}
	if mediaType != "multipart/form-data" || params["boundary"] == "" {
		t.Fatalf("Expected multipart with boundary, got %q", req.Header.Get("Content-Type"))
	}

	reader := multipart.NewReader(req.Body, params["boundary"])
	type part struct{ field, filename, contentType, body string }
	var parts []part
	for {
		p, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		data, _ := io.ReadAll(p)
		parts = append(parts, part{p.FormName(), p.FileName(), p.Header.Get("Content-Type"), string(data)})
	}

	want := []part{
		{"name", "", "", "invoice"},
		{"options", "", "", `{"ocr":true}`},
		{"file", "scan.pdf", "application/pdf", "%PDF-1.7"},
		{"attachment", "notes.bin", "application/x-notes", "\x00\x01\x02"},
	}
	if len(parts) != len(want) {
		t.Fatalf("Expected %d parts, got %d: %+v", len(want), len(parts), parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("Part %d = %+v, want %+v", i, parts[i], want[i])
		}
	}
}

func TestBuild_AmbiguousBody(t *testing.T) {
	_, err := Build(context.Background(), testConfig(), PreparedRequest{
		Method:   http.MethodPost,
		URL:      "/documents",
		JSONBody: map[string]string{"a": "b"},
		Files:    []File{{Filename: "a.txt", Content: []byte("a")}},
	})
	if !errors.Is(err, ErrAmbiguousBody) {
		t.Fatalf("Expected ErrAmbiguousBody, got %v", err)
	}
}

func TestBuild_EmitsPreparedEvent(t *testing.T) {
	span := &recordingSpan{}
	ctx := observability.ContextWithSpan(context.Background(), span)

	if _, err := Build(ctx, testConfig(), PreparedRequest{URL: "/ping"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(span.events) != 1 || span.events[0] != observability.EventRequestPrepared {
		t.Errorf("Expected %s event, got %v", observability.EventRequestPrepared, span.events)
	}
}

func TestNewIdempotencyKey(t *testing.T) {
	a, b := NewIdempotencyKey(), NewIdempotencyKey()
	if len(a) != 36 || a == b {
		t.Errorf("Expected two distinct UUIDs, got %q and %q", a, b)
	}
}

type recordingSpan struct {
	events []string
}

func (s *recordingSpan) End()                                       {}
func (s *recordingSpan) SetAttributes(...observability.Attribute)   {}
func (s *recordingSpan) SetStatus(observability.StatusCode, string) {}
func (s *recordingSpan) RecordError(error)                          {}
func (s *recordingSpan) AddEvent(name string, _ ...observability.Attribute) {
	s.events = append(s.events, name)
}
