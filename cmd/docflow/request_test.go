package main

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/leofalp/docflow/core/config"
	"github.com/leofalp/docflow/core/content"
	"github.com/leofalp/docflow/core/stream"
)

// execute runs the root command against baseURL and returns stdout and
// stderr.
func execute(t *testing.T, baseURL string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvAPIKey, "cli-key")
	t.Setenv(config.EnvBaseURL, baseURL)
	t.Setenv(config.EnvMaxRetries, "0")
	t.Setenv("DOCFLOW_LOG_LEVEL", "error")
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// TestRun_PrintsIndentedJSON verifies the default GET path end to end.
func TestRun_PrintsIndentedJSON(t *testing.T) {
	var gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"ext_1","status":"done"}`)
	}))
	defer server.Close()

	stdout, _, err := execute(t, server.URL, "", "-q", "page=1", "-q", "page=2", "/v1/extractions/ext_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "{\n  \"id\": \"ext_1\",\n  \"status\": \"done\"\n}\n"
	if stdout != want {
		t.Errorf("unexpected output:\n%s", stdout)
	}
	if gotAuth != "Bearer cli-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotQuery != "page=1&page=2" {
		t.Errorf("expected repeated query keys, got %q", gotQuery)
	}
}

// TestRun_StreamsEvents verifies that streamed events come out as JSON lines.
func TestRun_StreamsEvents(t *testing.T) {
	var gotBody, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, "{\"page\":1}\nnot json\n{\"page\":2}\n")
	}))
	defer server.Close()

	stdout, _, err := execute(t, server.URL, `{"url":"https://example.com/a.pdf"}`,
		"-X", "post", "-d", "-", "--stream", "--keep-malformed", "/v1/extractions/stream")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", stdout)
	}
	if lines[0] != `{"page":1}` || lines[2] != `{"page":2}` {
		t.Errorf("unexpected records: %q", lines)
	}
	if !strings.Contains(lines[1], `"line":"not json"`) || !strings.Contains(lines[1], `"error"`) {
		t.Errorf("expected a malformed line event, got %s", lines[1])
	}
	if gotBody != `{"url":"https://example.com/a.pdf"}` {
		t.Errorf("unexpected request body: %s", gotBody)
	}
	if gotKey == "" {
		t.Error("expected a generated idempotency key for POST")
	}
}

// TestRun_UploadsFiles verifies multipart uploads from --file and --field.
func TestRun_UploadsFiles(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "invoice.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.7"), 0o600); err != nil {
		t.Fatal(err)
	}

	parts := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("bad content type: %v", err)
			return
		}
		reader := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(part)
			parts[part.FormName()+"|"+part.FileName()] = string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer server.Close()

	_, _, err := execute(t, server.URL, "", "-X", "POST", "-F", "document="+pdf, "--field", "mode=fast", "/v1/documents")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"mode|":                "fast",
		"document|invoice.pdf": "%PDF-1.7",
	}
	if !reflect.DeepEqual(parts, want) {
		t.Errorf("expected parts %v, got %v", want, parts)
	}
}

// TestRun_ErrorStatus verifies failing and non-failing error statuses.
func TestRun_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"no such extraction"}`)
	}))
	defer server.Close()

	_, _, err := execute(t, server.URL, "", "/v1/extractions/missing")
	if err == nil || !strings.Contains(err.Error(), "no such extraction") {
		t.Fatalf("expected the API error, got %v", err)
	}

	stdout, stderr, err := execute(t, server.URL, "", "--no-raise", "/v1/extractions/missing")
	if err != nil {
		t.Fatalf("unexpected error with --no-raise: %v", err)
	}
	if !strings.Contains(stdout, "no such extraction") || !strings.Contains(stderr, "HTTP 404") {
		t.Errorf("expected body on stdout and status on stderr, got %q / %q", stdout, stderr)
	}
}

// TestRun_BufferedJSONStream verifies that a stream+json response to a
// non-streamed request is printed one record per line.
func TestRun_BufferedJSONStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/stream+json")
		_, _ = io.WriteString(w, "{\"page\":1}\nnot-json\n{\"page\":2}\n")
	}))
	defer server.Close()

	stdout, _, err := execute(t, server.URL, "", "/v1/extractions/ext_1/pages")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "{\"page\":1}\n{\"page\":2}\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

// TestRun_Metrics verifies that --metrics prints the request counters.
func TestRun_Metrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "pong")
	}))
	defer server.Close()

	stdout, stderr, err := execute(t, server.URL, "", "--metrics", "/ping")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "pong\n" {
		t.Errorf("unexpected output: %q", stdout)
	}
	if !strings.Contains(stderr, `docflow_requests_total{method="GET",status="200"} 1`) {
		t.Errorf("expected the request counter, got:\n%s", stderr)
	}
}

// TestRun_MissingAPIKey verifies that configuration errors are reported.
func TestRun_MissingAPIKey(t *testing.T) {
	t.Setenv(config.EnvAPIKey, "")
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"/v1/ping"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "api key is required") {
		t.Fatalf("expected a missing api key error, got %v", err)
	}
}

// TestParseKeyValues covers repeated keys and malformed pairs.
func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues([]string{"a=1", "b=x=y", "a=2", "a=3", "empty="})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"a": []string{"1", "2", "3"}, "b": "x=y", "empty": ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseKeyValues([]string{bad}); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

// TestParseHeaders covers trimming and malformed lines.
func TestParseHeaders(t *testing.T) {
	got, err := parseHeaders([]string{"X-Trace:  abc ", "Accept:text/plain"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["X-Trace"] != "abc" || got["Accept"] != "text/plain" {
		t.Errorf("unexpected headers: %v", got)
	}
	if _, err := parseHeaders([]string{"no colon"}); err == nil {
		t.Error("expected an error for a line without a colon")
	}
}

// TestLoadFiles covers field prefixes and missing files.
func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a=b.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o600); err != nil {
		t.Fatal(err)
	}

	files, err := loadFiles([]string{path, "attachment=" + path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if files[0].Field != "" || files[0].Filename != "a=b.txt" {
		t.Errorf("expected a path containing '=' to be read as is, got %+v", files[0])
	}
	if files[1].Field != "attachment" || string(files[1].Content) != "hi" {
		t.Errorf("expected the attachment field, got %+v", files[1])
	}

	if _, err := loadFiles([]string{filepath.Join(dir, "missing.pdf")}); err == nil {
		t.Error("expected an error for a missing file")
	}
}

// TestReadData rejects invalid JSON bodies.
func TestReadData(t *testing.T) {
	if _, err := readData("-", strings.NewReader("{not json")); err == nil {
		t.Error("expected an error for invalid JSON")
	}
	body, err := readData("-", strings.NewReader(`[1,2]`))
	if err != nil || string(body) != `[1,2]` {
		t.Errorf("unexpected body %s, err %v", body, err)
	}
}

// TestWritePayload covers each payload kind.
func TestWritePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload *content.Payload
		want    string
	}{
		{"nil", nil, ""},
		{"empty json", &content.Payload{Kind: content.KindJSON}, ""},
		{"json", &content.Payload{Kind: content.KindJSON, Raw: []byte(`{"a":[1]}`)}, "{\n  \"a\": [\n    1\n  ]\n}\n"},
		{"text", &content.Payload{Kind: content.KindText, Text: "hello"}, "hello\n"},
		{"raw", &content.Payload{Kind: content.KindRaw, Raw: []byte{0x01, 0x02}}, "\x01\x02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writePayload(&buf, tt.payload); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, buf.String())
			}
		})
	}
}

// TestEventLine covers the three event shapes.
func TestEventLine(t *testing.T) {
	line, _ := eventLine(stream.DecodedEvent{Kind: stream.EventText, Text: ""})
	if string(line) != `{"text":""}` {
		t.Errorf("unexpected text line: %s", line)
	}
	line, _ = eventLine(stream.DecodedEvent{Kind: stream.EventJSON, Value: []byte(`{"a":1}`)})
	if string(line) != `{"a":1}` {
		t.Errorf("unexpected json line: %s", line)
	}
}

// TestVersionCommand verifies the version output.
func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "docflow "+Version) {
		t.Errorf("unexpected version output: %q", out.String())
	}
}
