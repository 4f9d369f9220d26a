package content

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/leofalp/docflow/core/apierror"
	"github.com/leofalp/docflow/internal/utils"
)

// maxErrorBody bounds the copy of an error body kept on APIError.
const maxErrorBody = 64 * 1024

var requestIDHeaders = []string{"X-Request-Id", "Request-Id", "X-Correlation-Id"}

// CheckStatus classifies resp by status code. It returns nil for statuses
// below 400, *apierror.ValidationError for 422 and *apierror.APIError for
// every other 4xx or 5xx. body is the already-read response body.
func CheckStatus(resp *http.Response, body []byte) error {
	if resp == nil || resp.StatusCode < 400 {
		return nil
	}

	var method, target string
	if resp.Request != nil {
		method = resp.Request.Method
		if resp.Request.URL != nil {
			target = resp.Request.URL.String()
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	message, detail := errorMessage(body)

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return &apierror.ValidationError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Method:     method,
			URL:        target,
			Body:       body,
			Detail:     detail,
		}
	}

	kind := apierror.KindClient
	if resp.StatusCode >= 500 {
		kind = apierror.KindServer
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &apierror.APIError{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Message:    message,
		Method:     method,
		URL:        target,
		RequestID:  requestID(resp.Header),
		Body:       body,
	}
}

// errorMessage extracts a human readable message from a JSON error body. It
// understands {"detail": ...}, {"message": ...} and {"error": "..."} as well as
// {"error": {"message": ...}}. Non-JSON bodies are used verbatim, truncated.
func errorMessage(body []byte) (string, any) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return utils.TruncateString(trimmed, 200), nil
	}

	detail := decoded["detail"]
	switch d := detail.(type) {
	case string:
		return d, detail
	case nil:
	default:
		if msg := stringField(decoded, "message"); msg != "" {
			return msg, detail
		}
		return utils.TruncateString(utils.JSONToString(d), 200), detail
	}

	if msg := stringField(decoded, "message"); msg != "" {
		return msg, nil
	}
	switch e := decoded["error"].(type) {
	case string:
		return e, nil
	case map[string]any:
		return stringField(e, "message"), nil
	}
	return "", nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func requestID(header http.Header) string {
	for _, name := range requestIDHeaders {
		if id := header.Get(name); id != "" {
			return id
		}
	}
	return ""
}
