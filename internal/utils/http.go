package utils

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// MaxResponseBodySize caps how much of a non-streamed response body is read
// into memory (10 MB).
const MaxResponseBodySize int64 = 10 * 1024 * 1024

// maxDrainSize bounds how much of a discarded body is consumed so the
// connection can be reused.
const maxDrainSize int64 = 64 * 1024

// ErrBodyTooLarge is returned by ReadLimited when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// CloseWithLog closes closer and logs a warning if that fails. Close errors on
// response bodies never override the error a caller is already returning.
func CloseWithLog(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

// DrainAndClose discards up to 64 KiB of body and closes it, which lets the
// transport put the connection back into the pool.
func DrainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainSize))
	CloseWithLog(body)
}

// ReadLimited reads at most limit bytes from reader. If the reader holds more,
// the bytes read so far are returned together with ErrBodyTooLarge. A limit
// <= 0 means MaxResponseBodySize.
func ReadLimited(reader io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxResponseBodySize
	}
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return data, fmt.Errorf("error reading response body: %w", err)
	}
	if int64(len(data)) > limit {
		return data[:limit], fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return data, nil
}
