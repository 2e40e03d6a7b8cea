package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when there is nothing to send.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyAudio is returned when the speech endpoint answers with no audio.
	ErrEmptyAudio = errors.New("speech endpoint returned empty audio")
)

// maxErrorBody bounds how much of a failed response is kept in an HTTPError.
const maxErrorBody = 512

// HTTPError reports a non-successful response status.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Retryable reports whether err may succeed on another attempt. Only HTTP
// errors that are not Temporary are final.
func Retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Temporary()
	}
	return true
}

func newHTTPError(status int, body []byte) *HTTPError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &HTTPError{StatusCode: status, Body: string(body)}
}

// FormatError reports a response that does not have the expected shape.
type FormatError struct {
	Reason string
	Body   string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return "unexpected response format: " + e.Reason
}
