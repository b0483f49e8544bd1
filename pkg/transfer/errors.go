package transfer

import (
	"errors"
	"fmt"
)

// ErrEmptyImage is returned when Send is given no image bytes.
var ErrEmptyImage = errors.New("transfer: empty image")

// UploadError is a non-2xx response from the recognition endpoint.
type UploadError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the response body text, or "HTTP <status>" when the body was empty.
	Message string
}

// Error returns the server's message verbatim so it can be shown to the user.
func (e *UploadError) Error() string {
	return e.Message
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *UploadError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsTooLarge returns true if the server rejected the payload size (HTTP 413).
func (e *UploadError) IsTooLarge() bool {
	return e.StatusCode == 413
}

// newUploadError applies the empty-body fallback.
func newUploadError(status int, body string) *UploadError {
	msg := body
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &UploadError{StatusCode: status, Message: msg}
}

// NetworkError is a request that could not be sent or whose response could
// not be received.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}
