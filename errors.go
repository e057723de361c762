package sheetfeed

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

var (
	// ErrIllegalState is returned when a cursor is drained or advanced after it was closed.
	ErrIllegalState = errors.New("cursor already drained or closed")

	// ErrSpreadsheetNotFound is returned when no spreadsheet has the requested title.
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

	// ErrWorksheetNotFound is returned when no worksheet has the requested title.
	ErrWorksheetNotFound = errors.New("worksheet not found")

	// ErrNoColumns is returned when a row or header write carries no fields.
	ErrNoColumns = errors.New("no columns to write")


	// ErrBulkPopulationFailed is wrapped in a ProtocolError when a batch upload
	// still has pending items after the retry ceiling.
	ErrBulkPopulationFailed = errors.New("bulk population failed")
)

// HTTPError is a non-2xx response from the feed service.
type HTTPError struct {
	StatusCode    int
	StatusMessage string
	Body          string

	err *googleapi.Error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.StatusMessage)
}

// Unwrap exposes the underlying googleapi error.
func (e *HTTPError) Unwrap() error {
	if e.err == nil {
		return nil
	}
	return e.err
}

// credentialsExpired reports whether the error is the server's signal that the
// bearer token is no longer accepted.
func (e *HTTPError) credentialsExpired() bool {
	if e.StatusCode != 401 {
		return false
	}
	if containsFold(e.StatusMessage, "token expired") || containsFold(e.Body, "token expired") {
		return true
	}
	if e.err != nil {
		for _, v := range e.err.Header.Values("WWW-Authenticate") {
			if containsFold(v, "invalid_token") {
				return true
			}
		}
	}
	return false
}

// ProtocolError reports a malformed or unexpected feed structure.
type ProtocolError struct {
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil && e.Message == "" {
		return "protocol error: " + e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Message, e.Err)
	}
	return "protocol error: " + e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err carries an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
