package transport

import (
	"errors"
	"fmt"
)

// ErrInvalidJSON is returned when a response declares JSON but does not parse.
var ErrInvalidJSON = errors.New("transport: invalid json response body")

// ErrBodyTooLarge is returned when a response exceeds the configured limit.
var ErrBodyTooLarge = errors.New("transport: response body too large")

// RejectionError is a non-2xx response from the server.
//
// For JSON responses Fields holds the decoded top-level object. For text
// responses Text holds the body.
type RejectionError struct {
	StatusCode int
	StatusText string
	Fields     map[string]any
	Text       string
}

func (e *RejectionError) Error() string {
	detail := e.Text
	if detail == "" && e.Fields != nil {
		if msg, ok := e.Fields["errorText"].(string); ok {
			detail = msg
		}
	}
	if detail == "" {
		return fmt.Sprintf("transport: server rejected request: %d %s", e.StatusCode, e.StatusText)
	}
	return fmt.Sprintf("transport: server rejected request: %d %s: %s", e.StatusCode, e.StatusText, detail)
}

// UnsupportedContentTypeError is returned for responses that are neither JSON
// nor text.
type UnsupportedContentTypeError struct {
	ContentType string
}

func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("transport: content-type %s not supported", e.ContentType)
}
