package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Verbs accepted by the server.
const (
	MethodGet    = http.MethodGet
	MethodPost   = http.MethodPost
	MethodPut    = http.MethodPut
	MethodDelete = http.MethodDelete
	MethodHead   = http.MethodHead
)

// DefaultContentType is sent when a Request carries no headers.
const DefaultContentType = "application/json; charset=UTF-8"

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Request is one HTTP exchange. URL is absolute and already signed if needed.
//
// A nil Header means only Content-Type: DefaultContentType is sent. Body is
// ignored for GET and HEAD; otherwise []byte and json.RawMessage are sent as
// is and any other non-nil value is JSON encoded.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any
}

// BodyAllowed reports whether method carries a request body.
func BodyAllowed(method string) bool {
	switch strings.ToUpper(method) {
	case MethodGet, MethodHead:
		return false
	default:
		return true
	}
}

// Response is a classified server response.
type Response struct {
	StatusCode  int
	StatusText  string
	Header      http.Header
	ContentType string
	Body        []byte

	json bool
}

// IsJSON reports whether the response was classified as JSON.
func (r *Response) IsJSON() bool {
	return r.json
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return err
	}
	return nil
}

// Result returns the "result" member of a JSON object body.
func (r *Response) Result() (json.RawMessage, bool) {
	if !r.json {
		return nil, false
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(r.Body, &envelope); err != nil {
		return nil, false
	}
	raw, ok := envelope["result"]
	return raw, ok
}

// Location returns the Location response header.
func (r *Response) Location() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Location")
}

type requestIDKey struct{}

// WithRequestID returns a context whose requests carry id in X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
