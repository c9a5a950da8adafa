package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultMaxBodyBytes bounds how much of a response body is read.
const DefaultMaxBodyBytes = 16 << 20

// Doer executes a Request.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTP is a Doer backed by net/http.
type HTTP struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       logrus.FieldLogger
}

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(h *HTTP) {
		h.userAgent = ua
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(h *HTTP) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithLogger attaches a logger. Requests are logged at debug level without
// their query string.
func WithLogger(l logrus.FieldLogger) Option {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTP returns an HTTP transport. A nil client uses a client with timeout.
func NewHTTP(client *http.Client, timeout time.Duration, opts ...Option) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	h := &HTTP{
		client:       client,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       discard,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Do sends req and classifies the response.
func (h *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = MethodGet
	}

	body, err := encodeBody(method, req.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: encode body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}

	if req.Header == nil {
		httpReq.Header.Set("Content-Type", DefaultContentType)
	} else {
		httpReq.Header = req.Header.Clone()
	}
	if h.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", h.userAgent)
	}
	requestID, ok := RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set(RequestIDHeader, requestID)

	log := h.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       httpReq.URL.Path,
		"request_id": requestID,
	})

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return nil, fmt.Errorf("transport: %s %s: %w", method, httpReq.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("transport: read body: %w", err)
	}
	if int64(len(raw)) > h.maxBodyBytes {
		return nil, ErrBodyTooLarge
	}

	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("request completed")

	return classify(resp.StatusCode, statusText(resp), resp.Header, raw)
}

func encodeBody(method string, v any) (io.Reader, error) {
	if !BodyAllowed(method) || v == nil {
		return nil, nil
	}
	switch b := v.(type) {
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case string:
		return strings.NewReader(b), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	text = strings.TrimSpace(text)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// NewResponse classifies a response that did not come through HTTP, for
// custom Doers and tests. It applies the same rules as HTTP.Do.
func NewResponse(statusCode int, header http.Header, body []byte) (*Response, error) {
	if header == nil {
		header = http.Header{}
	}
	return classify(statusCode, http.StatusText(statusCode), header, body)
}

func classify(code int, text string, header http.Header, raw []byte) (*Response, error) {
	out := &Response{
		StatusCode:  code,
		StatusText:  text,
		Header:      header,
		ContentType: header.Get("Content-Type"),
		Body:        raw,
	}
	ok := code >= 200 && code < 300
	ct := strings.ToLower(out.ContentType)

	switch {
	case ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "text/plain"):
		if !ok {
			return nil, &RejectionError{
				StatusCode: out.StatusCode,
				StatusText: out.StatusText,
				Text:       string(raw),
			}
		}
		return out, nil

	case strings.Contains(ct, "application/json"):
		out.json = true
		if len(bytes.TrimSpace(raw)) == 0 {
			if !ok {
				return nil, &RejectionError{StatusCode: out.StatusCode, StatusText: out.StatusText}
			}
			return out, nil
		}
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		if !ok {
			rej := &RejectionError{StatusCode: out.StatusCode, StatusText: out.StatusText}
			if fields, isObj := parsed.(map[string]any); isObj {
				rej.Fields = fields
			}
			return nil, rej
		}
		return out, nil

	default:
		return nil, &UnsupportedContentTypeError{ContentType: out.ContentType}
	}
}
