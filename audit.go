package goMormot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Audit event types.
const (
	AuditEventLoginSuccess   = "login_success"
	AuditEventLoginFailure   = "login_failure"
	AuditEventLogoutSuccess  = "logout_success"
	AuditEventLogoutFailure  = "logout_failure"
	AuditEventSessionResumed = "session_resumed"
)

// AuditEvent is one security-relevant client action. It never carries the
// password, its digest, or the session private key.
type AuditEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserName  string            `json:"user_name,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// AuditErrorCode is the coarse error class recorded in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrEmptyUserName   AuditErrorCode = "empty_user_name"
	auditErrRejected        AuditErrorCode = "server_rejected"
	auditErrProtocol        AuditErrorCode = "protocol_error"
	auditErrContentType     AuditErrorCode = "unsupported_content_type"
	auditErrCanceled        AuditErrorCode = "canceled"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrSessionNotFound AuditErrorCode = "session_not_found"
	auditErrNetwork         AuditErrorCode = "network_error"
)

func (c *Client) emitAudit(ctx context.Context, eventType string, success bool, userName, sessionID string, err error) {
	if c == nil || c.audit == nil {
		return
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: c.now().UTC(),
		EventType: eventType,
		UserName:  userName,
		SessionID: sessionID,
		RequestID: requestIDFromContext(ctx),
		Success:   success,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	var rej *RejectionError
	if errors.As(err, &rej) {
		event.Metadata = map[string]string{"status": rej.StatusText}
	}

	c.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var rej *RejectionError
	var unsupported *UnsupportedContentTypeError
	switch {
	case errors.Is(err, ErrEmptyUserName):
		return auditErrEmptyUserName
	case errors.As(err, &rej):
		return auditErrRejected
	case errors.Is(err, ErrProtocolParse):
		return auditErrProtocol
	case errors.As(err, &unsupported):
		return auditErrContentType
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	case errors.Is(err, ErrRedisUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	default:
		return auditErrNetwork
	}
}
