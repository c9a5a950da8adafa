package goMormot

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goMormot/session"
	"github.com/MrEthical07/goMormot/transport"
)

var (
	// ErrClientNotReady is returned by methods of a nil or unbuilt Client.
	ErrClientNotReady = errors.New("client not ready")
	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrEmptyUserName is returned by Login for an empty user name.
	ErrEmptyUserName = errors.New("user name must not be empty")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrProtocolParse marks a server answer the client cannot interpret.
	ErrProtocolParse = errors.New("mormot protocol parse error")
	// ErrUnsupportedVerb is returned for HTTP verbs other than GET, POST, PUT, DELETE and HEAD.
	ErrUnsupportedVerb = errors.New("unsupported http verb")
	// ErrInvalidParams is returned when GET/HEAD parameters are not Params.
	ErrInvalidParams = errors.New("GET and HEAD parameters must be Params")
	// ErrSessionStoreDisabled is returned by Resume without session persistence.
	ErrSessionStoreDisabled = errors.New("session persistence not configured")
	// ErrSessionNotFound is returned by Resume when nothing is persisted.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrRedisUnavailable wraps Redis failures of the session store.
	ErrRedisUnavailable = session.ErrRedisUnavailable
)

// RejectionError is a non-2xx server response.
type RejectionError = transport.RejectionError

// UnsupportedContentTypeError is a response that is neither JSON nor text.
type UnsupportedContentTypeError = transport.UnsupportedContentTypeError

// ProtocolError reports a malformed server answer at one handshake step.
// It matches ErrProtocolParse with errors.Is.
type ProtocolError struct {
	Step string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mormot protocol: %s: %v", e.Step, e.Err)
}

func (e *ProtocolError) Unwrap() []error {
	return []error{ErrProtocolParse, e.Err}
}

func protocolError(step string, err error) error {
	return &ProtocolError{Step: step, Err: err}
}
