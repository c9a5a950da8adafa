package session

import (
	"encoding/json"
	"time"

	"github.com/MrEthical07/goMormot/signature"
)

// State is the client side of an authenticated mORMot session.
type State struct {
	SessionID     uint32
	SessionIDHex8 string
	PrivateKey    uint32

	// ServerTimeOffset is the server time-log minus the local time-log at login.
	ServerTimeOffset int64
	// StartedAt is the local instant the handshake began; nonces count from it.
	StartedAt time.Time

	UserName string
	// ServerData is the raw body of the final auth response.
	ServerData json.RawMessage
}

// Active reports whether the state holds a live session.
func (s State) Active() bool {
	return s.SessionID > 0
}

// Key returns the signing material for this session.
func (s State) Key() signature.Key {
	return signature.Key{
		SessionIDHex8: s.SessionIDHex8,
		PrivateKey:    s.PrivateKey,
	}
}

func (s State) clone() State {
	out := s
	if s.ServerData != nil {
		out.ServerData = append([]byte(nil), s.ServerData...)
	}
	return out
}
