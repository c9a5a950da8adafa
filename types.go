package goMormot

import (
	"encoding/json"
	"time"

	"github.com/MrEthical07/goMormot/session"
)

// SessionInfo is the public view of the current session. It omits the
// private key.
type SessionInfo struct {
	Active           bool
	Status           string
	SessionID        uint32
	SessionIDHex8    string
	UserName         string
	ServerTimeOffset int64
	StartedAt        time.Time
	// ServerData is the raw body of the final auth response.
	ServerData json.RawMessage
}

func sessionInfoFrom(st session.State, status session.Status) SessionInfo {
	return SessionInfo{
		Active:           st.Active(),
		Status:           status.String(),
		SessionID:        st.SessionID,
		SessionIDHex8:    st.SessionIDHex8,
		UserName:         st.UserName,
		ServerTimeOffset: st.ServerTimeOffset,
		StartedAt:        st.StartedAt,
		ServerData:       st.ServerData,
	}
}
