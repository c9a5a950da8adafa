package internal

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goMormot/digest"
)

// ClientNonceText renders the login nonce seed as "YYYY-MM-DD HH:MM:SS".
//
// The month is zero-based (January is "00"). Servers deployed against the
// browser client expect this layout, so it is kept as is.
func ClientNonceText(t time.Time) string {
	return fmt.Sprintf("%d-%02d-%02d %02d:%02d:%02d",
		t.Year(), int(t.Month())-1, t.Day(), t.Hour(), t.Minute(), t.Second())
}

// ClientNonce is the SHA-256 of ClientNonceText.
func ClientNonce(t time.Time) string {
	return digest.SHA256(ClientNonceText(t))
}
