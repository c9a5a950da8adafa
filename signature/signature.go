package signature

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goMormot/digest"
)

// Param is the query parameter carrying the signature.
const Param = "session_signature"

const (
	hexFieldLen = 8
	tokenLen    = 3 * hexFieldLen
)

var (
	// ErrMissingSignature is returned when a URL carries no session_signature parameter.
	ErrMissingSignature = errors.New("session signature missing")
	// ErrMalformedSignature is returned when the parameter is not 24 hex digits.
	ErrMalformedSignature = errors.New("session signature malformed")
	// ErrChecksumMismatch is returned when the checksum does not match the URL.
	ErrChecksumMismatch = errors.New("session signature checksum mismatch")
)

// Key is the per-session signing material established at login.
type Key struct {
	SessionIDHex8 string
	PrivateKey    uint32
}

// Token is a decoded session_signature value.
type Token struct {
	SessionID uint32
	Nonce     string
	Checksum  uint32
}

// Hex8 formats v as exactly eight lowercase hex digits.
func Hex8(v uint32) string {
	return fmt.Sprintf("%08x", v)
}

// Nonce renders the elapsed milliseconds as eight hex digits: left padded with
// zeros, or truncated to the least significant eight digits. Negative
// durations clamp to zero.
func Nonce(elapsed time.Duration) string {
	ms := elapsed.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	s := strconv.FormatInt(ms, 16)
	switch {
	case len(s) < hexFieldLen:
		s = strings.Repeat("0", hexFieldLen-len(s)) + s
	case len(s) > hexFieldLen:
		s = s[len(s)-hexFieldLen:]
	}
	return s
}

// Checksum chains the private key, the nonce and the path through CRC-32.
func Checksum(path, nonce string, privateKey uint32) uint32 {
	return digest.CRC32Seed(path, digest.CRC32Seed(nonce, privateKey))
}

// Sign appends the session_signature parameter to path.
//
// The checksum covers path exactly as given. A single trailing '/' is removed
// from the returned URL before the parameter is appended.
func Sign(path string, key Key, elapsed time.Duration) string {
	nonce := Nonce(elapsed)
	sum := Hex8(Checksum(path, nonce, key.PrivateKey))

	path = strings.TrimSuffix(path, "/")
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	var b strings.Builder
	b.Grow(len(path) + len(Param) + 2 + tokenLen)
	b.WriteString(path)
	b.WriteString(sep)
	b.WriteString(Param)
	b.WriteByte('=')
	b.WriteString(key.SessionIDHex8)
	b.WriteString(nonce)
	b.WriteString(sum)
	return b.String()
}

// Parse splits a signed URL into the URL that was signed and the decoded token.
// The parameter must be the last one in the URL, as Sign produces it.
func Parse(signed string) (string, Token, error) {
	i := strings.LastIndex(signed, Param+"=")
	if i <= 0 || (signed[i-1] != '?' && signed[i-1] != '&') {
		return "", Token{}, ErrMissingSignature
	}
	value := signed[i+len(Param)+1:]
	if len(value) != tokenLen {
		return "", Token{}, ErrMalformedSignature
	}

	id, err := strconv.ParseUint(value[:hexFieldLen], 16, 32)
	if err != nil {
		return "", Token{}, ErrMalformedSignature
	}
	nonce := value[hexFieldLen : 2*hexFieldLen]
	if _, err := strconv.ParseUint(nonce, 16, 32); err != nil {
		return "", Token{}, ErrMalformedSignature
	}
	sum, err := strconv.ParseUint(value[2*hexFieldLen:], 16, 32)
	if err != nil {
		return "", Token{}, ErrMalformedSignature
	}

	return signed[:i-1], Token{
		SessionID: uint32(id),
		Nonce:     nonce,
		Checksum:  uint32(sum),
	}, nil
}

// Verify checks the checksum of a signed URL against privateKey.
// URLs signed with a trailing '/' do not verify, since the slash is gone
// from the transmitted URL.
func Verify(signed string, privateKey uint32) (Token, error) {
	unsigned, tok, err := Parse(signed)
	if err != nil {
		return Token{}, err
	}
	if Checksum(unsigned, tok.Nonce, privateKey) != tok.Checksum {
		return tok, ErrChecksumMismatch
	}
	return tok, nil
}
