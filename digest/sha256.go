package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 hashes the UTF-8 encoding of msg and returns 64 lowercase hex digits.
//
// Go strings are already UTF-8, so code points U+0080..U+FFFF are hashed as
// their 2- and 3-byte sequences exactly as the server expects.
func SHA256(msg string) string {
	sum := sha256.Sum256([]byte(msg))
	return hex.EncodeToString(sum[:])
}

// SHA256Latin1 hashes msg as one byte per code point, without UTF-8
// expansion. Code points above U+00FF contribute only their low byte.
func SHA256Latin1(msg string) string {
	buf := make([]byte, 0, len(msg))
	for _, r := range msg {
		buf = append(buf, byte(r))
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// IsSHA256Hex reports whether s has the shape of a SHA256 output.
func IsSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
