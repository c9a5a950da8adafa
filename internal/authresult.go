package internal

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrAuthResultSeparator is returned when a login result has no '+'.
	ErrAuthResultSeparator = errors.New("auth result missing '+' separator")
	// ErrAuthResultSessionID is returned when the session id prefix is not a positive 32-bit integer.
	ErrAuthResultSessionID = errors.New("auth result session id invalid")
	// ErrTimestampInvalid is returned when the timestamp body is not an unsigned integer.
	ErrTimestampInvalid = errors.New("server timestamp invalid")
)

// ParseAuthResult splits "<sessionID>+<token>" at the first '+'.
func ParseAuthResult(result string) (uint32, string, error) {
	i := strings.IndexByte(result, '+')
	if i < 0 {
		return 0, "", ErrAuthResultSeparator
	}
	id, err := strconv.ParseUint(result[:i], 10, 32)
	if err != nil || id == 0 {
		return 0, "", ErrAuthResultSessionID
	}
	return uint32(id), result[i+1:], nil
}

// ParseTimestamp reads the body of the timestamp endpoint.
// Surrounding whitespace and a JSON string quoting are tolerated.
func ParseTimestamp(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "\"")
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, ErrTimestampInvalid
	}
	return v, nil
}
