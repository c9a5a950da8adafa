package goMormot

import (
	"fmt"
	"strings"
)

// Param is one query parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of query parameters. Order is preserved on the
// wire, which matters because the signature covers the exact URL.
type Params []Param

// NewParams builds Params from alternating keys and values. A trailing key
// without value gets an empty value.
func NewParams(kv ...any) Params {
	p := make(Params, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		val := ""
		if i+1 < len(kv) {
			val = fmt.Sprint(kv[i+1])
		}
		p = append(p, Param{Key: key, Value: val})
	}
	return p
}

// Add appends key=value and returns the extended list.
func (p Params) Add(key string, value any) Params {
	return append(p, Param{Key: key, Value: fmt.Sprint(value)})
}

// Encode returns "k1=v1&k2=v2" with both sides escaped by EscapeComponent.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(EscapeComponent(kv.Key))
		b.WriteByte('=')
		b.WriteString(EscapeComponent(kv.Value))
	}
	return b.String()
}

const upperHex = "0123456789ABCDEF"

// EscapeComponent percent-encodes s like JavaScript's encodeURIComponent:
// ASCII letters, digits and -_.!~*'() are kept, every other UTF-8 byte
// becomes %XX.
func EscapeComponent(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !keepUnescaped(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keepUnescaped(c) {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', upperHex[c>>4], upperHex[c&15])
	}
	return string(buf)
}

func keepUnescaped(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
