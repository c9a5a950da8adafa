package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrNilSigner is returned by RoundTrip when no Signer is configured.
var ErrNilSigner = errors.New("middleware: nil signer")

// Signer signs a root-relative URL such as "root/People?select=*".
// *goMormot.Client satisfies it.
type Signer interface {
	Sign(url string) string
}

// SigningTransport signs each request before handing it to Base.
//
// The request URL path must start with the root model; the signature covers
// everything after the leading slash. Without a session the Signer returns
// the URL unchanged and the request goes out unsigned.
type SigningTransport struct {
	Base   http.RoundTripper
	Signer Signer
}

// NewSigningTransport wraps base, or http.DefaultTransport when base is nil.
func NewSigningTransport(signer Signer, base http.RoundTripper) *SigningTransport {
	return &SigningTransport{Base: base, Signer: signer}
}

// RoundTrip implements http.RoundTripper. The caller's request is not
// modified.
func (t *SigningTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Signer == nil {
		closeBody(req)
		return nil, ErrNilSigner
	}

	signed := t.Signer.Sign(strings.TrimPrefix(req.URL.RequestURI(), "/"))
	u, err := url.Parse("/" + signed)
	if err != nil {
		closeBody(req)
		return nil, fmt.Errorf("middleware: signed url: %w", err)
	}

	out := req.Clone(req.Context())
	out.URL.Path = u.Path
	out.URL.RawPath = u.RawPath
	out.URL.RawQuery = u.RawQuery

	return t.base().RoundTrip(out)
}

func (t *SigningTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
