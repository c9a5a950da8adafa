package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goMormot/signature"
)

type tokenContextKey struct{}

// TokenFromContext returns the signature token stored by RequireSignature.
func TokenFromContext(ctx context.Context) (signature.Token, bool) {
	tok, ok := ctx.Value(tokenContextKey{}).(signature.Token)
	return tok, ok
}

// KeyFunc returns the private key of a live session.
type KeyFunc func(sessionID uint32) (privateKey uint32, ok bool)

// RequireSignature rejects requests whose session_signature is missing,
// names an unknown session, or fails the checksum. Rejections answer 403
// with a mORMot style JSON error body.
func RequireSignature(keys KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys == nil {
				forbidden(w)
				return
			}

			signed := strings.TrimPrefix(r.RequestURI, "/")
			_, tok, err := signature.Parse(signed)
			if err != nil {
				forbidden(w)
				return
			}
			key, ok := keys(tok.SessionID)
			if !ok {
				forbidden(w)
				return
			}
			if _, err := signature.Verify(signed, key); err != nil {
				forbidden(w)
				return
			}

			ctx := context.WithValue(r.Context(), tokenContextKey{}, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"errorCode":403,"errorText":"Invalid signature"}`))
}
