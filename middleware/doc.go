// Package middleware adapts mORMot request signing to net/http.
//
// # Client side
//
// [SigningTransport] is an http.RoundTripper that appends session_signature
// to every outgoing request URL, so a plain *http.Client can talk to a
// mORMot server through a logged-in goMormot.Client.
//
// # Server side
//
// [RequireSignature] verifies the signature of incoming requests against a
// session key lookup and injects the parsed token into the request context.
// It is meant for test doubles and proxies that speak the mORMot protocol.
//
// # What this package must NOT do
//
//   - Log in or out. Session lifecycle belongs to goMormot.Client.
//   - Check nonce freshness. Replay policy is the server's concern.
package middleware
