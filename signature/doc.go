// Package signature computes and checks the session_signature query parameter
// that authenticates every privileged mORMot request.
//
// A signature is 24 lowercase hex digits: the session id, a nonce derived from
// the milliseconds elapsed since login, and a CRC-32 checksum chaining the
// session private key, the nonce and the signed URL.
//
// # What this package must NOT do
//
//   - Hold session state. Callers pass the Key and elapsed time explicitly.
//   - Enforce nonce freshness. Replay policy belongs to the server.
package signature
