// Package internal holds the mORMot protocol helpers that are private to goMormot:
// the packed time-log integer sent during timestamp sync, the client nonce of the
// login handshake, and parsing of the server's auth results.
//
// # Sub-packages
//
//   - flows: pure-function login and logout orchestrators
//   - testutil/fakeserver: httptest emulation of a mORMot server for tests
//
// # What this package must NOT do
//
//   - Export types that appear in the public goMormot API.
//   - Perform I/O.
package internal
