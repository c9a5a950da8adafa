// Package goMormot is a client for mORMot ORM/RPC servers. It performs the
// server's challenge-response login, signs every privileged request with the
// session key, and wraps ORM and service calls.
//
// The client is safe for concurrent use after [Builder.Build]: Sign,
// Request and IsAuthenticated may run from many goroutines while Login or
// Logout replace the session atomically.
//
// # Architecture boundaries
//
// goMormot is the public surface. It exposes [Client], [Builder], [Config], and
// value types (SessionInfo, MetricsSnapshot, Params). Protocol helpers and the
// login/logout flows live under internal/; digest, signature, session and
// transport are independent leaf packages.
//
// # What this package must NOT do
//
//   - Log or expose the password, its digest, or the session private key.
//   - Retry requests; every failure is returned to the caller.
//   - Import any sub-package that re-imports goMormot (no import cycles).
package goMormot
