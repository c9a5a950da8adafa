// Package session models a mORMot client session: the state established by a
// successful login, the state machine guarding it, and optional Redis-backed
// persistence so a session can be resumed by another process.
//
// # State machine
//
// [Machine] moves between LoggedOut, Authenticating and LoggedIn. All session
// fields are committed or cleared under one lock, so observers never see a
// partially established session and Active() always equals SessionID > 0.
//
// # Binary encoding
//
// Persisted sessions use a compact versioned binary layout (see [Encode]).
// The password digest is never part of [State]; the signing private key is,
// because signing is impossible without it. [Store] always writes with a TTL.
//
// # What this package must NOT do
//
//   - Import goMormot or transport (no upward imports).
//   - Perform HTTP I/O or protocol decisions.
package session
