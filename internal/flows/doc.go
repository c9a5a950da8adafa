// Package flows contains pure-function orchestrators for the mORMot login and
// logout handshakes.
//
// Each flow function (RunLogin, RunLogout) accepts a typed dependency struct
// and returns results without side-effects beyond those dependencies. The
// HTTP exchanges are injected as funcs, so every protocol step can be tested
// with stubs and the Client type stays thin.
//
// # Architecture boundaries
//
// Flow functions compute digests, nonces and the session private key, and
// report metrics and audit events through callbacks. They do NOT own the
// session machine, transport, or Redis store; ownership stays with the Client.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goMormot (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
//   - Log or return the password digest or private key.
package flows
