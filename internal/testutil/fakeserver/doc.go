// Package fakeserver emulates the parts of a mORMot server that goMormot
// talks to, on top of net/http/httptest.
//
// It implements timestamp sync, the two-step challenge-response login,
// signed-request verification, logout, a tiny in-memory ORM and registered
// method services:
//
//	srv := fakeserver.New().
//		User("alice", "pwd").
//		Table("People").
//		Service("Sum", sumHandler).
//		Start(t)
//
//	cfg.Server.Host, cfg.Server.Port = srv.Host(), srv.Port()
//
// Every request is captured for assertions. Requests other than timestamp
// and the two unsigned Auth steps must carry a valid session_signature or
// get 403.
package fakeserver
