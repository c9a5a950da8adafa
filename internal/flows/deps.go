package flows

import "context"

// Deps groups flow dependency sets. The root client builds this once and
// delegates Login/Logout to the matching flow implementation.
type Deps struct {
	Login  LoginDeps
	Logout LogoutDeps
}

// AuditFunc emits one audit event. user and sessionID may be empty.
type AuditFunc func(ctx context.Context, event string, success bool, user, sessionID string, err error)

func noopAudit(context.Context, string, bool, string, string, error) {}

func noopMetric(int) {}
