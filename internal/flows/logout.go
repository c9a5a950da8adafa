package flows

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goMormot/session"
)

// LogoutMetrics carries metric IDs needed by the logout flow.
type LogoutMetrics struct {
	LogoutSuccess int
	LogoutFailure int
}

// LogoutEvents carries audit event names used by the logout flow.
type LogoutEvents struct {
	LogoutSuccess string
	LogoutFailure string
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Snapshot func() session.State
	// SendLogout performs the signed GET <root>/Auth?UserName=&Session=.
	SendLogout func(ctx context.Context, st session.State) error
	// ResetIf clears local state if it still holds sessionID.
	ResetIf func(sessionID uint32) bool
	// Forget drops any persisted copy. Optional.
	Forget func(ctx context.Context, st session.State) error
	// Warn reports non-fatal failures. Optional.
	Warn func(msg string, err error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics  LogoutMetrics
	Events   LogoutEvents
	NotReady error
}

// RunLogout ends the current session. Local state is cleared even when the
// server call fails; that error is still returned. Without a session it is a
// no-op.
func RunLogout(ctx context.Context, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = func(string, error) {}
	}
	if deps.Snapshot == nil || deps.SendLogout == nil || deps.ResetIf == nil {
		return deps.NotReady
	}

	st := deps.Snapshot()
	if !st.Active() {
		return nil
	}

	defer func() {
		deps.ResetIf(st.SessionID)
		if deps.Forget != nil {
			if err := deps.Forget(ctx, st); err != nil {
				deps.Warn("forget persisted session failed", err)
			}
		}
	}()

	if err := deps.SendLogout(ctx, st); err != nil {
		err = fmt.Errorf("logout: %w", err)
		deps.MetricInc(deps.Metrics.LogoutFailure)
		deps.EmitAudit(ctx, deps.Events.LogoutFailure, false, st.UserName, st.SessionIDHex8, err)
		return err
	}

	deps.MetricInc(deps.Metrics.LogoutSuccess)
	deps.EmitAudit(ctx, deps.Events.LogoutSuccess, true, st.UserName, st.SessionIDHex8, nil)
	return nil
}
