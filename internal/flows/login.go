package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goMormot/digest"
	"github.com/MrEthical07/goMormot/internal"
	"github.com/MrEthical07/goMormot/session"
	"github.com/MrEthical07/goMormot/signature"
)

// Login handshake steps, used in error context and audit details.
const (
	StepTimestamp   = "timestamp"
	StepChallenge   = "challenge"
	StepCredentials = "credentials"
	StepCommit      = "commit"
)

// LoginRequest is the caller input of one login.
type LoginRequest struct {
	UserName string
	// Password is the raw password, or its SHA-256 digest when IsHashed.
	Password string
	IsHashed bool
}

// CredentialsResult is the server's answer to the credential submission.
type CredentialsResult struct {
	// Result is the "result" member, "<sessionID>+<token>".
	Result string
	// Raw is the full response body.
	Raw []byte
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess int
	LoginFailure int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess string
	LoginFailure string
}

// LoginErrors carries host-level errors used by the login flow.
type LoginErrors struct {
	NotReady      error
	EmptyUserName error
	// Protocol wraps a malformed server answer at step.
	Protocol func(step string, err error) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Salt      string
	RootModel string
	// Latin1 hashes one byte per code point instead of UTF-8.
	Latin1 bool

	Now func() time.Time

	// FetchTimestamp performs the unsigned POST <root>/timestamp and returns
	// the body text.
	FetchTimestamp func(ctx context.Context) (string, error)
	// FetchChallenge performs the unsigned GET <root>/Auth?UserName= and
	// returns the challenge seed.
	FetchChallenge func(ctx context.Context, user string) (string, error)
	// SubmitCredentials performs the unsigned
	// GET <root>/Auth?UserName=&Password=&ClientNonce=.
	SubmitCredentials func(ctx context.Context, user, password, clientNonce string) (CredentialsResult, error)
	// Commit installs the established session.
	Commit func(session.State) error

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func (d LoginDeps) hash(msg string) string {
	if d.Latin1 {
		return digest.SHA256Latin1(msg)
	}
	return digest.SHA256(msg)
}

// PasswordDigest returns the digest the server stores for a raw password.
func PasswordDigest(salt, password string, latin1 bool) string {
	if latin1 {
		return digest.SHA256Latin1(salt + password)
	}
	return digest.SHA256(salt + password)
}

// PrivateKey derives the session signing key from the token half of the auth
// result and the password digest.
func PrivateKey(token, passwordDigest string) uint32 {
	return digest.CRC32Seed(passwordDigest, digest.CRC32Seed(token, 0))
}

// RunLogin executes the mORMot challenge-response handshake and commits the
// resulting session. On any failure nothing is committed.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (session.State, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Errors.Protocol == nil {
		deps.Errors.Protocol = func(step string, err error) error {
			return fmt.Errorf("login %s: %w", step, err)
		}
	}
	if deps.FetchTimestamp == nil ||
		deps.FetchChallenge == nil ||
		deps.SubmitCredentials == nil ||
		deps.Commit == nil {
		return session.State{}, deps.Errors.NotReady
	}

	fail := func(err error) (session.State, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, req.UserName, "", err)
		return session.State{}, err
	}

	if req.UserName == "" {
		return fail(deps.Errors.EmptyUserName)
	}

	passwordDigest := req.Password
	if !req.IsHashed {
		passwordDigest = PasswordDigest(deps.Salt, req.Password, deps.Latin1)
	}

	startedAt := deps.Now()

	rawTimestamp, err := deps.FetchTimestamp(ctx)
	if err != nil {
		return fail(fmt.Errorf("login %s: %w", StepTimestamp, err))
	}
	serverTimestamp, err := internal.ParseTimestamp(rawTimestamp)
	if err != nil {
		return fail(deps.Errors.Protocol(StepTimestamp, err))
	}
	offset := internal.ServerTimeOffset(serverTimestamp, deps.Now())

	seed, err := deps.FetchChallenge(ctx, req.UserName)
	if err != nil {
		return fail(fmt.Errorf("login %s: %w", StepChallenge, err))
	}

	clientNonce := internal.ClientNonce(deps.Now())
	password := deps.hash(deps.RootModel + seed + clientNonce + req.UserName + passwordDigest)

	creds, err := deps.SubmitCredentials(ctx, req.UserName, password, clientNonce)
	if err != nil {
		return fail(fmt.Errorf("login %s: %w", StepCredentials, err))
	}
	sessionID, token, err := internal.ParseAuthResult(creds.Result)
	if err != nil {
		return fail(deps.Errors.Protocol(StepCredentials, err))
	}

	st := session.State{
		SessionID:        sessionID,
		SessionIDHex8:    signature.Hex8(sessionID),
		PrivateKey:       PrivateKey(token, passwordDigest),
		ServerTimeOffset: offset,
		StartedAt:        startedAt,
		UserName:         req.UserName,
		ServerData:       creds.Raw,
	}
	if err := deps.Commit(st); err != nil {
		if errors.Is(err, session.ErrInactiveState) {
			return fail(deps.Errors.Protocol(StepCommit, err))
		}
		return fail(fmt.Errorf("login %s: %w", StepCommit, err))
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, req.UserName, st.SessionIDHex8, nil)
	return st, nil
}
