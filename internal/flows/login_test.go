package flows

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goMormot/digest"
	"github.com/MrEthical07/goMormot/internal"
	"github.com/MrEthical07/goMormot/session"
)

var (
	errNotReady  = errors.New("not ready")
	errEmptyUser = errors.New("empty user")
	errProtocol  = errors.New("protocol")
)

type loginRecorder struct {
	committed []session.State
	metrics   []int
	events    []string
	password  string
	nonce     string
}

func testLoginDeps(rec *loginRecorder, now time.Time) LoginDeps {
	return LoginDeps{
		Salt:      "salt",
		RootModel: "root",
		Now:       func() time.Time { return now },
		FetchTimestamp: func(context.Context) (string, error) {
			return "1000", nil
		},
		FetchChallenge: func(_ context.Context, user string) (string, error) {
			return "seed123", nil
		},
		SubmitCredentials: func(_ context.Context, user, password, clientNonce string) (CredentialsResult, error) {
			rec.password = password
			rec.nonce = clientNonce
			return CredentialsResult{Result: "42+tokenABC", Raw: []byte(`{"result":"42+tokenABC"}`)}, nil
		},
		Commit: func(st session.State) error {
			rec.committed = append(rec.committed, st)
			return nil
		},
		MetricInc: func(id int) { rec.metrics = append(rec.metrics, id) },
		EmitAudit: func(_ context.Context, event string, success bool, user, sid string, err error) {
			rec.events = append(rec.events, event)
		},
		Metrics: LoginMetrics{LoginSuccess: 1, LoginFailure: 2},
		Events:  LoginEvents{LoginSuccess: "login_success", LoginFailure: "login_failure"},
		Errors: LoginErrors{
			NotReady:      errNotReady,
			EmptyUserName: errEmptyUser,
			Protocol: func(step string, err error) error {
				return errors.Join(errProtocol, err)
			},
		},
	}
}

func TestRunLoginEndToEndVector(t *testing.T) {
	now := time.Date(2026, time.October, 19, 9, 30, 15, 0, time.Local)
	rec := &loginRecorder{}

	st, err := RunLogin(context.Background(), LoginRequest{UserName: "alice", Password: "pwd"}, testLoginDeps(rec, now))
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	pwDigest := digest.SHA256("salt" + "pwd")
	if st.SessionID != 42 || st.SessionIDHex8 != "0000002a" {
		t.Fatalf("unexpected session id %d %q", st.SessionID, st.SessionIDHex8)
	}
	wantKey := digest.CRC32Seed(pwDigest, digest.CRC32Seed("tokenABC", 0))
	if st.PrivateKey != wantKey {
		t.Fatalf("expected private key %08x, got %08x", wantKey, st.PrivateKey)
	}
	if st.ServerTimeOffset != 1000-int64(internal.TimeLog(now)) {
		t.Fatalf("unexpected server time offset %d", st.ServerTimeOffset)
	}
	if !st.StartedAt.Equal(now) || st.UserName != "alice" {
		t.Fatalf("unexpected state %+v", st)
	}

	wantNonce := digest.SHA256("2026-09-19 09:30:15")
	if rec.nonce != wantNonce {
		t.Fatalf("expected client nonce over zero-based month")
	}
	wantPassword := digest.SHA256("root" + "seed123" + wantNonce + "alice" + pwDigest)
	if rec.password != wantPassword {
		t.Fatalf("unexpected challenge password")
	}

	if len(rec.committed) != 1 || rec.committed[0].SessionID != 42 {
		t.Fatalf("expected exactly one commit, got %+v", rec.committed)
	}
	if len(rec.events) != 1 || rec.events[0] != "login_success" {
		t.Fatalf("unexpected events %v", rec.events)
	}
	if len(rec.metrics) != 1 || rec.metrics[0] != 1 {
		t.Fatalf("unexpected metrics %v", rec.metrics)
	}
}

func TestRunLoginHashedPasswordUsedVerbatim(t *testing.T) {
	rec := &loginRecorder{}
	pre := digest.SHA256("other-salt" + "pwd")

	st, err := RunLogin(context.Background(), LoginRequest{UserName: "alice", Password: pre, IsHashed: true}, testLoginDeps(rec, time.Now()))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if st.PrivateKey != PrivateKey("tokenABC", pre) {
		t.Fatal("hashed password must be used as the digest")
	}
}

func TestRunLoginLatin1(t *testing.T) {
	rec := &loginRecorder{}
	deps := testLoginDeps(rec, time.Now())
	deps.Latin1 = true

	st, err := RunLogin(context.Background(), LoginRequest{UserName: "bob", Password: "café"}, deps)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if st.PrivateKey != PrivateKey("tokenABC", digest.SHA256Latin1("saltcafé")) {
		t.Fatal("expected latin-1 password digest")
	}
}

func TestRunLoginFailuresCommitNothing(t *testing.T) {
	netErr := errors.New("connection refused")
	cases := []struct {
		name   string
		mutate func(*LoginDeps)
		want   error
	}{
		{"timestamp transport", func(d *LoginDeps) {
			d.FetchTimestamp = func(context.Context) (string, error) { return "", netErr }
		}, netErr},
		{"timestamp parse", func(d *LoginDeps) {
			d.FetchTimestamp = func(context.Context) (string, error) { return "soon", nil }
		}, errProtocol},
		{"challenge transport", func(d *LoginDeps) {
			d.FetchChallenge = func(context.Context, string) (string, error) { return "", netErr }
		}, netErr},
		{"credentials transport", func(d *LoginDeps) {
			d.SubmitCredentials = func(context.Context, string, string, string) (CredentialsResult, error) {
				return CredentialsResult{}, netErr
			}
		}, netErr},
		{"missing separator", func(d *LoginDeps) {
			d.SubmitCredentials = func(context.Context, string, string, string) (CredentialsResult, error) {
				return CredentialsResult{Result: "42tokenABC"}, nil
			}
		}, errProtocol},
		{"zero session id", func(d *LoginDeps) {
			d.SubmitCredentials = func(context.Context, string, string, string) (CredentialsResult, error) {
				return CredentialsResult{Result: "0+tokenABC"}, nil
			}
		}, errProtocol},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &loginRecorder{}
			deps := testLoginDeps(rec, time.Now())
			tc.mutate(&deps)

			_, err := RunLogin(context.Background(), LoginRequest{UserName: "alice", Password: "pwd"}, deps)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(rec.committed) != 0 {
				t.Fatalf("expected no commit, got %+v", rec.committed)
			}
			if len(rec.events) != 1 || rec.events[0] != "login_failure" {
				t.Fatalf("expected login_failure event, got %v", rec.events)
			}
			if len(rec.metrics) != 1 || rec.metrics[0] != 2 {
				t.Fatalf("expected failure metric, got %v", rec.metrics)
			}
		})
	}
}

func TestRunLoginStepContextInError(t *testing.T) {
	rec := &loginRecorder{}
	deps := testLoginDeps(rec, time.Now())
	deps.FetchChallenge = func(context.Context, string) (string, error) { return "", errors.New("boom") }

	_, err := RunLogin(context.Background(), LoginRequest{UserName: "alice", Password: "pwd"}, deps)
	if err == nil || !strings.Contains(err.Error(), StepChallenge) {
		t.Fatalf("expected step in error, got %v", err)
	}
}

func TestRunLoginEmptyUser(t *testing.T) {
	rec := &loginRecorder{}
	_, err := RunLogin(context.Background(), LoginRequest{Password: "pwd"}, testLoginDeps(rec, time.Now()))
	if !errors.Is(err, errEmptyUser) {
		t.Fatalf("expected empty user error, got %v", err)
	}
}

func TestRunLoginNotReady(t *testing.T) {
	_, err := RunLogin(context.Background(), LoginRequest{UserName: "a"}, LoginDeps{Errors: LoginErrors{NotReady: errNotReady}})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestRunLoginCommitFailure(t *testing.T) {
	rec := &loginRecorder{}
	deps := testLoginDeps(rec, time.Now())
	deps.Commit = func(session.State) error { return session.ErrInactiveState }

	_, err := RunLogin(context.Background(), LoginRequest{UserName: "alice", Password: "pwd"}, deps)
	if !errors.Is(err, errProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}
