package goMormot

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goMormot/digest"
	"github.com/MrEthical07/goMormot/internal"
	"github.com/MrEthical07/goMormot/signature"
	"github.com/MrEthical07/goMormot/transport"
)

func TestLoginEndToEndVector(t *testing.T) {
	clock := newFixedClock(time.Date(2026, time.October, 19, 10, 0, 0, 0, time.Local))
	tr := mormotStub(nil)
	c := newStubClient(t, DefaultConfig(), tr, clock)

	info, err := c.Login(context.Background(), "alice", "pwd", false)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !info.Active || info.SessionID != 42 || info.SessionIDHex8 != "0000002a" {
		t.Fatalf("unexpected session info %+v", info)
	}
	if !c.IsAuthenticated() {
		t.Fatal("expected authenticated client")
	}

	st := c.machine.Snapshot()
	wantKey := digest.CRC32Seed(digest.SHA256("salt"+"pwd"), digest.CRC32Seed("tokenABC", 0))
	if st.PrivateKey != wantKey {
		t.Fatalf("expected private key %08x, got %08x", wantKey, st.PrivateKey)
	}
	if st.ServerTimeOffset != 1000-int64(internal.TimeLog(clock.Now())) {
		t.Fatalf("unexpected server time offset %d", st.ServerTimeOffset)
	}

	reqs := tr.Requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 handshake requests, got %d", len(reqs))
	}
	if reqs[0].Method != transport.MethodPost || reqs[0].URL != "http://localhost:8888/root/timestamp" {
		t.Fatalf("unexpected timestamp request %+v", reqs[0])
	}
	if reqs[1].URL != "http://localhost:8888/root/Auth?UserName=alice" {
		t.Fatalf("unexpected challenge request %s", reqs[1].URL)
	}
	u, err := url.Parse(reqs[2].URL)
	if err != nil {
		t.Fatalf("parse credentials url: %v", err)
	}
	q := u.Query()
	nonce := digest.SHA256(internal.ClientNonceText(clock.Now()))
	if q.Get("ClientNonce") != nonce {
		t.Fatal("unexpected client nonce")
	}
	wantPassword := digest.SHA256("root" + "seed123" + nonce + "alice" + digest.SHA256("saltpwd"))
	if q.Get("Password") != wantPassword {
		t.Fatal("unexpected hashed password")
	}
	for _, r := range reqs {
		if strings.Contains(r.URL, signature.Param) {
			t.Fatalf("handshake requests must be unsigned: %s", r.URL)
		}
	}
}

func TestLoginHashedMatchesRaw(t *testing.T) {
	a := newStubClient(t, DefaultConfig(), mormotStub(nil), nil)
	b := newStubClient(t, DefaultConfig(), mormotStub(nil), nil)

	if _, err := a.Login(context.Background(), "alice", "pwd", false); err != nil {
		t.Fatalf("raw login: %v", err)
	}
	if _, err := b.Login(context.Background(), "alice", b.PasswordDigest("pwd"), true); err != nil {
		t.Fatalf("hashed login: %v", err)
	}
	if a.machine.Snapshot().PrivateKey != b.machine.Snapshot().PrivateKey {
		t.Fatal("raw and pre-hashed logins must derive the same key")
	}
}

func TestLoginFailureLeavesNoSession(t *testing.T) {
	tr := &stubTransport{handler: func(req *transport.Request) (*transport.Response, error) {
		if strings.HasSuffix(req.URL, "/timestamp") {
			return textResponse("not-a-number")
		}
		return textResponse("")
	}}
	c := newStubClient(t, DefaultConfig(), tr, nil)

	_, err := c.Login(context.Background(), "alice", "pwd", false)
	if !errors.Is(err, ErrProtocolParse) {
		t.Fatalf("expected ErrProtocolParse, got %v", err)
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Step != "timestamp" {
		t.Fatalf("expected timestamp ProtocolError, got %v", err)
	}
	if c.IsAuthenticated() || c.Session().Status != "logged_out" {
		t.Fatalf("expected logged out, got %+v", c.Session())
	}
}

func TestLoginMissingResultIsProtocolError(t *testing.T) {
	tr := &stubTransport{handler: func(req *transport.Request) (*transport.Response, error) {
		if strings.HasSuffix(req.URL, "/timestamp") {
			return textResponse("1000")
		}
		return jsonResponse(`{"nothing":true}`)
	}}
	c := newStubClient(t, DefaultConfig(), tr, nil)

	_, err := c.Login(context.Background(), "alice", "pwd", false)
	var perr *ProtocolError
	if !errors.As(err, &perr) || perr.Step != "challenge" {
		t.Fatalf("expected challenge ProtocolError, got %v", err)
	}
}

func TestLoginEmptyUserName(t *testing.T) {
	tr := mormotStub(nil)
	c := newStubClient(t, DefaultConfig(), tr, nil)

	if _, err := c.Login(context.Background(), "", "pwd", false); !errors.Is(err, ErrEmptyUserName) {
		t.Fatalf("expected ErrEmptyUserName, got %v", err)
	}
	if len(tr.Requests()) != 0 {
		t.Fatal("expected no requests for an empty user name")
	}
}

func TestLogoutResetsStateEvenWhenTransportFails(t *testing.T) {
	netErr := errors.New("connection reset")
	tr := mormotStub(func(req *transport.Request) (*transport.Response, error) {
		return nil, netErr
	})
	c := newStubClient(t, DefaultConfig(), tr, nil)

	if _, err := c.Login(context.Background(), "alice", "pwd", false); err != nil {
		t.Fatalf("login: %v", err)
	}
	err := c.Logout(context.Background())
	if !errors.Is(err, netErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if c.IsAuthenticated() {
		t.Fatal("expected state reset after failed logout")
	}
	if got := c.Sign("root/People"); got != "root/People" {
		t.Fatalf("expected unsigned url after logout, got %s", got)
	}
}

func TestLogoutSendsSignedRequest(t *testing.T) {
	clock := newFixedClock(time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC))
	tr := mormotStub(nil)
	c := newStubClient(t, DefaultConfig(), tr, clock)

	if _, err := c.Login(context.Background(), "alice", "pwd", false); err != nil {
		t.Fatalf("login: %v", err)
	}
	key := c.machine.Snapshot().PrivateKey
	clock.Advance(2 * time.Second)

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	reqs := tr.Requests()
	last := reqs[len(reqs)-1]
	signed := strings.TrimPrefix(last.URL, c.BaseURL())
	unsigned, tok, err := signature.Parse(signed)
	if err != nil {
		t.Fatalf("parse logout signature: %v", err)
	}
	if unsigned != "root/Auth?UserName=alice&Session=42" {
		t.Fatalf("unexpected logout url %s", unsigned)
	}
	if tok.Nonce != "000007d0" {
		t.Fatalf("expected nonce for 2s elapsed, got %s", tok.Nonce)
	}
	if _, err := signature.Verify(signed, key); err != nil {
		t.Fatalf("verify logout signature: %v", err)
	}
}

func TestLogoutWithoutSessionIsNoop(t *testing.T) {
	tr := mormotStub(nil)
	c := newStubClient(t, DefaultConfig(), tr, nil)
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(tr.Requests()) != 0 {
		t.Fatal("expected no requests")
	}
}

func TestSignNoopWhenLoggedOut(t *testing.T) {
	c := newStubClient(t, DefaultConfig(), mormotStub(nil), nil)
	if got := c.Sign("root/People?x=1"); got != "root/People?x=1" {
		t.Fatalf("expected identity, got %s", got)
	}
}

func TestSignStableAtFixedInstantAndChangesWithTime(t *testing.T) {
	clock := newFixedClock(time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC))
	c := newStubClient(t, DefaultConfig(), mormotStub(nil), clock)
	if _, err := c.Login(context.Background(), "alice", "pwd", false); err != nil {
		t.Fatalf("login: %v", err)
	}

	clock.Advance(1500 * time.Millisecond)
	a := c.Sign("root/People")
	b := c.Sign("root/People")
	if a != b {
		t.Fatalf("expected stable signature, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "root/People?session_signature=0000002a000005dc") {
		t.Fatalf("unexpected signature %s", a)
	}

	clock.Advance(time.Millisecond)
	if c.Sign("root/People") == a {
		t.Fatal("expected signature to change as time elapses")
	}
}

func TestIsAuthenticatedMatchesSessionIDUnderConcurrency(t *testing.T) {
	c := newStubClient(t, DefaultConfig(), mormotStub(nil), nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			info := c.Session()
			if info.Active != (info.SessionID > 0) {
				t.Error("Active out of sync with SessionID")
				return
			}
		}
	}()

	for i := 0; i < 20; i++ {
		if _, err := c.Login(context.Background(), "alice", "pwd", false); err != nil {
			t.Fatalf("login: %v", err)
		}
		if err := c.Logout(context.Background()); err != nil {
			t.Fatalf("logout: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRequestBuildsQueryAndSigns(t *testing.T) {
	tr := mormotStub(func(req *transport.Request) (*transport.Response, error) {
		return jsonResponse(`{"result":[{"ID":1}]}`)
	})
	c := newStubClient(t, DefaultConfig(), tr, nil)
	if _, err := c.Login(context.Background(), "alice", "pwd", false); err != nil {
		t.Fatalf("login: %v", err)
	}

	params := NewParams("select", "ID,Name", "where", "Name='Ada Lovelace'")
	if _, err := c.Request(context.Background(), "get", "People", nil, params, true); err != nil {
		t.Fatalf("request: %v", err)
	}
	reqs := tr.Requests()
	last := reqs[len(reqs)-1]
	want := "http://localhost:8888/root/People?select=ID%2CName&where=Name%3D'Ada%20Lovelace'&session_signature="
	if !strings.HasPrefix(last.URL, want) {
		t.Fatalf("unexpected url %s", last.URL)
	}
	if last.Body != nil {
		t.Fatal("GET must not carry a body")
	}
}

func TestRequestRejectsBadInput(t *testing.T) {
	c := newStubClient(t, DefaultConfig(), mormotStub(nil), nil)

	if _, err := c.Request(context.Background(), "PATCH", "People", nil, nil, false); !errors.Is(err, ErrUnsupportedVerb) {
		t.Fatalf("expected ErrUnsupportedVerb, got %v", err)
	}
	if _, err := c.Request(context.Background(), "GET", "People", nil, map[string]string{"a": "b"}, false); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestInvokeServiceUnwrapsResult(t *testing.T) {
	tr := mormotStub(func(req *transport.Request) (*transport.Response, error) {
		if strings.Contains(req.URL, "/root/Calc.Add") {
			return jsonResponse(`{"result":[5]}`)
		}
		return textResponse("pong")
	})
	c := newStubClient(t, DefaultConfig(), tr, nil)
	if _, err := c.Login(context.Background(), "alice", "pwd", false); err != nil {
		t.Fatalf("login: %v", err)
	}

	raw, err := c.InvokeService(context.Background(), "Calc.Add", map[string]int{"a": 2, "b": 3})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if string(raw) != "[5]" {
		t.Fatalf("unexpected result %s", raw)
	}

	raw, err = c.InvokeService(context.Background(), "Ping", nil)
	if err != nil {
		t.Fatalf("invoke ping: %v", err)
	}
	if string(raw) != `"pong"` {
		t.Fatalf("expected text result as json string, got %s", raw)
	}

	reqs := tr.Requests()
	last := reqs[len(reqs)-1]
	if last.Method != transport.MethodPost || !strings.Contains(last.URL, signature.Param) {
		t.Fatalf("expected signed POST, got %s %s", last.Method, last.URL)
	}
}

func TestClosedClientRejectsCalls(t *testing.T) {
	c := newStubClient(t, DefaultConfig(), mormotStub(nil), nil)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := c.Login(context.Background(), "alice", "pwd", false); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.IsAuthenticated() {
		t.Fatal("nil client must not be authenticated")
	}
	if c.Sign("root/x") != "root/x" {
		t.Fatal("nil client must not sign")
	}
	if _, err := c.Login(context.Background(), "a", "b", false); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
}
