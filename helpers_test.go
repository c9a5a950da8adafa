package goMormot

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goMormot/transport"
	"github.com/sirupsen/logrus"
)

type stubTransport struct {
	mu       sync.Mutex
	requests []transport.Request
	handler  func(req *transport.Request) (*transport.Response, error)
}

func (s *stubTransport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, *req)
	s.mu.Unlock()
	return s.handler(req)
}

func (s *stubTransport) Requests() []transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transport.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func jsonResponse(body string) (*transport.Response, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=UTF-8")
	return transport.NewResponse(http.StatusOK, h, []byte(body))
}

func textResponse(body string) (*transport.Response, error) {
	h := http.Header{}
	h.Set("Content-Type", "text/plain")
	return transport.NewResponse(http.StatusOK, h, []byte(body))
}

// mormotStub answers the handshake with timestamp 1000, challenge "seed123"
// and auth result "42+tokenABC". Other requests go to rest.
func mormotStub(rest func(req *transport.Request) (*transport.Response, error)) *stubTransport {
	return &stubTransport{handler: func(req *transport.Request) (*transport.Response, error) {
		switch {
		case strings.HasSuffix(req.URL, "/root/timestamp"):
			return textResponse("1000")
		case strings.Contains(req.URL, "/root/Auth?") && strings.Contains(req.URL, "Password="):
			return jsonResponse(`{"result":"42+tokenABC","logonname":"alice"}`)
		case strings.Contains(req.URL, "/root/Auth?") && !strings.Contains(req.URL, "Session="):
			return jsonResponse(`{"result":"seed123"}`)
		}
		if rest != nil {
			return rest(req)
		}
		return textResponse("")
	}}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{now: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStubClient(t *testing.T, cfg Config, tr Transport, clock *fixedClock) *Client {
	t.Helper()
	b := New().WithConfig(cfg).WithTransport(tr).WithLogger(quietLogger())
	if clock != nil {
		b = b.WithClock(clock.Now)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
