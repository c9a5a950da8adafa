package goMormot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goMormot/internal/flows"
	"github.com/MrEthical07/goMormot/session"
	"github.com/MrEthical07/goMormot/signature"
	"github.com/MrEthical07/goMormot/transport"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Client talks to one mORMot server and holds at most one session.
//
// Client methods are safe for concurrent use.
type Client struct {
	config    Config
	baseURL   string
	transport Transport
	machine   *session.Machine
	store     *session.Store
	flows     flows.Service
	audit     *auditDispatcher
	metrics   *Metrics
	logger    logrus.FieldLogger
	now       func() time.Time

	ownedRedis *redis.Client
	closed     atomic.Bool
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

// BaseURL returns "http(s)://host:port/".
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close stops audit dispatch and closes a Redis client created by Build.
// The session itself is left alone; call Logout first to end it.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.audit != nil {
		c.audit.Close()
	}
	if c.ownedRedis != nil {
		return c.ownedRedis.Close()
	}
	return nil
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot returns empty maps when metrics are disabled.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) ready() error {
	if c == nil || c.machine == nil || c.transport == nil || !c.flows.Initialized() {
		return ErrClientNotReady
	}
	if c.closed.Load() {
		return ErrClientClosed
	}
	return nil
}

// Login runs the challenge-response handshake: timestamp sync, challenge
// fetch, hashed credential submission. When isHashed is true password is
// already SHA256(salt+password). On success the session is committed
// atomically (and persisted when configured); on failure nothing changes
// and any session established earlier stays usable.
func (c *Client) Login(ctx context.Context, userName, password string, isHashed bool) (SessionInfo, error) {
	if err := c.ready(); err != nil {
		return SessionInfo{}, err
	}

	done := c.machine.Begin()
	defer done()

	log := c.logger.WithField("user", userName)
	start := time.Now()

	st, err := c.flows.Login(ctx, flows.LoginRequest{
		UserName: userName,
		Password: password,
		IsHashed: isHashed,
	})
	c.metrics.Observe(MetricLoginLatency, time.Since(start))
	if err != nil {
		log.WithError(err).Warn("login failed")
		return SessionInfo{}, err
	}

	log.WithField("session", st.SessionIDHex8).Info("login succeeded")

	if c.store != nil {
		if err := c.store.Save(ctx, c.config.Session.Key, &st, c.config.Session.TTL); err != nil {
			c.metricInc(MetricSessionPersistFailure)
			log.WithError(err).Warn("persist session failed")
		}
	}

	return sessionInfoFrom(st, session.StatusLoggedIn), nil
}

// Logout sends the signed logout request and clears the local session even
// when that request fails; the failure is still returned. Without a session
// Logout is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.flows.Logout(ctx)
}

// IsAuthenticated reports whether a session is held.
func (c *Client) IsAuthenticated() bool {
	if c == nil || c.machine == nil {
		return false
	}
	return c.machine.Active()
}

// Session returns the public view of the current session.
func (c *Client) Session() SessionInfo {
	if c == nil || c.machine == nil {
		return SessionInfo{Status: session.StatusLoggedOut.String()}
	}
	return sessionInfoFrom(c.machine.Snapshot(), c.machine.Status())
}

// Sign appends session_signature to url (a root-relative path such as
// "root/People?select=*"). Without a session url is returned unchanged.
// Sign never fails and performs no I/O.
func (c *Client) Sign(url string) string {
	if c == nil || c.machine == nil {
		return url
	}
	st := c.machine.Snapshot()
	if !st.Active() {
		return url
	}
	return signState(url, st, c.now())
}

func signState(url string, st session.State, now time.Time) string {
	return signature.Sign(url, st.Key(), now.Sub(st.StartedAt))
}

// Resume restores the session persisted under Config.Session.Key.
func (c *Client) Resume(ctx context.Context) (SessionInfo, error) {
	if err := c.ready(); err != nil {
		return SessionInfo{}, err
	}
	if c.store == nil {
		return SessionInfo{}, ErrSessionStoreDisabled
	}

	var ttl time.Duration
	if c.config.Session.SlidingExpiration {
		ttl = c.config.Session.TTL
	}
	st, err := c.store.Load(ctx, c.config.Session.Key, ttl)
	if err != nil {
		c.emitAudit(ctx, AuditEventSessionResumed, false, "", "", err)
		return SessionInfo{}, err
	}
	if err := c.machine.Commit(*st); err != nil {
		return SessionInfo{}, err
	}

	c.metricInc(MetricSessionResumed)
	c.emitAudit(ctx, AuditEventSessionResumed, true, st.UserName, st.SessionIDHex8, nil)
	c.logger.WithFields(logrus.Fields{"user": st.UserName, "session": st.SessionIDHex8}).Info("session resumed")

	return sessionInfoFrom(*st, session.StatusLoggedIn), nil
}

// Request sends verb to <base><root>/<path>. For GET and HEAD paramsOrBody
// must be Params (or nil) and becomes the query string; for other verbs it
// is the JSON body. With sign the root-relative URL is signed first.
func (c *Client) Request(ctx context.Context, verb, path string, header http.Header, paramsOrBody any, sign bool) (*transport.Response, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	verb = strings.ToUpper(verb)
	switch verb {
	case transport.MethodGet, transport.MethodPost, transport.MethodPut, transport.MethodDelete, transport.MethodHead:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVerb, verb)
	}

	url := c.config.RootModel + "/" + path
	var body any
	if transport.BodyAllowed(verb) {
		body = paramsOrBody
	} else if paramsOrBody != nil {
		params, ok := paramsOrBody.(Params)
		if !ok {
			return nil, ErrInvalidParams
		}
		if q := params.Encode(); q != "" {
			url += "?" + q
		}
	}

	if sign {
		url = c.Sign(url)
		c.metricInc(MetricRequestSigned)
	} else {
		c.metricInc(MetricRequestUnsigned)
	}

	return c.send(ctx, &transport.Request{
		Method: verb,
		URL:    c.baseURL + url,
		Header: header,
		Body:   body,
	})
}

func (c *Client) send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	c.metrics.Observe(MetricRequestLatency, time.Since(start))
	if err != nil {
		c.metricInc(MetricRequestFailure)
		var rej *RejectionError
		if errors.As(err, &rej) {
			c.metricInc(MetricServerRejection)
		}
		return nil, err
	}
	return resp, nil
}

// InvokeService sends a signed POST to endpoint ("Method" or
// "Interface.Method") with params as the JSON body. A JSON object answer with
// a "result" member yields that member; any other JSON answer is returned
// whole, and a text answer is returned as a JSON string.
func (c *Client) InvokeService(ctx context.Context, endpoint string, params any) (json.RawMessage, error) {
	resp, err := c.Request(ctx, transport.MethodPost, endpoint, nil, params, true)
	if err != nil {
		return nil, err
	}
	if result, ok := resp.Result(); ok {
		return result, nil
	}
	if resp.IsJSON() {
		return json.RawMessage(resp.Body), nil
	}
	text, err := json.Marshal(resp.Text())
	if err != nil {
		return nil, err
	}
	return text, nil
}

// PasswordDigest returns SHA256(salt+password) with the client's salt and
// encoding, the value Login accepts with isHashed.
func (c *Client) PasswordDigest(password string) string {
	return flows.PasswordDigest(c.config.Salt, password, c.config.Latin1Digest)
}
