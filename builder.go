package goMormot

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goMormot/internal/flows"
	"github.com/MrEthical07/goMormot/session"
	"github.com/MrEthical07/goMormot/transport"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Transport performs one HTTP exchange. [transport.HTTP] is the default.
type Transport interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Builder assembles a Client.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	redis      redis.UniversalClient
	transport  Transport
	httpClient *http.Client
	logger     logrus.FieldLogger
	auditSink  AuditSink
	now        func() time.Time

	built bool
}

// New returns a Builder holding DefaultConfig. It performs no I/O.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration; start from DefaultConfig to
// keep defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client used for session persistence. The caller
// keeps ownership.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithTransport injects the HTTP exchange, mainly for tests.
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithHTTPClient sets the net/http client of the default transport.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLogger replaces the logger built from Config.Logging.
func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink only takes effect when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for session timing and nonces.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles Config.Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the client. A Builder can be
// built once. Build dials nothing; a Redis client created from
// Session.RedisAddr connects lazily and is closed by Client.Close.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = newLogger(cfg.Logging)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	tr := b.transport
	if tr == nil {
		tr = transport.NewHTTP(
			b.httpClient,
			cfg.Transport.Timeout,
			transport.WithUserAgent(cfg.Transport.UserAgent),
			transport.WithMaxBodyBytes(cfg.Transport.MaxBodyBytes),
			transport.WithLogger(logger),
		)
	}

	c := &Client{
		config:    cloneConfig(cfg),
		baseURL:   cfg.BaseURL(),
		transport: tr,
		machine:   session.NewMachine(),
		logger:    logger,
		now:       now,
	}

	// -------- SESSION STORE --------
	if cfg.Session.Persist {
		rdb := b.redis
		if rdb == nil {
			if cfg.Session.RedisAddr == "" {
				return nil, errors.New("Session Persist requires redis client or RedisAddr")
			}
			owned := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr})
			rdb = owned
			c.ownedRedis = owned
		}
		c.store = session.NewStore(rdb, cfg.Session.RedisPrefix, cfg.Session.SlidingExpiration)
	}

	c.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	c.metrics = NewMetrics(cfg.Metrics)
	c.flows = flows.New(c.flowDeps())

	b.built = true

	return c, nil
}
